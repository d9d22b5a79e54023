package models

import "time"

// Project groups tickets. Ranking is always scoped to exactly one project.
type Project struct {
	ID               uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Name             string     `gorm:"size:128;uniqueIndex;not null" json:"name"`
	Description      string     `gorm:"type:text" json:"description"`
	Type             string     `gorm:"size:32;default:business" json:"type"`
	Priority         string     `gorm:"size:16;default:Medium" json:"priority"`
	Status           string     `gorm:"size:16;default:Created;index" json:"status"`
	Tags             string     `gorm:"size:255" json:"tags"`
	PlannedStartDate *time.Time `json:"planned_start_date,omitempty"`
	PlannedEndDate   *time.Time `json:"planned_end_date,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	Tickets []Ticket `gorm:"foreignKey:ProjectID" json:"-"`
}
