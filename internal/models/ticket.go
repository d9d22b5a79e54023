package models

import "time"

// Ticket is the unit of work ranked within a project.
//
// PScore, DisplayScore and TicketOrderID are derived: they are overwritten
// every time the owning project is recomputed and never written elsewhere.
type Ticket struct {
	ID                uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID         uint       `gorm:"index;not null" json:"project_id"`
	Title             string     `gorm:"not null" json:"title"`
	Description       string     `gorm:"type:text" json:"description"`
	Priority          string     `gorm:"size:16;default:Medium" json:"priority"`
	Status            string     `gorm:"size:16;default:Backlog;index" json:"status"`
	Category          string     `gorm:"size:64;default:Product Management" json:"category"`
	PScore            float64    `gorm:"column:pscore;default:0;index" json:"pscore"`
	DisplayScore      int        `gorm:"default:0" json:"display_score"`
	TicketOrderID     int        `gorm:"default:0" json:"ticket_order_id"`
	PlannedStartDate  *time.Time `json:"planned_start_date,omitempty"`
	PlannedEndDate    *time.Time `json:"planned_end_date,omitempty"`
	Assignee          string     `gorm:"size:64" json:"assignee"`
	IntegrationSource string     `gorm:"size:32;index:idx_ticket_integration" json:"integration_source"`
	IntegrationID     string     `gorm:"size:128;index:idx_ticket_integration" json:"integration_id"`
	// IntegrationKey is "source/id" for imported tickets and NULL otherwise,
	// so at most one ticket exists per external item.
	IntegrationKey    *string    `gorm:"size:161;uniqueIndex:idx_ticket_integration_key" json:"-"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}
