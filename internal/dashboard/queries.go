package dashboard

import (
	"github.com/zulandar/atila/internal/models"
	"github.com/zulandar/atila/internal/ranking"
	"gorm.io/gorm"
)

// BandCount holds one project's ticket counts per status band.
type BandCount struct {
	Active    int
	Backlog   int
	Completed int
	// Unrecognized tickets are ranked with the backlog but counted here
	// as well so the board can flag them.
	Unrecognized int
	Total        int
}

// BandCounts returns ticket counts for projectID grouped by status band.
func BandCounts(db *gorm.DB, projectID uint) (BandCount, error) {
	type row struct {
		Status string
		Count  int
	}
	var rows []row
	if err := db.Model(&models.Ticket{}).
		Select("status, count(*) as count").
		Where("project_id = ?", projectID).
		Group("status").
		Find(&rows).Error; err != nil {
		return BandCount{}, err
	}

	var bc BandCount
	for _, r := range rows {
		st, ok := ranking.ParseStatus(r.Status)
		if !ok {
			bc.Unrecognized += r.Count
		}
		switch st {
		case ranking.StatusActive:
			bc.Active += r.Count
		case ranking.StatusBacklog:
			bc.Backlog += r.Count
		case ranking.StatusCompleted:
			bc.Completed += r.Count
		}
		bc.Total += r.Count
	}
	return bc, nil
}

// RankEntry is one ticket's position in the worklist.
type RankEntry struct {
	ID           uint    `json:"id"`
	DisplayScore int     `json:"display_score"`
	PScore       float64 `gorm:"column:pscore" json:"pscore"`
}

// RankSnapshot returns the current worklist order of projectID.
func RankSnapshot(db *gorm.DB, projectID uint) ([]RankEntry, error) {
	var entries []RankEntry
	if err := db.Model(&models.Ticket{}).
		Select("id, display_score, pscore").
		Where("project_id = ?", projectID).
		Order("display_score ASC, id ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
