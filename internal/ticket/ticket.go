// Package ticket provides ticket lifecycle operations.
//
// Functions here only read and write rows. Recomputing a project's scores
// and ranks after a mutation is the caller's job (see package worklist).
package ticket

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/atila/internal/models"
	"github.com/zulandar/atila/internal/project"
	"github.com/zulandar/atila/internal/ranking"
	"gorm.io/gorm"
)

// Defaults applied to new tickets.
const (
	DefaultPriority = "Medium"
	DefaultStatus   = "Backlog"
	DefaultCategory = "Product Management"
)

// ErrNotFound is returned when a ticket id does not exist.
var ErrNotFound = errors.New("ticket: not found")

// ErrInvalid marks input rejected before touching the database.
var ErrInvalid = errors.New("ticket: invalid")

// CreateOpts holds parameters for creating a new ticket.
type CreateOpts struct {
	ProjectID         uint
	Title             string
	Description       string
	Priority          string
	Status            string
	Category          string
	Assignee          string
	PlannedStartDate  *time.Time
	PlannedEndDate    *time.Time
	IntegrationSource string
	IntegrationID     string
	CreatedAt         time.Time // zero means now
}

// ListFilters holds optional filters for listing tickets.
type ListFilters struct {
	ProjectID uint
	Status    string
	Priority  string
	Assignee  string
}

// editableFields are the columns Update accepts. Derived ranking fields,
// ids and timestamps are never written through Update.
var editableFields = map[string]bool{
	"title":              true,
	"description":        true,
	"priority":           true,
	"status":             true,
	"category":           true,
	"assignee":           true,
	"planned_start_date": true,
	"planned_end_date":   true,
	"project_id":         true,
}

// CanonicalPriority returns the canonical spelling of a recognized priority
// and the trimmed input otherwise. Scoring treats unrecognized values as Medium.
func CanonicalPriority(s string) string {
	if p, ok := ranking.LookupPriority(s); ok {
		return p.String()
	}
	return strings.TrimSpace(s)
}

// CanonicalStatus returns the canonical spelling of a recognized status and
// the trimmed input otherwise.
func CanonicalStatus(s string) string {
	if st, ok := ranking.ParseStatus(s); ok {
		return st.String()
	}
	return strings.TrimSpace(s)
}

// Create creates a new ticket in an existing project.
func Create(db *gorm.DB, opts CreateOpts) (*models.Ticket, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if _, err := project.Get(db, opts.ProjectID); err != nil {
		return nil, fmt.Errorf("ticket: %w", err)
	}

	if opts.Priority == "" {
		opts.Priority = DefaultPriority
	}
	if opts.Status == "" {
		opts.Status = DefaultStatus
	}
	if opts.Category == "" {
		opts.Category = DefaultCategory
	}

	t := models.Ticket{
		ProjectID:         opts.ProjectID,
		Title:             strings.TrimSpace(opts.Title),
		Description:       opts.Description,
		Priority:          CanonicalPriority(opts.Priority),
		Status:            CanonicalStatus(opts.Status),
		Category:          opts.Category,
		Assignee:          opts.Assignee,
		PlannedStartDate:  opts.PlannedStartDate,
		PlannedEndDate:    opts.PlannedEndDate,
		IntegrationSource: opts.IntegrationSource,
		IntegrationID:     opts.IntegrationID,
		IntegrationKey:    IntegrationKey(opts.IntegrationSource, opts.IntegrationID),
		CreatedAt:         opts.CreatedAt,
	}
	if err := db.Create(&t).Error; err != nil {
		return nil, fmt.Errorf("ticket: create: %w", err)
	}
	return &t, nil
}

// Get retrieves a ticket by ID.
func Get(db *gorm.DB, id uint) (*models.Ticket, error) {
	var t models.Ticket
	if err := db.Where("id = ?", id).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("ticket: get %d: %w", id, err)
	}
	return &t, nil
}

// List returns tickets matching the given filters in worklist order:
// display_score ascending, then id.
func List(db *gorm.DB, filters ListFilters) ([]models.Ticket, error) {
	q := db.Model(&models.Ticket{})

	if filters.ProjectID != 0 {
		q = q.Where("project_id = ?", filters.ProjectID)
	}
	if filters.Status != "" {
		q = q.Where("status = ?", CanonicalStatus(filters.Status))
	}
	if filters.Priority != "" {
		q = q.Where("priority = ?", CanonicalPriority(filters.Priority))
	}
	if filters.Assignee != "" {
		q = q.Where("assignee = ?", filters.Assignee)
	}

	var tickets []models.Ticket
	if err := q.Order("display_score ASC, id ASC").Find(&tickets).Error; err != nil {
		return nil, fmt.Errorf("ticket: list: %w", err)
	}
	return tickets, nil
}

// ForProject loads every ticket of a project as pointers, ready for ranking.
func ForProject(db *gorm.DB, projectID uint) ([]*models.Ticket, error) {
	var tickets []*models.Ticket
	if err := db.Where("project_id = ?", projectID).Order("id ASC").Find(&tickets).Error; err != nil {
		return nil, fmt.Errorf("ticket: load project %d: %w", projectID, err)
	}
	return tickets, nil
}

// FindByIntegration looks up a ticket imported from an external tracker.
// It returns (nil, nil) when no such ticket exists.
func FindByIntegration(db *gorm.DB, source, externalID string) (*models.Ticket, error) {
	var t models.Ticket
	err := db.Where("integration_source = ? AND integration_id = ?", source, externalID).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ticket: find %s/%s: %w", source, externalID, err)
	}
	return &t, nil
}

// Update modifies editable ticket fields and returns the ids of the projects
// whose ranking is affected: the ticket's project, plus the destination
// project when project_id changes.
func Update(db *gorm.DB, id uint, updates map[string]interface{}) ([]uint, error) {
	current, err := Get(db, id)
	if err != nil {
		return nil, err
	}

	clean := make(map[string]interface{}, len(updates))
	for k, v := range updates {
		if !editableFields[k] {
			return nil, fmt.Errorf("%w: field %q is not editable", ErrInvalid, k)
		}
		clean[k] = v
	}
	if len(clean) == 0 {
		return []uint{current.ProjectID}, nil
	}

	affected := []uint{current.ProjectID}
	if v, ok := clean["project_id"]; ok {
		pid, err := toUint(v)
		if err != nil {
			return nil, fmt.Errorf("%w: project_id: %v", ErrInvalid, err)
		}
		if _, err := project.Get(db, pid); err != nil {
			return nil, fmt.Errorf("ticket: %w", err)
		}
		clean["project_id"] = pid
		if pid != current.ProjectID {
			affected = append(affected, pid)
		}
	}
	if v, ok := clean["title"]; ok {
		s, _ := v.(string)
		if strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("%w: title is required", ErrInvalid)
		}
	}
	if v, ok := clean["priority"].(string); ok {
		clean["priority"] = CanonicalPriority(v)
	}
	if v, ok := clean["status"].(string); ok {
		clean["status"] = CanonicalStatus(v)
	}
	for _, k := range []string{"planned_start_date", "planned_end_date"} {
		if v, ok := clean[k]; ok {
			d, err := toDate(v)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, k, err)
			}
			clean[k] = d
		}
	}

	if err := db.Model(&models.Ticket{}).Where("id = ?", id).Updates(clean).Error; err != nil {
		return nil, fmt.Errorf("ticket: update %d: %w", id, err)
	}
	return affected, nil
}

// IntegrationKey returns the unique key of an imported ticket, or nil when
// either part is empty.
func IntegrationKey(source, externalID string) *string {
	if source == "" || externalID == "" {
		return nil
	}
	k := source + "/" + externalID
	return &k
}

// AffectedProjects reports which projects an Update with these fields would
// re-rank, without writing anything. A malformed project_id is left for
// Update to reject.
func AffectedProjects(db *gorm.DB, id uint, updates map[string]interface{}) ([]uint, error) {
	current, err := Get(db, id)
	if err != nil {
		return nil, err
	}
	ids := []uint{current.ProjectID}
	if v, ok := updates["project_id"]; ok {
		if pid, err := toUint(v); err == nil && pid != current.ProjectID {
			ids = append(ids, pid)
		}
	}
	return ids, nil
}

// toUint accepts the numeric shapes produced by JSON decoding and flags.
func toUint(v interface{}) (uint, error) {
	switch n := v.(type) {
	case uint:
		return n, nil
	case int:
		if n >= 0 {
			return uint(n), nil
		}
	case int64:
		if n >= 0 {
			return uint(n), nil
		}
	case float64:
		if n >= 0 && n == float64(uint(n)) {
			return uint(n), nil
		}
	}
	return 0, fmt.Errorf("invalid id %v", v)
}

// toDate accepts nil, time values, and RFC 3339 or YYYY-MM-DD strings.
func toDate(v interface{}) (*time.Time, error) {
	switch d := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return &d, nil
	case *time.Time:
		return d, nil
	case string:
		if d == "" {
			return nil, nil
		}
		for _, layout := range []string{time.RFC3339, time.DateOnly} {
			if t, err := time.Parse(layout, d); err == nil {
				return &t, nil
			}
		}
		return nil, fmt.Errorf("invalid date %q", d)
	}
	return nil, fmt.Errorf("invalid date %v", v)
}
