// Package project provides project lifecycle operations.
package project

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zulandar/atila/internal/models"
	"gorm.io/gorm"
)

// Project statuses.
const (
	StatusCreated = "Created"
	StatusActive  = "Active"
)

// ErrNotFound is returned when a project id does not exist.
var ErrNotFound = errors.New("project: not found")

// ErrDuplicateName is returned when a project name is already taken.
var ErrDuplicateName = errors.New("project: name already exists")

// ErrInvalid marks input rejected before touching the database.
var ErrInvalid = errors.New("project: invalid")

// defaultTags are always present in a project's tag string.
var defaultTags = []string{"Score:[0.00]", "Ticket_ID:0"}

// CreateOpts holds parameters for creating a new project.
type CreateOpts struct {
	Name             string
	Description      string
	Type             string // business, engineering, ...
	Priority         string
	Tags             string // comma separated
	PlannedStartDate *time.Time
	PlannedEndDate   *time.Time
}

// NormalizeTags trims a comma-separated tag list and appends the default
// tags that are missing.
func NormalizeTags(raw string) string {
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	for _, d := range defaultTags {
		found := false
		for _, t := range tags {
			if t == d {
				found = true
				break
			}
		}
		if !found {
			tags = append(tags, d)
		}
	}
	return strings.Join(tags, ", ")
}

// Create creates a new project in the Created state.
func Create(db *gorm.DB, opts CreateOpts) (*models.Project, error) {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if opts.Type == "" {
		opts.Type = "business"
	}
	if opts.Priority == "" {
		opts.Priority = "Medium"
	}

	var count int64
	if err := db.Model(&models.Project{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("project: check name %q: %w", name, err)
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}

	start := opts.PlannedStartDate
	if start == nil {
		today := time.Now().UTC().Truncate(24 * time.Hour)
		start = &today
	}

	p := models.Project{
		Name:             name,
		Description:      opts.Description,
		Type:             opts.Type,
		Priority:         opts.Priority,
		Status:           StatusCreated,
		Tags:             NormalizeTags(opts.Tags),
		PlannedStartDate: start,
		PlannedEndDate:   opts.PlannedEndDate,
	}
	if err := db.Create(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, name)
		}
		return nil, fmt.Errorf("project: create: %w", err)
	}
	return &p, nil
}

// Get retrieves a project by ID.
func Get(db *gorm.DB, id uint) (*models.Project, error) {
	var p models.Project
	if err := db.Where("id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("project: get %d: %w", id, err)
	}
	return &p, nil
}

// List returns all projects ordered by name, case-insensitively.
func List(db *gorm.DB) ([]models.Project, error) {
	var projects []models.Project
	if err := db.Order("id ASC").Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("project: list: %w", err)
	}
	sort.SliceStable(projects, func(i, j int) bool {
		return strings.ToLower(projects[i].Name) < strings.ToLower(projects[j].Name)
	})
	return projects, nil
}

// IDs returns every project id in ascending order.
func IDs(db *gorm.DB) ([]uint, error) {
	var ids []uint
	if err := db.Model(&models.Project{}).Order("id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("project: list ids: %w", err)
	}
	return ids, nil
}

// Activate marks a project Active.
func Activate(db *gorm.DB, id uint) (*models.Project, error) {
	p, err := Get(db, id)
	if err != nil {
		return nil, err
	}
	if err := db.Model(p).Update("status", StatusActive).Error; err != nil {
		return nil, fmt.Errorf("project: activate %d: %w", id, err)
	}
	p.Status = StatusActive
	return p, nil
}
