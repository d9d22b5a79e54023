// Package worklist is the mutation surface of ATILA. Every operation that
// changes a project or its tickets recomputes the affected projects before
// returning, so callers always observe fresh scores and ranks.
package worklist

import (
	"context"
	"errors"
	"fmt"

	"github.com/zulandar/atila/internal/models"
	"github.com/zulandar/atila/internal/project"
	"github.com/zulandar/atila/internal/ranking"
	"github.com/zulandar/atila/internal/recalc"
	"github.com/zulandar/atila/internal/ticket"
	"gorm.io/gorm"
)

// Service binds the store to a Recalculator.
type Service struct {
	db     *gorm.DB
	recalc *recalc.Recalculator
}

// New creates a Service.
func New(db *gorm.DB, r *recalc.Recalculator) *Service {
	return &Service{db: db, recalc: r}
}

// DB exposes the underlying handle for read-only queries.
func (s *Service) DB() *gorm.DB { return s.db }

// Recalculator returns the recalculator used after mutations.
func (s *Service) Recalculator() *recalc.Recalculator { return s.recalc }

// CreateProject creates a project and ranks it.
func (s *Service) CreateProject(ctx context.Context, opts project.CreateOpts) (*models.Project, error) {
	p, err := project.Create(s.db.WithContext(ctx), opts)
	if err != nil {
		return nil, err
	}
	if _, err := s.recalc.Project(ctx, p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

// ActivateProject marks a project Active and re-ranks it.
func (s *Service) ActivateProject(ctx context.Context, id uint) (*models.Project, error) {
	var p *models.Project
	err := s.recalc.Mutate(ctx, []uint{id}, func(tx *gorm.DB) ([]uint, error) {
		var err error
		p, err = project.Activate(tx, id)
		return []uint{id}, err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// CreateTicket adds a ticket and re-ranks its project in the same
// transaction, so a ticket that cannot be ranked is never stored. The
// returned ticket carries its freshly derived fields.
func (s *Service) CreateTicket(ctx context.Context, opts ticket.CreateOpts) (*models.Ticket, error) {
	var id uint
	err := s.recalc.Mutate(ctx, []uint{opts.ProjectID}, func(tx *gorm.DB) ([]uint, error) {
		t, err := ticket.Create(tx, opts)
		if err != nil {
			return nil, err
		}
		id = t.ID
		return []uint{t.ProjectID}, nil
	})
	if err != nil {
		return nil, err
	}
	return ticket.Get(s.db.WithContext(ctx), id)
}

// maxMoveRetries bounds UpdateTicket's retries when a concurrent update
// moves the ticket between reading its project and locking it.
const maxMoveRetries = 3

// UpdateTicket applies field updates and re-ranks every affected project in
// the same transaction. If any of them cannot be ranked the update is
// rolled back.
func (s *Service) UpdateTicket(ctx context.Context, id uint, updates map[string]interface{}) (*models.Ticket, error) {
	db := s.db.WithContext(ctx)
	for attempt := 1; ; attempt++ {
		ids, err := ticket.AffectedProjects(db, id, updates)
		if err != nil {
			return nil, err
		}
		err = s.recalc.Mutate(ctx, ids, func(tx *gorm.DB) ([]uint, error) {
			return ticket.Update(tx, id, updates)
		})
		if errors.Is(err, recalc.ErrLockSetChanged) && attempt < maxMoveRetries {
			continue
		}
		if err != nil {
			return nil, err
		}
		return ticket.Get(db, id)
	}
}

// ImportTicket creates a ticket from an external tracker, or updates the
// previously imported one with the same source and external id. created
// reports which happened. Concurrent imports of one item converge on a
// single ticket through the unique integration key.
func (s *Service) ImportTicket(ctx context.Context, opts ticket.CreateOpts) (t *models.Ticket, created bool, err error) {
	if opts.IntegrationSource == "" || opts.IntegrationID == "" {
		return nil, false, fmt.Errorf("%w: import requires integration source and id", ticket.ErrInvalid)
	}
	db := s.db.WithContext(ctx)
	existing, err := ticket.FindByIntegration(db, opts.IntegrationSource, opts.IntegrationID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		t, err := s.CreateTicket(ctx, opts)
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return t, err == nil, err
		}
		// Another import stored it first.
		existing, err = ticket.FindByIntegration(db, opts.IntegrationSource, opts.IntegrationID)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, fmt.Errorf("worklist: import %s/%s: duplicate key without matching ticket", opts.IntegrationSource, opts.IntegrationID)
		}
	}

	updates := map[string]interface{}{
		"title":       opts.Title,
		"description": opts.Description,
		"assignee":    opts.Assignee,
	}
	if opts.Priority != "" {
		updates["priority"] = opts.Priority
	}
	if opts.Status != "" {
		updates["status"] = opts.Status
	}
	if opts.ProjectID != 0 && opts.ProjectID != existing.ProjectID {
		updates["project_id"] = opts.ProjectID
	}
	t, err = s.UpdateTicket(ctx, existing.ID, updates)
	return t, false, err
}

// Board is one project's rendered worklist.
type Board struct {
	Projects []models.Project
	Selected *models.Project
	Tickets  []models.Ticket
}

// Board loads the worklist for projectID, or for the first project by name
// when projectID is zero. A store without projects yields an empty Board.
func (s *Service) Board(ctx context.Context, projectID uint) (*Board, error) {
	db := s.db.WithContext(ctx)
	projects, err := project.List(db)
	if err != nil {
		return nil, err
	}
	b := &Board{Projects: projects}
	if len(projects) == 0 {
		return b, nil
	}

	if projectID == 0 {
		b.Selected = &projects[0]
	} else {
		for i := range projects {
			if projects[i].ID == projectID {
				b.Selected = &projects[i]
				break
			}
		}
		if b.Selected == nil {
			return nil, fmt.Errorf("%w: %d", project.ErrNotFound, projectID)
		}
	}

	b.Tickets, err = ticket.List(db, ticket.ListFilters{ProjectID: b.Selected.ID})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Top returns the first n non-completed tickets of a project in worklist order.
func (s *Service) Top(ctx context.Context, projectID uint, n int) ([]models.Ticket, error) {
	if n <= 0 {
		return nil, nil
	}
	tickets, err := ticket.List(s.db.WithContext(ctx), ticket.ListFilters{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	out := make([]models.Ticket, 0, n)
	for _, t := range tickets {
		if len(out) == n {
			break
		}
		if st, _ := ranking.ParseStatus(t.Status); st == ranking.StatusCompleted {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}
