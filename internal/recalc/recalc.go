// Package recalc re-derives scores and ranks for whole projects.
//
// A recomputation reads the project's full ticket set, scores every ticket
// against one shared reference time, assigns ranks and writes the derived
// fields back, all inside one transaction. Runs for the same project are
// serialized; different projects never share state and may run in parallel.
package recalc

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/zulandar/atila/internal/logging"
	"github.com/zulandar/atila/internal/models"
	"github.com/zulandar/atila/internal/project"
	"github.com/zulandar/atila/internal/ranking"
	"github.com/zulandar/atila/internal/ticket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Opts configures a Recalculator.
type Opts struct {
	DB          *gorm.DB
	Logger      *zap.Logger
	Weights     *ranking.Weights // nil uses ranking.DefaultWeights
	Concurrency int              // projects recomputed in parallel by All; <= 0 means 1
	Now         func() time.Time // nil uses time.Now
}

// Recalculator owns the per-project read, score, rank, write cycle.
type Recalculator struct {
	db          *gorm.DB
	log         *zap.Logger
	weights     ranking.Weights
	concurrency int
	now         func() time.Time

	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

// New creates a Recalculator.
func New(opts Opts) (*Recalculator, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("recalc: db is required")
	}
	r := &Recalculator{
		db:          opts.DB,
		log:         logging.WithComponent(logging.OrNop(opts.Logger), "recalc"),
		weights:     ranking.DefaultWeights(),
		concurrency: opts.Concurrency,
		now:         opts.Now,
		locks:       make(map[uint]*sync.Mutex),
	}
	if opts.Weights != nil {
		r.weights = *opts.Weights
	}
	if r.concurrency <= 0 {
		r.concurrency = 1
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r, nil
}

// projectLock returns the mutex serializing writes to one project.
func (r *Recalculator) projectLock(id uint) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[id]
	if !ok {
		l = &sync.Mutex{}
		r.locks[id] = l
	}
	return l
}

// ErrLockSetChanged is returned by Mutate when the mutation touched a
// project it did not hold the lock for. The transaction has been rolled
// back and the caller may retry with a fresh project set.
var ErrLockSetChanged = errors.New("recalc: mutation touched an unlocked project")

// lockProjects acquires the locks of ids in ascending order and returns the
// sorted, deduplicated set together with the matching unlock function.
func (r *Recalculator) lockProjects(ids []uint) ([]uint, func()) {
	set := slices.Clone(ids)
	slices.Sort(set)
	set = slices.Compact(set)
	held := make([]*sync.Mutex, 0, len(set))
	for _, id := range set {
		l := r.projectLock(id)
		l.Lock()
		held = append(held, l)
	}
	return set, func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

// Project recomputes pscore, display_score and ticket_order_id for every
// ticket in one project.
func (r *Recalculator) Project(ctx context.Context, projectID uint) (ranking.Summary, error) {
	_, unlock := r.lockProjects([]uint{projectID})
	defer unlock()

	if err := ctx.Err(); err != nil {
		return ranking.Summary{}, err
	}

	now := r.now()
	var sum ranking.Summary
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		sum, err = r.rank(tx, projectID, now)
		return err
	})
	if err != nil {
		return sum, fmt.Errorf("recalc: project %d: %w", projectID, err)
	}
	r.logSummary(projectID, sum)
	return sum, nil
}

// Mutate runs fn and then recomputes every project in ids, all inside one
// transaction while holding those projects' locks. fn returns the projects
// its change touched. If ranking any of them fails, for example on a band
// overflow, the mutation is rolled back together with the recompute.
func (r *Recalculator) Mutate(ctx context.Context, ids []uint, fn func(tx *gorm.DB) ([]uint, error)) error {
	locked, unlock := r.lockProjects(ids)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	now := r.now()
	sums := make(map[uint]ranking.Summary, len(locked))
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		touched, err := fn(tx)
		if err != nil {
			return err
		}
		for _, id := range touched {
			if _, ok := slices.BinarySearch(locked, id); !ok {
				return fmt.Errorf("%w: %d", ErrLockSetChanged, id)
			}
		}
		for _, id := range locked {
			sum, err := r.rank(tx, id, now)
			if err != nil {
				return fmt.Errorf("recalc: project %d: %w", id, err)
			}
			sums[id] = sum
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, id := range locked {
		r.logSummary(id, sums[id])
	}
	return nil
}

// rank scores and ranks one project's tickets and writes the derived
// fields through tx.
func (r *Recalculator) rank(tx *gorm.DB, projectID uint, now time.Time) (ranking.Summary, error) {
	tickets, err := ticket.ForProject(tx, projectID)
	if err != nil {
		return ranking.Summary{}, err
	}

	sum, err := ranking.Apply(tickets, now, r.weights)
	if err != nil {
		return sum, err
	}

	for _, t := range tickets {
		if err := tx.Model(&models.Ticket{}).Where("id = ?", t.ID).UpdateColumns(map[string]interface{}{
			"pscore":          t.PScore,
			"display_score":   t.DisplayScore,
			"ticket_order_id": t.TicketOrderID,
		}).Error; err != nil {
			return sum, fmt.Errorf("write ticket %d: %w", t.ID, err)
		}
	}
	return sum, nil
}

func (r *Recalculator) logSummary(projectID uint, sum ranking.Summary) {
	log := logging.WithProject(r.log, projectID)
	if len(sum.Unrecognized) > 0 {
		log.Warn("tickets with unrecognized status ranked as backlog", zap.Uints("ticket_ids", sum.Unrecognized))
	}
	log.Debug("project ranked",
		zap.Int("active", sum.Active),
		zap.Int("backlog", sum.Backlog),
		zap.Int("completed", sum.Completed),
	)
}

// Projects recomputes each listed project once, skipping duplicates.
func (r *Recalculator) Projects(ctx context.Context, ids ...uint) error {
	seen := make(map[uint]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, err := r.Project(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// All recomputes every project. Projects are independent, so up to the
// configured concurrency run at once. It returns the number of projects
// processed.
func (r *Recalculator) All(ctx context.Context) (int, error) {
	ids, err := project.IDs(r.db.WithContext(ctx))
	if err != nil {
		return 0, fmt.Errorf("recalc: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			_, err := r.Project(gctx, id)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	r.log.Info("recomputed all projects", zap.Int("projects", len(ids)))
	return len(ids), nil
}
