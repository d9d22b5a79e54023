// Package notify posts worklist digests to chat webhooks (Slack, Discord).
package notify

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zulandar/atila/internal/config"
	"github.com/zulandar/atila/internal/logging"
	"github.com/zulandar/atila/internal/models"
	"github.com/zulandar/atila/internal/project"
	"github.com/zulandar/atila/internal/worklist"
)

// Sidebar colors.
const (
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
	ColorIdle    = "#9e9e9e"
)

const maxRetries = 3

// Message is a chat-platform-neutral notification.
type Message struct {
	Title  string
	Body   string
	Color  string
	Fields []Field
}

// Field is a key-value pair shown alongside a message.
type Field struct {
	Name  string
	Value string
	Short bool
}

// Sender delivers a Message to one destination.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Digest formats the head of a project's worklist. top is expected in
// display order.
func Digest(p *models.Project, top []models.Ticket) Message {
	msg := Message{
		Title: fmt.Sprintf("Worklist: %s", p.Name),
		Color: ColorInfo,
	}
	if len(top) == 0 {
		msg.Body = "No open tickets."
		msg.Color = ColorIdle
		return msg
	}

	var lines []string
	var active, highest int
	for i, t := range top {
		line := fmt.Sprintf("%d. [%s] %s (score %.2f, %s)", i+1, t.Priority, t.Title, t.PScore, t.Status)
		if t.Assignee != "" {
			line += " @" + t.Assignee
		}
		lines = append(lines, line)
		if t.Status == "Active" {
			active++
		}
		if t.Priority == "Highest" {
			highest++
		}
	}
	msg.Body = strings.Join(lines, "\n")
	if highest > 0 {
		msg.Color = ColorWarning
	}
	msg.Fields = []Field{
		{Name: "Shown", Value: fmt.Sprintf("%d", len(top)), Short: true},
		{Name: "Active", Value: fmt.Sprintf("%d", active), Short: true},
		{Name: "Highest", Value: fmt.Sprintf("%d", highest), Short: true},
	}
	return msg
}

// Broadcast sends msg to every sender and joins their errors.
func Broadcast(ctx context.Context, senders []Sender, msg Message) error {
	var errs []error
	for _, s := range senders {
		if err := s.Send(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("notify: %s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// FromConfig builds the senders for every configured webhook.
func FromConfig(cfg config.NotifyConfig) ([]Sender, error) {
	var senders []Sender
	if cfg.SlackWebhook != "" {
		senders = append(senders, NewSlack(cfg.SlackWebhook))
	}
	if cfg.DiscordWebhook != "" {
		d, err := NewDiscord(cfg.DiscordWebhook)
		if err != nil {
			return nil, err
		}
		senders = append(senders, d)
	}
	return senders, nil
}

// ProjectDigest rescores one project and builds its digest.
func ProjectDigest(ctx context.Context, svc *worklist.Service, projectID uint, topN int) (Message, error) {
	p, err := project.Get(svc.DB().WithContext(ctx), projectID)
	if err != nil {
		return Message{}, err
	}
	if _, err := svc.Recalculator().Project(ctx, projectID); err != nil {
		return Message{}, err
	}
	top, err := svc.Top(ctx, projectID, topN)
	if err != nil {
		return Message{}, err
	}
	return Digest(p, top), nil
}

// Job returns a scheduled job that broadcasts a digest for every active
// project. A failure on one project does not stop the others.
func Job(svc *worklist.Service, senders []Sender, topN int, log *zap.Logger) func(context.Context) error {
	log = logging.WithComponent(logging.OrNop(log), "notify")
	return func(ctx context.Context) error {
		if len(senders) == 0 {
			return nil
		}
		projects, err := project.List(svc.DB().WithContext(ctx))
		if err != nil {
			return err
		}
		var errs []error
		for _, p := range projects {
			if p.Status != project.StatusActive {
				continue
			}
			msg, err := ProjectDigest(ctx, svc, p.ID, topN)
			if err == nil {
				err = Broadcast(ctx, senders, msg)
			}
			if err != nil {
				log.Warn("digest failed", zap.Uint("project_id", p.ID), zap.Error(err))
				errs = append(errs, err)
				continue
			}
			log.Info("digest sent", zap.Uint("project_id", p.ID), zap.String("project", p.Name))
		}
		return errors.Join(errs...)
	}
}

// backoff returns the wait before retry attempt n.
func backoff(attempt int, base time.Duration) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * base
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
