package notify

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/zulandar/atila/internal/config"
	"github.com/zulandar/atila/internal/models"
	"github.com/zulandar/atila/internal/project"
	"github.com/zulandar/atila/internal/recalc"
	"github.com/zulandar/atila/internal/ticket"
	"github.com/zulandar/atila/internal/worklist"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// recordingSender captures messages and can be told to fail.
type recordingSender struct {
	name string
	err  error
	msgs []Message
}

func (r *recordingSender) Name() string { return r.name }

func (r *recordingSender) Send(_ context.Context, msg Message) error {
	r.msgs = append(r.msgs, msg)
	return r.err
}

func TestDigest_Empty(t *testing.T) {
	msg := Digest(&models.Project{Name: "alpha"}, nil)
	assert.Equal(t, "Worklist: alpha", msg.Title)
	assert.Equal(t, "No open tickets.", msg.Body)
	assert.Equal(t, ColorIdle, msg.Color)
	assert.Empty(t, msg.Fields)
}

func TestDigest_Lines(t *testing.T) {
	top := []models.Ticket{
		{Title: "Fix login", Priority: "Highest", Status: "Active", PScore: 44, Assignee: "david"},
		{Title: "Docs", Priority: "Low", Status: "Backlog", PScore: 1.5},
	}
	msg := Digest(&models.Project{Name: "alpha"}, top)
	lines := strings.Split(msg.Body, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "1. [Highest] Fix login (score 44.00, Active) @david", lines[0])
	assert.Equal(t, "2. [Low] Docs (score 1.50, Backlog)", lines[1])
	assert.Equal(t, ColorWarning, msg.Color)
	assert.Equal(t, []Field{
		{Name: "Shown", Value: "2", Short: true},
		{Name: "Active", Value: "1", Short: true},
		{Name: "Highest", Value: "1", Short: true},
	}, msg.Fields)
}

func TestBroadcast_JoinsErrors(t *testing.T) {
	ok := &recordingSender{name: "ok"}
	bad := &recordingSender{name: "bad", err: errors.New("boom")}
	err := Broadcast(context.Background(), []Sender{bad, ok}, Message{Title: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notify: bad: boom")
	// Every sender is tried even after a failure.
	assert.Len(t, ok.msgs, 1)
	assert.Len(t, bad.msgs, 1)

	assert.NoError(t, Broadcast(context.Background(), nil, Message{}))
}

func TestFromConfig(t *testing.T) {
	senders, err := FromConfig(config.NotifyConfig{})
	require.NoError(t, err)
	assert.Empty(t, senders)

	senders, err = FromConfig(config.NotifyConfig{
		SlackWebhook:   "https://hooks.slack.com/services/T/B/X",
		DiscordWebhook: "https://discord.com/api/webhooks/123/abc",
	})
	require.NoError(t, err)
	require.Len(t, senders, 2)
	assert.Equal(t, "slack", senders[0].Name())
	assert.Equal(t, "discord", senders[1].Name())

	_, err = FromConfig(config.NotifyConfig{DiscordWebhook: "https://discord.com/nope"})
	assert.Error(t, err)
}

func newTestService(t *testing.T) *worklist.Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "notify.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Project{}, &models.Ticket{}))
	r, err := recalc.New(recalc.Opts{DB: db, Now: func() time.Time { return fixedNow }})
	require.NoError(t, err)
	return worklist.New(db, r)
}

func TestJob_DigestsActiveProjectsOnly(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	live, err := svc.CreateProject(ctx, project.CreateOpts{Name: "live"})
	require.NoError(t, err)
	_, err = svc.ActivateProject(ctx, live.ID)
	require.NoError(t, err)
	idle, err := svc.CreateProject(ctx, project.CreateOpts{Name: "idle"})
	require.NoError(t, err)

	for _, title := range []string{"one", "two", "three"} {
		_, err := svc.CreateTicket(ctx, ticket.CreateOpts{ProjectID: live.ID, Title: title, Status: "Active"})
		require.NoError(t, err)
	}
	_, err = svc.CreateTicket(ctx, ticket.CreateOpts{ProjectID: idle.ID, Title: "ignored"})
	require.NoError(t, err)

	rec := &recordingSender{name: "rec"}
	require.NoError(t, Job(svc, []Sender{rec}, 2, nil)(ctx))
	require.Len(t, rec.msgs, 1)
	assert.Equal(t, "Worklist: live", rec.msgs[0].Title)
	assert.Len(t, strings.Split(rec.msgs[0].Body, "\n"), 2)
}

func TestJob_ReportsSendFailure(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	p, err := svc.CreateProject(ctx, project.CreateOpts{Name: "live"})
	require.NoError(t, err)
	_, err = svc.ActivateProject(ctx, p.ID)
	require.NoError(t, err)

	bad := &recordingSender{name: "bad", err: errors.New("down")}
	err = Job(svc, []Sender{bad}, 5, nil)(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
}

func TestJob_NoSendersIsNoop(t *testing.T) {
	assert.NoError(t, Job(nil, nil, 5, nil)(context.Background()))
}

func TestProjectDigest_UnknownProject(t *testing.T) {
	svc := newTestService(t)
	_, err := ProjectDigest(context.Background(), svc, 99, 5)
	assert.ErrorIs(t, err, project.ErrNotFound)
}

func TestProjectDigest_RanksBeforeReading(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	p, err := svc.CreateProject(ctx, project.CreateOpts{Name: "stale"})
	require.NoError(t, err)

	// Written straight to the table, so derived ranks are still unset.
	_, err = ticket.Create(svc.DB(), ticket.CreateOpts{ProjectID: p.ID, Title: "fresh", Priority: "High", CreatedAt: fixedNow})
	require.NoError(t, err)
	_, err = ticket.Create(svc.DB(), ticket.CreateOpts{ProjectID: p.ID, Title: "aged", Priority: "Low", CreatedAt: fixedNow.Add(-10 * 24 * time.Hour)})
	require.NoError(t, err)

	msg, err := ProjectDigest(ctx, svc, p.ID, 5)
	require.NoError(t, err)
	lines := strings.Split(msg.Body, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "1. [Low] aged (score 11.00, Backlog)", lines[0])
	assert.Equal(t, "2. [High] fresh (score 3.00, Backlog)", lines[1])
}
