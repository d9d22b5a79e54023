package normalize

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

var now = time.Date(2025, 11, 10, 9, 0, 0, 0, time.UTC)

const githubIssue = `{
  "id": 1001,
  "title": "Bug: login error",
  "body": "Users cannot log in after update.",
  "state": "open",
  "assignee": {"login": "david"},
  "labels": [{"name": "bug"}, {"name": "auth"}],
  "created_at": "2025-11-09T14:30:00Z",
  "updated_at": "2025-11-09T15:00:00Z",
  "repository": {"name": "ai-pipeline"}
}`

const azureItem = `{
  "id": 77,
  "fields": {
    "System.Title": "Pipeline flakes",
    "System.State": "Doing",
    "System.AssignedTo": {"displayName": "Rae"},
    "Microsoft.VSTS.Common.Priority": 1,
    "System.CreatedDate": "2025-10-01T08:00:00.123Z"
  }
}`

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return m
}

func TestResolvePath(t *testing.T) {
	data := decode(t, `{
		"a": {"b": {"c": "deep"}},
		"fields": {"System.Title": "dotted", "status": {"name": "Done"}},
		"labels": [{"name": "bug"}, {"name": "auth"}],
		"n": 5
	}`)
	tests := []struct {
		path string
		want any
	}{
		{"a.b.c", "deep"},
		{`fields["System.Title"]`, "dotted"},
		{`fields['System.Title']`, "dotted"},
		{"fields.status.name", "Done"},
		{"labels[1].name", "auth"},
		{"labels.0.name", "bug"},
		{"n", float64(5)},

		{"", nil},
		{"null", nil},
		{"NULL", nil},
		{"a.missing.c", nil},
		{"n.deeper", nil},
		{"labels[9].name", nil},
		{"labels[x]", nil},
		{"fields[unterminated", nil},
	}
	for _, tt := range tests {
		if got := ResolvePath(data, tt.path); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ResolvePath(%q) = %#v, want %#v", tt.path, got, tt.want)
		}
	}
}

func TestNormalize_GitHub(t *testing.T) {
	rec, err := Normalize("GitHub", decode(t, githubIssue), DefaultPlatformMap(), now)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	checks := map[string]string{
		"source":      "github",
		"external_id": "1001",
		"title":       "Bug: login error",
		"description": "Users cannot log in after update.",
		"status":      "open",
		"assignee":    "david",
		"category":    "bug",
		"project":     "ai-pipeline",
		"priority":    "",
	}
	for field, want := range checks {
		if got := rec.String(field); got != want {
			t.Errorf("%s = %q, want %q", field, got, want)
		}
	}
	want := time.Date(2025, 11, 9, 14, 30, 0, 0, time.UTC)
	if got := rec.Time("created_at"); !got.Equal(want) {
		t.Errorf("created_at = %v, want %v", got, want)
	}
}

func TestNormalize_AzureDottedKeys(t *testing.T) {
	rec, err := Normalize("azure_devops", decode(t, azureItem), DefaultPlatformMap(), now)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if rec.String("title") != "Pipeline flakes" || rec.String("assignee") != "Rae" {
		t.Errorf("rec = %v", rec)
	}
	if rec.String("priority") != "1" {
		t.Errorf("priority = %q, want 1", rec.String("priority"))
	}
	opts := rec.TicketOpts(3)
	if opts.Priority != "Highest" || opts.Status != "Active" {
		t.Errorf("opts = (%q, %q), want (Highest, Active)", opts.Priority, opts.Status)
	}
	// Missing updated date falls back to now.
	if got := rec.Time("updated_at"); !got.Equal(now) {
		t.Errorf("updated_at = %v, want now", got)
	}
}

func TestNormalize_JiraTimestamp(t *testing.T) {
	raw := decode(t, `{"key": "OPS-12", "fields": {"summary": "x", "created": "2025-11-09T14:30:00.000+0200", "priority": {"name": "Critical"}}}`)
	rec, err := Normalize("jira", raw, DefaultPlatformMap(), now)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2025, 11, 9, 12, 30, 0, 0, time.UTC)
	if got := rec.Time("created_at"); !got.Equal(want) {
		t.Errorf("created_at = %v, want %v", got, want)
	}
	if rec.TicketOpts(1).Priority != "Highest" {
		t.Errorf("priority = %q", rec.TicketOpts(1).Priority)
	}
	if rec.TicketOpts(1).IntegrationID != "OPS-12" {
		t.Errorf("IntegrationID = %q", rec.TicketOpts(1).IntegrationID)
	}
}

func TestSafeTime_Layouts(t *testing.T) {
	want := time.Date(2025, 11, 9, 12, 30, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2025-11-09T12:30:00Z", want},
		{"2025-11-09T14:30:00+02:00", want},
		{"2025-11-09T14:30:00+0200", want},
		{"2025-11-09T14:30:00.000+0200", want},
		{"2025-11-09T14:30:00.5+0200", want.Add(500 * time.Millisecond)},
		{"2025-11-09T12:30:00", want},
		{"2025-11-09", time.Date(2025, 11, 9, 0, 0, 0, 0, time.UTC)},
		{"9 Nov 2025", now},
	}
	for _, tt := range tests {
		if got := safeTime(tt.in, now); !got.Equal(tt.want) {
			t.Errorf("safeTime(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNormalize_BadTimestampDefaultsToNow(t *testing.T) {
	raw := decode(t, `{"id": 1, "created_at": "yesterday-ish"}`)
	rec, err := Normalize("github", raw, DefaultPlatformMap(), now)
	if err != nil {
		t.Fatal(err)
	}
	if got := rec.Time("created_at"); !got.Equal(now) {
		t.Errorf("created_at = %v, want now", got)
	}
}

func TestNormalize_UnknownPlatform(t *testing.T) {
	_, err := Normalize("trello", map[string]any{}, DefaultPlatformMap(), now)
	if !errors.Is(err, ErrUnknownPlatform) {
		t.Fatalf("err = %v, want ErrUnknownPlatform", err)
	}
	if !strings.Contains(err.Error(), "github") {
		t.Errorf("error should list supported platforms: %v", err)
	}
}

func TestTicketOpts_GitHub(t *testing.T) {
	rec, _ := Normalize("github", decode(t, githubIssue), DefaultPlatformMap(), now)
	opts := rec.TicketOpts(9)
	if opts.ProjectID != 9 {
		t.Errorf("ProjectID = %d", opts.ProjectID)
	}
	if opts.Status != "Backlog" || opts.Priority != "Medium" {
		t.Errorf("(status, priority) = (%q, %q)", opts.Status, opts.Priority)
	}
	if opts.IntegrationSource != "github" || opts.IntegrationID != "1001" {
		t.Errorf("integration = %s/%s", opts.IntegrationSource, opts.IntegrationID)
	}
	if opts.Category != "bug" || opts.Assignee != "david" {
		t.Errorf("(category, assignee) = (%q, %q)", opts.Category, opts.Assignee)
	}
	if opts.CreatedAt.IsZero() {
		t.Error("CreatedAt not carried over")
	}
}

func TestTicketOpts_MissingTitle(t *testing.T) {
	rec := Record{"source": "jira", "external_id": "OPS-1"}
	if got := rec.TicketOpts(1).Title; got != "jira ticket OPS-1" {
		t.Errorf("Title = %q", got)
	}
}

func TestMapStatus(t *testing.T) {
	tests := map[string]string{
		"Active":      "Active",
		"completed":   "Completed",
		"open":        "Backlog",
		"In Progress": "Active",
		"Closed":      "Completed",
		"Resolved":    "Completed",
		"whatever":    "Backlog",
		"":            "Backlog",
	}
	for in, want := range tests {
		if got := MapStatus(in); got != want {
			t.Errorf("MapStatus(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMapPriority(t *testing.T) {
	tests := map[string]string{
		"High":    "High",
		"blocker": "Highest",
		"Major":   "High",
		"minor":   "Low",
		"4":       "Low",
		"meh":     "Medium",
		"":        "Medium",
	}
	for in, want := range tests {
		if got := MapPriority(in); got != want {
			t.Errorf("MapPriority(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRecordString(t *testing.T) {
	rec := Record{
		"s":   "x",
		"f":   float64(1234567890),
		"num": json.Number("42"),
		"i":   7,
		"b":   true,
		"m":   map[string]any{"a": 1},
	}
	want := map[string]string{"s": "x", "f": "1234567890", "num": "42", "i": "7", "b": "true", "m": "", "missing": ""}
	for k, w := range want {
		if got := rec.String(k); got != w {
			t.Errorf("String(%q) = %q, want %q", k, got, w)
		}
	}
}

func TestPlatformMap(t *testing.T) {
	m := DefaultPlatformMap()
	if got := strings.Join(m.Platforms(), ","); got != "azure_devops,github,jira" {
		t.Errorf("Platforms = %s", got)
	}
	if _, ok := m.Rules(" GITHUB "); !ok {
		t.Error("Rules should match case-insensitively")
	}
}

func TestLoadPlatformMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.yaml")
	if err := os.WriteFile(path, []byte("Linear:\n  title: title\n  external_id: identifier\n"), 0644); err != nil {
		t.Fatal(err)
	}
	m, err := LoadPlatformMap(path)
	if err != nil {
		t.Fatalf("LoadPlatformMap: %v", err)
	}
	rules, ok := m.Rules("linear")
	if !ok || rules["external_id"] != "identifier" {
		t.Errorf("rules = %v", rules)
	}

	def, err := LoadPlatformMap("")
	if err != nil || len(def) != 3 {
		t.Errorf("LoadPlatformMap(\"\") = %v, %v", def, err)
	}
	if _, err := LoadPlatformMap(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := ParsePlatformMap([]byte("{}")); err == nil {
		t.Error("expected error for empty map")
	}
}
