package ticket

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/atila/internal/models"
	"github.com/zulandar/atila/internal/project"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testDB creates an in-memory SQLite database with all required tables.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Project{}, &models.Ticket{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func seedProject(t *testing.T, db *gorm.DB, name string) *models.Project {
	t.Helper()
	p, err := project.Create(db, project.CreateOpts{Name: name})
	if err != nil {
		t.Fatalf("create project %s: %v", name, err)
	}
	return p
}

func TestCanonicalPriority(t *testing.T) {
	tests := map[string]string{
		"high":     "High",
		" LOW ":    "Low",
		"Highest":  "Highest",
		"urgent":   "urgent",
		"  weird ": "weird",
	}
	for in, want := range tests {
		if got := CanonicalPriority(in); got != want {
			t.Errorf("CanonicalPriority(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCanonicalStatus(t *testing.T) {
	tests := map[string]string{
		"active":    "Active",
		"COMPLETED": "Completed",
		"Review":    "Review",
	}
	for in, want := range tests {
		if got := CanonicalStatus(in); got != want {
			t.Errorf("CanonicalStatus(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCreate_Defaults(t *testing.T) {
	db := testDB(t)
	p := seedProject(t, db, "alpha")

	tk, err := Create(db, CreateOpts{ProjectID: p.ID, Title: "  Fix login "})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if tk.ID == 0 {
		t.Error("ID not assigned")
	}
	if tk.Title != "Fix login" {
		t.Errorf("Title = %q", tk.Title)
	}
	if tk.Priority != DefaultPriority || tk.Status != DefaultStatus || tk.Category != DefaultCategory {
		t.Errorf("defaults = (%q, %q, %q)", tk.Priority, tk.Status, tk.Category)
	}
	if tk.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestCreate_PreservesCreatedAtAndCanonicalizes(t *testing.T) {
	db := testDB(t)
	p := seedProject(t, db, "alpha")
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	tk, err := Create(db, CreateOpts{
		ProjectID: p.ID,
		Title:     "imported",
		Priority:  "highest",
		Status:    "active",
		CreatedAt: created,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, _ := Get(db, tk.ID)
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}
	if got.Priority != "Highest" || got.Status != "Active" {
		t.Errorf("(priority, status) = (%q, %q)", got.Priority, got.Status)
	}
}

func TestCreate_Validation(t *testing.T) {
	db := testDB(t)
	p := seedProject(t, db, "alpha")

	if _, err := Create(db, CreateOpts{ProjectID: p.ID}); err == nil || !strings.Contains(err.Error(), "title is required") {
		t.Errorf("missing title err = %v", err)
	}
	_, err := Create(db, CreateOpts{ProjectID: 999, Title: "x"})
	if !errors.Is(err, project.ErrNotFound) {
		t.Errorf("missing project err = %v, want project.ErrNotFound", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	db := testDB(t)
	if _, err := Get(db, 7); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestList_FiltersAndOrder(t *testing.T) {
	db := testDB(t)
	a := seedProject(t, db, "a")
	b := seedProject(t, db, "b")

	t1, _ := Create(db, CreateOpts{ProjectID: a.ID, Title: "one", Status: "Active", Assignee: "sam"})
	t2, _ := Create(db, CreateOpts{ProjectID: a.ID, Title: "two", Status: "Backlog", Priority: "High"})
	t3, _ := Create(db, CreateOpts{ProjectID: a.ID, Title: "three", Status: "Active"})
	Create(db, CreateOpts{ProjectID: b.ID, Title: "other"})

	db.Model(&models.Ticket{}).Where("id = ?", t1.ID).Update("display_score", 2)
	db.Model(&models.Ticket{}).Where("id = ?", t2.ID).Update("display_score", 1001)
	db.Model(&models.Ticket{}).Where("id = ?", t3.ID).Update("display_score", 1)

	all, err := List(db, ListFilters{ProjectID: a.ID})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].ID != t3.ID || all[1].ID != t1.ID || all[2].ID != t2.ID {
		t.Errorf("order = %v", ids(all))
	}

	active, _ := List(db, ListFilters{ProjectID: a.ID, Status: "active"})
	if len(active) != 2 {
		t.Errorf("active count = %d, want 2", len(active))
	}
	high, _ := List(db, ListFilters{Priority: "high"})
	if len(high) != 1 || high[0].ID != t2.ID {
		t.Errorf("high = %v", ids(high))
	}
	sams, _ := List(db, ListFilters{Assignee: "sam"})
	if len(sams) != 1 || sams[0].ID != t1.ID {
		t.Errorf("assignee = %v", ids(sams))
	}
	everything, _ := List(db, ListFilters{})
	if len(everything) != 4 {
		t.Errorf("unfiltered count = %d, want 4", len(everything))
	}
}

func ids(ts []models.Ticket) []uint {
	out := make([]uint, len(ts))
	for i, t := range ts {
		out[i] = t.ID
	}
	return out
}

func TestForProject(t *testing.T) {
	db := testDB(t)
	a := seedProject(t, db, "a")
	b := seedProject(t, db, "b")
	Create(db, CreateOpts{ProjectID: a.ID, Title: "one"})
	Create(db, CreateOpts{ProjectID: a.ID, Title: "two"})
	Create(db, CreateOpts{ProjectID: b.ID, Title: "three"})

	got, err := ForProject(db, a.ID)
	if err != nil {
		t.Fatalf("ForProject: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	for _, tk := range got {
		if tk.ProjectID != a.ID {
			t.Errorf("ticket %d belongs to project %d", tk.ID, tk.ProjectID)
		}
	}
}

func TestFindByIntegration(t *testing.T) {
	db := testDB(t)
	p := seedProject(t, db, "a")
	created, _ := Create(db, CreateOpts{ProjectID: p.ID, Title: "gh", IntegrationSource: "github", IntegrationID: "1001"})

	got, err := FindByIntegration(db, "github", "1001")
	if err != nil {
		t.Fatalf("FindByIntegration: %v", err)
	}
	if got == nil || got.ID != created.ID {
		t.Errorf("got %+v, want ticket %d", got, created.ID)
	}

	missing, err := FindByIntegration(db, "jira", "1001")
	if err != nil || missing != nil {
		t.Errorf("missing = (%v, %v), want (nil, nil)", missing, err)
	}
}

func TestIntegrationKey(t *testing.T) {
	if k := IntegrationKey("github", "1001"); k == nil || *k != "github/1001" {
		t.Errorf("IntegrationKey = %v, want github/1001", k)
	}
	for _, parts := range [][2]string{{"", "1"}, {"github", ""}, {"", ""}} {
		if k := IntegrationKey(parts[0], parts[1]); k != nil {
			t.Errorf("IntegrationKey(%q, %q) = %q, want nil", parts[0], parts[1], *k)
		}
	}

	db := testDB(t)
	p := seedProject(t, db, "a")
	imported, err := Create(db, CreateOpts{ProjectID: p.ID, Title: "gh", IntegrationSource: "github", IntegrationID: "5"})
	if err != nil {
		t.Fatal(err)
	}
	if imported.IntegrationKey == nil || *imported.IntegrationKey != "github/5" {
		t.Errorf("stored key = %v", imported.IntegrationKey)
	}
	local, err := Create(db, CreateOpts{ProjectID: p.ID, Title: "local"})
	if err != nil {
		t.Fatal(err)
	}
	if local.IntegrationKey != nil {
		t.Errorf("local ticket key = %q, want nil", *local.IntegrationKey)
	}
	if _, err := Create(db, CreateOpts{ProjectID: p.ID, Title: "again", IntegrationSource: "github", IntegrationID: "5"}); err == nil {
		t.Error("second ticket with the same integration key was stored")
	}
}

func TestAffectedProjects(t *testing.T) {
	db := testDB(t)
	a := seedProject(t, db, "a")
	b := seedProject(t, db, "b")
	tk, err := Create(db, CreateOpts{ProjectID: a.ID, Title: "x"})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		updates map[string]interface{}
		want    []uint
	}{
		{"no move", map[string]interface{}{"title": "y"}, []uint{a.ID}},
		{"same project", map[string]interface{}{"project_id": a.ID}, []uint{a.ID}},
		{"move", map[string]interface{}{"project_id": float64(b.ID)}, []uint{a.ID, b.ID}},
		{"malformed id", map[string]interface{}{"project_id": "abc"}, []uint{a.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AffectedProjects(db, tk.ID, tt.updates)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got %v, want %v", got, tt.want)
				}
			}
		})
	}

	if _, err := AffectedProjects(db, 999, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdate(t *testing.T) {
	db := testDB(t)
	p := seedProject(t, db, "a")
	tk, _ := Create(db, CreateOpts{ProjectID: p.ID, Title: "x"})

	affected, err := Update(db, tk.ID, map[string]interface{}{
		"priority":         "highest",
		"status":           "completed",
		"assignee":         "kim",
		"planned_end_date": "2025-03-01",
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(affected) != 1 || affected[0] != p.ID {
		t.Errorf("affected = %v, want [%d]", affected, p.ID)
	}
	got, _ := Get(db, tk.ID)
	if got.Priority != "Highest" || got.Status != "Completed" || got.Assignee != "kim" {
		t.Errorf("got = %+v", got)
	}
	if got.PlannedEndDate == nil || got.PlannedEndDate.Format(time.DateOnly) != "2025-03-01" {
		t.Errorf("PlannedEndDate = %v", got.PlannedEndDate)
	}
}

func TestUpdate_MoveProject(t *testing.T) {
	db := testDB(t)
	a := seedProject(t, db, "a")
	b := seedProject(t, db, "b")
	tk, _ := Create(db, CreateOpts{ProjectID: a.ID, Title: "x"})

	// JSON numbers decode as float64.
	affected, err := Update(db, tk.ID, map[string]interface{}{"project_id": float64(b.ID)})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(affected) != 2 || affected[0] != a.ID || affected[1] != b.ID {
		t.Errorf("affected = %v, want [%d %d]", affected, a.ID, b.ID)
	}
	got, _ := Get(db, tk.ID)
	if got.ProjectID != b.ID {
		t.Errorf("ProjectID = %d, want %d", got.ProjectID, b.ID)
	}

	if _, err := Update(db, tk.ID, map[string]interface{}{"project_id": 999}); !errors.Is(err, project.ErrNotFound) {
		t.Errorf("move to missing project err = %v", err)
	}
}

func TestUpdate_Rejections(t *testing.T) {
	db := testDB(t)
	p := seedProject(t, db, "a")
	tk, _ := Create(db, CreateOpts{ProjectID: p.ID, Title: "x"})

	tests := []struct {
		name    string
		updates map[string]interface{}
		want    string
	}{
		{"derived field", map[string]interface{}{"display_score": 1}, "not editable"},
		{"pscore", map[string]interface{}{"pscore": 9.5}, "not editable"},
		{"id", map[string]interface{}{"id": 3}, "not editable"},
		{"blank title", map[string]interface{}{"title": " "}, "title is required"},
		{"bad date", map[string]interface{}{"planned_start_date": "soon"}, "invalid date"},
		{"bad project id", map[string]interface{}{"project_id": -1}, "invalid id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Update(db, tk.ID, tt.updates)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want to contain %q", err, tt.want)
			}
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("err = %v, want ErrInvalid", err)
			}
		})
	}

	if _, err := Update(db, 404, map[string]interface{}{"title": "y"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing ticket err = %v", err)
	}
}

func TestUpdate_Empty(t *testing.T) {
	db := testDB(t)
	p := seedProject(t, db, "a")
	tk, _ := Create(db, CreateOpts{ProjectID: p.ID, Title: "x"})
	affected, err := Update(db, tk.ID, nil)
	if err != nil || len(affected) != 1 {
		t.Errorf("Update(nil) = (%v, %v)", affected, err)
	}
}
