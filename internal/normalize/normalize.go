package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zulandar/atila/internal/ranking"
	"github.com/zulandar/atila/internal/ticket"
)

// ErrUnknownPlatform is returned for a source with no field map.
var ErrUnknownPlatform = errors.New("normalize: no mapping for platform")

// Record is a normalized ticket: ATILA field name -> value. created_at and
// updated_at are always time.Time; source is always set.
type Record map[string]any

// Normalize maps a raw payload from source into a Record. Timestamps that are
// missing or unparseable default to now.
func Normalize(source string, raw map[string]any, m PlatformMap, now time.Time) (Record, error) {
	rules, ok := m.Rules(source)
	if !ok {
		return nil, fmt.Errorf("%w: %s (supported: %s)", ErrUnknownPlatform, source, strings.Join(m.Platforms(), ", "))
	}

	rec := make(Record, len(rules)+3)
	for field, path := range rules {
		rec[field] = ResolvePath(raw, path)
	}
	rec["source"] = strings.ToLower(strings.TrimSpace(source))
	rec["created_at"] = safeTime(rec["created_at"], now)
	rec["updated_at"] = safeTime(rec["updated_at"], now)
	return rec, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05-0700", // jira, azure exports; fractional seconds optional
	"2006-01-02T15:04:05",
	time.DateOnly,
}

// safeTime parses v as a timestamp, falling back to now.
func safeTime(v any, now time.Time) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed.UTC()
			}
		}
	}
	return now.UTC()
}

// String returns field as a string. Numbers are formatted without exponent;
// nil and composite values yield "".
func (r Record) String(field string) string {
	switch v := r[field].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

// Time returns a timestamp field, or the zero time.
func (r Record) Time(field string) time.Time {
	t, _ := r[field].(time.Time)
	return t
}

// statusSynonyms maps external workflow states to ATILA statuses.
var statusSynonyms = map[string]string{
	"open":        "Backlog",
	"new":         "Backlog",
	"todo":        "Backlog",
	"to do":       "Backlog",
	"proposed":    "Backlog",
	"reopened":    "Backlog",
	"in progress": "Active",
	"in review":   "Active",
	"doing":       "Active",
	"committed":   "Active",
	"closed":      "Completed",
	"done":        "Completed",
	"resolved":    "Completed",
	"removed":     "Completed",
}

// prioritySynonyms maps external priority names to ATILA priorities.
var prioritySynonyms = map[string]string{
	"blocker":  "Highest",
	"critical": "Highest",
	"urgent":   "Highest",
	"p0":       "Highest",
	"1":        "Highest",
	"major":    "High",
	"p1":       "High",
	"2":        "High",
	"normal":   "Medium",
	"p2":       "Medium",
	"3":        "Medium",
	"minor":    "Low",
	"trivial":  "Low",
	"p3":       "Low",
	"4":        "Low",
}

// MapStatus converts an external state into an ATILA status. Unknown
// values default to Backlog.
func MapStatus(s string) string {
	if st, ok := ranking.ParseStatus(s); ok {
		return st.String()
	}
	if mapped, ok := statusSynonyms[strings.ToLower(strings.TrimSpace(s))]; ok {
		return mapped
	}
	return ticket.DefaultStatus
}

// MapPriority converts an external priority into an ATILA priority. Unknown
// values default to Medium.
func MapPriority(s string) string {
	if p, ok := ranking.LookupPriority(s); ok {
		return p.String()
	}
	if mapped, ok := prioritySynonyms[strings.ToLower(strings.TrimSpace(s))]; ok {
		return mapped
	}
	return ticket.DefaultPriority
}

// TicketOpts converts the record into creation options for projectID.
func (r Record) TicketOpts(projectID uint) ticket.CreateOpts {
	title := r.String("title")
	if strings.TrimSpace(title) == "" {
		title = fmt.Sprintf("%s ticket %s", r.String("source"), r.String("external_id"))
	}
	return ticket.CreateOpts{
		ProjectID:         projectID,
		Title:             title,
		Description:       r.String("description"),
		Priority:          MapPriority(r.String("priority")),
		Status:            MapStatus(r.String("status")),
		Category:          r.String("category"),
		Assignee:          r.String("assignee"),
		IntegrationSource: r.String("source"),
		IntegrationID:     r.String("external_id"),
		CreatedAt:         r.Time("created_at"),
	}
}
