// Package ranking computes ticket priority scores and assigns the banded
// display order used to render a project's worklist.
//
// Everything here is pure: callers load a project's tickets, call Apply with
// one shared reference time, and persist the mutated derived fields.
package ranking

import "strings"

// Priority is the declared urgency level of a ticket.
type Priority int

const (
	PriorityHighest Priority = iota
	PriorityHigh
	PriorityMedium
	PriorityLow
	PriorityBacklog
	PriorityCompleted

	numPriorities
)

var priorityNames = [numPriorities]string{
	PriorityHighest:   "Highest",
	PriorityHigh:      "High",
	PriorityMedium:    "Medium",
	PriorityLow:       "Low",
	PriorityBacklog:   "Backlog",
	PriorityCompleted: "Completed",
}

func (p Priority) String() string {
	if p < 0 || p >= numPriorities {
		return priorityNames[PriorityMedium]
	}
	return priorityNames[p]
}

// Priorities returns every recognized priority, most urgent first.
func Priorities() []Priority {
	out := make([]Priority, 0, numPriorities)
	for p := PriorityHighest; p < numPriorities; p++ {
		out = append(out, p)
	}
	return out
}

// ParsePriority maps arbitrary input to a Priority. Matching ignores case and
// surrounding whitespace; anything unrecognized, including the empty string,
// is Medium.
func ParsePriority(s string) Priority {
	p, _ := LookupPriority(s)
	return p
}

// LookupPriority is ParsePriority that also reports whether s was recognized.
func LookupPriority(s string) (Priority, bool) {
	s = strings.TrimSpace(s)
	for p, name := range priorityNames {
		if strings.EqualFold(s, name) {
			return Priority(p), true
		}
	}
	return PriorityMedium, false
}

// Status is the workflow state that decides a ticket's band.
type Status int

const (
	StatusActive Status = iota
	StatusBacklog
	StatusCompleted

	numStatuses
)

var statusNames = [numStatuses]string{
	StatusActive:    "Active",
	StatusBacklog:   "Backlog",
	StatusCompleted: "Completed",
}

func (s Status) String() string {
	if s < 0 || s >= numStatuses {
		return "Unknown"
	}
	return statusNames[s]
}

// Statuses returns every recognized status in band order.
func Statuses() []Status {
	return []Status{StatusActive, StatusBacklog, StatusCompleted}
}

// ParseStatus maps arbitrary input to a Status. Unrecognized values return
// (StatusBacklog, false): they are ranked with the backlog and the caller
// decides whether to report them.
func ParseStatus(s string) (Status, bool) {
	s = strings.TrimSpace(s)
	for st, name := range statusNames {
		if strings.EqualFold(s, name) {
			return Status(st), true
		}
	}
	return StatusBacklog, false
}
