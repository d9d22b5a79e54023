package ranking

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/zulandar/atila/internal/models"
)

// Band is the numeric range reserved for one status partition. A ticket at
// 1-indexed rank i gets DisplayScore = Display+i and TicketOrderID = Order+i.
type Band struct {
	Display  int
	Order    int
	Capacity int // 0 means unbounded
}

// bands keeps Active < Backlog < Completed by DisplayScore alone. Capacities
// stop a partition from running into the next band's range.
var bands = [numStatuses]Band{
	StatusActive:    {Display: 0, Order: 0, Capacity: 999},
	StatusBacklog:   {Display: 1000, Order: 10000, Capacity: 9000},
	StatusCompleted: {Display: 10000, Order: 100000},
}

// BandFor returns the band assigned to s.
func BandFor(s Status) Band {
	if s < 0 || s >= numStatuses {
		s = StatusBacklog
	}
	return bands[s]
}

// BandOverflowError reports a partition holding more tickets than its band.
type BandOverflowError struct {
	Status   Status
	Count    int
	Capacity int
}

func (e *BandOverflowError) Error() string {
	return fmt.Sprintf("ranking: %s band overflow: %d tickets, capacity %d", e.Status, e.Count, e.Capacity)
}

// Summary describes one Assign run.
type Summary struct {
	Active    int
	Backlog   int
	Completed int
	// Unrecognized lists ids of tickets whose status matched no known value;
	// they were ranked in the Backlog band.
	Unrecognized []uint
}

// Total is the number of ranked tickets.
func (s Summary) Total() int { return s.Active + s.Backlog + s.Completed }

// Partition splits tickets by status. Nil entries are skipped.
func Partition(tickets []*models.Ticket) (parts [numStatuses][]*models.Ticket, unrecognized []uint) {
	for _, t := range tickets {
		if t == nil {
			continue
		}
		st, ok := ParseStatus(t.Status)
		if !ok {
			unrecognized = append(unrecognized, t.ID)
		}
		parts[st] = append(parts[st], t)
	}
	return parts, unrecognized
}

// compareByScore orders by score desc, then created_at asc, then id asc.
func compareByScore(a, b *models.Ticket) int {
	if c := cmp.Compare(b.PScore, a.PScore); c != 0 {
		return c
	}
	return compareByAge(a, b)
}

// compareByAge orders by created_at asc, then id asc.
func compareByAge(a, b *models.Ticket) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// Sort orders one partition in place.
func Sort(s Status, tickets []*models.Ticket) {
	if s == StatusCompleted {
		slices.SortStableFunc(tickets, compareByAge)
		return
	}
	slices.SortStableFunc(tickets, compareByScore)
}

// Assign partitions tickets by status, orders each partition and writes
// DisplayScore and TicketOrderID. Tickets must already carry their PScore.
//
// If any partition exceeds its band capacity, Assign returns a
// *BandOverflowError and leaves every ticket untouched.
func Assign(tickets []*models.Ticket) (Summary, error) {
	parts, unrecognized := Partition(tickets)
	sum := Summary{
		Active:       len(parts[StatusActive]),
		Backlog:      len(parts[StatusBacklog]),
		Completed:    len(parts[StatusCompleted]),
		Unrecognized: unrecognized,
	}

	for _, st := range Statuses() {
		b := bands[st]
		if b.Capacity > 0 && len(parts[st]) > b.Capacity {
			return sum, &BandOverflowError{Status: st, Count: len(parts[st]), Capacity: b.Capacity}
		}
	}

	for _, st := range Statuses() {
		part := parts[st]
		Sort(st, part)
		b := bands[st]
		for i, t := range part {
			t.DisplayScore = b.Display + i + 1
			t.TicketOrderID = b.Order + i + 1
		}
	}
	return sum, nil
}

// ScoreAll sets PScore on every ticket using one shared reference time.
func ScoreAll(tickets []*models.Ticket, now time.Time, w Weights) {
	for _, t := range tickets {
		if t == nil {
			continue
		}
		t.PScore = w.Score(ParsePriority(t.Priority), t.CreatedAt, now)
	}
}

// Apply scores every ticket against now and then assigns ranks. On a band
// overflow the scores are already updated but ranks are not.
func Apply(tickets []*models.Ticket, now time.Time, w Weights) (Summary, error) {
	ScoreAll(tickets, now, w)
	return Assign(tickets)
}
