package ranking

import (
	"math"
	"time"
)

// Weight is the scoring rule for one priority level.
type Weight struct {
	Base          float64
	AgeMultiplier float64 // score gained per day of age
}

// Weights is an immutable per-priority scoring table. It is a value type;
// copies never alias.
type Weights [numPriorities]Weight

// DefaultWeights returns the standard table. Backlog starts at zero but ages
// fastest so untriaged tickets eventually surface; Completed never ages.
func DefaultWeights() Weights {
	return Weights{
		PriorityHighest:   {Base: 4, AgeMultiplier: 2.0},
		PriorityHigh:      {Base: 3, AgeMultiplier: 2.0},
		PriorityMedium:    {Base: 2, AgeMultiplier: 1.0},
		PriorityLow:       {Base: 1, AgeMultiplier: 1.0},
		PriorityBacklog:   {Base: 0, AgeMultiplier: 5.0},
		PriorityCompleted: {Base: 0, AgeMultiplier: 0.0},
	}
}

// For returns the weight for p, treating out-of-range values as Medium.
func (w Weights) For(p Priority) Weight {
	if p < 0 || p >= numPriorities {
		p = PriorityMedium
	}
	return w[p]
}

const scorePrecision = 1e4

// Score computes base + multiplier*ageDays for p, rounded half-to-even to
// four decimal places.
func (w Weights) Score(p Priority, createdAt, now time.Time) float64 {
	wt := w.For(p)
	s := wt.Base + wt.AgeMultiplier*AgeDays(createdAt, now)
	return math.RoundToEven(s*scorePrecision) / scorePrecision
}

// Score computes a ticket score with DefaultWeights.
func Score(p Priority, createdAt, now time.Time) float64 {
	return DefaultWeights().Score(p, createdAt, now)
}

// AgeDays returns the fractional days elapsed between createdAt and now,
// both taken in UTC. Future timestamps and a zero createdAt yield 0.
func AgeDays(createdAt, now time.Time) float64 {
	if createdAt.IsZero() {
		return 0
	}
	d := now.UTC().Sub(createdAt.UTC())
	if d <= 0 {
		return 0
	}
	return d.Hours() / 24
}
