// Package compare checks computed final ratings against previously
// recorded baselines and aggregates run-level statistics.
package compare

import (
	"fmt"
	"sort"

	"isrr-engine/internal/rating"
)

// Status classifies one entity's comparison outcome. NoBaseline is a
// first-class state: it is neither a match nor a mismatch and stays out
// of the match-rate denominator.
type Status string

const (
	StatusMatch      Status = "match"
	StatusMismatch   Status = "mismatch"
	StatusNoBaseline Status = "no_baseline"
)

// Outcome is the per-entity comparison result.
type Outcome struct {
	Status   Status
	Baseline *rating.Level
	Final    rating.Level
	// Delta is final minus baseline in ordinal steps; zero unless the
	// status is mismatch.
	Delta int
}

// Severity renders the mismatch direction and magnitude, e.g.
// "increased by 2 levels". Empty for matches and missing baselines.
func (o Outcome) Severity() string {
	if o.Status != StatusMismatch {
		return ""
	}
	magnitude := o.Delta
	direction := "increased"
	if magnitude < 0 {
		magnitude = -magnitude
		direction = "decreased"
	}
	unit := "levels"
	if magnitude == 1 {
		unit = "level"
	}
	return fmt.Sprintf("%s by %d %s", direction, magnitude, unit)
}

// Transition renders the baseline-to-final movement for mismatch pattern
// reporting, e.g. "High → Moderate".
func (o Outcome) Transition() string {
	if o.Baseline == nil {
		return ""
	}
	return fmt.Sprintf("%s → %s", o.Baseline.String(), o.Final.String())
}

// Compare evaluates the final rating against the baseline. A nil
// baseline yields NoBaseline, distinct from any mismatch.
func Compare(final rating.Level, baseline *rating.Level) Outcome {
	if baseline == nil {
		return Outcome{Status: StatusNoBaseline, Final: final}
	}
	o := Outcome{Baseline: baseline, Final: final}
	if *baseline == final {
		o.Status = StatusMatch
		return o
	}
	o.Status = StatusMismatch
	o.Delta = int(final) - int(*baseline)
	return o
}

// Aggregates accumulates run-level comparison statistics. Merging is
// associative and order-independent (sums and multiset unions), so a
// parallel run reduces to the same totals as a sequential one.
type Aggregates struct {
	Total      int
	Matched    int
	Mismatched int
	NoBaseline int
	Failed     int
	// InterimChanged counts entities whose final rating moved away from
	// the interim one.
	InterimChanged int
	// Severity histograms mismatches by severity label.
	Severity map[string]int
	// Transitions histograms mismatches by "baseline → final" movement.
	Transitions map[string]int
	// FinalLevels and InterimLevels histogram the computed ratings.
	FinalLevels   map[rating.Level]int
	InterimLevels map[rating.Level]int
}

// NewAggregates returns zeroed aggregates with allocated histograms.
func NewAggregates() *Aggregates {
	return &Aggregates{
		Severity:      make(map[string]int),
		Transitions:   make(map[string]int),
		FinalLevels:   make(map[rating.Level]int),
		InterimLevels: make(map[rating.Level]int),
	}
}

// AddOutcome folds one successful entity's outcome into the aggregates.
func (a *Aggregates) AddOutcome(o Outcome, interim rating.Level) {
	a.Total++
	a.FinalLevels[o.Final]++
	a.InterimLevels[interim]++
	if o.Final != interim {
		a.InterimChanged++
	}
	switch o.Status {
	case StatusMatch:
		a.Matched++
	case StatusMismatch:
		a.Mismatched++
		a.Severity[o.Severity()]++
		a.Transitions[o.Transition()]++
	case StatusNoBaseline:
		a.NoBaseline++
	}
}

// AddFailure folds one failed entity into the aggregates.
func (a *Aggregates) AddFailure() {
	a.Total++
	a.Failed++
}

// Merge folds other into a. Used by the parallel reduce.
func (a *Aggregates) Merge(other *Aggregates) {
	a.Total += other.Total
	a.Matched += other.Matched
	a.Mismatched += other.Mismatched
	a.NoBaseline += other.NoBaseline
	a.Failed += other.Failed
	a.InterimChanged += other.InterimChanged
	for k, v := range other.Severity {
		a.Severity[k] += v
	}
	for k, v := range other.Transitions {
		a.Transitions[k] += v
	}
	for k, v := range other.FinalLevels {
		a.FinalLevels[k] += v
	}
	for k, v := range other.InterimLevels {
		a.InterimLevels[k] += v
	}
}

// MatchRate is matches / (matches + mismatches), as a percentage.
// Entities without a baseline are excluded from the denominator; zero
// comparable entities yields zero.
func (a *Aggregates) MatchRate() float64 {
	comparable := a.Matched + a.Mismatched
	if comparable == 0 {
		return 0
	}
	return float64(a.Matched) / float64(comparable) * 100
}

// TransitionCount is one "baseline → final" movement and how often it
// occurred.
type TransitionCount struct {
	Transition string
	Count      int
}

// TopTransitions returns the most frequent mismatch movements, most
// common first, capped at limit. Equal counts order alphabetically so
// output is deterministic.
func (a *Aggregates) TopTransitions(limit int) []TransitionCount {
	out := make([]TransitionCount, 0, len(a.Transitions))
	for transition, count := range a.Transitions {
		out = append(out, TransitionCount{Transition: transition, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Transition < out[j].Transition
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
