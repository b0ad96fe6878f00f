package rules

import (
	"fmt"

	"isrr-engine/internal/rating"
)

// InterimRule maps one (tier, pattern) combination to an interim rating.
type InterimRule struct {
	ID      int
	Tier    Tier
	Pattern Pattern
	Rating  rating.Level
}

type interimKey struct {
	tier    Tier
	pattern Pattern
}

// InterimTable is the validated interim rule set. Lookup is exact: no
// wildcard or OR matching happens at this stage.
type InterimTable struct {
	rules []InterimRule
	index map[interimKey]InterimRule
}

// NewInterimTable validates and indexes the interim rules. Malformed
// rows (bad tier, pattern or rating) and conflicting duplicates reject
// the whole table: rule tables are shared configuration, so a bad row
// means the computation itself is ill-defined.
func NewInterimTable(rows []InterimRule) (*InterimTable, error) {
	t := &InterimTable{index: make(map[interimKey]InterimRule, len(rows))}
	for _, r := range rows {
		if _, err := ParseTier(string(r.Tier)); err != nil {
			return nil, fmt.Errorf("interim rule %d: %w", r.ID, err)
		}
		if _, ok := patternLabels[r.Pattern]; !ok {
			return nil, fmt.Errorf("interim rule %d: invalid pattern %d", r.ID, int(r.Pattern))
		}
		if !r.Rating.Valid() {
			return nil, fmt.Errorf("interim rule %d: invalid rating %d", r.ID, int(r.Rating))
		}
		key := interimKey{r.Tier, r.Pattern}
		if existing, dup := t.index[key]; dup {
			return nil, fmt.Errorf("interim rules %d and %d both cover tier %s pattern %s",
				existing.ID, r.ID, r.Tier, r.Pattern)
		}
		t.index[key] = r
		t.rules = append(t.rules, r)
	}
	return t, nil
}

// Len returns the number of rules in the table.
func (t *InterimTable) Len() int {
	return len(t.rules)
}

// Rules returns the rule rows in load order.
func (t *InterimTable) Rules() []InterimRule {
	out := make([]InterimRule, len(t.rules))
	copy(out, t.rules)
	return out
}

// NoMatchError reports an interim lookup miss with enough context to
// trace the offending combination.
type NoMatchError struct {
	Tier    Tier
	Pattern Pattern
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no interim rule for tier %s, pattern %s", e.Tier, e.Pattern)
}

// Lookup finds the rule covering (tier, pattern). A miss is a hard
// per-entity error, never a silent default.
func (t *InterimTable) Lookup(tier Tier, pattern Pattern) (InterimRule, error) {
	rule, ok := t.index[interimKey{tier, pattern}]
	if !ok {
		return InterimRule{}, &NoMatchError{Tier: tier, Pattern: pattern}
	}
	return rule, nil
}
