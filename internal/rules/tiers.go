// Package rules implements the interim and final rating rule tables:
// load-time validation, tier and pattern resolution, OR-logic matching
// and the tie-break that picks a single winning final rule.
package rules

import (
	"fmt"
	"strings"

	"isrr-engine/internal/grouping"
)

// Tier is the bank-data sensitivity classification derived from which
// data categories an entity's active variables carry. Priority runs
// D4 > D3 > D2.
type Tier string

const (
	TierD2 Tier = "D2"
	TierD3 Tier = "D3"
	TierD4 Tier = "D4"
)

// ParseTier normalizes the bank-data column of the interim rule table.
func ParseTier(s string) (Tier, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "D2":
		return TierD2, nil
	case "D3":
		return TierD3, nil
	case "D4":
		return TierD4, nil
	}
	return "", fmt.Errorf("unknown bank-data tier %q", s)
}

// TierRules binds tiers to the category names that trigger them. These
// are business configuration, not algorithm: callers may supply their
// own category vocabulary.
type TierRules struct {
	// D4All must all be present for D4 (highest priority).
	D4All []string
	// D3Any: any present resolves D3.
	D3Any []string
	// D2Any: any present resolves D2.
	D2Any []string
}

// DefaultTierRules returns the standard category bindings.
func DefaultTierRules() TierRules {
	return TierRules{
		D4All: []string{"personal_identifiable_information", "employee_data"},
		D3Any: []string{"transactional_data"},
		D2Any: []string{"personal_identifiable_information"},
	}
}

// ErrTierUndetermined reports that no tier rule matched the entity's
// category set. It is a per-entity failure, not a batch abort.
var ErrTierUndetermined = fmt.Errorf("bank-data tier undetermined")

// ResolveTier applies the tier rules against the grouper's category set,
// highest tier first. Falling through every rule is an error: an entity
// with no recognized category cannot be rated.
func ResolveTier(s grouping.Summary, r TierRules) (Tier, error) {
	allPresent := func(categories []string) bool {
		if len(categories) == 0 {
			return false
		}
		for _, c := range categories {
			if !s.HasCategory(c) {
				return false
			}
		}
		return true
	}
	anyPresent := func(categories []string) bool {
		for _, c := range categories {
			if s.HasCategory(c) {
				return true
			}
		}
		return false
	}

	switch {
	case allPresent(r.D4All):
		return TierD4, nil
	case anyPresent(r.D3Any):
		return TierD3, nil
	case anyPresent(r.D2Any):
		return TierD2, nil
	}
	return "", ErrTierUndetermined
}
