// Package grouping derives each entity's data-group summary from its raw
// boolean flags and the variable catalog. This is the first pipeline
// stage; it has no ordering dependency across groups or entities.
package grouping

import (
	"strings"

	"isrr-engine/internal/catalog"
)

// Availability requirement labels, keyed off transactional group count.
const (
	AvailabilityNotConsidered = "Not considered"
	AvailabilityHigh          = "High Availability (Less than 10% downtime or non-availability of hard copy data for 3 days)"
	AvailabilityMedium        = "Medium Availability (Less than 25% downtime or non-availability of hard copy data for 8 days)"
	AvailabilityVeryLow       = "Very Low Availability (Downtime or non-availability of data does not have an impact)"
)

// ClassificationHierarchy orders security classifications highest first.
var ClassificationHierarchy = []string{
	"Restricted",
	"Confidential",
	"Internal / Confidential",
}

// Summary captures what the grouper learned about one entity: how many
// distinct data groups it triggered on each side of the transactional
// split, and which categories and classifications its active variables
// carry.
type Summary struct {
	Transactional        int
	NonTransactional     int
	TransactionalGroups  []string
	NonTransactGroups    []string
	Categories           map[string]bool
	Classifications      map[string]bool
}

// HasCategory reports whether any active variable carried the category.
func (s Summary) HasCategory(category string) bool {
	return s.Categories[category]
}

// HighestClassification walks the hierarchy top-down and returns the
// highest classification present among active variables. Matching is
// case-insensitive; absence defaults to the bottom of the hierarchy.
func (s Summary) HighestClassification() string {
	for _, classification := range ClassificationHierarchy {
		for present := range s.Classifications {
			if strings.EqualFold(present, classification) {
				return classification
			}
		}
	}
	return ClassificationHierarchy[len(ClassificationHierarchy)-1]
}

// Availability derives the availability requirement from the
// transactional group count.
func (s Summary) Availability() string {
	switch {
	case s.Transactional >= 3:
		return AvailabilityNotConsidered
	case s.Transactional >= 2:
		return AvailabilityHigh
	case s.Transactional >= 1:
		return AvailabilityMedium
	default:
		return AvailabilityVeryLow
	}
}

// Summarize partitions the entity's true-flagged variables by group tag
// and tallies triggered groups. A group is triggered iff at least one
// member flag is true; a triggered group counts as transactional iff any
// triggered member has transactional type. Zero triggered groups yields
// (0, 0) with empty sets, which is a valid result and must propagate.
func Summarize(e catalog.Entity, cat *catalog.Catalog) Summary {
	summary := Summary{
		Categories:      make(map[string]bool),
		Classifications: make(map[string]bool),
	}

	groupTransactional := make(map[string]bool)
	for _, name := range cat.Names() {
		if !e.Flags[name] {
			continue
		}
		v, _ := cat.Lookup(name)
		if v.Group != "" {
			if hasTx, seen := groupTransactional[v.Group]; !seen || !hasTx {
				groupTransactional[v.Group] = v.Type == catalog.Transactional
			}
		}
		if v.Category != "" {
			summary.Categories[v.Category] = true
		}
		if v.Classification != "" {
			summary.Classifications[v.Classification] = true
		}
	}

	for _, name := range cat.Names() {
		v, _ := cat.Lookup(name)
		if v.Group == "" {
			continue
		}
		hasTx, triggered := groupTransactional[v.Group]
		if !triggered {
			continue
		}
		// Consume each group once, on its first catalogued member.
		delete(groupTransactional, v.Group)
		if hasTx {
			summary.Transactional++
			summary.TransactionalGroups = append(summary.TransactionalGroups, v.Group)
		} else {
			summary.NonTransactional++
			summary.NonTransactGroups = append(summary.NonTransactGroups, v.Group)
		}
	}

	return summary
}
