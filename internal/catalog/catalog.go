// Package catalog holds the variable metadata catalog and the per-EGID
// entity records the engine evaluates. Both are built once at load time
// and read-only afterwards.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"isrr-engine/internal/rating"
)

// VariableType says whether a variable carries transactional data.
// Transactional membership dominates when a group mixes both types.
type VariableType string

const (
	Transactional    VariableType = "transactional"
	NonTransactional VariableType = "non_transactional"
)

// ParseVariableType normalizes the type column of the variables sheet.
func ParseVariableType(s string) (VariableType, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	normalized = strings.ReplaceAll(normalized, " ", "_")
	switch normalized {
	case string(Transactional):
		return Transactional, nil
	case string(NonTransactional), "nontransactional":
		return NonTransactional, nil
	}
	return "", fmt.Errorf("unknown variable type %q", s)
}

// Variable is one tracked boolean attribute and its metadata.
type Variable struct {
	Name           string
	Group          string
	Type           VariableType
	Category       string
	Classification string
}

// Catalog is the full variable metadata set, keyed by variable name.
type Catalog struct {
	byName map[string]Variable
	names  []string // insertion order, for deterministic iteration
}

// NewCatalog builds a catalog from metadata rows, rejecting duplicate
// variable names.
func NewCatalog(vars []Variable) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]Variable, len(vars))}
	for _, v := range vars {
		name := strings.TrimSpace(v.Name)
		if name == "" {
			return nil, fmt.Errorf("variable with empty name (group %q)", v.Group)
		}
		if _, exists := c.byName[name]; exists {
			return nil, fmt.Errorf("duplicate variable %q in catalog", name)
		}
		v.Name = name
		c.byName[name] = v
		c.names = append(c.names, name)
	}
	return c, nil
}

// Lookup returns the metadata for a variable name.
func (c *Catalog) Lookup(name string) (Variable, bool) {
	v, ok := c.byName[name]
	return v, ok
}

// Names returns every catalogued variable name in load order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Len returns the number of catalogued variables.
func (c *Catalog) Len() int {
	return len(c.byName)
}

// Entity is one EGID's record: its flag matrix row, operational
// attributes and the previously recorded baseline rating. Immutable
// after load.
type Entity struct {
	EGID         string
	Flags        map[string]bool
	Volume       string
	Format       string
	Connectivity string
	// Baseline is nil when no prior rating was recorded, which is a
	// valid state distinct from any level.
	Baseline *rating.Level
}

// ValidateFlags rejects flag names that are not in the catalog, so bad
// input fails at load time instead of deep inside the grouper.
func (c *Catalog) ValidateFlags(e Entity) error {
	var unknown []string
	for name := range e.Flags {
		if _, ok := c.byName[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("entity %s references %d unknown variable(s): %s",
			e.EGID, len(unknown), strings.Join(unknown, ", "))
	}
	return nil
}
