package rules

import (
	"fmt"
	"strings"
)

// Pattern is a named nature-of-data bucket over the (transactional,
// non-transactional) group-count pair. Classification is total: every
// non-negative pair maps to exactly one pattern.
type Pattern int

const (
	// PatternOneNonTransactional: exactly one group, non-transactional.
	PatternOneNonTransactional Pattern = iota + 1
	// PatternOneTxOrTwoNonTx: one transactional group (any number of
	// non-transactional alongside), or exactly two non-transactional.
	PatternOneTxOrTwoNonTx
	// PatternMixedOrTwoTx: two transactional groups, or more than two
	// non-transactional with no transactional.
	PatternMixedOrTwoTx
	// PatternTwoTxWithOthers appears in rule tables but is shadowed by
	// PatternMixedOrTwoTx in classification; it is kept so tables that
	// list it still load.
	PatternTwoTxWithOthers
	// PatternThreePlusTx: three or more transactional groups combined
	// with at least two non-transactional.
	PatternThreePlusTx
	// PatternOther: any remaining combination, including zero groups.
	PatternOther
)

var patternLabels = map[Pattern]string{
	PatternOneNonTransactional: "1 Data group without Transactional Data – No impact to clients and/or staff or continuity of business due to data breach",
	PatternOneTxOrTwoNonTx:     "1 Transactional Data group OR Combination of 2 Data group without Transactional Data",
	PatternMixedOrTwoTx:        "Combination of > 2 Data group without Transactional Data OR Combination of ≥ 2 with 1 Transactional Data group OR Combination of 2 Transactional Data groups",
	PatternTwoTxWithOthers:     "Combination of ≥ 2 Data group with 2 Transactional Data groups",
	PatternThreePlusTx:         "Combination of ≥ 2 Data group with 3 Transactional Data groups",
	PatternOther:               "Other combination",
}

// Label returns the canonical rule-table wording for the pattern.
func (p Pattern) Label() string {
	if label, ok := patternLabels[p]; ok {
		return label
	}
	return fmt.Sprintf("Pattern(%d)", int(p))
}

// String is the short diagnostic form.
func (p Pattern) String() string {
	switch p {
	case PatternOneNonTransactional:
		return "one-non-transactional"
	case PatternOneTxOrTwoNonTx:
		return "one-tx-or-two-non-tx"
	case PatternMixedOrTwoTx:
		return "mixed-or-two-tx"
	case PatternTwoTxWithOthers:
		return "two-tx-with-others"
	case PatternThreePlusTx:
		return "three-plus-tx"
	case PatternOther:
		return "other"
	}
	return fmt.Sprintf("pattern-%d", int(p))
}

// ParsePattern maps a rule-table label back to its pattern.
func ParsePattern(label string) (Pattern, error) {
	trimmed := strings.TrimSpace(label)
	for p, l := range patternLabels {
		if strings.EqualFold(trimmed, l) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown nature-of-data pattern %q", label)
}

// ClassifyPattern buckets a (transactional, non-transactional) count
// pair. Clauses are evaluated in fixed business order; earlier clauses
// win, so one transactional group classifies the same way regardless of
// how many non-transactional groups ride along.
func ClassifyPattern(tx, nonTx int) Pattern {
	switch {
	case tx == 0 && nonTx == 1:
		return PatternOneNonTransactional
	case tx == 1 || (tx == 0 && nonTx == 2):
		return PatternOneTxOrTwoNonTx
	case tx == 2 || (tx == 0 && nonTx > 2):
		return PatternMixedOrTwoTx
	case tx >= 3 && nonTx >= 2:
		return PatternThreePlusTx
	default:
		return PatternOther
	}
}
