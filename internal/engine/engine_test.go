package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"isrr-engine/internal/catalog"
	"isrr-engine/internal/compare"
	"isrr-engine/internal/rating"
	"isrr-engine/internal/rules"
)

func testInput(t *testing.T, entities []catalog.Entity) Input {
	t.Helper()
	cat, err := catalog.NewCatalog([]catalog.Variable{
		{Name: "trade_count", Group: "trading", Type: catalog.Transactional, Category: "transactional_data", Classification: "Confidential"},
		{Name: "client_name", Group: "client", Type: catalog.NonTransactional, Category: "personal_identifiable_information", Classification: "Restricted"},
		{Name: "staff_id", Group: "hr", Type: catalog.NonTransactional, Category: "employee_data", Classification: "Confidential"},
		{Name: "vendor_notes", Group: "vendor", Type: catalog.NonTransactional, Category: "", Classification: ""},
	})
	require.NoError(t, err)

	interim, err := rules.NewInterimTable([]rules.InterimRule{
		{ID: 1, Tier: rules.TierD2, Pattern: rules.PatternOneTxOrTwoNonTx, Rating: rating.Moderate},
		{ID: 2, Tier: rules.TierD2, Pattern: rules.PatternOneNonTransactional, Rating: rating.Low},
		{ID: 3, Tier: rules.TierD3, Pattern: rules.PatternOneTxOrTwoNonTx, Rating: rating.Moderate},
		{ID: 4, Tier: rules.TierD3, Pattern: rules.PatternMixedOrTwoTx, Rating: rating.High},
		{ID: 5, Tier: rules.TierD4, Pattern: rules.PatternMixedOrTwoTx, Rating: rating.Critical},
	})
	require.NoError(t, err)

	final, err := rules.NewFinalTable([]rules.FinalRule{
		{
			ID:       1,
			Volume:   rules.NewCriterion("<10"),
			Format:   rules.NewCriterion("Electronic"),
			Modifier: rating.AddModifier(1),
			Result:   rating.High,
		},
		{
			ID:       2,
			Modifier: rating.OverrideModifier(rating.Moderate),
			Result:   rating.Moderate,
		},
	})
	require.NoError(t, err)

	return Input{
		Entities:  entities,
		Catalog:   cat,
		TierRules: rules.DefaultTierRules(),
		Interim:   interim,
		Final:     final,
		Workers:   3,
	}
}

func levelPtr(l rating.Level) *rating.Level {
	return &l
}

func TestRunScenarioAdditiveModifier(t *testing.T) {
	// One transactional group, PII present: D3 via transactional
	// category, pattern one-tx, interim Moderate; specificity-2 rule
	// with ISRR + 1 wins over the universal fallback.
	e1 := catalog.Entity{
		EGID:     "E1",
		Flags:    map[string]bool{"trade_count": true, "client_name": true},
		Volume:   "<10",
		Format:   "Electronic",
		Baseline: levelPtr(rating.High),
	}

	res, err := Run(context.Background(), testInput(t, []catalog.Entity{e1}), nil)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)

	r := res.Records[0]
	assert.False(t, r.Failed)
	assert.Equal(t, rules.TierD3, r.Tier)
	assert.Equal(t, 1, r.Transactional)
	assert.Equal(t, 1, r.NonTransactional)
	assert.Equal(t, rating.Moderate, r.Interim)
	assert.Equal(t, rating.High, r.Final, "interim shifted up one level")
	assert.Equal(t, 1, r.FinalRuleID)
	assert.Equal(t, 2, r.Specificity)
	assert.Equal(t, "ISRR + 1", r.Modifier)
	assert.Equal(t, compare.StatusMatch, r.Status)
	assert.Equal(t, "Restricted", r.HighestClass)
}

func TestRunFailedEntityDoesNotAbortBatch(t *testing.T) {
	// E2 triggers a group with no recognized category: tier resolution
	// fails, but the other entity still rates.
	e2 := catalog.Entity{EGID: "E2", Flags: map[string]bool{"vendor_notes": true}}
	ok := catalog.Entity{
		EGID:     "E3",
		Flags:    map[string]bool{"client_name": true},
		Baseline: levelPtr(rating.Moderate),
	}

	res, err := Run(context.Background(), testInput(t, []catalog.Entity{e2, ok}), nil)
	require.NoError(t, err)
	require.Len(t, res.Records, 2)

	failed := res.Records[0]
	assert.Equal(t, "E2", failed.EGID)
	assert.True(t, failed.Failed)
	assert.Equal(t, FailureTierUndetermined, failed.FailureKind)

	rated := res.Records[1]
	assert.Equal(t, "E3", rated.EGID)
	assert.False(t, rated.Failed)
	assert.Equal(t, rules.TierD2, rated.Tier)
	assert.Equal(t, rating.Low, rated.Interim)
	// Universal fallback overrides to Moderate.
	assert.Equal(t, rating.Moderate, rated.Final)
	assert.Equal(t, compare.StatusMatch, rated.Status)

	assert.Equal(t, 2, res.Aggregates.Total)
	assert.Equal(t, 1, res.Aggregates.Failed)
	assert.Equal(t, 1, res.Aggregates.Matched)
}

func TestRunNoInterimRuleIsPerEntityError(t *testing.T) {
	// PII + employee data resolves D4, but the test table has no D4 row
	// for the resulting pattern.
	e := catalog.Entity{
		EGID:  "E4",
		Flags: map[string]bool{"client_name": true, "staff_id": true},
	}

	res, err := Run(context.Background(), testInput(t, []catalog.Entity{e}), nil)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.True(t, res.Records[0].Failed)
	assert.Equal(t, FailureNoInterimRule, res.Records[0].FailureKind)
	assert.Contains(t, res.Records[0].FailureDetail, "D4")
}

func TestRunPreservesInputOrderAcrossWorkers(t *testing.T) {
	var entities []catalog.Entity
	for i := 0; i < 60; i++ {
		entities = append(entities, catalog.Entity{
			EGID:     fmt.Sprintf("EG-%03d", i),
			Flags:    map[string]bool{"client_name": true},
			Baseline: levelPtr(rating.Moderate),
		})
	}

	in := testInput(t, entities)
	in.Workers = 8
	res, err := Run(context.Background(), in, nil)
	require.NoError(t, err)
	require.Len(t, res.Records, 60)
	for i, r := range res.Records {
		assert.Equal(t, fmt.Sprintf("EG-%03d", i), r.EGID)
	}
}

func TestRunParallelMatchesSequentialAggregates(t *testing.T) {
	var entities []catalog.Entity
	for i := 0; i < 40; i++ {
		e := catalog.Entity{
			EGID:  fmt.Sprintf("EG-%03d", i),
			Flags: map[string]bool{"client_name": true},
		}
		switch i % 3 {
		case 0:
			e.Baseline = levelPtr(rating.Moderate) // will match
		case 1:
			e.Baseline = levelPtr(rating.Critical) // will mismatch
		}
		entities = append(entities, e)
	}

	seq := testInput(t, entities)
	seq.Workers = 1
	seqRes, err := Run(context.Background(), seq, nil)
	require.NoError(t, err)

	par := testInput(t, entities)
	par.Workers = 7
	parRes, err := Run(context.Background(), par, nil)
	require.NoError(t, err)

	assert.Equal(t, seqRes.Aggregates.Total, parRes.Aggregates.Total)
	assert.Equal(t, seqRes.Aggregates.Matched, parRes.Aggregates.Matched)
	assert.Equal(t, seqRes.Aggregates.Mismatched, parRes.Aggregates.Mismatched)
	assert.Equal(t, seqRes.Aggregates.NoBaseline, parRes.Aggregates.NoBaseline)
	assert.Equal(t, seqRes.Aggregates.Severity, parRes.Aggregates.Severity)
	assert.Equal(t, seqRes.Aggregates.MatchRate(), parRes.Aggregates.MatchRate())
}

func TestRunFlagsAmbiguousRules(t *testing.T) {
	cat, err := catalog.NewCatalog([]catalog.Variable{
		{Name: "client_name", Group: "client", Type: catalog.NonTransactional, Category: "personal_identifiable_information"},
	})
	require.NoError(t, err)

	interim, err := rules.NewInterimTable([]rules.InterimRule{
		{ID: 1, Tier: rules.TierD2, Pattern: rules.PatternOneNonTransactional, Rating: rating.Low},
	})
	require.NoError(t, err)

	// Two rows with identical specificity, impact and modifier kind.
	final, err := rules.NewFinalTable([]rules.FinalRule{
		{ID: 1, Format: rules.NewCriterion("Electronic"), Modifier: rating.AddModifier(1), Result: rating.High},
		{ID: 2, Format: rules.NewCriterion("Electronic"), Modifier: rating.AddModifier(1), Result: rating.High},
		{ID: 3, Modifier: rating.OverrideModifier(rating.Low), Result: rating.Low},
	})
	require.NoError(t, err)

	e := catalog.Entity{EGID: "EG-AMB", Flags: map[string]bool{"client_name": true}, Format: "Electronic"}
	res, err := Run(context.Background(), Input{
		Entities:  []catalog.Entity{e},
		Catalog:   cat,
		TierRules: rules.DefaultTierRules(),
		Interim:   interim,
		Final:     final,
	}, nil)
	require.NoError(t, err)

	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "EG-AMB", res.Warnings[0].EGID)
	assert.Equal(t, 1, res.Warnings[0].RuleID)
	assert.Equal(t, []int{2}, res.Warnings[0].TiedWith)
	assert.True(t, res.Records[0].Ambiguous)
	assert.Equal(t, rating.Moderate, res.Records[0].Final)
}
