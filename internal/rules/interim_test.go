package rules

import (
	"errors"
	"testing"

	"isrr-engine/internal/rating"
)

func TestInterimTableLookup(t *testing.T) {
	table, err := NewInterimTable([]InterimRule{
		{ID: 1, Tier: TierD2, Pattern: PatternOneNonTransactional, Rating: rating.Low},
		{ID: 2, Tier: TierD3, Pattern: PatternOneTxOrTwoNonTx, Rating: rating.Moderate},
		{ID: 3, Tier: TierD4, Pattern: PatternThreePlusTx, Rating: rating.Critical},
	})
	if err != nil {
		t.Fatalf("NewInterimTable: %v", err)
	}

	rule, err := table.Lookup(TierD3, PatternOneTxOrTwoNonTx)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if rule.Rating != rating.Moderate || rule.ID != 2 {
		t.Errorf("got rule %+v", rule)
	}

	// Lookup is a pure function: same inputs, same result.
	again, err := table.Lookup(TierD3, PatternOneTxOrTwoNonTx)
	if err != nil || again != rule {
		t.Errorf("repeat lookup diverged: %+v vs %+v (%v)", again, rule, err)
	}
}

func TestInterimTableLookupMissIsError(t *testing.T) {
	table, err := NewInterimTable([]InterimRule{
		{ID: 1, Tier: TierD2, Pattern: PatternOneNonTransactional, Rating: rating.Low},
	})
	if err != nil {
		t.Fatalf("NewInterimTable: %v", err)
	}

	_, err = table.Lookup(TierD4, PatternOther)
	if err == nil {
		t.Fatal("expected lookup miss error")
	}
	var miss *NoMatchError
	if !errors.As(err, &miss) {
		t.Fatalf("expected *NoMatchError, got %T", err)
	}
	if miss.Tier != TierD4 || miss.Pattern != PatternOther {
		t.Errorf("miss lacks context: %+v", miss)
	}
}

func TestNewInterimTableRejectsMalformedRows(t *testing.T) {
	_, err := NewInterimTable([]InterimRule{
		{ID: 1, Tier: "D9", Pattern: PatternOther, Rating: rating.Low},
	})
	if err == nil {
		t.Error("expected bad-tier error")
	}

	_, err = NewInterimTable([]InterimRule{
		{ID: 1, Tier: TierD2, Pattern: Pattern(42), Rating: rating.Low},
	})
	if err == nil {
		t.Error("expected bad-pattern error")
	}

	_, err = NewInterimTable([]InterimRule{
		{ID: 1, Tier: TierD2, Pattern: PatternOther, Rating: rating.Level(9)},
	})
	if err == nil {
		t.Error("expected bad-rating error")
	}

	_, err = NewInterimTable([]InterimRule{
		{ID: 1, Tier: TierD2, Pattern: PatternOther, Rating: rating.Low},
		{ID: 2, Tier: TierD2, Pattern: PatternOther, Rating: rating.High},
	})
	if err == nil {
		t.Error("expected duplicate-coverage error")
	}
}
