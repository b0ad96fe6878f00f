package rules

import "testing"

func TestClassifyPattern(t *testing.T) {
	cases := []struct {
		tx, nonTx int
		want      Pattern
	}{
		{0, 0, PatternOther},
		{0, 1, PatternOneNonTransactional},
		{0, 2, PatternOneTxOrTwoNonTx},
		{0, 3, PatternMixedOrTwoTx},
		{0, 7, PatternMixedOrTwoTx},
		{1, 0, PatternOneTxOrTwoNonTx},
		{1, 1, PatternOneTxOrTwoNonTx},
		{1, 5, PatternOneTxOrTwoNonTx},
		{2, 0, PatternMixedOrTwoTx},
		{2, 4, PatternMixedOrTwoTx},
		{3, 2, PatternThreePlusTx},
		{4, 9, PatternThreePlusTx},
		{3, 0, PatternOther},
		{3, 1, PatternOther},
	}

	for _, tc := range cases {
		if got := ClassifyPattern(tc.tx, tc.nonTx); got != tc.want {
			t.Errorf("ClassifyPattern(%d, %d) = %s, want %s", tc.tx, tc.nonTx, got, tc.want)
		}
	}
}

// Every non-negative pair must land in exactly one pattern; spot-check a
// grid for panics or zero values.
func TestClassifyPatternIsTotal(t *testing.T) {
	for tx := 0; tx <= 10; tx++ {
		for nonTx := 0; nonTx <= 10; nonTx++ {
			p := ClassifyPattern(tx, nonTx)
			if _, ok := patternLabels[p]; !ok {
				t.Fatalf("ClassifyPattern(%d, %d) produced unlabeled pattern %d", tx, nonTx, int(p))
			}
		}
	}
}

func TestParsePatternRoundTrip(t *testing.T) {
	for p, label := range patternLabels {
		got, err := ParsePattern(label)
		if err != nil {
			t.Errorf("ParsePattern(%q): %v", label, err)
			continue
		}
		if got != p {
			t.Errorf("ParsePattern(%q) = %s, want %s", label, got, p)
		}
	}
	if _, err := ParsePattern("made-up bucket"); err == nil {
		t.Error("expected error for unknown label")
	}
}
