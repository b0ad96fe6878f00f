package loader

import (
	"strings"

	"isrr-engine/internal/rules"
)

// Normalization maps from raw spreadsheet spellings to the rule tables'
// categorical buckets. Matching is by substring containment, as the
// source data mixes spacing and casing freely.
var (
	// Longer spellings first so "< 100" is not swallowed by the "< 10"
	// prefix.
	volumeMappings = []struct{ contains, bucket string }{
		{"< 100", "<100"},
		{"<100", "<100"},
		{"< 50", "<50"},
		{"<50", "<50"},
		{"< 10", "<10"},
		{"<10", "<10"},
		{"10 - 49", "10-49"},
		{"10-49", "10-49"},
	}
	formatMappings = []struct{ contains, bucket string }{
		{"electronic", "Electronic"},
		{"hard copy", "Hardcopy"},
		{"hardcopy", "Hardcopy"},
	}
	connectivityMappings = []struct{ contains, bucket string }{
		{"privileged database access", "Privileged database access"},
	}
)

// NormalizeVolume maps a raw volume value into a rule-table bucket;
// unrecognized or blank values become the wildcard token.
func NormalizeVolume(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return rules.Wildcard
	}
	for _, m := range volumeMappings {
		if strings.Contains(trimmed, m.contains) {
			return m.bucket
		}
	}
	return rules.Wildcard
}

// NormalizeFormat maps a raw data-format value into a rule-table bucket.
func NormalizeFormat(raw string) string {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return rules.Wildcard
	}
	for _, m := range formatMappings {
		if strings.Contains(trimmed, m.contains) {
			return m.bucket
		}
	}
	return rules.Wildcard
}

// NormalizeConnectivity maps a raw connectivity value into a rule-table
// bucket. Spreadsheet error artifacts ("#ERROR!") count as blank.
func NormalizeConnectivity(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.Contains(trimmed, "#ERROR!") {
		return rules.Wildcard
	}
	lowered := strings.ToLower(trimmed)
	for _, m := range connectivityMappings {
		if strings.Contains(lowered, m.contains) {
			return m.bucket
		}
	}
	return rules.Wildcard
}

// ParseFlag interprets the boolean spellings the flag matrix uses.
// Blank means false.
func ParseFlag(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes", "y", "t":
		return true, true
	case "false", "0", "no", "n", "f", "":
		return false, true
	}
	return false, false
}
