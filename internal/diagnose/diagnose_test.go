package diagnose

import (
	"bytes"
	"strings"
	"testing"

	"isrr-engine/internal/loader"
)

func table(name string, headers []string, rows ...[]string) *loader.Table {
	return &loader.Table{Name: name, Headers: headers, Rows: rows}
}

func TestRunCleanDataset(t *testing.T) {
	source := table("flags", []string{"EGID", "flag"},
		[]string{"EG-1", "TRUE"},
		[]string{"EG-2", "FALSE"})
	results := table("results", []string{"EGID", "Final"},
		[]string{"EG-1", "High"},
		[]string{"EG-2", "Low"})

	report, err := Run(source, results)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.Clean() {
		t.Errorf("expected clean report, got %+v", report)
	}
	if report.SourceIDs != 2 || report.ResultIDs != 2 {
		t.Errorf("counts wrong: %+v", report)
	}
}

func TestRunFindsDiscrepancies(t *testing.T) {
	source := table("flags", []string{"Engagementid", "flag"},
		[]string{"EG-1", "TRUE"},
		[]string{"  EG-2 ", "TRUE"}, // whitespace, still matches after trim
		[]string{"EG-3", "TRUE"},
		[]string{"EG-1", "FALSE"}, // duplicate
		[]string{"", "TRUE"})      // blank
	results := table("results", []string{"EGID", "Final"},
		[]string{"EG-1", "High"},
		[]string{"EG-2", "Low"},
		[]string{"EG-9", "Minor"}) // extra

	report, err := Run(source, results)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Clean() {
		t.Fatal("expected discrepancies")
	}
	if len(report.SourceDuplicates) != 1 || report.SourceDuplicates[0] != "EG-1" {
		t.Errorf("duplicates = %v", report.SourceDuplicates)
	}
	if report.SourceWhitespace != 1 || report.SourceBlank != 1 {
		t.Errorf("whitespace = %d, blank = %d", report.SourceWhitespace, report.SourceBlank)
	}
	if len(report.MissingInResults) != 1 || report.MissingInResults[0] != "EG-3" {
		t.Errorf("missing = %v", report.MissingInResults)
	}
	if len(report.ExtraInResults) != 1 || report.ExtraInResults[0] != "EG-9" {
		t.Errorf("extra = %v", report.ExtraInResults)
	}
}

func TestRunRejectsTableWithoutEGIDColumn(t *testing.T) {
	source := table("flags", []string{"name", "flag"}, []string{"x", "TRUE"})
	results := table("results", []string{"EGID"}, []string{"EG-1"})
	if _, err := Run(source, results); err == nil {
		t.Fatal("expected missing EGID column to fail")
	}
}

func TestWriteReport(t *testing.T) {
	source := table("flags", []string{"EGID"},
		[]string{"EG-1"}, []string{"EG-3"})
	results := table("results", []string{"EGID"},
		[]string{"EG-1"})

	report, err := Run(source, results)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	var buf bytes.Buffer
	report.Write(&buf)
	out := buf.String()
	for _, want := range []string{
		"EGID DIAGNOSTIC",
		"NOT in results (1)",
		`"EG-3"`,
		"Recommendations:",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}
