// Package report renders a finished run as spreadsheet exports and a
// plain-text summary. Presentation only: nothing here feeds back into
// the engine.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/xuri/excelize/v2"

	"isrr-engine/internal/compare"
	"isrr-engine/internal/engine"
	"isrr-engine/internal/rating"
)

// analysisHeaders is the column set of the complete-analysis export.
var analysisHeaders = []string{
	"EGID",
	"Existing_ISRR_Value",
	"Calculated_Interim_ISRR",
	"Calculated_Final_ISRR",
	"ISRR_Match",
	"Severity",
	"Interim_to_Final_Change",
	"Nature_of_Data",
	"Bank_Data",
	"Highest_Classification",
	"Availability",
	"Volume",
	"Format",
	"Connectivity",
	"Modifier_Applied",
	"Transactional_Groups",
	"Non_Transactional_Groups",
	"Interim_Rule_Matched",
	"Final_Rule_Matched",
	"Rule_Specificity",
	"Ambiguous_Rule",
	"Status",
	"Failure",
}

func matchCell(r engine.Record) string {
	switch r.Status {
	case compare.StatusMatch:
		return "Yes"
	case compare.StatusMismatch:
		return "No"
	case compare.StatusNoBaseline:
		return "No baseline"
	}
	return ""
}

func baselineCell(r engine.Record) string {
	if r.Baseline == nil {
		return "Not Available"
	}
	return r.Baseline.String()
}

func levelCell(l rating.Level, failed bool) string {
	if failed {
		return ""
	}
	return l.String()
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func recordRow(r engine.Record) []string {
	interimChanged := !r.Failed && r.Interim != r.Final
	failure := ""
	if r.Failed {
		failure = fmt.Sprintf("%s: %s", r.FailureKind, r.FailureDetail)
	}
	return []string{
		r.EGID,
		baselineCell(r),
		levelCell(r.Interim, r.Failed),
		levelCell(r.Final, r.Failed),
		matchCell(r),
		r.Severity,
		yesNo(interimChanged),
		r.NatureOfData,
		string(r.Tier),
		r.HighestClass,
		r.Availability,
		r.Volume,
		r.Format,
		r.Connectivity,
		r.Modifier,
		strconv.Itoa(r.Transactional),
		strconv.Itoa(r.NonTransactional),
		strconv.Itoa(r.InterimRuleID),
		strconv.Itoa(r.FinalRuleID),
		strconv.Itoa(r.Specificity),
		yesNo(r.Ambiguous),
		string(r.Status),
		failure,
	}
}

// mismatchHeaders is the column set of the mismatch export.
var mismatchHeaders = []string{"EGID", "Existing_ISRR", "Calculated_Final_ISRR", "Difference", "Severity"}

func mismatchRows(res *engine.Result) [][]string {
	var rows [][]string
	for _, r := range res.Records {
		if r.Status != compare.StatusMismatch {
			continue
		}
		rows = append(rows, []string{
			r.EGID,
			baselineCell(r),
			r.Final.String(),
			fmt.Sprintf("%s → %s", baselineCell(r), r.Final.String()),
			r.Severity,
		})
	}
	return rows
}

// WriteAnalysisCSV writes the complete-analysis export as CSV.
func WriteAnalysisCSV(path string, res *engine.Result) error {
	rows := make([][]string, 0, len(res.Records))
	for _, r := range res.Records {
		rows = append(rows, recordRow(r))
	}
	return writeCSV(path, analysisHeaders, rows)
}

// WriteMismatchCSV writes the mismatch-only export as CSV.
func WriteMismatchCSV(path string, res *engine.Result) error {
	return writeCSV(path, mismatchHeaders, mismatchRows(res))
}

func writeCSV(path string, headers []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(headers); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	w.Flush()
	return w.Error()
}

// WriteAnalysisXLSX writes the complete-analysis export as a workbook
// with an Analysis sheet and a Mismatches sheet.
func WriteAnalysisXLSX(path string, res *engine.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	const analysisSheet = "Analysis"
	if err := f.SetSheetName("Sheet1", analysisSheet); err != nil {
		return fmt.Errorf("preparing workbook: %w", err)
	}
	if err := writeSheet(f, analysisSheet, analysisHeaders, func() [][]string {
		rows := make([][]string, 0, len(res.Records))
		for _, r := range res.Records {
			rows = append(rows, recordRow(r))
		}
		return rows
	}()); err != nil {
		return err
	}

	const mismatchSheet = "Mismatches"
	if _, err := f.NewSheet(mismatchSheet); err != nil {
		return fmt.Errorf("preparing workbook: %w", err)
	}
	if err := writeSheet(f, mismatchSheet, mismatchHeaders, mismatchRows(res)); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]string) error {
	cell, err := excelize.CoordinatesToCellName(1, 1)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &headers); err != nil {
		return fmt.Errorf("writing sheet %s: %w", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing sheet %s: %w", sheet, err)
		}
	}
	return nil
}

// WriteSummary renders the run-level text report.
func WriteSummary(w io.Writer, res *engine.Result) error {
	agg := res.Aggregates
	rated := agg.Total - agg.Failed

	fmt.Fprintf(w, "ISRR ANALYSIS SUMMARY\n")
	fmt.Fprintf(w, "Run %s (%s)\n\n", res.RunID, res.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Total entities processed: %d\n", agg.Total)
	fmt.Fprintf(w, "Rated: %d  Failed: %d\n", rated, agg.Failed)
	fmt.Fprintf(w, "Matched: %d  Mismatched: %d  No baseline: %d\n",
		agg.Matched, agg.Mismatched, agg.NoBaseline)
	fmt.Fprintf(w, "Match rate: %.1f%%\n\n", agg.MatchRate())

	fmt.Fprintf(w, "Final ISRR distribution:\n")
	for _, level := range rating.Levels() {
		count := agg.FinalLevels[level]
		pct := 0.0
		if rated > 0 {
			pct = float64(count) / float64(rated) * 100
		}
		fmt.Fprintf(w, "  %-8s %d (%.1f%%)\n", level.String()+":", count, pct)
	}

	fmt.Fprintf(w, "\nInterim to final changes: %d\n", agg.InterimChanged)

	if agg.Mismatched > 0 {
		fmt.Fprintf(w, "\nMismatch severity:\n")
		severities := make([]string, 0, len(agg.Severity))
		for severity := range agg.Severity {
			severities = append(severities, severity)
		}
		sort.Strings(severities)
		for _, severity := range severities {
			fmt.Fprintf(w, "  %s: %d\n", severity, agg.Severity[severity])
		}
		fmt.Fprintf(w, "\nTop mismatch patterns:\n")
		for _, tc := range agg.TopTransitions(10) {
			fmt.Fprintf(w, "  %s: %d\n", tc.Transition, tc.Count)
		}
	}

	if len(res.Warnings) > 0 {
		fmt.Fprintf(w, "\nWarnings (%d):\n", len(res.Warnings))
		for _, warning := range res.Warnings {
			fmt.Fprintf(w, "  %s\n", warning.Message)
		}
	}
	return nil
}
