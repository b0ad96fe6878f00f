// Package diagnose cross-checks the EGIDs in a source flag matrix
// against a results export, surfacing the data quality problems that
// make the two disagree: duplicates, whitespace, blanks, and entities
// dropped or invented along the way.
package diagnose

import (
	"fmt"
	"io"
	"strings"

	"isrr-engine/internal/loader"
)

// Report is the outcome of one source-versus-results comparison.
type Report struct {
	SourceRows  int
	ResultRows  int
	SourceIDs   int // unique, after trimming
	ResultIDs   int
	SourceBlank int
	ResultBlank int

	SourceDuplicates []string
	ResultDuplicates []string
	// SourceWhitespace counts source EGIDs carrying leading or trailing
	// spaces, the usual reason joins silently drop rows.
	SourceWhitespace int

	MissingInResults []string // in source, absent from results
	ExtraInResults   []string // in results, absent from source
}

// Clean reports whether the comparison found nothing to complain about.
func (r *Report) Clean() bool {
	return len(r.SourceDuplicates) == 0 &&
		len(r.ResultDuplicates) == 0 &&
		r.SourceWhitespace == 0 &&
		r.SourceBlank == 0 && r.ResultBlank == 0 &&
		len(r.MissingInResults) == 0 &&
		len(r.ExtraInResults) == 0
}

func egidColumn(t *loader.Table) (int, error) {
	for _, name := range loader.EGIDColumnVariations {
		if col := t.ColumnIndex(name); col >= 0 {
			return col, nil
		}
	}
	return -1, fmt.Errorf("table %s has no EGID column (tried %s)",
		t.Name, strings.Join(loader.EGIDColumnVariations, ", "))
}

// column is one table's EGID inventory: ordered unique ids plus the
// quality counters gathered while scanning.
type column struct {
	rows       int
	blank      int
	whitespace int
	order      []string
	seen       map[string]int
	duplicates []string
}

func scanColumn(t *loader.Table) (*column, error) {
	col, err := egidColumn(t)
	if err != nil {
		return nil, err
	}
	c := &column{seen: make(map[string]int)}
	for _, row := range t.Rows {
		c.rows++
		raw := t.Cell(row, col)
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			c.blank++
			continue
		}
		if raw != trimmed {
			c.whitespace++
		}
		c.seen[trimmed]++
		if c.seen[trimmed] == 1 {
			c.order = append(c.order, trimmed)
		} else if c.seen[trimmed] == 2 {
			c.duplicates = append(c.duplicates, trimmed)
		}
	}
	return c, nil
}

// Run compares the EGID sets of the source and results tables. Both
// sides are trimmed before comparison so the report points at real
// drops, not spacing accidents.
func Run(source, results *loader.Table) (*Report, error) {
	src, err := scanColumn(source)
	if err != nil {
		return nil, fmt.Errorf("source table: %w", err)
	}
	res, err := scanColumn(results)
	if err != nil {
		return nil, fmt.Errorf("results table: %w", err)
	}

	report := &Report{
		SourceRows:       src.rows,
		ResultRows:       res.rows,
		SourceIDs:        len(src.order),
		ResultIDs:        len(res.order),
		SourceBlank:      src.blank,
		ResultBlank:      res.blank,
		SourceDuplicates: src.duplicates,
		ResultDuplicates: res.duplicates,
		SourceWhitespace: src.whitespace,
	}
	for _, id := range src.order {
		if res.seen[id] == 0 {
			report.MissingInResults = append(report.MissingInResults, id)
		}
	}
	for _, id := range res.order {
		if src.seen[id] == 0 {
			report.ExtraInResults = append(report.ExtraInResults, id)
		}
	}
	return report, nil
}

// listLimit caps how many ids a section prints; the counts always show
// the full picture.
const listLimit = 20

func writeList(w io.Writer, ids []string) {
	for i, id := range ids {
		if i == listLimit {
			fmt.Fprintf(w, "  ... and %d more\n", len(ids)-listLimit)
			return
		}
		fmt.Fprintf(w, "  - %q\n", id)
	}
}

// Write renders the report as the text a run operator reads.
func (r *Report) Write(w io.Writer) {
	fmt.Fprintf(w, "EGID DIAGNOSTIC\n\n")
	fmt.Fprintf(w, "Source rows: %d  unique EGIDs: %d  blank: %d  with whitespace: %d\n",
		r.SourceRows, r.SourceIDs, r.SourceBlank, r.SourceWhitespace)
	fmt.Fprintf(w, "Result rows: %d  unique EGIDs: %d  blank: %d\n",
		r.ResultRows, r.ResultIDs, r.ResultBlank)

	if len(r.SourceDuplicates) > 0 {
		fmt.Fprintf(w, "\nDuplicate EGIDs in source (%d):\n", len(r.SourceDuplicates))
		writeList(w, r.SourceDuplicates)
	}
	if len(r.ResultDuplicates) > 0 {
		fmt.Fprintf(w, "\nDuplicate EGIDs in results (%d):\n", len(r.ResultDuplicates))
		writeList(w, r.ResultDuplicates)
	}
	if len(r.MissingInResults) > 0 {
		fmt.Fprintf(w, "\nEGIDs in source but NOT in results (%d):\n", len(r.MissingInResults))
		writeList(w, r.MissingInResults)
	}
	if len(r.ExtraInResults) > 0 {
		fmt.Fprintf(w, "\nEGIDs in results but NOT in source (%d):\n", len(r.ExtraInResults))
		writeList(w, r.ExtraInResults)
	}

	if r.Clean() {
		fmt.Fprintf(w, "\nNo discrepancies found.\n")
		return
	}
	fmt.Fprintf(w, "\nRecommendations:\n")
	if len(r.SourceDuplicates) > 0 {
		fmt.Fprintf(w, "  - remove or merge duplicate EGIDs in the source file\n")
	}
	if r.SourceWhitespace > 0 {
		fmt.Fprintf(w, "  - clean leading/trailing whitespace from source EGIDs\n")
	}
	if r.SourceBlank > 0 || r.ResultBlank > 0 {
		fmt.Fprintf(w, "  - drop rows with blank EGIDs\n")
	}
	if len(r.MissingInResults) > 0 {
		fmt.Fprintf(w, "  - %d source EGIDs never reached the results; check filtering during the run\n",
			len(r.MissingInResults))
	}
}
