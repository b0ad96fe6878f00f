// Package engine runs the full per-entity rating pipeline
// (grouper, interim, final, comparator) over a batch of entities and
// reduces the results into ordered report records and run aggregates.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"isrr-engine/internal/catalog"
	"isrr-engine/internal/compare"
	"isrr-engine/internal/grouping"
	"isrr-engine/internal/rating"
	"isrr-engine/internal/rules"
)

// FailureKind names why an entity could not be rated. Per-entity
// failures never abort the batch.
type FailureKind string

const (
	FailureNone             FailureKind = ""
	FailureTierUndetermined FailureKind = "tier_undetermined"
	FailureNoInterimRule    FailureKind = "no_interim_rule"
	// FailureNoFinalRule indicates a configuration defect: a well-formed
	// final table always carries a universal fallback row.
	FailureNoFinalRule FailureKind = "no_final_rule"
)

// Record is the per-entity report row. One is emitted per input entity,
// in input order, whether the entity rated successfully or failed.
type Record struct {
	EGID string

	Transactional    int
	NonTransactional int
	Tier             rules.Tier
	NatureOfData     string
	HighestClass     string
	Availability     string

	Volume       string
	Format       string
	Connectivity string

	Interim rating.Level
	Final   rating.Level

	InterimRuleID int
	FinalRuleID   int
	Specificity   int
	Modifier      string
	MatchedRules  int
	Ambiguous     bool

	Baseline *rating.Level
	Status   compare.Status
	Severity string

	Failed        bool
	FailureKind   FailureKind
	FailureDetail string
}

// Warning is a batch-level condition that did not stop processing but
// needs manual review, such as an ambiguous final-rule tie.
type Warning struct {
	EGID     string
	RuleID   int
	TiedWith []int
	Message  string
}

// Input is the materialized, validated data a run operates on. The
// catalog and rule tables are read-only snapshots shared by all workers.
type Input struct {
	Entities  []catalog.Entity
	Catalog   *catalog.Catalog
	TierRules rules.TierRules
	Interim   *rules.InterimTable
	Final     *rules.FinalTable
	// Workers bounds the worker pool; <= 0 means NumCPU.
	Workers int
}

// Result is the complete output of one batch run.
type Result struct {
	RunID      string
	StartedAt  time.Time
	Duration   time.Duration
	Records    []Record
	Aggregates *compare.Aggregates
	Warnings   []Warning
}

// Run processes every entity independently through the pipeline. Entity
// order in Records matches input order regardless of worker scheduling,
// and aggregates are merged associatively so parallel and sequential
// runs agree.
func Run(ctx context.Context, in Input, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if in.Catalog == nil || in.Interim == nil || in.Final == nil {
		return nil, fmt.Errorf("engine input missing catalog or rule tables")
	}
	if !in.Final.HasUniversalRule() {
		logger.Warn("final rule table has no universal fallback row; unmatched entities will fail")
	}

	workers := in.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(in.Entities) && len(in.Entities) > 0 {
		workers = len(in.Entities)
	}

	result := &Result{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Records:   make([]Record, len(in.Entities)),
	}
	logger.Info("starting rating run",
		slog.String("run_id", result.RunID),
		slog.Int("entities", len(in.Entities)),
		slog.Int("workers", workers))

	indexes := make(chan int)
	type workerOut struct {
		aggregates *compare.Aggregates
		warnings   []indexedWarning
	}
	outs := make([]workerOut, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			local := workerOut{aggregates: compare.NewAggregates()}
			for i := range indexes {
				record, warning := processEntity(in, in.Entities[i])
				result.Records[i] = record
				if record.Failed {
					local.aggregates.AddFailure()
				} else {
					outcome := compare.Compare(record.Final, record.Baseline)
					local.aggregates.AddOutcome(outcome, record.Interim)
				}
				if warning != nil {
					local.warnings = append(local.warnings, indexedWarning{index: i, warning: *warning})
				}
			}
			outs[w] = local
		}(w)
	}

feed:
	for i := range in.Entities {
		select {
		case indexes <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(indexes)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("rating run abandoned: %w", err)
	}

	result.Aggregates = compare.NewAggregates()
	var warnings []indexedWarning
	for _, out := range outs {
		result.Aggregates.Merge(out.aggregates)
		warnings = append(warnings, out.warnings...)
	}
	sort.Slice(warnings, func(i, j int) bool { return warnings[i].index < warnings[j].index })
	for _, w := range warnings {
		result.Warnings = append(result.Warnings, w.warning)
		logger.Warn("ambiguous final-rule tie",
			slog.String("egid", w.warning.EGID),
			slog.Int("rule_id", w.warning.RuleID),
			slog.Any("tied_with", w.warning.TiedWith))
	}

	result.Duration = time.Since(result.StartedAt)
	logger.Info("rating run complete",
		slog.String("run_id", result.RunID),
		slog.Int("processed", result.Aggregates.Total),
		slog.Int("failed", result.Aggregates.Failed),
		slog.Int("mismatched", result.Aggregates.Mismatched),
		slog.Float64("match_rate", result.Aggregates.MatchRate()),
		slog.Duration("elapsed", result.Duration))
	return result, nil
}

type indexedWarning struct {
	index   int
	warning Warning
}

// processEntity runs one entity end to end. Failures are recorded on the
// returned record, never propagated as errors: one bad entity must not
// block the rest of the batch.
func processEntity(in Input, e catalog.Entity) (Record, *Warning) {
	record := Record{
		EGID:         e.EGID,
		Volume:       e.Volume,
		Format:       e.Format,
		Connectivity: e.Connectivity,
		Baseline:     e.Baseline,
	}

	summary := grouping.Summarize(e, in.Catalog)
	record.Transactional = summary.Transactional
	record.NonTransactional = summary.NonTransactional
	record.HighestClass = summary.HighestClassification()
	record.Availability = summary.Availability()

	tier, err := rules.ResolveTier(summary, in.TierRules)
	if err != nil {
		record.Failed = true
		record.FailureKind = FailureTierUndetermined
		record.FailureDetail = err.Error()
		return record, nil
	}
	record.Tier = tier

	pattern := rules.ClassifyPattern(summary.Transactional, summary.NonTransactional)
	record.NatureOfData = pattern.Label()

	interimRule, err := in.Interim.Lookup(tier, pattern)
	if err != nil {
		record.Failed = true
		record.FailureKind = FailureNoInterimRule
		record.FailureDetail = err.Error()
		return record, nil
	}
	record.Interim = interimRule.Rating
	record.InterimRuleID = interimRule.ID

	attrs := rules.Attributes{Volume: e.Volume, Format: e.Format, Connectivity: e.Connectivity}
	decision, err := in.Final.Evaluate(attrs, interimRule.Rating)
	if err != nil {
		record.Failed = true
		record.FailureKind = FailureNoFinalRule
		record.FailureDetail = err.Error()
		return record, nil
	}
	record.Final = decision.Final
	record.FinalRuleID = decision.Rule.ID
	record.Specificity = decision.Specificity
	record.Modifier = decision.Rule.Modifier.String()
	record.MatchedRules = decision.Matched
	record.Ambiguous = decision.Ambiguous

	outcome := compare.Compare(decision.Final, e.Baseline)
	record.Status = outcome.Status
	record.Severity = outcome.Severity()

	var warning *Warning
	if decision.Ambiguous {
		warning = &Warning{
			EGID:     e.EGID,
			RuleID:   decision.Rule.ID,
			TiedWith: decision.AmbiguousWith,
			Message: fmt.Sprintf("final rules tied through all break levels for entity %s; using first-listed rule %d",
				e.EGID, decision.Rule.ID),
		}
	}
	return record, warning
}
