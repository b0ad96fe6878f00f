// Package cli implements the engine's subcommands. Each command parses
// its own flag set and returns an error instead of exiting, so main
// owns the process exit code.
package cli

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"isrr-engine/internal/config"
	"isrr-engine/internal/engine"
	"isrr-engine/internal/loader"
	"isrr-engine/internal/report"
	"isrr-engine/internal/rules"
	"isrr-engine/internal/store"
)

// runAnalysis is the shared load-rate-export pipeline behind the run
// and serve commands.
func runAnalysis(ctx context.Context, cfg config.Config, logger *slog.Logger) (*engine.Result, error) {
	bundle, err := loader.LoadAll(loader.Paths{
		Variables:    cfg.Inputs.Variables,
		Flags:        cfg.Inputs.Flags,
		Main:         cfg.Inputs.Main,
		InterimRules: cfg.Inputs.InterimRules,
		FinalRules:   cfg.Inputs.FinalRules,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("loading input tables: %w", err)
	}

	return engine.Run(ctx, engine.Input{
		Entities:  bundle.Entities,
		Catalog:   bundle.Catalog,
		TierRules: rules.DefaultTierRules(),
		Interim:   bundle.Interim,
		Final:     bundle.Final,
		Workers:   cfg.Workers,
	}, logger)
}

func exportResult(res *engine.Result, outputDir, format string) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	switch format {
	case "csv":
		if err := report.WriteAnalysisCSV(filepath.Join(outputDir, "complete_isrr_analysis.csv"), res); err != nil {
			return err
		}
		return report.WriteMismatchCSV(filepath.Join(outputDir, "isrr_mismatches.csv"), res)
	case "xlsx":
		return report.WriteAnalysisXLSX(filepath.Join(outputDir, "complete_isrr_analysis.xlsx"), res)
	case "both":
		if err := report.WriteAnalysisCSV(filepath.Join(outputDir, "complete_isrr_analysis.csv"), res); err != nil {
			return err
		}
		if err := report.WriteMismatchCSV(filepath.Join(outputDir, "isrr_mismatches.csv"), res); err != nil {
			return err
		}
		return report.WriteAnalysisXLSX(filepath.Join(outputDir, "complete_isrr_analysis.xlsx"), res)
	}
	return fmt.Errorf("unknown export format %q (want csv, xlsx, or both)", format)
}

func persistResult(ctx context.Context, cfg config.Config, res *engine.Result, logger *slog.Logger) error {
	st, err := store.NewStore(cfg.Database.ConnectionString)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.InitSchema(ctx); err != nil {
		return err
	}
	if err := st.SaveRun(ctx, res); err != nil {
		return err
	}
	logger.Info("run persisted", slog.String("run_id", res.RunID))
	return nil
}

// RunAnalysisCommand handles the 'run' command.
func RunAnalysisCommand(ctx context.Context, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to YAML config file")
	outputDir := fs.String("output", "", "Output directory (overrides config)")
	format := fs.String("format", "both", "Export format: csv, xlsx, or both")
	workers := fs.Int("workers", 0, "Worker count (overrides config; 0 means NumCPU)")
	save := fs.Bool("save", false, "Persist the run to the configured database")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}

	res, err := runAnalysis(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if err := exportResult(res, cfg.OutputDir, *format); err != nil {
		return err
	}
	if err := report.WriteSummary(os.Stdout, res); err != nil {
		return err
	}

	if *save {
		if !cfg.IsDatabaseEnabled() {
			return fmt.Errorf("--save given but no database configured (set database.connection_string or ISRR_DB_CONN_STRING)")
		}
		if err := persistResult(ctx, cfg, res, logger); err != nil {
			return fmt.Errorf("persisting run: %w", err)
		}
	}
	return nil
}
