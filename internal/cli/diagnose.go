package cli

import (
	"flag"
	"fmt"
	"os"

	"isrr-engine/internal/diagnose"
	"isrr-engine/internal/loader"
)

// RunDiagnoseCommand handles the 'diagnose' command: cross-check the
// EGIDs of a source flag matrix against a results export.
func RunDiagnoseCommand(args []string) error {
	fs := flag.NewFlagSet("diagnose", flag.ExitOnError)
	sourcePath := fs.String("source", "", "Source flag matrix file (required)")
	resultsPath := fs.String("results", "", "Results export file (required)")
	strict := fs.Bool("strict", false, "Exit with an error when discrepancies are found")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	if *sourcePath == "" || *resultsPath == "" {
		fs.Usage()
		return fmt.Errorf("error: --source and --results flags are required")
	}

	source, err := loader.ReadTable(*sourcePath)
	if err != nil {
		return fmt.Errorf("reading source table: %w", err)
	}
	results, err := loader.ReadTable(*resultsPath)
	if err != nil {
		return fmt.Errorf("reading results table: %w", err)
	}

	rep, err := diagnose.Run(source, results)
	if err != nil {
		return err
	}
	rep.Write(os.Stdout)

	if *strict && !rep.Clean() {
		return fmt.Errorf("diagnostic found discrepancies")
	}
	return nil
}
