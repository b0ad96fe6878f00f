package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"isrr-engine/internal/cli"
	"isrr-engine/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		printUsage()
		return 1
	}

	command := os.Args[1]
	args := os.Args[2:]

	if command == "help" {
		printUsage()
		return 0
	}

	logger := newLogger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch command {
	case "run":
		err = cli.RunAnalysisCommand(ctx, args, logger)
	case "serve":
		err = cli.RunServeCommand(ctx, args, logger)
	case "diagnose":
		err = cli.RunDiagnoseCommand(args)
	case "validate-rules":
		err = cli.RunValidateRulesCommand(args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		return 1
	}

	if err != nil {
		logger.Error("command failed",
			slog.String("command", command),
			slog.String("error", err.Error()))
		return 1
	}
	return 0
}

// newLogger builds the process logger from ISRR_LOG_LEVEL; command
// configs cannot change it because flag parsing happens later.
func newLogger() *slog.Logger {
	cfg := config.Config{LogLevel: os.Getenv("ISRR_LOG_LEVEL")}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func printUsage() {
	fmt.Println(`ISRR rating engine

Usage:
  isrr-engine <command> [flags]

Commands:
  run             Rate every engagement and export the analysis
                  (-config, -output, -format, -workers, -save)
  serve           Run the analysis and serve the dashboard API
                  (-config, -listen, -save)
  diagnose        Cross-check source EGIDs against a results export
                  (-source, -results, -strict)
  validate-rules  Validate rule tables without processing entities
                  (--interim, --final, --strict)
  help            Show this message

Configuration is read from the YAML file given with -config, with
ISRR_* environment variables layered on top (ISRR_OUTPUT_DIR,
ISRR_WORKERS, ISRR_DB_CONN_STRING, ISRR_LISTEN, ISRR_LOG_LEVEL).`)
}
