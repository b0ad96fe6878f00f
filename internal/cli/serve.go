package cli

import (
	"context"
	"flag"
	"fmt"
	"log/slog"

	"isrr-engine/internal/config"
	"isrr-engine/internal/server"
	"isrr-engine/internal/store"
)

// RunServeCommand handles the 'serve' command: run the analysis once,
// then keep the result available over the dashboard API.
func RunServeCommand(ctx context.Context, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to YAML config file")
	listen := fs.String("listen", "", "Listen address (overrides config)")
	save := fs.Bool("save", false, "Persist the run to the configured database before serving")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *listen != "" {
		cfg.Listen = *listen
	}

	res, err := runAnalysis(ctx, cfg, logger)
	if err != nil {
		return err
	}

	var st *store.Store
	if cfg.IsDatabaseEnabled() {
		st, err = store.NewStore(cfg.Database.ConnectionString)
		if err != nil {
			return fmt.Errorf("connecting run store: %w", err)
		}
		defer st.Close()
		if err := st.InitSchema(ctx); err != nil {
			return err
		}
		if *save {
			if err := st.SaveRun(ctx, res); err != nil {
				return fmt.Errorf("persisting run: %w", err)
			}
			logger.Info("run persisted", slog.String("run_id", res.RunID))
		}
	} else if *save {
		return fmt.Errorf("--save given but no database configured (set database.connection_string or ISRR_DB_CONN_STRING)")
	}

	srv := server.New(res, st, logger)
	return srv.Run(ctx, cfg.Listen)
}
