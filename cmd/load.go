package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/leasecar-etl/internal/config"
	"github.com/JakeFAU/leasecar-etl/internal/load"
	"github.com/JakeFAU/leasecar-etl/internal/logging"
	"github.com/JakeFAU/leasecar-etl/internal/pipeline"
	"github.com/JakeFAU/leasecar-etl/internal/report"
)

// ErrPartialLoad is returned when at least one table failed to load. The
// remaining tables were still attempted.
var ErrPartialLoad = errors.New("one or more tables failed to load")

func newLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Append the three flat files to dim_vehicles, fact_price and dim_color.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			runID, err := newRunID(a)
			if err != nil {
				return fmt.Errorf("generate run id: %w", err)
			}
			return runLoad(cmd.Context(), a, runID)
		},
	}
}

// readDBConfig is called before anything touches the network so a missing
// file aborts the stage first.
func readDBConfig(a App) (config.DBConfig, error) {
	dbCfg, err := config.LoadDB(a.Config().DBConfigPath)
	if err != nil {
		return config.DBConfig{}, fmt.Errorf("read database config: %w", err)
	}
	return dbCfg, nil
}

// withDB dials the database, runs fn and closes the connection on every
// path. A dial failure is reported as a connectivity failure of stage.
func withDB(ctx context.Context, a App, stage pipeline.Stage, runID string, dbCfg config.DBConfig, logger *zap.Logger,
	fn func(db Database) error,
) error {
	db, err := dialDB(ctx, dbCfg, logger)
	if err != nil {
		if ctx.Err() == nil {
			a.Reporter().Report(ctx, report.Event{
				RunID:   runID,
				TS:      a.Clock().Now(),
				Stage:   stage,
				Kind:    report.KindConnectivity,
				Subject: "postgres",
				Err:     err,
			})
		}
		return err
	}
	defer db.Close()
	return fn(db)
}

func runLoad(ctx context.Context, a App, runID string) error {
	dbCfg, err := readDBConfig(a)
	if err != nil {
		return err
	}
	cfg := a.Config()
	logger := logging.ForStage(a.Logger(), string(pipeline.StageLoad), runID)

	return runStage(ctx, a, pipeline.StageLoad, runID, func(ctx context.Context) (stageOutcome, error) {
		var out stageOutcome
		err := withDB(ctx, a, pipeline.StageLoad, runID, dbCfg, logger, func(db Database) error {
			loader := load.New(load.Deps{
				DB:       db,
				Store:    a.Store(),
				Reporter: a.Reporter(),
				Clock:    a.Clock(),
				Metrics:  a.Metrics(),
				Logger:   logger,
			}, load.Config{
				ChunkSize:    cfg.Loader.ChunkSize,
				FilterColors: cfg.Loader.FilterColors,
				SpecsPath:    cfg.Files.SpecsPath(),
				PricePath:    cfg.Files.PricePath(),
				ColorPath:    cfg.Files.ColorPath(),
			})
			res, err := loader.Run(ctx, runID)
			out.counts = res.Counts()
			if err != nil {
				return err
			}
			for _, t := range res.Tables {
				if t.Err != nil {
					out.skipped = append(out.skipped, t.Table)
				}
			}
			if res.Failed() {
				return fmt.Errorf("%w: %v", ErrPartialLoad, out.skipped)
			}
			return nil
		})
		return out, err
	})
}
