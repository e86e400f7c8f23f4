package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/leasecar-etl/internal/export"
	"github.com/JakeFAU/leasecar-etl/internal/logging"
	"github.com/JakeFAU/leasecar-etl/internal/pipeline"
)

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Join the three tables and write the sorted result file.",
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
			return runExport(cmd.Context(), a, runID)
		},
	}
}

func runExport(ctx context.Context, a App, runID string) error {
	dbCfg, err := readDBConfig(a)
	if err != nil {
		return err
	}
	cfg := a.Config()
	logger := logging.ForStage(a.Logger(), string(pipeline.StageExport), runID)

	return runStage(ctx, a, pipeline.StageExport, runID, func(ctx context.Context) (stageOutcome, error) {
		var out stageOutcome
		err := withDB(ctx, a, pipeline.StageExport, runID, dbCfg, logger, func(db Database) error {
			exp := export.New(export.Deps{
				DB:       db,
				Store:    a.Store(),
				Reporter: a.Reporter(),
				Hasher:   a.Hasher(),
				Clock:    a.Clock(),
				Metrics:  a.Metrics(),
				Logger:   logger,
			}, export.Config{OutputPath: cfg.Export.Output})
			res, err := exp.Run(ctx, runID)
			if err != nil {
				return err
			}
			out.counts = res.Counts()
			out.artifacts = []pipeline.Artifact{res.Artifact}
			return nil
		})
		return out, err
	})
}
