package cmd

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/leasecar-etl/internal/pipeline"
)

// stageOutcome is what a stage body hands back for its report.
type stageOutcome struct {
	counts    map[string]int
	skipped   []string
	artifacts []pipeline.Artifact
}

// runStage times body, records the stage metric and publishes a
// StageReport whether or not body succeeded.
func runStage(ctx context.Context, a App, stage pipeline.Stage, runID string, body func(ctx context.Context) (stageOutcome, error)) error {
	started := a.Clock().Now()
	out, err := body(ctx)
	finished := a.Clock().Now()

	rep := pipeline.StageReport{
		RunID:      runID,
		Stage:      stage,
		StartedAt:  started,
		FinishedAt: finished,
		Succeeded:  err == nil,
		Counts:     out.counts,
		Skipped:    out.skipped,
		Artifacts:  out.artifacts,
	}
	if err != nil {
		rep.Error = err.Error()
	}
	a.Metrics().ObserveStage(string(stage), rep.Succeeded, rep.Duration())
	a.PublishReport(context.WithoutCancel(ctx), rep)

	fields := []zap.Field{
		zap.String("run_id", runID),
		zap.String("stage", string(stage)),
		zap.Duration("elapsed", rep.Duration()),
		zap.Any("counts", out.counts),
	}
	if err != nil {
		a.Logger().Error("stage failed", append(fields, zap.Error(err))...)
		return err
	}
	a.Logger().Info("stage finished", fields...)
	return nil
}

func newRunID(a App) (string, error) {
	return a.IDs().NewID()
}
