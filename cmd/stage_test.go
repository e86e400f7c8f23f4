package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/leasecar-etl/internal/app"
	"github.com/JakeFAU/leasecar-etl/internal/config"
	"github.com/JakeFAU/leasecar-etl/internal/pipeline"
)

func newMemoryApp(t *testing.T) *app.App {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Storage.Backend = "memory"
	a, err := app.New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close(context.Background()) })
	return a
}

func TestRunStagePublishesSuccess(t *testing.T) {
	t.Parallel()

	a := newMemoryApp(t)
	artifacts := []pipeline.Artifact{{Name: "out.csv", URI: "mem://out.csv", Rows: 2}}
	err := runStage(context.Background(), a, pipeline.StageExport, "run-1", func(context.Context) (stageOutcome, error) {
		return stageOutcome{counts: map[string]int{"rows": 2}, artifacts: artifacts}, nil
	})
	require.NoError(t, err)

	reports := a.Reports()
	require.Len(t, reports, 1)
	rep := reports[0]
	require.Equal(t, "run-1", rep.RunID)
	require.Equal(t, pipeline.StageExport, rep.Stage)
	require.True(t, rep.Succeeded)
	require.Empty(t, rep.Error)
	require.Equal(t, map[string]int{"rows": 2}, rep.Counts)
	require.Equal(t, artifacts, rep.Artifacts)
	require.False(t, rep.FinishedAt.Before(rep.StartedAt))
}

func TestRunStagePublishesFailureAfterCancel(t *testing.T) {
	t.Parallel()

	a := newMemoryApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	boom := errors.New("dim_color: insert failed")
	err := runStage(ctx, a, pipeline.StageLoad, "run-2", func(context.Context) (stageOutcome, error) {
		cancel()
		return stageOutcome{skipped: []string{"dim_color"}}, boom
	})
	require.ErrorIs(t, err, boom)

	reports := a.Reports()
	require.Len(t, reports, 1)
	require.False(t, reports[0].Succeeded)
	require.Equal(t, boom.Error(), reports[0].Error)
	require.Equal(t, []string{"dim_color"}, reports[0].Skipped)
}
