package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/leasecar-etl/internal/config"
	"github.com/JakeFAU/leasecar-etl/internal/extract"
	collyfetcher "github.com/JakeFAU/leasecar-etl/internal/fetcher/colly"
	"github.com/JakeFAU/leasecar-etl/internal/logging"
	"github.com/JakeFAU/leasecar-etl/internal/pipeline"
	"github.com/JakeFAU/leasecar-etl/internal/policy/pacing"
)

// newCatalogAPI builds the catalog client. Tests swap it for a fake.
var newCatalogAPI = func(cfg config.APIConfig) pipeline.CatalogAPI {
	return collyfetcher.New(collyfetcher.Config{
		SearchURL:    cfg.SearchURL,
		DetailURL:    cfg.DetailURL,
		ClientID:     cfg.ClientID,
		APIKey:       cfg.APIKey,
		UserAgent:    cfg.UserAgent,
		Origin:       cfg.Origin,
		Referer:      cfg.Referer,
		PageSize:     cfg.PageSize,
		Timeout:      cfg.Timeout(),
		MaxBodyBytes: cfg.MaxBodyBytes,
	})
}

func newExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract",
		Short: "Fetch the catalog and write the specification, price and color files.",
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
			return runExtract(cmd.Context(), a, runID, cmd.OutOrStdout())
		},
	}
}

func runExtract(ctx context.Context, a App, runID string, preview io.Writer) error {
	cfg := a.Config()
	if err := cfg.API.Validate(); err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	minDelay, maxDelay := cfg.Extract.DelayWindow()
	pacer := pacing.New(pacing.Config{
		MinDelay:     minDelay,
		MaxDelay:     maxDelay,
		MaxPerMinute: cfg.Extract.MaxRequestsPerMinute,
	}, a.Clock())

	ex := extract.New(extract.Deps{
		API:      newCatalogAPI(cfg.API),
		Pacer:    pacer,
		Store:    a.Store(),
		Hasher:   a.Hasher(),
		Clock:    a.Clock(),
		Reporter: a.Reporter(),
		Metrics:  a.Metrics(),
		Logger:   logging.ForStage(a.Logger(), string(pipeline.StageExtract), runID),
		Preview:  preview,
	}, extract.Config{
		SpecsPath:   cfg.Files.SpecsPath(),
		PricePath:   cfg.Files.PricePath(),
		ColorPath:   cfg.Files.ColorPath(),
		PreviewRows: cfg.Extract.PreviewRows,
	})

	return runStage(ctx, a, pipeline.StageExtract, runID, func(ctx context.Context) (stageOutcome, error) {
		res, err := ex.Run(ctx, runID)
		return stageOutcome{counts: res.Counts(), skipped: res.Skipped, artifacts: res.Artifacts}, err
	})
}
