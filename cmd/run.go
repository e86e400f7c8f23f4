package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run extract, load and export in order under one run id.",
		Long: `run executes the three stages back to back. A partial load (some
tables failed) still proceeds to export; any other stage error stops the
run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			runID, err := newRunID(a)
			if err != nil {
				return fmt.Errorf("generate run id: %w", err)
			}
			ctx := cmd.Context()

			if err := runExtract(ctx, a, runID, cmd.OutOrStdout()); err != nil {
				return err
			}
			loadErr := runLoad(ctx, a, runID)
			if loadErr != nil && !errors.Is(loadErr, ErrPartialLoad) {
				return loadErr
			}
			if err := runExport(ctx, a, runID); err != nil {
				return errors.Join(loadErr, err)
			}
			return loadErr
		},
	}
}
