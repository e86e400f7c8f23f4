package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/leasecar-etl/internal/load"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Create dim_vehicles, fact_price and dim_color if they do not exist.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			return runSchema(cmd.Context(), a)
		},
	}
}

func runSchema(ctx context.Context, a App) error {
	dbCfg, err := readDBConfig(a)
	if err != nil {
		return err
	}
	db, err := dialDB(ctx, dbCfg, a.Logger().Named("schema"))
	if err != nil {
		return err
	}
	defer db.Close()
	if err := load.EnsureSchema(ctx, db); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	a.Logger().Info("schema ready")
	return nil
}
