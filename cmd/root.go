// Package cmd implements the leasecar-etl command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/leasecar-etl/internal/app"
	"github.com/JakeFAU/leasecar-etl/internal/config"
	"github.com/JakeFAU/leasecar-etl/internal/database"
	"github.com/JakeFAU/leasecar-etl/internal/load"
	"github.com/JakeFAU/leasecar-etl/internal/logging"
	"github.com/JakeFAU/leasecar-etl/internal/metrics"
	"github.com/JakeFAU/leasecar-etl/internal/pipeline"
	"github.com/JakeFAU/leasecar-etl/internal/report"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is the set of shared services commands use. It lets tests inject
// their own container.
type App interface {
	Close(ctx context.Context)
	Config() config.Config
	Logger() *zap.Logger
	Metrics() *metrics.Collectors
	Reporter() report.Reporter
	Store() pipeline.ArtifactStore
	Clock() pipeline.Clock
	IDs() pipeline.IDGenerator
	Hasher() pipeline.Hasher
	PublishReport(ctx context.Context, rep pipeline.StageReport)
}

// Database is the connection the load and export stages share.
type Database interface {
	load.DB
	Close()
}

// newApp is the application factory. It's a variable so tests can replace
// it.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.New(ctx, cfg, logger)
}

// dialDB opens the database connection. It's a variable so tests can run
// the database stages against pgxmock.
var dialDB = func(ctx context.Context, cfg config.DBConfig, logger *zap.Logger) (Database, error) {
	return database.NewPool(ctx, cfg, logger)
}

type options struct {
	configFile   string
	dbConfigFile string

	app       App
	closeOnce sync.Once
}

// closeApp releases the application services exactly once.
func (o *options) closeApp(ctx context.Context) {
	o.closeOnce.Do(func() {
		if o.app != nil {
			o.app.Close(context.WithoutCancel(ctx))
		}
	})
}

// newRootCmd creates and configures the root command.
func newRootCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leasecar-etl",
		Short: "Batch ETL for the private-lease car catalog.",
		Long: `leasecar-etl copies the private-lease catalog into Postgres in three
independent stages: extract writes the specification, price and color
files; load appends them to dim_vehicles, fact_price and dim_color; export
joins the tables into one sorted file.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Build the application once config is known and before the
		// subcommand's RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if opts.dbConfigFile != "" {
				cfg.DBConfigPath = opts.dbConfigFile
			}
			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)

			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			opts.app = appInstance
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		// Cobra skips this hook when RunE fails; execute closes the app
		// on that path.
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			opts.closeApp(cmd.Context())
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "pipeline config file (YAML/JSON/TOML); defaults plus LEASECAR_* env when empty")
	cmd.PersistentFlags().StringVar(&opts.dbConfigFile, "db-config", "", "database config file (overrides db_config)")

	cmd.AddCommand(
		newExtractCmd(),
		newLoadCmd(),
		newExportCmd(),
		newRunCmd(),
		newSchemaCmd(),
	)
	return cmd
}

func appFrom(cmd *cobra.Command) (App, error) {
	a, ok := cmd.Context().Value(appKey).(App)
	if !ok || a == nil {
		return nil, errors.New("application services not initialized")
	}
	return a, nil
}

// execute runs the CLI with args and closes the application services on
// every path.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts := &options{}
	root := newRootCmd(opts)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	defer opts.closeApp(ctx)
	return root.ExecuteContext(ctx)
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		zap.L().Error("command execution failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "leasecar-etl: %v\n", err)
		stop()
		os.Exit(1)
	}
}
