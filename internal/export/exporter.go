// Package export implements the third pipeline stage: join the three
// relational tables into one denormalized, sorted flat file.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/JakeFAU/leasecar-etl/internal/flatfile"
	"github.com/JakeFAU/leasecar-etl/internal/leasecar"
	"github.com/JakeFAU/leasecar-etl/internal/metrics"
	"github.com/JakeFAU/leasecar-etl/internal/pipeline"
	"github.com/JakeFAU/leasecar-etl/internal/report"
)

// Query joins every vehicle with each of its price points and colors.
const Query = `SELECT
	dv."leasecarId",
	dv."make",
	dv."model",
	dv."year",
	dv."trimLevel",
	dv."retailPrice",
	dv."fuelType",
	dv."batteryCapacity",
	dv."acceleration",
	dv."topSpeed",
	dv."seats",
	dv."luggageSpace",
	fp."duration" AS lease_duration_months,
	fp."mileage" AS annual_mileage_km,
	fp."pricePerMonth" AS base_price_per_month_eur,
	dc."colorName",
	dc."colorPrice" AS color_add_cost_eur
FROM "dim_vehicles" dv
JOIN "fact_price" fp ON dv."leasecarId" = fp."leasecarId"
JOIN "dim_color" dc ON dv."leasecarId" = dc."leasecarId"
ORDER BY dv."make" COLLATE "C", dv."model" COLLATE "C", fp."duration", fp."mileage"`

// Querier is the subset of pgxpool.Pool the exporter needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Config names the output object.
type Config struct {
	OutputPath string
}

// Deps are the collaborators of an Exporter. Reporter, Hasher, Clock,
// Metrics and Logger may be nil.
type Deps struct {
	DB       Querier
	Store    pipeline.ArtifactStore
	Reporter report.Reporter
	Hasher   pipeline.Hasher
	Clock    pipeline.Clock
	Metrics  *metrics.Collectors
	Logger   *zap.Logger
}

// Result describes the written file.
type Result struct {
	Rows     int
	Artifact pipeline.Artifact
}

// Counts flattens the result for stage reports.
func (r Result) Counts() map[string]int {
	return map[string]int{"rows": r.Rows}
}

// Exporter runs the export stage.
type Exporter struct {
	deps Deps
	cfg  Config
}

// New constructs an Exporter.
func New(deps Deps, cfg Config) *Exporter {
	if deps.Reporter == nil {
		deps.Reporter = report.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Exporter{deps: deps, cfg: cfg}
}

// Run executes Query, holds the full result in memory and only then writes
// it, header first, to the configured output. Nothing is written when the
// query or the scan fails.
func (e *Exporter) Run(ctx context.Context, runID string) (Result, error) {
	header, rows, err := e.fetch(ctx)
	if err != nil {
		if ctx.Err() == nil {
			e.report(ctx, runID, classify(err), err)
		}
		return Result{}, err
	}
	e.deps.Logger.Info("query complete", zap.Int("rows", len(rows)))

	data, err := flatfile.Encode(header, rows)
	if err != nil {
		err = fmt.Errorf("encode %s: %w", e.cfg.OutputPath, err)
		e.report(ctx, runID, report.KindData, err)
		return Result{}, err
	}
	uri, err := e.deps.Store.PutObject(ctx, e.cfg.OutputPath, pipeline.ContentTypeCSV, bytes.NewReader(data))
	if err != nil {
		err = fmt.Errorf("write %s: %w", e.cfg.OutputPath, err)
		e.report(ctx, runID, report.KindConnectivity, err)
		return Result{}, err
	}

	artifact := pipeline.Artifact{Name: e.cfg.OutputPath, URI: uri, Rows: len(rows)}
	if e.deps.Hasher != nil {
		artifact.SHA256 = e.deps.Hasher.Sum(data)
	}
	e.deps.Metrics.ObserveExport(len(rows))
	e.deps.Logger.Info("export written", zap.String("uri", uri), zap.Int("rows", len(rows)))
	return Result{Rows: len(rows), Artifact: artifact}, nil
}

func (e *Exporter) fetch(ctx context.Context) ([]string, [][]string, error) {
	rows, err := e.deps.DB.Query(ctx, Query)
	if err != nil {
		return nil, nil, fmt.Errorf("run export query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = f.Name
	}

	var out [][]string
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, nil, fmt.Errorf("scan export row %d: %w", len(out)+1, err)
		}
		record := make([]string, len(values))
		for i, v := range values {
			record[i] = format(v)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("read export rows: %w", err)
	}
	return header, out, nil
}

// format renders one column value. NULL becomes an empty field.
func format(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return leasecar.FormatFloat(x)
	case float32:
		return leasecar.FormatFloat(float64(x))
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int:
		return strconv.Itoa(x)
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

// classify maps a query failure onto the reporting taxonomy: errors the
// server raised are data errors, everything else means the database could
// not be reached.
func classify(err error) report.Kind {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return report.KindData
	}
	return report.KindConnectivity
}

func (e *Exporter) report(ctx context.Context, runID string, kind report.Kind, err error) {
	var ts time.Time
	if e.deps.Clock != nil {
		ts = e.deps.Clock.Now()
	}
	e.deps.Reporter.Report(ctx, report.Event{
		RunID:   runID,
		TS:      ts,
		Stage:   pipeline.StageExport,
		Kind:    kind,
		Subject: e.cfg.OutputPath,
		Err:     err,
	})
}
