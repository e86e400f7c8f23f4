// Package load implements the second pipeline stage: copy the three flat
// files into dim_vehicles, fact_price and dim_color, in that order, keeping
// only price rows whose vehicle made it into dim_vehicles.
package load

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/JakeFAU/leasecar-etl/internal/flatfile"
	"github.com/JakeFAU/leasecar-etl/internal/metrics"
	"github.com/JakeFAU/leasecar-etl/internal/pipeline"
	"github.com/JakeFAU/leasecar-etl/internal/report"
)

// DB is the subset of pgxpool.Pool used by the loader and exporter.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ErrMissingColumn marks a flat file that lacks a declared column.
var ErrMissingColumn = errors.New("flat file is missing a column")

// Config controls batching, input paths and the color filter.
type Config struct {
	ChunkSize    int
	FilterColors bool
	SpecsPath    string
	PricePath    string
	ColorPath    string
}

// Deps are the collaborators of a Loader. Reporter, Clock, Metrics and
// Logger may be nil.
type Deps struct {
	DB       DB
	Store    pipeline.ArtifactStore
	Reporter report.Reporter
	Clock    pipeline.Clock
	Metrics  *metrics.Collectors
	Logger   *zap.Logger
}

// TableResult is the outcome of loading one table.
type TableResult struct {
	Table    string
	Inserted int
	Filtered int
	Err      error
}

// Result summarizes one load run.
type Result struct {
	Tables   []TableResult
	ValidIDs int
}

// Counts flattens the result for stage reports.
func (r Result) Counts() map[string]int {
	out := map[string]int{"valid_ids": r.ValidIDs}
	for _, t := range r.Tables {
		out[t.Table+"_inserted"] = t.Inserted
		if t.Filtered > 0 {
			out[t.Table+"_filtered"] = t.Filtered
		}
	}
	return out
}

// Failed reports whether any table ended with an error.
func (r Result) Failed() bool {
	for _, t := range r.Tables {
		if t.Err != nil {
			return true
		}
	}
	return false
}

// Loader runs the load stage.
type Loader struct {
	deps Deps
	cfg  Config
}

// New constructs a Loader.
func New(deps Deps, cfg Config) *Loader {
	if deps.Reporter == nil {
		deps.Reporter = report.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	return &Loader{deps: deps, cfg: cfg}
}

// Run loads dim_vehicles, reads back its identifiers, then loads
// fact_price filtered to those identifiers and finally dim_color. A table
// that fails is reported and the run moves on to the next one; only
// cancellation aborts the run.
func (l *Loader) Run(ctx context.Context, runID string) (Result, error) {
	var res Result

	res.Tables = append(res.Tables, l.LoadTable(ctx, runID, DimVehicles, l.cfg.SpecsPath, nil))
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("load canceled: %w", err)
	}

	valid, err := l.ExistingIDs(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, fmt.Errorf("load canceled: %w", ctxErr)
		}
		l.report(ctx, runID, report.KindData, DimVehicles.Name, err)
		valid = map[string]struct{}{}
	}
	res.ValidIDs = len(valid)
	l.deps.Logger.Info("valid identifiers", zap.Int("count", len(valid)))

	res.Tables = append(res.Tables, l.LoadTable(ctx, runID, FactPrice, l.cfg.PricePath, valid))
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("load canceled: %w", err)
	}

	var colorFilter map[string]struct{}
	if l.cfg.FilterColors {
		colorFilter = valid
	} else {
		l.deps.Logger.Warn("loading dim_color without the identifier filter; orphan colors are kept")
	}
	res.Tables = append(res.Tables, l.LoadTable(ctx, runID, DimColor, l.cfg.ColorPath, colorFilter))
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("load canceled: %w", err)
	}
	return res, nil
}

// ExistingIDs returns the identifiers currently stored in dim_vehicles.
func (l *Loader) ExistingIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := l.deps.DB.Query(ctx, DimVehicles.SelectKeysSQL())
	if err != nil {
		return nil, fmt.Errorf("query %s identifiers: %w", DimVehicles.Name, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan %s identifiers: %w", DimVehicles.Name, err)
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// LoadTable streams path into t in batches of the configured chunk size.
// When valid is non-nil, rows whose key is not in valid are dropped and
// counted as filtered. Each batch commits on its own; a failing batch is
// rolled back and ends the table.
func (l *Loader) LoadTable(ctx context.Context, runID string, t Table, path string, valid map[string]struct{}) TableResult {
	start := time.Now()
	res := TableResult{Table: t.Name}
	logger := l.deps.Logger.With(zap.String("table", t.Name), zap.String("path", path))
	fail := func(kind report.Kind, err error) TableResult {
		res.Err = err
		if ctx.Err() == nil {
			l.report(ctx, runID, kind, t.Name, err)
		}
		l.deps.Metrics.ObserveLoad(t.Name, "inserted", res.Inserted)
		l.deps.Metrics.ObserveLoad(t.Name, "filtered", res.Filtered)
		l.deps.Metrics.ObserveLoad(t.Name, "failed", 1)
		return res
	}

	rc, err := l.deps.Store.OpenObject(ctx, path)
	if err != nil {
		if errors.Is(err, pipeline.ErrArtifactNotFound) {
			return fail(report.KindMalformed, fmt.Errorf("open %s: %w", path, err))
		}
		return fail(report.KindConnectivity, fmt.Errorf("open %s: %w", path, err))
	}
	defer rc.Close()

	reader, err := flatfile.NewReader(rc)
	if err != nil {
		return fail(report.KindMalformed, fmt.Errorf("read %s: %w", path, err))
	}
	positions, keyPos, err := t.positions(reader.Header())
	if err != nil {
		return fail(report.KindMalformed, fmt.Errorf("%s: %w", path, err))
	}

	for {
		batch, err := reader.Next(l.cfg.ChunkSize)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fail(report.KindMalformed, fmt.Errorf("read %s: %w", path, err))
		}

		args := make([]any, 0, len(batch)*len(t.Columns))
		kept := 0
		for _, row := range batch {
			if valid != nil {
				if _, ok := valid[row[keyPos]]; !ok {
					res.Filtered++
					continue
				}
			}
			for i, c := range t.Columns {
				v, err := convert(c, row[positions[i]])
				if err != nil {
					return fail(report.KindData, err)
				}
				args = append(args, v)
			}
			kept++
		}
		if kept == 0 {
			continue
		}
		if err := l.insertBatch(ctx, t, kept, args); err != nil {
			return fail(report.KindData, err)
		}
		res.Inserted += kept
		logger.Debug("batch committed", zap.Int("rows", kept))
	}

	l.deps.Metrics.ObserveLoad(t.Name, "inserted", res.Inserted)
	l.deps.Metrics.ObserveLoad(t.Name, "filtered", res.Filtered)
	logger.Info("table loaded",
		zap.Int("inserted", res.Inserted),
		zap.Int("filtered", res.Filtered),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res
}

func (l *Loader) insertBatch(ctx context.Context, t Table, rows int, args []any) error {
	tx, err := l.deps.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin %s batch: %w", t.Name, err)
	}
	if _, err := tx.Exec(ctx, t.InsertSQL(rows), args...); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			l.deps.Logger.Warn("rollback failed", zap.String("table", t.Name), zap.Error(rbErr))
		}
		return fmt.Errorf("insert %s batch: %w", t.Name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit %s batch: %w", t.Name, err)
	}
	return nil
}

// positions maps each declared column to its index in header, after
// renaming. keyPos is the index of the key column.
func (t Table) positions(header []string) ([]int, int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		if renamed, ok := t.Rename[name]; ok {
			name = renamed
		}
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	positions := make([]int, len(t.Columns))
	for i, c := range t.Columns {
		pos, ok := index[c.Name]
		if !ok {
			return nil, 0, fmt.Errorf("%w: %s", ErrMissingColumn, c.Name)
		}
		positions[i] = pos
	}
	keyPos := -1
	if t.Key != "" {
		keyPos = index[t.Key]
	}
	return positions, keyPos, nil
}

// EnsureSchema creates the three tables and their key indexes if they do
// not exist yet.
func EnsureSchema(ctx context.Context, db DB) error {
	for _, t := range Tables() {
		for _, stmt := range t.CreateTableSQL() {
			if _, err := db.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("create %s: %w", t.Name, err)
			}
		}
	}
	return nil
}

func (l *Loader) report(ctx context.Context, runID string, kind report.Kind, subject string, err error) {
	var ts time.Time
	if l.deps.Clock != nil {
		ts = l.deps.Clock.Now()
	}
	l.deps.Reporter.Report(ctx, report.Event{
		RunID:   runID,
		TS:      ts,
		Stage:   pipeline.StageLoad,
		Kind:    kind,
		Subject: subject,
		Err:     err,
	})
}
