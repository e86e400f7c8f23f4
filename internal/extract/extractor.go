// Package extract implements the first pipeline stage: list the catalog,
// fetch each vehicle's detail at a human pace, and write the specification,
// price and color flat files.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/leasecar-etl/internal/flatfile"
	"github.com/JakeFAU/leasecar-etl/internal/leasecar"
	"github.com/JakeFAU/leasecar-etl/internal/metrics"
	"github.com/JakeFAU/leasecar-etl/internal/pipeline"
	"github.com/JakeFAU/leasecar-etl/internal/report"
)

// ErrStatus marks a catalog response with a status other than 200.
var ErrStatus = errors.New("unexpected response status")

// Pacer blocks before each detail request.
type Pacer interface {
	Wait(ctx context.Context) (time.Duration, error)
}

// Config names the output artifacts.
type Config struct {
	SpecsPath   string
	PricePath   string
	ColorPath   string
	PreviewRows int
}

// Deps are the collaborators of an Extractor. Reporter, Metrics, Logger
// and Preview may be nil.
type Deps struct {
	API      pipeline.CatalogAPI
	Pacer    Pacer
	Store    pipeline.ArtifactStore
	Hasher   pipeline.Hasher
	Clock    pipeline.Clock
	Reporter report.Reporter
	Metrics  *metrics.Collectors
	Logger   *zap.Logger
	Preview  io.Writer
}

// Result summarizes one extraction run.
type Result struct {
	Listed    int
	Extracted int
	Skipped   []string
	Specs     int
	Prices    int
	Colors    int
	Artifacts []pipeline.Artifact
}

// Counts flattens the result for stage reports.
func (r Result) Counts() map[string]int {
	return map[string]int{
		"listed":    r.Listed,
		"extracted": r.Extracted,
		"skipped":   len(r.Skipped),
		"specs":     r.Specs,
		"prices":    r.Prices,
		"colors":    r.Colors,
	}
}

// Extractor runs the extract stage.
type Extractor struct {
	deps Deps
	cfg  Config
}

// New constructs an Extractor.
func New(deps Deps, cfg Config) *Extractor {
	if deps.Reporter == nil {
		deps.Reporter = report.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Extractor{deps: deps, cfg: cfg}
}

// Run performs one extraction. Per-identifier failures are reported and
// skipped; the returned error is reserved for cancellation and for
// failures to write the artifacts. Nothing is written when the run is
// canceled.
func (e *Extractor) Run(ctx context.Context, runID string) (Result, error) {
	var res Result
	ids := e.listIdentifiers(ctx, runID)
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("extract canceled: %w", err)
	}
	res.Listed = len(ids)
	e.deps.Logger.Info("catalog listed", zap.Int("identifiers", len(ids)))

	var (
		specs  [][]string
		prices [][]string
		colors [][]string
		listed []leasecar.VehicleSpec
	)
	for _, id := range ids {
		delay, err := e.deps.Pacer.Wait(ctx)
		if err != nil {
			return res, fmt.Errorf("extract canceled before %s: %w", id, err)
		}
		e.deps.Metrics.ObserveDelay(delay)
		e.deps.Logger.Debug("paused before detail", zap.String("leasecar_id", id), zap.Duration("delay", delay))

		recs, ok := e.fetchDetail(ctx, runID, id)
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("extract canceled during %s: %w", id, err)
		}
		if !ok {
			res.Skipped = append(res.Skipped, id)
			continue
		}
		res.Extracted++
		listed = append(listed, recs.Spec)
		specs = append(specs, recs.Spec.Row())
		for _, p := range recs.Prices {
			prices = append(prices, p.Row())
		}
		for _, c := range recs.Colors {
			colors = append(colors, c.Row())
		}
		e.deps.Metrics.ObserveRecords("spec", 1)
		e.deps.Metrics.ObserveRecords("price", len(recs.Prices))
		e.deps.Metrics.ObserveRecords("color", len(recs.Colors))
		e.deps.Logger.Info("extracted detail",
			zap.String("leasecar_id", id),
			zap.Int("prices", len(recs.Prices)),
			zap.Int("colors", len(recs.Colors)),
		)
	}
	res.Specs, res.Prices, res.Colors = len(specs), len(prices), len(colors)

	outputs := []struct {
		path   string
		header []string
		rows   [][]string
	}{
		{e.cfg.SpecsPath, leasecar.SpecHeader, specs},
		{e.cfg.PricePath, leasecar.PriceHeader, prices},
		{e.cfg.ColorPath, leasecar.ColorHeader, colors},
	}
	for _, out := range outputs {
		artifact, err := e.writeArtifact(ctx, out.path, out.header, out.rows)
		if err != nil {
			return res, err
		}
		res.Artifacts = append(res.Artifacts, artifact)
		e.deps.Logger.Info("wrote artifact", zap.String("uri", artifact.URI), zap.Int("rows", artifact.Rows))
	}

	if e.deps.Preview != nil {
		if err := WritePreview(e.deps.Preview, listed, e.cfg.PreviewRows); err != nil {
			e.deps.Logger.Warn("preview render failed", zap.Error(err))
		}
	}
	return res, nil
}

func (e *Extractor) listIdentifiers(ctx context.Context, runID string) []string {
	resp, err := e.deps.API.Search(ctx)
	if err != nil {
		if ctx.Err() == nil {
			e.report(ctx, runID, report.KindConnectivity, "search", err)
		}
		return nil
	}
	e.deps.Metrics.ObserveAPICall("search", resp.StatusCode, resp.Duration)
	if resp.StatusCode != http.StatusOK {
		e.report(ctx, runID, report.KindMalformed, "search", fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode))
		return nil
	}
	ids, err := leasecar.ParseSearch(resp.Body)
	if err != nil {
		e.report(ctx, runID, report.KindMalformed, "search", err)
		return nil
	}
	return ids
}

func (e *Extractor) fetchDetail(ctx context.Context, runID, id string) (leasecar.Records, bool) {
	resp, err := e.deps.API.Detail(ctx, id)
	if err != nil {
		if ctx.Err() == nil {
			e.deps.Metrics.ObserveSkip(string(report.KindConnectivity))
			e.report(ctx, runID, report.KindConnectivity, id, err)
		}
		return leasecar.Records{}, false
	}
	e.deps.Metrics.ObserveAPICall("detail", resp.StatusCode, resp.Duration)
	if resp.StatusCode != http.StatusOK {
		e.deps.Metrics.ObserveSkip(string(report.KindMalformed))
		e.report(ctx, runID, report.KindMalformed, id, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode))
		return leasecar.Records{}, false
	}
	recs, err := leasecar.Decompose(id, resp.Body)
	if err != nil {
		e.deps.Metrics.ObserveSkip(string(report.KindMalformed))
		e.report(ctx, runID, report.KindMalformed, id, err)
		return leasecar.Records{}, false
	}
	return recs, true
}

func (e *Extractor) writeArtifact(ctx context.Context, path string, header []string, rows [][]string) (pipeline.Artifact, error) {
	data, err := flatfile.Encode(header, rows)
	if err != nil {
		return pipeline.Artifact{}, fmt.Errorf("encode %s: %w", path, err)
	}
	uri, err := e.deps.Store.PutObject(ctx, path, pipeline.ContentTypeCSV, bytes.NewReader(data))
	if err != nil {
		return pipeline.Artifact{}, fmt.Errorf("write %s: %w", path, err)
	}
	artifact := pipeline.Artifact{Name: path, URI: uri, Rows: len(rows)}
	if e.deps.Hasher != nil {
		artifact.SHA256 = e.deps.Hasher.Sum(data)
	}
	return artifact, nil
}

func (e *Extractor) report(ctx context.Context, runID string, kind report.Kind, subject string, err error) {
	var ts time.Time
	if e.deps.Clock != nil {
		ts = e.deps.Clock.Now()
	}
	e.deps.Reporter.Report(ctx, report.Event{
		RunID:   runID,
		TS:      ts,
		Stage:   pipeline.StageExtract,
		Kind:    kind,
		Subject: subject,
		Err:     err,
	})
}
