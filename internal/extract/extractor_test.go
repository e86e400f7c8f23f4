package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/leasecar-etl/internal/flatfile"
	"github.com/JakeFAU/leasecar-etl/internal/hash/sha256"
	"github.com/JakeFAU/leasecar-etl/internal/metrics"
	"github.com/JakeFAU/leasecar-etl/internal/pipeline"
	"github.com/JakeFAU/leasecar-etl/internal/report"
	"github.com/JakeFAU/leasecar-etl/internal/storage/memory"
)

const (
	specsPath = "scraped_data/data_specs.csv"
	pricePath = "scraped_data/data_price.csv"
	colorPath = "scraped_data/data_color.csv"
)

type fakeAPI struct {
	search    pipeline.APIResponse
	searchErr error
	details   map[string]pipeline.APIResponse
	detailErr map[string]error
	requested []string
	onDetail  func(id string)
}

func (f *fakeAPI) Search(context.Context) (pipeline.APIResponse, error) {
	return f.search, f.searchErr
}

func (f *fakeAPI) Detail(_ context.Context, id string) (pipeline.APIResponse, error) {
	f.requested = append(f.requested, id)
	if f.onDetail != nil {
		f.onDetail(id)
	}
	if err := f.detailErr[id]; err != nil {
		return pipeline.APIResponse{}, err
	}
	resp, ok := f.details[id]
	if !ok {
		return pipeline.APIResponse{StatusCode: http.StatusNotFound}, nil
	}
	return resp, nil
}

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) Search(ctx context.Context) (pipeline.APIResponse, error) {
	args := m.Called(ctx)
	return args.Get(0).(pipeline.APIResponse), args.Error(1)
}

func (m *mockAPI) Detail(ctx context.Context, id string) (pipeline.APIResponse, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(pipeline.APIResponse), args.Error(1)
}

type countingPacer struct {
	waits int
	err   error
}

func (p *countingPacer) Wait(context.Context) (time.Duration, error) {
	p.waits++
	return 5 * time.Second, p.err
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func (fixedClock) Sleep(context.Context, time.Duration) error { return nil }

type failingStore struct{ pipeline.ArtifactStore }

func (failingStore) PutObject(context.Context, string, string, io.Reader) (string, error) {
	return "", errors.New("disk full")
}

func ok(body string) pipeline.APIResponse {
	return pipeline.APIResponse{StatusCode: http.StatusOK, Body: []byte(body)}
}

func searchBody(ids ...string) pipeline.APIResponse {
	items := make([]string, 0, len(ids))
	for _, id := range ids {
		items = append(items, fmt.Sprintf(`{"leasecarId":%q}`, id))
	}
	return ok(`{"items":[` + strings.Join(items, ",") + `]}`)
}

func detailBody(id, brand, model string, prices, colors int) string {
	var pp, cc []string
	for i := 0; i < prices; i++ {
		pp = append(pp, fmt.Sprintf(`{"duration":%d,"mileage":10000,"pricePerMonth":%d.5}`, 24+12*i, 300+i))
	}
	for i := 0; i < colors; i++ {
		cc = append(cc, fmt.Sprintf(`{"name":"Color %d","orderCode":"C%d","price":%d,"primaryRgbCode":"#00000%d"}`, i, i, 100*i, i))
	}
	return fmt.Sprintf(`{"id":%q,"vehicleData":{"make":%q,"model":%q,"year":2024,"retailPrice":35000},`+
		`"privateLeaseData":{"pricePoints":[%s],"colors":[%s]}}`,
		id, brand, model, strings.Join(pp, ","), strings.Join(cc, ","))
}

type harness struct {
	api      *fakeAPI
	pacer    *countingPacer
	store    *memory.BlobStore
	recorder *report.Recorder
	registry *prometheus.Registry
	preview  *bytes.Buffer
}

func newHarness(api *fakeAPI) (*harness, *Extractor) {
	h := &harness{
		api:      api,
		pacer:    &countingPacer{},
		store:    memory.NewBlobStore(),
		recorder: report.NewRecorder(),
		registry: prometheus.NewRegistry(),
		preview:  &bytes.Buffer{},
	}
	ex := New(Deps{
		API:      api,
		Pacer:    h.pacer,
		Store:    h.store,
		Hasher:   sha256.New(),
		Clock:    fixedClock{now: time.Date(2025, 11, 20, 9, 0, 0, 0, time.UTC)},
		Reporter: h.recorder,
		Metrics:  metrics.New(h.registry),
		Preview:  h.preview,
	}, Config{SpecsPath: specsPath, PricePath: pricePath, ColorPath: colorPath, PreviewRows: 5})
	return h, ex
}

func readRows(t *testing.T, store *memory.BlobStore, path string) ([]string, [][]string) {
	t.Helper()
	data, found := store.Get(path)
	require.True(t, found, "artifact %s not written", path)
	r, err := flatfile.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	var rows [][]string
	for {
		batch, err := r.Next(100)
		rows = append(rows, batch...)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
	}
	return r.Header(), rows
}

func TestRunWritesAllThreeFiles(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		search: searchBody("A", "B"),
		details: map[string]pipeline.APIResponse{
			"A": ok(detailBody("A", "Kia", "EV3", 2, 1)),
			"B": ok(detailBody("B", "Fiat", "500e", 1, 2)),
		},
	}
	h, ex := newHarness(api)

	res, err := ex.Run(context.Background(), "run-1")
	require.NoError(t, err)
	require.Equal(t, 2, res.Listed)
	require.Equal(t, 2, res.Extracted)
	require.Empty(t, res.Skipped)
	require.Equal(t, 2, res.Specs)
	require.Equal(t, 3, res.Prices)
	require.Equal(t, 3, res.Colors)
	require.Equal(t, 2, h.pacer.waits, "one pause per detail request")
	require.Equal(t, []string{"A", "B"}, api.requested)

	header, specs := readRows(t, h.store, specsPath)
	require.Equal(t, "id", header[0])
	require.Len(t, specs, 2)
	require.Equal(t, []string{"A", "Kia", "EV3"}, specs[0][:3])

	_, prices := readRows(t, h.store, pricePath)
	require.Equal(t, []string{"A", "Kia", "EV3", "24", "10000", "300.5"}, prices[0])
	_, colors := readRows(t, h.store, colorPath)
	require.Len(t, colors, 3)

	require.Len(t, res.Artifacts, 3)
	for _, a := range res.Artifacts {
		require.Len(t, a.SHA256, 64)
		require.Equal(t, "memory://"+a.Name, a.URI)
	}
	require.Contains(t, h.preview.String(), "Kia")
	require.Zero(t, len(h.recorder.Events()))

	expected := `
# HELP leasecar_extract_records_total Records decomposed from detail responses, labeled by record kind.
# TYPE leasecar_extract_records_total counter
leasecar_extract_records_total{kind="color"} 3
leasecar_extract_records_total{kind="price"} 3
leasecar_extract_records_total{kind="spec"} 2
`
	require.NoError(t, testutil.GatherAndCompare(h.registry, strings.NewReader(expected), "leasecar_extract_records_total"))
}

func TestRunSkipsFailedDetails(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		search: searchBody("A", "B", "C", "D"),
		details: map[string]pipeline.APIResponse{
			"A": ok(detailBody("A", "Kia", "EV3", 1, 1)),
			"B": {StatusCode: http.StatusInternalServerError, Body: []byte(`oops`)},
			"C": ok(`{"id": "C", "vehicleData": `),
		},
		detailErr: map[string]error{"D": errors.New("connection reset")},
	}
	h, ex := newHarness(api)

	res, err := ex.Run(context.Background(), "run-2")
	require.NoError(t, err)
	require.Equal(t, 1, res.Extracted)
	require.Equal(t, []string{"B", "C", "D"}, res.Skipped)

	for _, path := range []string{specsPath, pricePath, colorPath} {
		_, rows := readRows(t, h.store, path)
		for _, row := range rows {
			require.Equal(t, "A", row[0], "only A may appear in %s", path)
		}
	}

	require.Equal(t, []string{"B", "C"}, h.recorder.Subjects(report.KindMalformed))
	require.Equal(t, []string{"D"}, h.recorder.Subjects(report.KindConnectivity))
	for _, evt := range h.recorder.Events() {
		require.NoError(t, evt.Validate())
		require.Equal(t, "run-2", evt.RunID)
	}
	var statusErr bool
	for _, evt := range h.recorder.Events() {
		if evt.Subject == "B" {
			statusErr = errors.Is(evt.Err, ErrStatus)
		}
	}
	require.True(t, statusErr, "non-200 detail should carry ErrStatus")
}

func TestRunWritesZeroDefaultsForMissingNumerics(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		search:  searchBody("Z"),
		details: map[string]pipeline.APIResponse{"Z": ok(`{"id":"Z","vehicleData":{"make":"Dacia","model":"Spring"}}`)},
	}
	h, ex := newHarness(api)
	_, err := ex.Run(context.Background(), "run-3")
	require.NoError(t, err)

	header, rows := readRows(t, h.store, specsPath)
	require.Len(t, rows, 1)
	byName := map[string]string{}
	for i, name := range header {
		byName[name] = rows[0][i]
	}
	require.Equal(t, "0", byName["year"])
	require.Equal(t, "0.0", byName["retailPrice"])
	require.Equal(t, "0.0", byName["batteryCapacity"])
	require.Equal(t, "0", byName["seats"])
	require.Equal(t, "", byName["standardFeatures_list"])

	_, prices := readRows(t, h.store, pricePath)
	require.Empty(t, prices)
}

func TestRunSearchFailureStillWritesHeaders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		api  *fakeAPI
		kind report.Kind
	}{
		{"transport", &fakeAPI{searchErr: errors.New("dial tcp: refused")}, report.KindConnectivity},
		{"status", &fakeAPI{search: pipeline.APIResponse{StatusCode: http.StatusForbidden}}, report.KindMalformed},
		{"body", &fakeAPI{search: ok(`<html>`)}, report.KindMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h, ex := newHarness(tt.api)
			res, err := ex.Run(context.Background(), "run-4")
			require.NoError(t, err)
			require.Zero(t, res.Listed)
			require.Equal(t, []string{"search"}, h.recorder.Subjects(tt.kind))
			require.Zero(t, h.pacer.waits)

			header, rows := readRows(t, h.store, specsPath)
			require.Equal(t, "id", header[0])
			require.Empty(t, rows)
		})
	}
}

func TestRunCanceledDuringPauseWritesNothing(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		search:  searchBody("A"),
		details: map[string]pipeline.APIResponse{"A": ok(detailBody("A", "Kia", "EV3", 1, 1))},
	}
	h, ex := newHarness(api)
	h.pacer.err = context.Canceled

	_, err := ex.Run(context.Background(), "run-5")
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, api.requested)
	require.Empty(t, h.store.Paths())
}

func TestRunCanceledMidDetailDoesNotReport(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := &fakeAPI{
		search:    searchBody("A", "B"),
		detailErr: map[string]error{"A": context.Canceled},
		onDetail:  func(string) { cancel() },
	}
	h, ex := newHarness(api)

	_, err := ex.Run(ctx, "run-6")
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, h.recorder.Events())
	require.Equal(t, []string{"A"}, api.requested)
}

func TestRunStoreFailure(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{search: searchBody()}
	ex := New(Deps{API: api, Pacer: &countingPacer{}, Store: failingStore{}}, Config{SpecsPath: specsPath})
	_, err := ex.Run(context.Background(), "run-7")
	require.ErrorContains(t, err, "disk full")
}

func TestRunFetchesDuplicateIdentifiersOnce(t *testing.T) {
	t.Parallel()

	api := &mockAPI{}
	api.On("Search", mock.Anything).Return(searchBody("A", "B", "A"), nil).Once()
	api.On("Detail", mock.Anything, "A").Return(ok(detailBody("A", "Kia", "Niro", 1, 0)), nil).Once()
	api.On("Detail", mock.Anything, "B").Return(ok(detailBody("B", "BMW", "i4", 1, 0)), nil).Once()

	pacer := &countingPacer{}
	store := memory.NewBlobStore()
	ex := New(Deps{API: api, Pacer: pacer, Store: store}, Config{SpecsPath: specsPath, PricePath: pricePath, ColorPath: colorPath})
	res, err := ex.Run(context.Background(), "run-dup")
	require.NoError(t, err)

	api.AssertExpectations(t)
	require.Equal(t, 2, res.Listed)
	require.Equal(t, 2, res.Extracted)
	require.Equal(t, 2, pacer.waits)
	_, rows := readRows(t, store, specsPath)
	require.Len(t, rows, 2)
}

func TestResultCounts(t *testing.T) {
	t.Parallel()

	res := Result{Listed: 3, Extracted: 2, Skipped: []string{"x"}, Specs: 2, Prices: 5, Colors: 4}
	require.Equal(t, map[string]int{
		"listed": 3, "extracted": 2, "skipped": 1, "specs": 2, "prices": 5, "colors": 4,
	}, res.Counts())
}
