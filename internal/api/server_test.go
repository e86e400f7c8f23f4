package api

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/leasecar-etl/internal/metrics"
	"github.com/JakeFAU/leasecar-etl/internal/pipeline"
)

type staticReports []pipeline.StageReport

func (s staticReports) Reports() []pipeline.StageReport { return s }

func TestServerHealthEndpoints(t *testing.T) {
	t.Parallel()

	server := NewServer(nil, nil, zap.NewNop())
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
		require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	}
}

func TestServerMetricsCountsRequests(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.ObserveExport(7)
	server := NewServer(m, nil, nil)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "leasecar_export_rows_total 7")

	expected := `
# HELP leasecar_http_requests_total Requests served by the metrics endpoint, labeled by method, route and code.
# TYPE leasecar_http_requests_total counter
leasecar_http_requests_total{code="200",method="GET",route="/healthz"} 1
leasecar_http_requests_total{code="200",method="GET",route="/metrics"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "leasecar_http_requests_total"))
}

func TestServerListsReports(t *testing.T) {
	t.Parallel()

	src := staticReports{{RunID: "run-1", Stage: pipeline.StageLoad, Succeeded: true, Counts: map[string]int{"valid_ids": 2}}}
	server := NewServer(nil, src, nil)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/reports", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Reports []pipeline.StageReport `json:"reports"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Reports, 1)
	require.Equal(t, "run-1", body.Reports[0].RunID)
	require.Equal(t, 2, body.Reports[0].Counts["valid_ids"])
}

func TestServerListsNoReportsWithoutSource(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	NewServer(nil, nil, nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/reports", nil))
	require.JSONEq(t, `{"reports": []}`, rec.Body.String())
}

func TestServerRecoversFromPanic(t *testing.T) {
	t.Parallel()

	server := NewServer(nil, nil, nil)
	server.router.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServer(nil, nil, nil).serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url) //nolint:noctx
		if err != nil {
			return false
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServeRejectsBadAddress(t *testing.T) {
	t.Parallel()

	err := NewServer(nil, nil, nil).Serve(context.Background(), "not-an-address")
	require.Error(t, err)
}
