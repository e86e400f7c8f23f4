// Package collyfetcher implements the catalog API client using gocolly.
package collyfetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/leasecar-etl/internal/pipeline"
)

// Config controls the endpoints, static headers and collector limits.
type Config struct {
	SearchURL    string
	DetailURL    string
	ClientID     string
	APIKey       string
	UserAgent    string
	Origin       string
	Referer      string
	PageSize     int
	Timeout      time.Duration
	MaxBodyBytes int
}

// Client implements pipeline.CatalogAPI. Each call runs on a fresh
// collector sharing one pooled transport.
type Client struct {
	cfg       Config
	transport http.RoundTripper
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 1000
	}
	return &Client{cfg: cfg, transport: newHTTPTransport()}
}

// Search posts the catalog query and returns the raw listing.
func (c *Client) Search(ctx context.Context) (pipeline.APIResponse, error) {
	hdr := c.baseHeaders()
	hdr.Set("Accept", "*/*")
	hdr.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")
	if c.cfg.ClientID != "" {
		hdr.Set("x-anwb-client-id", c.cfg.ClientID)
	}
	form := SearchForm(c.cfg.PageSize)
	return c.do(ctx, http.MethodPost, c.cfg.SearchURL, form.Encode(), hdr)
}

// Detail fetches the full record of one identifier.
func (c *Client) Detail(ctx context.Context, id string) (pipeline.APIResponse, error) {
	hdr := c.baseHeaders()
	hdr.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		hdr.Set("apikey", c.cfg.APIKey)
	}
	return c.do(ctx, http.MethodGet, DetailURL(c.cfg.DetailURL, id), "", hdr)
}

// DetailURL joins the detail base and an escaped identifier.
func DetailURL(base, id string) string {
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(id)
}

// SearchForm is the fixed catalog query: every car, collapsed to the
// cheapest offer per product group.
func SearchForm(rows int) url.Values {
	facets, _ := json.Marshal(map[string]any{
		"facet": map[string]any{
			"manufacturer": map[string]any{
				"type": "terms", "field": "manufacturer", "limit": 100,
				"domain": map[string]any{"excludeTags": "manufacturer"},
				"sort":   map[string]any{"index": "asc"}, "mincount": 0,
			},
			"fuelType": map[string]any{
				"type": "terms", "field": "fuelType",
				"domain": map[string]any{"excludeTags": "fuelType"},
				"sort":   map[string]any{"index": "asc"}, "mincount": 0,
			},
		},
	})
	return url.Values{
		"q":           {"*:*"},
		"sort":        {"exists(offerText) desc, price asc"},
		"start":       {"0"},
		"rows":        {strconv.Itoa(rows)},
		"fq":          {"{!tag=beforeCollapseTag}{!collapse field=productGroup sort='price asc, duration desc'}"},
		"json":        {string(facets)},
		"facet":       {"true"},
		"facet.pivot": {"{!ex=beforeCollapseTag key=uniqueCarsPerProductGroup}productGroup,leasecarId"},
	}
}

func (c *Client) baseHeaders() http.Header {
	hdr := http.Header{}
	if c.cfg.Origin != "" {
		hdr.Set("Origin", c.cfg.Origin)
	}
	if c.cfg.Referer != "" {
		hdr.Set("Referer", c.cfg.Referer)
	}
	return hdr
}

func (c *Client) do(ctx context.Context, method, target, body string, hdr http.Header) (pipeline.APIResponse, error) {
	var (
		result   pipeline.APIResponse
		fetchErr error
	)
	start := time.Now()
	collector := c.buildCollector(ctx)
	configureCollectorHooks(collector, start, &result, &fetchErr)

	done := make(chan error, 1)
	go func() {
		var payload io.Reader
		if body != "" {
			payload = strings.NewReader(body)
		}
		done <- collector.Request(method, target, payload, nil, hdr)
	}()

	select {
	case <-ctx.Done():
		return pipeline.APIResponse{}, fmt.Errorf("colly %s canceled: %w", method, ctx.Err())
	case err := <-done:
		if fetchErr != nil {
			return pipeline.APIResponse{}, fmt.Errorf("colly response failed: %w", fetchErr)
		}
		if err != nil {
			return pipeline.APIResponse{}, fmt.Errorf("colly %s %s failed: %w", method, target, err)
		}
		if result.URL == "" {
			result.URL = target
		}
		return result, nil
	}
}

func (c *Client) buildCollector(ctx context.Context) *colly.Collector {
	opts := []colly.CollectorOption{
		colly.StdlibContext(ctx),
		colly.ParseHTTPErrorResponse(),
		colly.AllowURLRevisit(),
	}
	if c.cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(c.cfg.UserAgent))
	}
	if c.cfg.MaxBodyBytes > 0 {
		opts = append(opts, colly.MaxBodySize(c.cfg.MaxBodyBytes))
	}
	collector := colly.NewCollector(opts...)
	collector.WithTransport(c.transport)
	collector.SetRequestTimeout(c.cfg.Timeout)
	return collector
}

func configureCollectorHooks(
	hooks collectorHooks,
	start time.Time,
	result *pipeline.APIResponse,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		result.URL = r.URL.String()
	})

	hooks.OnResponse(func(r *colly.Response) {
		*result = pipeline.APIResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
}
