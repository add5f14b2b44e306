package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	wfotel "github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/otel"
)

var tracer = wfotel.Tracer("github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/catalog")

// Timeouts and retry defaults for the catalog service.
const (
	TimeoutFetch        = 10 * time.Second
	DefaultTTL          = 5 * time.Minute
	DefaultMaxRetries   = 3
	DefaultRetryBackoff = 200 * time.Millisecond
)

// actionsResponse is the catalog service's GET /api/actions body.
type actionsResponse struct {
	Total      int                          `json:"total"`
	Categories map[string][]json.RawMessage `json:"categories"`
}

// Client loads the catalog from the catalog service and caches it for a TTL.
// When a refresh fails and a previous catalog is cached, the stale copy is
// served.
type Client struct {
	baseURL    string
	httpClient *http.Client
	ttl        time.Duration
	clock      clock.Clock
	maxRetries uint64
	backoff    time.Duration

	mu        sync.Mutex
	cached    *Catalog
	fetchedAt time.Time
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithTTL sets how long a fetched catalog is reused. Zero disables caching.
func WithTTL(ttl time.Duration) ClientOption {
	return func(c *Client) { c.ttl = ttl }
}

// WithClock sets the clock used for cache expiry.
func WithClock(clk clock.Clock) ClientOption {
	return func(c *Client) { c.clock = clk }
}

// WithRetry sets the retry count and constant backoff for transient failures.
func WithRetry(maxRetries uint64, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.backoff = backoff
	}
}

// NewClient creates a catalog client for the service at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: TimeoutFetch},
		ttl:        DefaultTTL,
		clock:      clock.New(),
		maxRetries: DefaultMaxRetries,
		backoff:    DefaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load returns the cached catalog or fetches a fresh one.
func (c *Client) Load(ctx context.Context) (*Catalog, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached != nil && c.ttl > 0 && c.clock.Since(c.fetchedAt) < c.ttl {
		return c.cached, nil
	}

	fresh, err := c.fetch(ctx)
	if err != nil {
		if c.cached != nil {
			log.Warn().Err(err).Str("catalog_url", c.baseURL).Msg("catalog_refresh_failed_serving_stale")
			return c.cached, nil
		}
		return nil, err
	}
	c.cached = fresh
	c.fetchedAt = c.clock.Now()
	return fresh, nil
}

// Invalidate drops the cached catalog so the next Load refetches.
func (c *Client) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = nil
}

func (c *Client) fetch(ctx context.Context) (*Catalog, error) {
	ctx, span := tracer.Start(ctx, "catalog.fetch")
	defer span.End()

	var body actionsResponse
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewConstant(c.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/actions", nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			_, _ = io.Copy(io.Discard, resp.Body)
			return retry.RetryableError(fmt.Errorf("catalog service returned %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("catalog service returned %d", resp.StatusCode)
		}
		body = actionsResponse{}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return fmt.Errorf("decoding catalog response: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	cat, skipped := decodeCategories(body.Categories)
	span.SetAttributes(
		attribute.Int("catalog.actions", cat.Len()),
		attribute.Int("catalog.skipped", skipped),
	)
	log.Debug().Int("actions", cat.Len()).Int("skipped", skipped).Msg("catalog_fetched")

	if cat.Len() == 0 {
		return nil, ErrCatalogEmpty
	}
	return cat, nil
}

// decodeCategories validates every entry, skipping malformed ones, and returns
// the catalog with categories in name order.
func decodeCategories(categories map[string][]json.RawMessage) (*Catalog, int) {
	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	sort.Strings(names)

	var actions []Action
	skipped := 0
	for _, name := range names {
		for i, raw := range categories[name] {
			a, err := decodeEntry(raw, name)
			if err != nil {
				skipped++
				log.Warn().Err(err).Str("category", name).Int("index", i).Msg("catalog_entry_skipped")
				continue
			}
			actions = append(actions, a)
		}
	}
	return New(actions), skipped
}
