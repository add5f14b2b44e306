package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const actionsBody = `{
  "total": 3,
  "categories": {
    "Logic": [
      {"id": "wait_timer", "name": "Wait Timer", "description": "Wait", "config_fields": [
        {"name": "duration", "type": "integer", "required": true},
        {"name": "unit", "type": "select", "required": false, "options": ["minutes", "hours", "days"], "default": "hours"}
      ]}
    ],
    "Email": [
      {"id": "send_initial_email", "name": "Send Initial Email", "category": "Email", "config_fields": [
        {"name": "recipient_email", "type": "email", "required": true}
      ]},
      {"name": "entry without id"}
    ]
  }
}`

func newCatalogServer(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts.URL
}

func TestClientLoad_Success(t *testing.T) {
	url := newCatalogServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/actions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(actionsBody))
	})

	c, err := NewClient(url).Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, c.Len(), "malformed entry is skipped")

	ids := []string{}
	for _, a := range c.Actions() {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"send_initial_email", "wait_timer"}, ids, "categories load in name order")

	wait, _ := c.Get("wait_timer")
	assert.Equal(t, "Logic", wait.Category, "category falls back to the map key")
	unit, ok := wait.Field("unit")
	require.True(t, ok)
	assert.Equal(t, "hours", unit.Default)
}

func TestClientLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		calls   int32
	}{
		{"empty catalog", http.StatusOK, `{"total":0,"categories":{}}`, ErrCatalogEmpty, 1},
		{"client error is not retried", http.StatusNotFound, ``, ErrCatalogUnavailable, 1},
		{"server error is retried", http.StatusBadGateway, ``, ErrCatalogUnavailable, 3},
		{"garbage body", http.StatusOK, `not json`, ErrCatalogUnavailable, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			url := newCatalogServer(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := NewClient(url, WithRetry(2, time.Millisecond)).Load(context.Background())
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.calls, calls.Load())
		})
	}
}

func TestClientLoad_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	url := newCatalogServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(actionsBody))
	})

	c, err := NewClient(url, WithRetry(3, time.Millisecond)).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientLoad_CachesAndServesStale(t *testing.T) {
	var calls atomic.Int32
	var failing atomic.Bool
	url := newCatalogServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(actionsBody))
	})

	clk := clock.NewMock()
	client := NewClient(url, WithClock(clk), WithTTL(time.Minute), WithRetry(0, time.Millisecond))
	ctx := context.Background()

	_, err := client.Load(ctx)
	require.NoError(t, err)
	_, err = client.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "second load within TTL is cached")

	failing.Store(true)
	clk.Add(2 * time.Minute)
	c, err := client.Load(ctx)
	require.NoError(t, err, "stale catalog is served when refresh fails")
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, int32(2), calls.Load())

	client.Invalidate()
	_, err = client.Load(ctx)
	require.ErrorIs(t, err, ErrCatalogUnavailable)
}
