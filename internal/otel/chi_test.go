package otel

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func TestMiddlewareWithStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"ok", http.StatusOK},
		{"client error", http.StatusBadRequest},
		{"server error", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := MiddlewareWithStatus()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestMiddlewareWithStatus_ChiRouteContext(t *testing.T) {
	r := chi.NewRouter()
	r.Use(MiddlewareWithStatus())
	r.Get("/api/workflow-agent/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc", chi.URLParam(r, "id"))
		w.WriteHeader(http.StatusOK)
	})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/workflow-agent/sessions/abc", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
