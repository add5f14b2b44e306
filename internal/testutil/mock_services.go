package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/catalog"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/graph"
)

// CatalogBody renders c in the catalog service's GET /api/actions format.
func CatalogBody(c *catalog.Catalog) map[string]interface{} {
	categories := map[string][]catalog.Action{}
	for name, actions := range c.ByCategory() {
		categories[name] = actions
	}
	return map[string]interface{}{
		"total":      c.Len(),
		"categories": categories,
	}
}

// NewCatalogServer serves the default catalog at /api/actions. The server is
// closed on test cleanup.
func NewCatalogServer(t *testing.T) *httptest.Server {
	t.Helper()
	body := CatalogBody(catalog.Default())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/actions" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// MockExecutor records submitted workflows.
type MockExecutor struct {
	Server *httptest.Server

	mu        sync.Mutex
	workflows []graph.ExecutorWorkflow
	headers   []http.Header
}

// NewMockExecutor starts an executor that accepts every submission at
// /api/workflows/execute and answers with a running status.
func NewMockExecutor(t *testing.T) *MockExecutor {
	t.Helper()
	m := &MockExecutor{}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/workflows/execute" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var wf graph.ExecutorWorkflow
		if err := json.NewDecoder(r.Body).Decode(&wf); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		m.mu.Lock()
		m.workflows = append(m.workflows, wf)
		m.headers = append(m.headers, r.Header.Clone())
		n := len(m.workflows)
		m.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"workflow_id": wf.ID,
			"run_id":      fmt.Sprintf("run-%d", n),
			"status":      "running",
		})
	}))
	t.Cleanup(m.Server.Close)
	return m
}

// Workflows returns the submitted workflows.
func (m *MockExecutor) Workflows() []graph.ExecutorWorkflow {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]graph.ExecutorWorkflow, len(m.workflows))
	copy(out, m.workflows)
	return out
}

// Headers returns the request headers of each submission.
func (m *MockExecutor) Headers() []http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]http.Header, len(m.headers))
	copy(out, m.headers)
	return out
}
