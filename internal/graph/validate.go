package graph

import (
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/catalog"
)

// MissingParams lists the required parameters a node has no value for.
type MissingParams struct {
	NodeID     string   `json:"node_id"`
	ActivityID string   `json:"activity_id"`
	Params     []string `json:"params"`
}

// Validate reports, per node, the catalog's required parameters that are
// unset. Nodes whose activity is not in the catalog are skipped; the policy
// gate reports those.
func Validate(g *Graph, cat *catalog.Catalog) []MissingParams {
	var out []MissingParams
	for _, n := range g.Nodes {
		a, ok := cat.Get(n.ActivityID)
		if !ok {
			continue
		}
		var missing []string
		for _, p := range a.RequiredParams {
			if n.Params[p] == "" {
				if f, ok := a.Field(p); ok && f.Default != nil {
					continue
				}
				missing = append(missing, p)
			}
		}
		if len(missing) > 0 {
			out = append(out, MissingParams{NodeID: n.ID, ActivityID: n.ActivityID, Params: missing})
		}
	}
	return out
}

// Complete reports whether Validate finds nothing missing.
func Complete(g *Graph, cat *catalog.Catalog) bool {
	return len(Validate(g, cat)) == 0
}
