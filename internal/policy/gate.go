// Package policy evaluates compiled workflows against an embedded OPA gate
// before they are stored for review.
package policy

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/open-policy-agent/opa/rego"
	"github.com/open-policy-agent/opa/storage/inmem"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/catalog"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/graph"
	wfotel "github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/otel"
)

var tracer = wfotel.Tracer("github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/policy")

//go:embed rego/workflow_gate.rego
var gatePolicies embed.FS

const (
	gateFile  = "rego/workflow_gate.rego"
	gateQuery = "data.wfbuilder.gate.deny"
)

// DefaultMaxNodes bounds workflow size when no limit is configured.
const DefaultMaxNodes = 50

// Limits are the operator-set gate parameters, loaded as OPA data.
type Limits struct {
	MaxNodes              int  `json:"max_nodes"`
	RequireCompleteParams bool `json:"require_complete_params"`
}

// Decision is the gate's verdict.
type Decision struct {
	Allowed bool     `json:"allowed"`
	Action  string   `json:"action"` // "allow" or "deny"
	Reasons []string `json:"reasons,omitempty"`
}

// Gate evaluates compiled workflows.
type Gate struct {
	limits   Limits
	prepared rego.PreparedEvalQuery
}

// NewGate prepares the embedded gate policy with limits as data.
func NewGate(ctx context.Context, limits Limits) (*Gate, error) {
	ctx, span := tracer.Start(ctx, "policy.gate.new")
	defer span.End()

	content, err := gatePolicies.ReadFile(gateFile)
	if err != nil {
		return nil, fmt.Errorf("reading embedded policy %s: %w", gateFile, err)
	}
	data, err := toData(map[string]interface{}{"limits": limits})
	if err != nil {
		return nil, fmt.Errorf("converting limits to OPA data: %w", err)
	}

	r := rego.New(
		rego.Query(gateQuery),
		rego.Module(gateFile, string(content)),
		rego.Store(inmem.NewFromObject(data)),
	)
	pq, err := r.PrepareForEval(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("preparing Rego policy %s: %w", gateFile, err)
	}
	return &Gate{limits: limits, prepared: pq}, nil
}

// Limits returns the configured limits.
func (g *Gate) Limits() Limits {
	return g.limits
}

// Evaluate checks a workflow against the gate. cat supplies the known
// activities; missing is the completeness report for the same workflow.
func (g *Gate) Evaluate(ctx context.Context, wf graph.ExecutorWorkflow, cat *catalog.Catalog, missing []graph.MissingParams) (*Decision, error) {
	ctx, span := tracer.Start(ctx, "policy.evaluate",
		trace.WithAttributes(
			wfotel.WorkflowID.String(wf.ID),
			attribute.Int("workflow.nodes", len(wf.Nodes)),
		))
	defer span.End()

	known := make([]string, 0, cat.Len())
	for _, a := range cat.Actions() {
		known = append(known, a.ID)
	}
	if missing == nil {
		missing = []graph.MissingParams{}
	}
	input, err := toData(map[string]interface{}{
		"workflow":         wf,
		"known_activities": known,
		"missing_params":   missing,
	})
	if err != nil {
		return nil, fmt.Errorf("converting workflow to OPA input: %w", err)
	}

	results, err := g.prepared.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("evaluating %s: %w", gateFile, err)
	}

	decision := &Decision{Allowed: true, Action: "allow"}
	decision.Reasons = denyReasons(results)
	if len(decision.Reasons) > 0 {
		decision.Allowed = false
		decision.Action = "deny"
		log.Warn().Str("workflow_id", wf.ID).Strs("reasons", decision.Reasons).Msg("workflow_gate_denied")
	}

	span.SetAttributes(
		attribute.Bool("policy.allowed", decision.Allowed),
		attribute.Int("policy.deny_reasons", len(decision.Reasons)),
	)
	if decision.Allowed {
		span.SetStatus(codes.Ok, "policy evaluation passed")
	}
	return decision, nil
}

// denyReasons extracts the deny set. OPA returns it as []interface{} or,
// occasionally, map[string]interface{}.
func denyReasons(results rego.ResultSet) []string {
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return nil
	}
	var reasons []string
	switch v := results[0].Expressions[0].Value.(type) {
	case []interface{}:
		for _, msg := range v {
			if s, ok := msg.(string); ok {
				reasons = append(reasons, s)
			}
		}
	case map[string]interface{}:
		for _, msg := range v {
			if s, ok := msg.(string); ok {
				reasons = append(reasons, s)
			}
		}
	}
	sort.Strings(reasons)
	return reasons
}

func toData(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
