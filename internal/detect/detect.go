// Package detect infers which catalog actions a conversation describes.
//
// Detection runs an ordered rule list over the conversation. The first rule
// that produces candidates wins and later rules are not evaluated. Candidates
// are merged into the session's existing actions append-only: ids already
// present keep their position and new ids are appended in rule order.
package detect

import (
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/catalog"
)

// Input is what a detection pass sees.
type Input struct {
	// Transcript is every turn's content joined with spaces, any case.
	Transcript string
	// LatestReply is the assistant's most recent reply.
	LatestReply string
	Catalog     *catalog.Catalog
	// Existing are the session's already detected actions.
	Existing []string
}

// Result is the outcome of a detection pass.
type Result struct {
	// Actions is Existing merged with the winning rule's candidates. It is
	// always a superset of Existing.
	Actions []string
	// Rule names the winning rule, empty when nothing matched.
	Rule string
	// Matched are the winning rule's candidates before merging.
	Matched []string
}

// Added returns how many actions the pass appended.
func (r Result) Added(existing []string) int {
	return len(r.Actions) - len(existing)
}

// Detector runs an ordered rule list.
type Detector struct {
	rules []Rule
}

// New creates a Detector. With no rules it uses DefaultRules.
func New(rules ...Rule) *Detector {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Detector{rules: rules}
}

// Rules returns the rule list in priority order.
func (d *Detector) Rules() []Rule {
	out := make([]Rule, len(d.rules))
	copy(out, d.rules)
	return out
}

// Detect evaluates the rules in order and merges the first match. An
// archetype's sequence leads the result and ids detected earlier that are
// not part of it follow; fallback candidates are appended after Existing.
func (d *Detector) Detect(in Input) Result {
	for _, r := range d.rules {
		candidates, ok := r.apply(in)
		if !ok {
			continue
		}
		actions := Merge(in.Existing, candidates)
		if _, archetype := r.(ArchetypeRule); archetype {
			actions = Merge(candidates, in.Existing)
		}
		return Result{
			Actions: actions,
			Rule:    r.RuleName(),
			Matched: candidates,
		}
	}
	return Result{Actions: Merge(in.Existing, nil)}
}

// Merge appends the ids of add that are not in existing, preserving order
// and dropping duplicates. existing is never modified.
func Merge(existing, add []string) []string {
	out := make([]string, 0, len(existing)+len(add))
	seen := make(map[string]bool, len(existing)+len(add))
	for _, id := range existing {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	for _, id := range add {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
