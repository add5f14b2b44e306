// Package catalog models the external action catalog: the set of step types a
// workflow may contain, their parameters, and whether they fan out into
// labeled branches. Catalogs come from the catalog service over HTTP or from
// the embedded default definitions.
package catalog

import (
	"context"
	"errors"
	"sort"
)

var (
	// ErrCatalogUnavailable is returned when the catalog service cannot be reached.
	ErrCatalogUnavailable = errors.New("action catalog unavailable")
	// ErrCatalogEmpty is returned when a catalog loads but holds no valid actions.
	ErrCatalogEmpty = errors.New("action catalog is empty")
)

// branchingKinds are the action kinds that always fan out, whether or not the
// catalog entry lists its branches.
var branchingKinds = map[string]bool{
	"parse_email_response": true,
	"conditional_router":   true,
}

// Source loads a catalog.
type Source interface {
	Load(ctx context.Context) (*Catalog, error)
}

// Field is one configurable parameter of an action.
type Field struct {
	Name        string      `json:"name" yaml:"name"`
	Type        string      `json:"type" yaml:"type"`
	Required    bool        `json:"required" yaml:"required"`
	Options     []string    `json:"options,omitempty" yaml:"options,omitempty"`
	Default     interface{} `json:"default,omitempty" yaml:"default,omitempty"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
}

// Action is a validated catalog entry.
type Action struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Category       string   `json:"category"`
	Fields         []Field  `json:"config_fields"`
	Branches       []string `json:"branches,omitempty"`
	RequiredParams []string `json:"required_params"`
	OptionalParams []string `json:"optional_params"`
}

// IsBranching reports whether the action produces multiple downstream paths.
func (a Action) IsBranching() bool {
	return len(a.Branches) > 0 || branchingKinds[a.ID]
}

// Field returns the named field.
func (a Action) Field(name string) (Field, bool) {
	for _, f := range a.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// partition fills RequiredParams/OptionalParams from Fields.
func (a *Action) partition() {
	a.RequiredParams = make([]string, 0, len(a.Fields))
	a.OptionalParams = make([]string, 0, len(a.Fields))
	for _, f := range a.Fields {
		if f.Required {
			a.RequiredParams = append(a.RequiredParams, f.Name)
		} else {
			a.OptionalParams = append(a.OptionalParams, f.Name)
		}
	}
}

// Catalog is an immutable, ordered set of actions.
type Catalog struct {
	actions []Action
	index   map[string]int
}

// New builds a catalog. Later duplicates of an id are dropped and parameter
// lists are derived from each action's fields.
func New(actions []Action) *Catalog {
	c := &Catalog{index: make(map[string]int, len(actions))}
	for _, a := range actions {
		if a.ID == "" {
			continue
		}
		if _, dup := c.index[a.ID]; dup {
			continue
		}
		a.partition()
		c.index[a.ID] = len(c.actions)
		c.actions = append(c.actions, a)
	}
	return c
}

// Len returns the number of actions. A nil catalog is empty.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.actions)
}

// Actions returns the actions in catalog order.
func (c *Catalog) Actions() []Action {
	if c == nil {
		return nil
	}
	out := make([]Action, len(c.actions))
	copy(out, c.actions)
	return out
}

// Get looks up an action by id.
func (c *Catalog) Get(id string) (Action, bool) {
	if c == nil {
		return Action{}, false
	}
	i, ok := c.index[id]
	if !ok {
		return Action{}, false
	}
	return c.actions[i], true
}

// IsBranching reports whether id names a branching action. Unknown ids fall
// back to the built-in branching kinds.
func (c *Catalog) IsBranching(id string) bool {
	if a, ok := c.Get(id); ok {
		return a.IsBranching()
	}
	return branchingKinds[id]
}

// ByCategory groups actions by category, preserving catalog order.
func (c *Catalog) ByCategory() map[string][]Action {
	out := make(map[string][]Action)
	for _, a := range c.Actions() {
		out[a.Category] = append(out[a.Category], a)
	}
	return out
}

// Categories returns the sorted category names.
func (c *Catalog) Categories() []string {
	groups := c.ByCategory()
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
