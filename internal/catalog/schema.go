package catalog

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// entrySchema is the JSON Schema every catalog entry must satisfy.
const entrySchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "Action catalog entry",
  "type": "object",
  "required": ["id", "name"],
  "additionalProperties": true,
  "properties": {
    "id": {"type": "string", "minLength": 1, "pattern": "^[A-Za-z0-9_.-]+$"},
    "name": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "category": {"type": "string"},
    "config_fields": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "type": {"type": "string"},
          "required": {"type": "boolean"},
          "options": {"type": "array", "items": {"type": ["string", "number", "boolean"]}},
          "description": {"type": "string"}
        }
      }
    },
    "branches": {"type": "array", "items": {"type": "string"}}
  }
}`

var compiledEntrySchema *gojsonschema.Schema

func init() {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(entrySchema))
	if err != nil {
		panic(fmt.Sprintf("compiling catalog entry schema: %v", err))
	}
	compiledEntrySchema = s
}

type wireField struct {
	Name        string        `json:"name"`
	Type        string        `json:"type"`
	Required    bool          `json:"required"`
	Options     []interface{} `json:"options"`
	Default     interface{}   `json:"default"`
	Description string        `json:"description"`
}

type wireAction struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	Fields      []wireField `json:"config_fields"`
	Branches    []string    `json:"branches"`
}

// decodeEntry validates one raw entry and converts it to an Action.
// category is used when the entry does not name its own.
func decodeEntry(raw []byte, category string) (Action, error) {
	result, err := compiledEntrySchema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return Action{}, fmt.Errorf("validating catalog entry: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, verr := range result.Errors() {
			msgs = append(msgs, verr.String())
		}
		return Action{}, fmt.Errorf("invalid catalog entry: %s", strings.Join(msgs, "; "))
	}

	var w wireAction
	if err := json.Unmarshal(raw, &w); err != nil {
		return Action{}, fmt.Errorf("decoding catalog entry: %w", err)
	}

	a := Action{
		ID:          w.ID,
		Name:        w.Name,
		Description: w.Description,
		Category:    w.Category,
		Branches:    w.Branches,
	}
	if a.Category == "" {
		a.Category = category
	}
	for _, f := range w.Fields {
		field := Field{
			Name:        f.Name,
			Type:        f.Type,
			Required:    f.Required,
			Default:     f.Default,
			Description: f.Description,
		}
		for _, opt := range f.Options {
			field.Options = append(field.Options, fmt.Sprint(opt))
		}
		a.Fields = append(a.Fields, field)
	}
	return a, nil
}
