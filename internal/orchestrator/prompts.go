package orchestrator

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/catalog"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/intent"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

var prompts = template.Must(template.ParseFS(promptFS, "prompts/*.tmpl"))

type catalogPromptData struct {
	Count         int
	CategoryCount int
	CategoryList  string
	Actions       string
}

type documentPromptData struct {
	Filename string
	Text     string
}

type namePromptData struct {
	Actions  []string
	Facility string
}

// SystemPrompt returns the system prompt for a classified message. General
// questions get the assistant persona; workflow turns get the consultant
// persona that drives parameter collection and approval.
func SystemPrompt(in intent.Intent, cat *catalog.Catalog) (string, error) {
	data := catalogPromptData{
		Count:         cat.Len(),
		CategoryCount: len(cat.Categories()),
		CategoryList:  strings.Join(cat.Categories(), ", "),
		Actions:       ActionsContext(cat),
	}
	if in.IsWorkflow() {
		return render("workflow.tmpl", data)
	}
	return render("general.tmpl", data)
}

// DocumentPrompt returns the analysis request folded into the conversation
// for an uploaded document.
func DocumentPrompt(filename, text string) (string, error) {
	return render("document.tmpl", documentPromptData{Filename: filename, Text: text})
}

func namePrompt(actions []string, facility string) (string, error) {
	return render("name.tmpl", namePromptData{Actions: actions, Facility: facility})
}

func render(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := prompts.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("rendering prompt %s: %w", name, err)
	}
	return buf.String(), nil
}

// ActionsContext formats the catalog for a system prompt, one block per
// action separated by blank lines.
func ActionsContext(cat *catalog.Catalog) string {
	actions := cat.Actions()
	blocks := make([]string, 0, len(actions))
	for _, a := range actions {
		var b strings.Builder
		fmt.Fprintf(&b, "%s - %s\n  Category: %s\n  Description: %s", a.ID, a.Name, a.Category, a.Description)
		writeParams(&b, "Required Parameters", a, a.RequiredParams)
		writeParams(&b, "Optional Parameters", a, a.OptionalParams)
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}

func writeParams(b *strings.Builder, title string, a catalog.Action, names []string) {
	if len(names) == 0 {
		return
	}
	fmt.Fprintf(b, "\n  %s:", title)
	for _, name := range names {
		f, _ := a.Field(name)
		fmt.Fprintf(b, "\n    - %s: Type: %s", name, f.Type)
		if len(f.Options) > 0 {
			fmt.Fprintf(b, ", Options: %s", strings.Join(f.Options, ", "))
		}
		if f.Default != nil {
			if raw, err := json.Marshal(f.Default); err == nil {
				fmt.Fprintf(b, ", Default: %s", raw)
			}
		}
		if f.Description != "" {
			fmt.Fprintf(b, " (%s)", f.Description)
		}
	}
}
