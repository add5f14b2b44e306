package orchestrator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/catalog"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/intent"
)

func TestActionsContext(t *testing.T) {
	cat := catalog.New([]catalog.Action{
		{
			ID: "wait_timer", Name: "Wait Timer", Category: "Control Flow", Description: "Pause the workflow",
			Fields: []catalog.Field{
				{Name: "duration", Type: "integer", Required: true, Description: "Duration to wait"},
				{Name: "unit", Type: "select", Options: []string{"minutes", "hours"}, Default: "hours"},
			},
		},
		{ID: "noop", Name: "No-op", Category: "Misc", Description: "Does nothing"},
	})

	got := ActionsContext(cat)
	assert.Equal(t, "wait_timer - Wait Timer\n"+
		"  Category: Control Flow\n"+
		"  Description: Pause the workflow\n"+
		"  Required Parameters:\n"+
		"    - duration: Type: integer (Duration to wait)\n"+
		"  Optional Parameters:\n"+
		"    - unit: Type: select, Options: minutes, hours, Default: \"hours\"\n"+
		"\n"+
		"noop - No-op\n"+
		"  Category: Misc\n"+
		"  Description: Does nothing", got)
}

func TestSystemPrompt(t *testing.T) {
	cat := catalog.Default()

	general, err := SystemPrompt(intent.General, cat)
	require.NoError(t, err)
	assert.Contains(t, general, "FourKites Workflow Agent Builder")
	assert.Contains(t, general, strings.Join(cat.Categories(), ", "))
	assert.NotContains(t, general, "{{")

	for _, in := range []intent.Intent{intent.Workflow, intent.Continuing} {
		wf, err := SystemPrompt(in, cat)
		require.NoError(t, err)
		assert.Contains(t, wf, "AVAILABLE ACTIONS:\n"+ActionsContext(cat))
		assert.Contains(t, wf, "Does this workflow look good to you?")
	}
}

func TestNamePrompt(t *testing.T) {
	got, err := namePrompt([]string{"send_initial_email", "wait_timer"}, "Chicago")
	require.NoError(t, err)
	assert.Contains(t, got, "send_initial_email, wait_timer")
	assert.Contains(t, got, "the Chicago facility")

	got, err = namePrompt([]string{"wait_timer"}, "")
	require.NoError(t, err)
	assert.NotContains(t, got, "facility")
}
