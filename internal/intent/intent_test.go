package intent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/session"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/testutil"
)

func TestClassify_Responses(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  Intent
	}{
		{"workflow", "workflow", Workflow},
		{"continuing padded", "  Continuing\n", Continuing},
		{"general", "general", General},
		{"sentence", "I think this is a workflow", General},
		{"trailing period", "workflow.", General},
		{"empty", "", General},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(&testutil.MockProvider{ProviderName: "mock", Content: tt.reply}, "m")
			if tt.reply == "" {
				c = New(&testutil.ScriptedProvider{Classification: ""}, "m")
			}
			assert.Equal(t, tt.want, c.Classify(context.Background(), "hi", nil))
		})
	}
}

func TestClassify_ErrorFallsBackToGeneral(t *testing.T) {
	c := New(&testutil.MockProvider{Err: errors.New("upstream 500")}, "m")
	assert.Equal(t, General, c.Classify(context.Background(), "create a workflow", nil))
}

func TestClassify_TimeoutFallsBackToGeneral(t *testing.T) {
	p := &testutil.ScriptedProvider{BlockClassify: true}
	c := New(p, "m", WithTimeout(20*time.Millisecond))

	start := time.Now()
	assert.Equal(t, General, c.Classify(context.Background(), "create a workflow", nil))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestClassify_NoProvider(t *testing.T) {
	assert.Equal(t, General, New(nil, "m").Classify(context.Background(), "x", nil))
}

func TestClassify_RequestShape(t *testing.T) {
	p := &testutil.ScriptedProvider{Classification: "continuing"}
	c := New(p, "claude-test")
	history := []session.Message{
		{Role: "user", Content: "turn-1"},
		{Role: "assistant", Content: "turn-2"},
		{Role: "user", Content: "turn-3"},
		{Role: "assistant", Content: "turn-4"},
		{Role: "user", Content: "turn-5"},
	}
	require.Equal(t, Continuing, c.Classify(context.Background(), "48 hours", history))

	reqs := p.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "claude-test", reqs[0].Model)
	assert.Equal(t, MaxTokens, reqs[0].MaxTokens)
	require.Len(t, reqs[0].Messages, 1)
	prompt := reqs[0].Messages[0].Content
	assert.NotContains(t, prompt, "turn-1")
	assert.Contains(t, prompt, "assistant: turn-2\nuser: turn-3")
	assert.Contains(t, prompt, `Current user message: "48 hours"`)
	assert.True(t, strings.HasSuffix(prompt, "Respond with ONLY ONE WORD: general, workflow, or continuing"))
}

func TestPrompt_NoHistory(t *testing.T) {
	assert.Contains(t, Prompt("hello", nil), "No previous conversation")
}

func TestIntent_IsWorkflow(t *testing.T) {
	assert.True(t, Workflow.IsWorkflow())
	assert.True(t, Continuing.IsWorkflow())
	assert.False(t, General.IsWorkflow())
}
