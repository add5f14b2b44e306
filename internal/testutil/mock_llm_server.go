package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

// OracleServer is an OpenAI-compatible chat completions endpoint that answers
// like ScriptedProvider: requests with a tiny max_tokens get Classification,
// everything else gets Reply.
type OracleServer struct {
	*httptest.Server
	Classification string
	Reply          string

	calls atomic.Int64
}

// NewOracleServer starts an OracleServer at /v1/chat/completions. The server
// is closed on test cleanup.
func NewOracleServer(t *testing.T, classification, reply string) *OracleServer {
	t.Helper()
	o := &OracleServer{Classification: classification, Reply: reply}
	o.Server = httptest.NewServer(http.HandlerFunc(o.handle))
	t.Cleanup(o.Server.Close)
	return o
}

// Calls returns how many completions were served.
func (o *OracleServer) Calls() int { return int(o.calls.Load()) }

func (o *OracleServer) handle(w http.ResponseWriter, r *http.Request) {
	if strings.TrimSuffix(r.URL.Path, "/") != "/v1/chat/completions" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	var req openai.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	o.calls.Add(1)

	content := o.Reply
	if req.MaxTokens > 0 && req.MaxTokens <= classificationMaxTokens {
		content = o.Classification
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
		ID:     "chatcmpl-test",
		Object: "chat.completion",
		Model:  req.Model,
		Choices: []openai.ChatCompletionChoice{{
			Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
			FinishReason: openai.FinishReasonStop,
		}},
		Usage: openai.Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	})
}
