// Package llm implements the text-completion oracle used by the conversation
// engine. Providers speak to OpenAI-compatible, Anthropic, and Ollama APIs and
// all satisfy the same Provider interface so the engine never depends on a
// specific vendor.
package llm

import (
	"context"
	"errors"
	"time"
)

// Timeouts for oracle operations. Callers may impose shorter deadlines through
// ctx; providers never wait longer than TimeoutLLMCall.
const (
	TimeoutLLMCall = 60 * time.Second
)

// Domain errors for the llm package.
var (
	ErrProviderNotAvailable = errors.New("provider not available")
	ErrMissingAPIKey        = errors.New("llm api key not configured")
	ErrEmptyResponse        = errors.New("llm returned no content")
	ErrCircuitOpen          = errors.New("llm circuit open")
)

// Provider is the interface all oracle backends implement.
type Provider interface {
	// Name returns the provider identifier (e.g. "openai", "anthropic").
	Name() string
	// Generate sends a completion request and returns the response.
	Generate(ctx context.Context, req *Request) (*Response, error)
	// EstimateCost estimates the cost in USD for the given model and token counts.
	EstimateCost(model string, inputTokens, outputTokens int) float64
}

// Request represents an oracle generation request.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Message represents a chat message.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// Response represents an oracle generation response.
type Response struct {
	Content      string
	FinishReason string
	InputTokens  int
	OutputTokens int
	Model        string
}

// System builds a system message.
func System(content string) Message { return Message{Role: "system", Content: content} }

// User builds a user message.
func User(content string) Message { return Message{Role: "user", Content: content} }
