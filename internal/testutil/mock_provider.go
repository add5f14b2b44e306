// Package testutil provides shared test helpers and mocks for wfbuilder tests.
package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/llm"
)

// MockProvider implements llm.Provider for tests without live API calls.
// When Content is empty, Generate returns "mock response from " + ProviderName; otherwise uses Content.
// Set Err to simulate oracle errors.
type MockProvider struct {
	ProviderName string // provider identifier, e.g. "openai"
	Content      string // canned response; empty = "mock response from " + ProviderName
	Err          error  // if set, Generate returns this error
}

// Name returns the provider identifier (implements llm.Provider).
func (m *MockProvider) Name() string { return m.ProviderName }

// Generate returns a canned response or the configured error.
func (m *MockProvider) Generate(_ context.Context, req *llm.Request) (*llm.Response, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	content := m.Content
	if content == "" {
		content = "mock response from " + m.ProviderName
	}
	return &llm.Response{
		Content:      content,
		FinishReason: "stop",
		InputTokens:  10,
		OutputTokens: 20,
		Model:        req.Model,
	}, nil
}

// EstimateCost returns a fixed cost for tests.
func (m *MockProvider) EstimateCost(_ string, _, _ int) float64 { return 0.001 }

// classificationMaxTokens is the largest MaxTokens a ScriptedProvider treats
// as an intent classification request.
const classificationMaxTokens = 16

// ScriptedProvider answers intent classification requests (tiny MaxTokens)
// with Classification and every other request with the next entry of Replies;
// the last reply repeats. It records every request.
//
// ClassifyErr / ReplyErr make the respective calls fail. When BlockClassify
// is set, classification waits for ctx to end and returns its error.
type ScriptedProvider struct {
	Classification string
	Replies        []string
	ClassifyErr    error
	ReplyErr       error
	BlockClassify  bool

	mu       sync.Mutex
	requests []llm.Request
	replyIdx int
}

// Name implements llm.Provider.
func (p *ScriptedProvider) Name() string { return "scripted" }

// Generate implements llm.Provider.
func (p *ScriptedProvider) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	cp := *req
	cp.Messages = append([]llm.Message(nil), req.Messages...)
	p.requests = append(p.requests, cp)
	classify := req.MaxTokens > 0 && req.MaxTokens <= classificationMaxTokens
	var content string
	if !classify {
		switch {
		case len(p.Replies) == 0:
			content = "ok"
		case p.replyIdx < len(p.Replies):
			content = p.Replies[p.replyIdx]
		default:
			content = p.Replies[len(p.Replies)-1]
		}
		p.replyIdx++
	}
	p.mu.Unlock()

	if classify {
		if p.BlockClassify {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		if p.ClassifyErr != nil {
			return nil, p.ClassifyErr
		}
		content = p.Classification
	} else if p.ReplyErr != nil {
		return nil, p.ReplyErr
	}
	return &llm.Response{
		Content:      content,
		FinishReason: "stop",
		InputTokens:  12,
		OutputTokens: len(strings.Fields(content)),
		Model:        req.Model,
	}, nil
}

// EstimateCost implements llm.Provider.
func (p *ScriptedProvider) EstimateCost(_ string, _, _ int) float64 { return 0.001 }

// Requests returns copies of every request received.
func (p *ScriptedProvider) Requests() []llm.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]llm.Request, len(p.requests))
	copy(out, p.requests)
	return out
}

// ReplyRequests returns the non-classification requests.
func (p *ScriptedProvider) ReplyRequests() []llm.Request {
	var out []llm.Request
	for _, r := range p.Requests() {
		if r.MaxTokens == 0 || r.MaxTokens > classificationMaxTokens {
			out = append(out, r)
		}
	}
	return out
}
