package otel

import (
	"go.opentelemetry.io/otel/attribute"
)

// GenAI semantic convention keys for oracle calls.
const (
	GenAISystem       = attribute.Key("gen_ai.system")        // e.g., "openai", "anthropic"
	GenAIRequestModel = attribute.Key("gen_ai.request.model") // e.g., "gpt-4o"

	GenAIRequestTemperature = attribute.Key("gen_ai.request.temperature")
	GenAIRequestMaxTokens   = attribute.Key("gen_ai.request.max_tokens")

	GenAIUsageInputTokens  = attribute.Key("gen_ai.usage.input_tokens")
	GenAIUsageOutputTokens = attribute.Key("gen_ai.usage.output_tokens")

	GenAIResponseFinishReason = attribute.Key("gen_ai.response.finish_reason")
	GenAIResponseID           = attribute.Key("gen_ai.response.id")
)

// Workflow engine attribute keys shared across packages.
const (
	SessionID   = attribute.Key("wfbuilder.session_id")
	Intent      = attribute.Key("wfbuilder.intent")
	WorkflowID  = attribute.Key("wfbuilder.workflow_id")
	ActionCount = attribute.Key("wfbuilder.actions.count")
)

// LLMRequestAttributes creates standard attributes for oracle requests.
func LLMRequestAttributes(system, model string, temperature float64, maxTokens int) []attribute.KeyValue {
	return []attribute.KeyValue{
		GenAISystem.String(system),
		GenAIRequestModel.String(model),
		GenAIRequestTemperature.Float64(temperature),
		GenAIRequestMaxTokens.Int(maxTokens),
	}
}
