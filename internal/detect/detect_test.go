package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/catalog"
)

var lateDeliverySequence = []string{
	"send_initial_email",
	"wait_timer",
	"check_email_inbox",
	"parse_email_response",
	"send_followup_email",
	"send_escalation_email",
}

func TestDetect_LateDeliveryArchetype(t *testing.T) {
	d := New()
	transcripts := []string{
		"We keep getting late deliveries, please escalate when nobody answers",
		"Escalate to my manager. This is about LATE DELIVERY alerts",
		"notify each facility by email",
		"wait two days for a response then escalate",
	}
	for _, tr := range transcripts {
		t.Run(tr, func(t *testing.T) {
			res := d.Detect(Input{Transcript: tr, Catalog: catalog.Default()})
			assert.Equal(t, RuleLateDelivery, res.Rule)
			assert.Equal(t, lateDeliverySequence, res.Actions)
		})
	}
}

func TestDetect_DocumentExtractorArchetype(t *testing.T) {
	res := New().Detect(Input{Transcript: "Pull the BOL out of each inbound email", Catalog: catalog.Default()})
	assert.Equal(t, RuleDocumentExtractor, res.Rule)
	assert.Equal(t, []string{"check_email_inbox", "extract_document_text", "parse_document_with_ai", "send_initial_email"}, res.Actions)

	res = New().Detect(Input{Transcript: "read the email attachment, it is a pdf", Catalog: catalog.Default()})
	assert.Equal(t, RuleDocumentExtractor, res.Rule)
}

func TestDetect_FirstRuleWins(t *testing.T) {
	// Both archetypes match; late delivery comes first.
	res := New().Detect(Input{Transcript: "late delivery of the BOL", Catalog: catalog.Default()})
	assert.Equal(t, RuleLateDelivery, res.Rule)
}

func TestDetect_FallbackScansLatestReplyOnly(t *testing.T) {
	d := New()
	in := Input{
		Transcript:  "I want a Wait Timer and then a conditional_router",
		LatestReply: "Sure, I'll add a wait timer followed by the Conditional Router.",
		Catalog:     catalog.Default(),
	}
	res := d.Detect(in)
	assert.Equal(t, "fallback_substring", res.Rule)
	// catalog order, not reply order
	assert.Equal(t, []string{"wait_timer", "conditional_router"}, res.Actions)

	in.LatestReply = "What should happen next?"
	res = d.Detect(in)
	assert.Empty(t, res.Rule)
	assert.Empty(t, res.Actions)
}

func TestDetect_ArchetypeLeadsEarlierActions(t *testing.T) {
	existing := []string{"conditional_router", "send_initial_email"}
	res := New().Detect(Input{
		Transcript: "late deliveries",
		Catalog:    catalog.Default(),
		Existing:   existing,
	})
	assert.Equal(t, []string{
		"send_initial_email",
		"wait_timer",
		"check_email_inbox",
		"parse_email_response",
		"send_followup_email",
		"send_escalation_email",
		"conditional_router",
	}, res.Actions)
	assert.Equal(t, 5, res.Added(existing))
	assert.Equal(t, []string{"conditional_router", "send_initial_email"}, existing)
}

func TestDetect_FallbackAppendsAfterExisting(t *testing.T) {
	existing := []string{"send_initial_email", "wait_timer"}
	res := New().Detect(Input{
		Transcript:  "anything else?",
		LatestReply: "I can add a Conditional Router after the timer.",
		Catalog:     catalog.Default(),
		Existing:    existing,
	})
	assert.Equal(t, "fallback_substring", res.Rule)
	assert.Equal(t, []string{"send_initial_email", "wait_timer", "conditional_router"}, res.Actions)
}

func TestDetect_NoMatchKeepsExisting(t *testing.T) {
	res := New().Detect(Input{Transcript: "hello", Existing: []string{"wait_timer"}})
	assert.Equal(t, []string{"wait_timer"}, res.Actions)
}

func TestDetect_CustomRules(t *testing.T) {
	custom := ArchetypeRule{
		Name:     "router_only",
		Triggers: [][]string{{"route", "branch"}},
		Sequence: []string{"conditional_router"},
	}
	d := New(custom)
	require.Len(t, d.Rules(), 1)

	res := d.Detect(Input{Transcript: "Route each reply into a branch"})
	assert.Equal(t, "router_only", res.Rule)
	assert.Equal(t, []string{"conditional_router"}, res.Matched)

	// A trigger group requires every keyword.
	res = d.Detect(Input{Transcript: "route the replies"})
	assert.Empty(t, res.Rule)
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		add      []string
		want     []string
	}{
		{"empty", nil, nil, []string{}},
		{"append new", []string{"a"}, []string{"b", "c"}, []string{"a", "b", "c"}},
		{"skip known", []string{"a", "b"}, []string{"b", "a", "c"}, []string{"a", "b", "c"}},
		{"dedupe add", nil, []string{"x", "x", ""}, []string{"x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Merge(tt.existing, tt.add))
		})
	}
}
