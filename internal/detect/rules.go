package detect

import "strings"

// Rule is one entry of the ordered detection list. The set of rule kinds is
// closed: ArchetypeRule and FallbackSubstringRule.
type Rule interface {
	// RuleName identifies the rule in results and logs.
	RuleName() string
	apply(in Input) ([]string, bool)
}

// ArchetypeRule recognises a known workflow shape from keyword combinations.
// Triggers is a disjunction of conjunctions: the rule fires when every keyword
// of any one group occurs in the lower-cased transcript. A firing rule emits
// Sequence as the candidate list, replacing whatever lower rules would find.
type ArchetypeRule struct {
	Name     string
	Triggers [][]string
	Sequence []string
}

// RuleName implements Rule.
func (r ArchetypeRule) RuleName() string { return r.Name }

// Fires reports whether the rule matches a lower-cased transcript.
func (r ArchetypeRule) Fires(lowerTranscript string) bool {
	for _, group := range r.Triggers {
		if len(group) == 0 {
			continue
		}
		all := true
		for _, kw := range group {
			if !strings.Contains(lowerTranscript, kw) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

func (r ArchetypeRule) apply(in Input) ([]string, bool) {
	if !r.Fires(strings.ToLower(in.Transcript)) {
		return nil, false
	}
	out := make([]string, len(r.Sequence))
	copy(out, r.Sequence)
	return out, true
}

// FallbackSubstringRule scans the latest assistant reply for catalog action
// display names or ids, in catalog order.
type FallbackSubstringRule struct{}

// RuleName implements Rule.
func (FallbackSubstringRule) RuleName() string { return "fallback_substring" }

func (FallbackSubstringRule) apply(in Input) ([]string, bool) {
	reply := strings.ToLower(in.LatestReply)
	if reply == "" || in.Catalog.Len() == 0 {
		return nil, false
	}
	var found []string
	for _, a := range in.Catalog.Actions() {
		name := strings.ToLower(a.Name)
		if (name != "" && strings.Contains(reply, name)) || strings.Contains(reply, a.ID) {
			found = append(found, a.ID)
		}
	}
	return found, len(found) > 0
}

// Archetype names used by DefaultRules.
const (
	RuleLateDelivery      = "late_delivery_notifier"
	RuleDocumentExtractor = "document_extractor"
)

// LateDeliveryRule matches the late delivery notifier flow.
func LateDeliveryRule() ArchetypeRule {
	return ArchetypeRule{
		Name: RuleLateDelivery,
		Triggers: [][]string{
			{"late deliver"},
			{"notify", "facilit"},
			{"wait", "response", "escalat"},
		},
		Sequence: []string{
			"send_initial_email",
			"wait_timer",
			"check_email_inbox",
			"parse_email_response",
			"send_followup_email",
			"send_escalation_email",
		},
	}
}

// DocumentExtractorRule matches the BOL document extraction flow.
func DocumentExtractorRule() ArchetypeRule {
	return ArchetypeRule{
		Name: RuleDocumentExtractor,
		Triggers: [][]string{
			{"bol"},
			{"document extract"},
			{"email", "attachment", "pdf"},
		},
		Sequence: []string{
			"check_email_inbox",
			"extract_document_text",
			"parse_document_with_ai",
			"send_initial_email",
		},
	}
}

// DefaultRules returns the built-in priority list.
func DefaultRules() []Rule {
	return []Rule{LateDeliveryRule(), DocumentExtractorRule(), FallbackSubstringRule{}}
}
