// Package extract fills action parameters from free conversation text.
//
// Values are pulled from the full transcript on every turn and assigned to
// actions through an explicit AssignmentPolicy. Extraction is idempotent:
// running it again over a longer transcript only overwrites slots whose
// value changed.
package extract

import (
	"regexp"
	"strings"
)

// Params maps action id to parameter name to value.
type Params map[string]map[string]string

// Set stores a value, creating the inner map on demand.
func (p Params) Set(action, param, value string) {
	if p[action] == nil {
		p[action] = make(map[string]string)
	}
	p[action][param] = value
}

// Slot addresses one parameter of one action.
type Slot struct {
	Action string
	Param  string
}

// AssignmentPolicy decides which slot each extracted value lands in. Emails
// are assigned positionally: the i-th distinct email goes to Emails[i].
// Extra emails are ignored.
type AssignmentPolicy struct {
	Emails       []Slot
	Facility     Slot
	Duration     Slot
	DurationUnit Slot
}

// DefaultPolicy is the assignment used by the chat engine.
func DefaultPolicy() AssignmentPolicy {
	return AssignmentPolicy{
		Emails: []Slot{
			{Action: "send_initial_email", Param: "recipient_email"},
			{Action: "send_escalation_email", Param: "escalation_recipient"},
		},
		Facility:     Slot{Action: "send_initial_email", Param: "facility"},
		Duration:     Slot{Action: "wait_timer", Param: "duration"},
		DurationUnit: Slot{Action: "wait_timer", Param: "unit"},
	}
}

// KnownFacilities are city names accepted as a facility without an explicit
// "facility:" phrase.
var KnownFacilities = []string{"Chicago", "Dallas", "Atlanta", "Seattle", "Boston", "Denver", "Phoenix"}

var (
	emailPattern    = regexp.MustCompile(`[\w.-]+@[\w.-]+\.\w+`)
	facilityPattern = regexp.MustCompile(`(?i)facility[:\s]+([A-Za-z][A-Za-z ]*)`)
	cityPattern     = regexp.MustCompile(`(?i)\b(` + strings.Join(KnownFacilities, "|") + `)\b`)
	durationPattern = regexp.MustCompile(`(?i)(\d+)\s*(second|minute|hour|day)s?`)
)

// connectives end an explicit facility phrase.
var connectives = map[string]bool{
	"and": true, "then": true, "to": true, "with": true, "for": true,
	"about": true, "if": true, "when": true, "or": true, "at": true,
}

// Emails returns the distinct email-like substrings in first-appearance order.
func Emails(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range emailPattern.FindAllString(text, -1) {
		key := strings.ToLower(m)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, m)
	}
	return out
}

// Facility returns the facility named in text: the first explicit
// "facility: X" phrase, else the first known city. X stops at the end of the
// line or at the first connective word.
func Facility(text string) (string, bool) {
	for _, m := range facilityPattern.FindAllStringSubmatch(text, -1) {
		if name := trimFacility(m[1]); name != "" {
			return name, true
		}
	}
	if m := cityPattern.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	return "", false
}

func trimFacility(raw string) string {
	var words []string
	for _, w := range strings.Fields(raw) {
		if connectives[strings.ToLower(w)] {
			break
		}
		words = append(words, w)
	}
	return strings.Join(words, " ")
}

// Duration returns the first "<n> <unit>" pair; unit is plural lower case.
func Duration(text string) (amount, unit string, ok bool) {
	m := durationPattern.FindStringSubmatch(text)
	if m == nil {
		return "", "", false
	}
	return m[1], strings.ToLower(m[2]) + "s", true
}

// Extractor applies an AssignmentPolicy.
type Extractor struct {
	policy AssignmentPolicy
}

// New creates an Extractor.
func New(policy AssignmentPolicy) *Extractor {
	return &Extractor{policy: policy}
}

// Extract pulls values from transcript and assigns them to slots whose action
// is in actions. The result only has keys from actions.
func (e *Extractor) Extract(transcript string, actions []string) Params {
	present := make(map[string]bool, len(actions))
	for _, a := range actions {
		present[a] = true
	}
	out := Params{}
	set := func(s Slot, v string) {
		if s.Action == "" || !present[s.Action] {
			return
		}
		out.Set(s.Action, s.Param, v)
	}

	emails := Emails(transcript)
	for i, slot := range e.policy.Emails {
		if i >= len(emails) {
			break
		}
		set(slot, emails[i])
	}
	if f, ok := Facility(transcript); ok {
		set(e.policy.Facility, f)
	}
	if amount, unit, ok := Duration(transcript); ok {
		set(e.policy.Duration, amount)
		set(e.policy.DurationUnit, unit)
	}
	return out
}
