// Package session holds per-conversation state: the transcript, the detected
// actions, and the parameters collected so far.
//
// Detected actions only ever grow: MergeActions appends unseen ids and
// AdoptActions may reorder but never removes. Collected parameters are keyed
// by detected actions only; MergeParams drops anything else.
package session

import (
	"strings"
	"time"
)

// Roles of transcript turns.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one transcript turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is the state of one conversation.
type Session struct {
	ID              string                       `json:"id"`
	Messages        []Message                    `json:"messages"`
	Intent          string                       `json:"intent,omitempty"`
	DetectedActions []string                     `json:"detected_actions"`
	CollectedParams map[string]map[string]string `json:"collected_params"`
	IsComplete      bool                         `json:"is_complete"`
	CreatedAt       time.Time                    `json:"created_at"`
	LastActive      time.Time                    `json:"last_active"`
}

// Summary is the listing view of a session.
type Summary struct {
	ID           string    `json:"id"`
	Intent       string    `json:"intent,omitempty"`
	MessageCount int       `json:"message_count"`
	ActionCount  int       `json:"action_count"`
	IsComplete   bool      `json:"is_complete"`
	CreatedAt    time.Time `json:"created_at"`
	LastActive   time.Time `json:"last_active"`
}

// New returns an empty session.
func New(id string, now time.Time) *Session {
	return &Session{
		ID:              id,
		DetectedActions: []string{},
		CollectedParams: map[string]map[string]string{},
		CreatedAt:       now,
		LastActive:      now,
	}
}

// Append adds a transcript turn.
func (s *Session) Append(role, content string) {
	s.Messages = append(s.Messages, Message{Role: role, Content: content})
}

// History returns up to the last n turns.
func (s *Session) History(n int) []Message {
	if n <= 0 || len(s.Messages) == 0 {
		return nil
	}
	start := len(s.Messages) - n
	if start < 0 {
		start = 0
	}
	out := make([]Message, len(s.Messages)-start)
	copy(out, s.Messages[start:])
	return out
}

// Transcript joins every turn's content with single spaces.
func (s *Session) Transcript() string {
	parts := make([]string, len(s.Messages))
	for i, m := range s.Messages {
		parts[i] = m.Content
	}
	return strings.Join(parts, " ")
}

// LatestReply returns the most recent assistant turn, or "".
func (s *Session) LatestReply() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return s.Messages[i].Content
		}
	}
	return ""
}

// HasAction reports whether id is among the detected actions.
func (s *Session) HasAction(id string) bool {
	for _, a := range s.DetectedActions {
		if a == id {
			return true
		}
	}
	return false
}

// MergeActions appends the ids not yet detected, in order, and returns how
// many were added.
func (s *Session) MergeActions(ids []string) int {
	added := 0
	for _, id := range ids {
		if id == "" || s.HasAction(id) {
			continue
		}
		s.DetectedActions = append(s.DetectedActions, id)
		added++
	}
	return added
}

// AdoptActions takes ordered as the new action order. Detected ids missing
// from ordered are kept after it. It returns how many ids were added.
func (s *Session) AdoptActions(ordered []string) int {
	before := len(s.DetectedActions)
	next := make([]string, 0, len(ordered)+before)
	seen := make(map[string]bool, len(ordered)+before)
	for _, ids := range [][]string{ordered, s.DetectedActions} {
		for _, id := range ids {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			next = append(next, id)
		}
	}
	s.DetectedActions = next
	return len(next) - before
}

// MergeParams overwrites collected values slot by slot. Actions that are not
// detected are ignored.
func (s *Session) MergeParams(params map[string]map[string]string) {
	if s.CollectedParams == nil {
		s.CollectedParams = map[string]map[string]string{}
	}
	for action, values := range params {
		if !s.HasAction(action) || len(values) == 0 {
			continue
		}
		if s.CollectedParams[action] == nil {
			s.CollectedParams[action] = map[string]string{}
		}
		for k, v := range values {
			s.CollectedParams[action][k] = v
		}
	}
}

// Params returns a deep copy of the collected parameters.
func (s *Session) Params() map[string]map[string]string {
	out := make(map[string]map[string]string, len(s.CollectedParams))
	for action, values := range s.CollectedParams {
		inner := make(map[string]string, len(values))
		for k, v := range values {
			inner[k] = v
		}
		out[action] = inner
	}
	return out
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	c := *s
	c.Messages = append([]Message(nil), s.Messages...)
	c.DetectedActions = append([]string{}, s.DetectedActions...)
	c.CollectedParams = s.Params()
	return &c
}

// Summary returns the listing view.
func (s *Session) Summary() Summary {
	return Summary{
		ID:           s.ID,
		Intent:       s.Intent,
		MessageCount: len(s.Messages),
		ActionCount:  len(s.DetectedActions),
		IsComplete:   s.IsComplete,
		CreatedAt:    s.CreatedAt,
		LastActive:   s.LastActive,
	}
}
