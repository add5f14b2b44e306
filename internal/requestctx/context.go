// Package requestctx provides request-scoped values (caller id, session id)
// set by HTTP middleware and handlers.
package requestctx

import "context"

type contextKey struct{ name string }

var (
	callerIDKey  = &contextKey{"caller_id"}
	sessionIDKey = &contextKey{"session_id"}
)

// SetCallerID stores the authenticated caller (API key name or client IP).
func SetCallerID(ctx context.Context, callerID string) context.Context {
	return context.WithValue(ctx, callerIDKey, callerID)
}

// CallerID returns the caller id from context, or "" if not set.
func CallerID(ctx context.Context) string {
	v, _ := ctx.Value(callerIDKey).(string)
	return v
}

// SetSessionID stores the conversation session id.
func SetSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// SessionID returns the session id from context, or "" if not set.
func SessionID(ctx context.Context) string {
	v, _ := ctx.Value(sessionIDKey).(string)
	return v
}
