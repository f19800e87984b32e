package logger

import (
	"context"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

// Context keys for common logging fields. Values stored under these keys are
// added to every record logged with a *Context function.
const (
	// ContextKeySessionID identifies the streaming session lineage.
	ContextKeySessionID contextKey = "session_id"

	// ContextKeyAttempt is the connection attempt id within a session.
	ContextKeyAttempt contextKey = "attempt"

	// ContextKeyTargetLang is the language the session streams for.
	ContextKeyTargetLang contextKey = "target_lang"

	// ContextKeyScreen names the screen that owns the camera.
	ContextKeyScreen contextKey = "screen"

	// ContextKeyRequestID identifies an individual side-channel request.
	ContextKeyRequestID contextKey = "request_id"
)

// allContextKeys lists every key the handler extracts.
var allContextKeys = []contextKey{
	ContextKeySessionID,
	ContextKeyAttempt,
	ContextKeyTargetLang,
	ContextKeyScreen,
	ContextKeyRequestID,
}

// WithSessionID returns a new context with the session ID set.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, ContextKeySessionID, sessionID)
}

// WithAttempt returns a new context with the attempt id set.
func WithAttempt(ctx context.Context, attempt uint64) context.Context {
	return context.WithValue(ctx, ContextKeyAttempt, attempt)
}

// WithTargetLang returns a new context with the target language set.
func WithTargetLang(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, ContextKeyTargetLang, lang)
}

// WithScreen returns a new context with the screen name set.
func WithScreen(ctx context.Context, screen string) context.Context {
	return context.WithValue(ctx, ContextKeyScreen, screen)
}

// WithRequestID returns a new context with the request ID set.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// LoggingFields holds the standard logging context fields.
type LoggingFields struct {
	SessionID  string
	Attempt    uint64
	TargetLang string
	Screen     string
	RequestID  string
}

// ExtractLoggingFields extracts all logging fields from a context.
func ExtractLoggingFields(ctx context.Context) LoggingFields {
	fields := LoggingFields{}
	if v := ctx.Value(ContextKeySessionID); v != nil {
		fields.SessionID, _ = v.(string)
	}
	if v := ctx.Value(ContextKeyAttempt); v != nil {
		fields.Attempt, _ = v.(uint64)
	}
	if v := ctx.Value(ContextKeyTargetLang); v != nil {
		fields.TargetLang, _ = v.(string)
	}
	if v := ctx.Value(ContextKeyScreen); v != nil {
		fields.Screen, _ = v.(string)
	}
	if v := ctx.Value(ContextKeyRequestID); v != nil {
		fields.RequestID, _ = v.(string)
	}
	return fields
}
