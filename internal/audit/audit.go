// Package audit decorates an audit sink with structured log output so
// security events are visible in the log stream as well as the store.
package audit

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/iqautojobs/identity/internal/auth"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit
// logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the audit request id, if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Sink tees every entry to the log before handing it to the next sink.
type Sink struct {
	next auth.AuditSink
	log  zerolog.Logger
}

var _ auth.AuditSink = (*Sink)(nil)

// NewSink wraps next with log output.
func NewSink(next auth.AuditSink, log zerolog.Logger) *Sink {
	return &Sink{next: next, log: log}
}

// Append logs the entry and forwards it. The log write cannot fail the
// append; storage errors propagate to the caller unchanged.
func (s *Sink) Append(ctx context.Context, e *auth.AuditEntry) error {
	ev := s.log.Info().
		Str("type", "audit").
		Str("action", e.Action).
		Str("subject_type", e.SubjectType).
		Str("subject_id", e.SubjectID)
	if e.ActorID != "" {
		ev = ev.Str("actor_id", e.ActorID)
	}
	if rid := RequestIDFromContext(ctx); rid != "" {
		ev = ev.Str("request_id", rid)
	}
	ev.Msg("audit event")

	return s.next.Append(ctx, e)
}
