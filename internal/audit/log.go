// Package audit records state-changing actions as structured log entries.
package audit

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"sigepa.cl/internal/auth"
	"sigepa.cl/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID returns the identifier stored by WithRequestID.
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes one audit entry. The acting identity and request id are
// taken from ctx; fields describe the affected resource.
func LogEvent(ctx context.Context, event string, fields ...zap.Field) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("audit: event name is required")
	}
	entry := make([]zap.Field, 0, len(fields)+5)
	entry = append(entry, zap.String("type", "audit"), zap.String("event", event))
	if rid := RequestID(ctx); rid != "" {
		entry = append(entry, zap.String("request_id", rid))
	}
	if id, ok := auth.IdentityFromContext(ctx); ok {
		entry = append(entry,
			zap.Int64("user_id", id.UserID),
			zap.String("role", id.Role.String()),
			zap.Int64("community_id", id.CommunityID),
		)
	}
	entry = append(entry, fields...)
	obs.LoggerFrom(ctx).Named("audit").Info(event, entry...)
	return nil
}
