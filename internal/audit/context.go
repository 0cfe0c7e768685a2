package audit

import (
	"context"
	"strings"
)

type ctxKey string

const (
	requestIDKey     ctxKey = "audit_request_id"
	sourceAddressKey ctxKey = "audit_source_address"
)

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithSourceAddress attaches the caller's network address.
func WithSourceAddress(ctx context.Context, addr string) context.Context {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ctx
	}
	return context.WithValue(ctx, sourceAddressKey, addr)
}

func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

func SourceAddressFromContext(ctx context.Context) string {
	return stringValue(ctx, sourceAddressKey)
}

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
