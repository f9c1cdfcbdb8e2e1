package utils

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/wayneeseguin/omnipipe/pkg/types"
)

// ContextKey is a type for context value keys.
// Using a custom type prevents collisions with other packages.
type ContextKey string

// Context keys populated by request and tracing adapters
const (
	ContextKeyRequestID   ContextKey = "request_id"     // HTTP request ID
	ContextKeyTraceID     ContextKey = "trace_id"       // Distributed trace ID
	ContextKeySpanID      ContextKey = "span_id"        // Distributed tracing span ID
	ContextKeyParentSpan  ContextKey = "parent_span"    // Parent span ID
	ContextKeyCorrelation ContextKey = "correlation_id" // Correlation ID for event tracking
	ContextKeyService     ContextKey = "service"        // Service name
	ContextKeyEnvironment ContextKey = "environment"    // Environment (dev, staging, prod)
	ContextKeyUserID      ContextKey = "user_id"        // User ID for audit trails
	ContextKeyHTTPRequest ContextKey = "http_request"   // *types.HTTPRequestInfo
)

// Correlation is the set of correlation values carried by a context.
type Correlation struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
	ServiceName  string
	Environment  string
	HTTPRequest  *types.HTTPRequestInfo
}

// CorrelationFrom reads every correlation value present in ctx.
// A nil context yields the zero Correlation.
func CorrelationFrom(ctx context.Context) Correlation {
	if ctx == nil {
		return Correlation{}
	}
	c := Correlation{
		TraceID:      stringValue(ctx, ContextKeyTraceID),
		SpanID:       stringValue(ctx, ContextKeySpanID),
		ParentSpanID: stringValue(ctx, ContextKeyParentSpan),
		ServiceName:  stringValue(ctx, ContextKeyService),
		Environment:  stringValue(ctx, ContextKeyEnvironment),
	}
	if req, ok := ctx.Value(ContextKeyHTTPRequest).(*types.HTTPRequestInfo); ok && req != nil {
		cp := *req
		c.HTTPRequest = &cp
	}
	return c
}

func stringValue(ctx context.Context, key ContextKey) string {
	s, _ := ctx.Value(key).(string)
	return s
}

// ExtractContextFields extracts plain fields from a context.
//
// Example:
//
//	fields := ExtractContextFields(ctx, ContextKeyRequestID, ContextKeyUserID)
func ExtractContextFields(ctx context.Context, keys ...ContextKey) map[string]interface{} {
	fields := make(map[string]interface{})

	if len(keys) == 0 {
		keys = []ContextKey{
			ContextKeyRequestID,
			ContextKeyCorrelation,
			ContextKeyUserID,
		}
	}

	for _, key := range keys {
		if value := ctx.Value(key); value != nil {
			fields[string(key)] = value
		}
	}

	return fields
}

// WithContextFields returns a new context with the provided fields.
func WithContextFields(ctx context.Context, fields map[ContextKey]interface{}) context.Context {
	for key, value := range fields {
		ctx = context.WithValue(ctx, key, value)
	}
	return ctx
}

// TraceContext adds tracing information to a context.
// An empty parentSpanID is not stored.
func TraceContext(ctx context.Context, traceID, spanID, parentSpanID string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyTraceID, traceID)
	ctx = context.WithValue(ctx, ContextKeySpanID, spanID)
	if parentSpanID != "" {
		ctx = context.WithValue(ctx, ContextKeyParentSpan, parentSpanID)
	}
	return ctx
}

// ServiceContext records the service and environment an operation runs in.
// They override the provider-level defaults.
func ServiceContext(ctx context.Context, service, environment string) context.Context {
	if service != "" {
		ctx = context.WithValue(ctx, ContextKeyService, service)
	}
	if environment != "" {
		ctx = context.WithValue(ctx, ContextKeyEnvironment, environment)
	}
	return ctx
}

// WithHTTPRequest attaches request metadata. The request ID, when set, is
// also stored under ContextKeyRequestID.
func WithHTTPRequest(ctx context.Context, req *types.HTTPRequestInfo) context.Context {
	if req == nil {
		return ctx
	}
	cp := *req
	ctx = context.WithValue(ctx, ContextKeyHTTPRequest, &cp)
	if cp.RequestID != "" {
		ctx = context.WithValue(ctx, ContextKeyRequestID, cp.RequestID)
	}
	return ctx
}

// CorrelationContext creates a context with a correlation ID.
// An empty correlationID generates a random one.
func CorrelationContext(ctx context.Context, correlationID string) (context.Context, string) {
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	return context.WithValue(ctx, ContextKeyCorrelation, correlationID), correlationID
}

// FormatContextFields formats context fields for display, sorted by key.
func FormatContextFields(ctx context.Context, keys ...ContextKey) string {
	fields := ExtractContextFields(ctx, keys...)
	if len(fields) == 0 {
		return "no context fields"
	}

	parts := make([]string, 0, len(fields))
	for k, v := range fields {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	sort.Strings(parts)

	return strings.Join(parts, " ")
}
