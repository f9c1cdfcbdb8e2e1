package utils

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/wayneeseguin/omnipipe/pkg/types"
)

func TestCorrelationFrom(t *testing.T) {
	req := &types.HTTPRequestInfo{Method: "GET", Path: "/orders", RequestID: "req-1"}

	ctx := context.Background()
	ctx = TraceContext(ctx, "trace-1", "span-1", "parent-1")
	ctx = ServiceContext(ctx, "billing", "prod")
	ctx = WithHTTPRequest(ctx, req)

	// later mutation of the caller's struct must not leak into the context
	req.Path = "/mutated"

	c := CorrelationFrom(ctx)
	if c.TraceID != "trace-1" || c.SpanID != "span-1" || c.ParentSpanID != "parent-1" {
		t.Errorf("Unexpected trace values %+v", c)
	}
	if c.ServiceName != "billing" || c.Environment != "prod" {
		t.Errorf("Unexpected service values %+v", c)
	}
	if c.HTTPRequest == nil || c.HTTPRequest.Path != "/orders" {
		t.Errorf("Expected copied HTTP request, got %+v", c.HTTPRequest)
	}
	if got := ctx.Value(ContextKeyRequestID); got != "req-1" {
		t.Errorf("Expected request id to be stored, got %v", got)
	}
}

func TestCorrelationFrom_Empty(t *testing.T) {
	//nolint:staticcheck // nil context is part of the contract
	if c := CorrelationFrom(nil); c != (Correlation{}) {
		t.Errorf("Expected zero correlation, got %+v", c)
	}
	if c := CorrelationFrom(context.Background()); c != (Correlation{}) {
		t.Errorf("Expected zero correlation, got %+v", c)
	}
}

func TestTraceContext_NoParentSpan(t *testing.T) {
	ctx := TraceContext(context.Background(), "t", "s", "")
	if v := ctx.Value(ContextKeyParentSpan); v != nil {
		t.Errorf("Expected no parent span, got %v", v)
	}
}

func TestServiceContext_EmptyValuesSkipped(t *testing.T) {
	ctx := ServiceContext(context.Background(), "", "")
	if ctx != context.Background() {
		t.Error("Expected the original context when nothing is set")
	}
}

func TestExtractContextFields(t *testing.T) {
	ctx := WithContextFields(context.Background(), map[ContextKey]interface{}{
		ContextKeyRequestID: "r",
		ContextKeyUserID:    "u",
	})

	tests := []struct {
		name string
		keys []ContextKey
		want map[string]interface{}
	}{
		{name: "defaults", want: map[string]interface{}{"request_id": "r", "user_id": "u"}},
		{name: "specific", keys: []ContextKey{ContextKeyUserID}, want: map[string]interface{}{"user_id": "u"}},
		{name: "missing", keys: []ContextKey{ContextKeyTraceID}, want: map[string]interface{}{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractContextFields(ctx, tt.keys...)
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, got)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("Expected %s=%v, got %v", k, v, got[k])
				}
			}
		})
	}
}

func TestCorrelationContext(t *testing.T) {
	ctx, id := CorrelationContext(context.Background(), "")
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("Expected generated uuid, got %q", id)
	}
	if ctx.Value(ContextKeyCorrelation) != id {
		t.Error("Expected correlation id in context")
	}

	_, fixed := CorrelationContext(context.Background(), "corr-7")
	if fixed != "corr-7" {
		t.Errorf("Expected supplied id, got %q", fixed)
	}
}

func TestFormatContextFields(t *testing.T) {
	if got := FormatContextFields(context.Background()); got != "no context fields" {
		t.Errorf("Unexpected empty format %q", got)
	}

	ctx := WithContextFields(context.Background(), map[ContextKey]interface{}{
		ContextKeyUserID:    "u",
		ContextKeyRequestID: "r",
	})
	if got := FormatContextFields(ctx); got != "request_id=r user_id=u" {
		t.Errorf("Unexpected format %q", got)
	}
}
