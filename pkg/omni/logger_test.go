package omni

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/wayneeseguin/omnipipe/internal/utils"
	"github.com/wayneeseguin/omnipipe/pkg/types"
)

func loggerFor(t *testing.T, opts ...Option) (*Logger, *Provider, *recordingSink) {
	t.Helper()
	sink := &recordingSink{name: "rec"}
	p := newTestProvider(t, sink, opts...)
	logger, err := p.CreateLogger("test")
	if err != nil {
		t.Fatalf("CreateLogger failed: %v", err)
	}
	return logger, p, sink
}

func onlyEntry(t *testing.T, p *Provider, sink *recordingSink) *types.LogEntry {
	t.Helper()
	p.Flush()
	got := sink.snapshot()
	if len(got) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(got))
	}
	return got[0]
}

func TestLoggerTemplateState(t *testing.T) {
	logger, p, sink := loggerFor(t)

	logger.Info(context.Background(), "User {UserID} logged in from {IP}", 42, "10.0.0.1")

	e := onlyEntry(t, p, sink)
	if e.Message != "User 42 logged in from 10.0.0.1" {
		t.Errorf("Unexpected message %q", e.Message)
	}
	if e.State["UserID"] != 42 || e.State["IP"] != "10.0.0.1" {
		t.Errorf("Unexpected state %v", e.State)
	}
	if e.Category != "test" || e.Level != LevelInfo {
		t.Errorf("Unexpected category/level %q/%s", e.Category, e.Level)
	}
	if e.Timestamp.IsZero() || e.ID.String() == "" {
		t.Error("Expected timestamp and id to be set")
	}
}

func TestLoggerStatePrecedence(t *testing.T) {
	logger, p, sink := loggerFor(t)

	logger.WithFields(map[string]interface{}{"Source": "fields", "Kept": true}).
		Log(context.Background(), LevelWarn, EventID{ID: 7, Name: "Retry"},
			map[string]interface{}{"Attempt": "explicit"},
			nil, "{Source} attempt {Attempt}", "template", 3)

	e := onlyEntry(t, p, sink)
	if e.State["Source"] != "template" {
		t.Errorf("Expected template value to override fields, got %v", e.State["Source"])
	}
	if e.State["Attempt"] != "explicit" {
		t.Errorf("Expected explicit state to win, got %v", e.State["Attempt"])
	}
	if e.State["Kept"] != true {
		t.Errorf("Expected field to be kept, got %v", e.State["Kept"])
	}
	if e.EventID.ID != 7 || e.EventID.Name != "Retry" {
		t.Errorf("Unexpected event id %+v", e.EventID)
	}
}

func TestLoggerWithFieldsDoesNotMutateParent(t *testing.T) {
	logger, p, sink := loggerFor(t)
	child := logger.WithFields(map[string]interface{}{"child": 1})

	logger.Info(context.Background(), "parent")
	p.Flush()
	_ = child

	e := sink.snapshot()[0]
	if _, ok := e.State["child"]; ok {
		t.Error("Parent logger picked up child fields")
	}
}

func TestLoggerMinLevel(t *testing.T) {
	logger, p, sink := loggerFor(t, WithMinLevel(LevelWarn))

	if logger.IsEnabled(LevelInfo) {
		t.Error("Info should be disabled")
	}
	if !logger.IsEnabled(LevelError) {
		t.Error("Error should be enabled")
	}
	if logger.IsEnabled(LevelNone) {
		t.Error("LevelNone should never be enabled")
	}

	logger.Trace(context.Background(), "t")
	logger.Debug(context.Background(), "d")
	logger.Info(context.Background(), "i")
	logger.Warn(context.Background(), "w")
	logger.Critical(context.Background(), nil, "c")
	p.Flush()

	got := sink.snapshot()
	if len(got) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(got))
	}
	if got[0].Level != LevelWarn || got[1].Level != LevelCritical {
		t.Errorf("Unexpected levels %s, %s", got[0].Level, got[1].Level)
	}
}

func TestLoggerScopes(t *testing.T) {
	logger, p, sink := loggerFor(t)
	ctx := context.Background()

	outer, hOuter := logger.BeginScope(ctx, map[string]interface{}{"request": "r1", "user": "outer"})
	inner, hInner := logger.BeginScope(outer, map[string]interface{}{"user": "inner"})

	logger.Info(inner, "nested")
	hInner.Release()
	logger.Info(outer, "outer only")
	hOuter.Release()
	logger.Info(outer, "released")
	logger.Info(ctx, "none")
	p.Flush()

	got := sink.snapshot()
	if len(got) != 4 {
		t.Fatalf("Expected 4 entries, got %d", len(got))
	}
	if got[0].Scopes["user"] != "inner" || got[0].Scopes["request"] != "r1" {
		t.Errorf("Expected innermost scope to win, got %v", got[0].Scopes)
	}
	if got[1].Scopes["user"] != "outer" {
		t.Errorf("Expected outer scope after release, got %v", got[1].Scopes)
	}
	if len(got[2].Scopes) != 0 || len(got[3].Scopes) != 0 {
		t.Errorf("Expected no scopes, got %v and %v", got[2].Scopes, got[3].Scopes)
	}
}

func TestLoggerScopesIsolatedPerFlow(t *testing.T) {
	logger, p, sink := loggerFor(t, WithBatchSize(1000))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			ctx, h := logger.BeginScope(context.Background(), map[string]interface{}{"flow": id})
			defer h.Release()
			for j := 0; j < 10; j++ {
				logger.Info(ctx, "flow {Flow} step {Step}", id, j)
			}
		}(i)
	}
	wg.Wait()
	p.Flush()

	got := sink.snapshot()
	if len(got) != 200 {
		t.Fatalf("Expected 200 entries, got %d", len(got))
	}
	for _, e := range got {
		if e.Scopes["flow"] != e.State["Flow"] {
			t.Fatalf("Scope leaked across flows: scope %v, state %v", e.Scopes["flow"], e.State["Flow"])
		}
	}
}

func TestLoggerCorrelation(t *testing.T) {
	logger, p, sink := loggerFor(t, WithServiceName("checkout"), WithEnvironment("prod"))

	ctx := utils.TraceContext(context.Background(), "trace-1", "span-1", "")
	ctx = utils.WithHTTPRequest(ctx, &types.HTTPRequestInfo{Method: "POST", Path: "/orders", RequestID: "req-9"})

	logger.Info(ctx, "correlated")

	e := onlyEntry(t, p, sink)
	if e.TraceID != "trace-1" || e.SpanID != "span-1" {
		t.Errorf("Unexpected trace ids %q/%q", e.TraceID, e.SpanID)
	}
	if e.HTTPRequest == nil || e.HTTPRequest.Path != "/orders" {
		t.Errorf("Unexpected http request %+v", e.HTTPRequest)
	}
	if e.ServiceName != "checkout" || e.Environment != "prod" {
		t.Errorf("Expected config defaults, got %q/%q", e.ServiceName, e.Environment)
	}
}

func TestLoggerContextServiceOverridesConfig(t *testing.T) {
	logger, p, sink := loggerFor(t, WithServiceName("checkout"))

	ctx := utils.ServiceContext(context.Background(), "billing", "")
	logger.Info(ctx, "override")

	e := onlyEntry(t, p, sink)
	if e.ServiceName != "billing" {
		t.Errorf("Expected context service name, got %q", e.ServiceName)
	}
}

func TestLoggerErrorInfo(t *testing.T) {
	logger, p, sink := loggerFor(t)

	root := errors.New("connection refused")
	logger.Error(context.Background(), errors.Wrap(root, "dial db"), "query failed")

	e := onlyEntry(t, p, sink)
	if e.Error == nil {
		t.Fatal("Expected error info")
	}
	if e.Error.Message != "dial db: connection refused" {
		t.Errorf("Unexpected error message %q", e.Error.Message)
	}
	if !strings.Contains(e.Error.Type, "fundamental") {
		t.Errorf("Expected root cause type, got %q", e.Error.Type)
	}
	if !strings.Contains(e.Error.StackTrace, "TestLoggerErrorInfo") {
		t.Errorf("Expected stack trace to name the test, got %q", e.Error.StackTrace)
	}
}

func TestLoggerPlainErrorHasNoStack(t *testing.T) {
	logger, p, sink := loggerFor(t)

	logger.Error(context.Background(), fmt.Errorf("plain"), "failed")

	e := onlyEntry(t, p, sink)
	if e.Error == nil || e.Error.StackTrace != "" {
		t.Fatalf("Expected error info without stack, got %+v", e.Error)
	}
	if e.Error.Type != "*errors.errorString" {
		t.Errorf("Unexpected type %q", e.Error.Type)
	}
}

func TestLoggerNilContext(t *testing.T) {
	logger, p, sink := loggerFor(t)

	//nolint:staticcheck // nil context is tolerated
	logger.Info(nil, "no context")

	e := onlyEntry(t, p, sink)
	if e.Scopes != nil || e.TraceID != "" {
		t.Errorf("Expected empty correlation, got %+v", e)
	}
}
