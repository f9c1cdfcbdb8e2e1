package sinks

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/wayneeseguin/omnipipe/pkg/types"
)

// mockSink records writes and can be told to fail or panic.
type mockSink struct {
	mu         sync.Mutex
	name       string
	entries    []*types.LogEntry
	writeCalls int
	failOn     map[int]bool // 1-based call numbers that fail
	failAll    bool
	panicAll   bool
	closed     bool
	closeErr   error
}

func (m *mockSink) Name() string { return m.name }

func (m *mockSink) Write(e *types.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeCalls++
	if m.panicAll {
		panic("boom")
	}
	if m.failAll || m.failOn[m.writeCalls] {
		return errors.New("write failed")
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.closeErr
}

func (m *mockSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// mockBatchSink adds a native batch path.
type mockBatchSink struct {
	mockSink
	batches int
}

func (m *mockBatchSink) WriteBatch(entries []*types.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches++
	if m.failAll {
		return errors.New("batch failed")
	}
	m.entries = append(m.entries, entries...)
	return nil
}

func entries(n int) []*types.LogEntry {
	out := make([]*types.LogEntry, n)
	for i := range out {
		out[i] = &types.LogEntry{Message: fmt.Sprintf("msg %d", i)}
	}
	return out
}

func TestFanoutIsolatesFailures(t *testing.T) {
	bad := &mockSink{name: "bad", failAll: true}
	good := &mockSink{name: "good"}

	var reported []string
	f := NewFanout(Assemble([]types.Sink{bad, good}, false, nil), func(name string, err error) {
		reported = append(reported, name)
	})

	for _, e := range entries(5) {
		if err := f.Write(e); err != nil {
			t.Fatalf("Write returned error: %v", err)
		}
	}
	if err := f.WriteBatch(entries(3)); err != nil {
		t.Fatalf("WriteBatch returned error: %v", err)
	}

	if good.count() != 8 {
		t.Errorf("good sink got %d entries, want 8", good.count())
	}
	if len(reported) != 6 {
		t.Errorf("expected 6 reported failures, got %d", len(reported))
	}
}

func TestFanoutRecoversPanics(t *testing.T) {
	panicky := &mockSink{name: "panicky", panicAll: true}
	good := &mockSink{name: "good"}

	f := NewFanout(Assemble([]types.Sink{panicky, good}, false, nil), nil)
	f.Write(&types.LogEntry{Message: "x"})
	f.WriteBatch(entries(2))

	if good.count() != 3 {
		t.Errorf("good sink got %d entries, want 3", good.count())
	}
}

func TestFanoutPrefersBatchPath(t *testing.T) {
	batch := &mockBatchSink{mockSink: mockSink{name: "batch"}}
	single := &mockSink{name: "single"}

	f := NewFanout(Assemble([]types.Sink{batch, single}, false, nil), nil)
	f.WriteBatch(entries(4))

	if batch.batches != 1 {
		t.Errorf("batch sink: %d batch calls, want 1", batch.batches)
	}
	if batch.writeCalls != 0 {
		t.Errorf("batch sink: %d single writes, want 0", batch.writeCalls)
	}
	if single.writeCalls != 4 {
		t.Errorf("single sink: %d writes, want 4", single.writeCalls)
	}
	for i, e := range single.entries {
		if e.Message != fmt.Sprintf("msg %d", i) {
			t.Errorf("entry %d out of order: %s", i, e.Message)
		}
	}
}

func TestAssembleSkipsNilAndNames(t *testing.T) {
	var typedNil *mockSink
	a := &mockSink{name: "dup"}
	b := &mockSink{name: "dup"}
	c := &mockSink{}

	members := Assemble([]types.Sink{nil, typedNil, a, b, c}, true, nil)
	if len(members) != 3 {
		t.Fatalf("got %d members, want 3", len(members))
	}

	names := []string{members[0].Name(), members[1].Name(), members[2].Name()}
	want := []string{"dup", "dup-1", "sink-4"}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("member %d name = %q, want %q", i, names[i], want[i])
		}
		if members[i].Kind() != KindDegradable {
			t.Errorf("member %d kind = %v, want degradable", i, members[i].Kind())
		}
	}
	if members[0].Sink() != types.Sink(a) {
		t.Error("Sink() should return the raw sink")
	}
}

func TestDegradableFailsOnSecondWrite(t *testing.T) {
	raw := &mockSink{name: "flaky", failOn: map[int]bool{2: true}}
	d := NewDegradable("flaky", raw, nil)

	d.Write(&types.LogEntry{Message: "first"})
	h := d.Health()
	if !h.IsOperational {
		t.Error("sink should be operational after a successful write")
	}
	if h.LastSuccessfulWrite == nil {
		t.Error("last successful write should be recorded")
	}

	if err := d.Write(&types.LogEntry{Message: "second"}); err != nil {
		t.Fatalf("Write should swallow failures, got %v", err)
	}
	h = d.Health()
	if h.IsOperational {
		t.Error("sink should not be operational after a failure")
	}
	if h.StatusMessage != StatusDegraded {
		t.Errorf("status = %q, want %q", h.StatusMessage, StatusDegraded)
	}
	if h.ConsecutiveFailures != 1 {
		t.Errorf("consecutive failures = %d, want 1", h.ConsecutiveFailures)
	}
	if d.LastError() == nil {
		t.Error("LastError should be set while degraded")
	}

	d.Write(&types.LogEntry{Message: "third"})
	h = d.Health()
	if !h.IsOperational || h.StatusMessage != "" || h.ConsecutiveFailures != 0 {
		t.Errorf("sink should recover after success, got %+v", h)
	}
}

func TestDegradableConsecutiveFailures(t *testing.T) {
	raw := &mockBatchSink{mockSink: mockSink{name: "down", failAll: true}}
	var calls int
	d := NewDegradable("down", raw, func(string, error) { calls++ })

	for i := 0; i < 3; i++ {
		d.WriteBatch(entries(2))
	}
	d.WriteBatch(nil)

	h := d.Health()
	if h.ConsecutiveFailures != 3 {
		t.Errorf("consecutive failures = %d, want 3", h.ConsecutiveFailures)
	}
	if h.LastSuccessfulWrite != nil {
		t.Error("no success should be recorded")
	}
	if calls != 3 {
		t.Errorf("error callback called %d times, want 3", calls)
	}
}

func TestDegradableHealthDoesNotAlias(t *testing.T) {
	d := NewDegradable("s", &mockSink{}, nil)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	d.now = func() time.Time { return fixed }
	d.Write(&types.LogEntry{})

	h := d.Health()
	*h.LastSuccessfulWrite = time.Time{}

	if got := d.Health().LastSuccessfulWrite; got == nil || !got.Equal(fixed) {
		t.Errorf("snapshot mutation leaked into the sink: %v", got)
	}
}

type reportingSink struct {
	mockSink
	health types.SinkHealth
}

func (r *reportingSink) Health() types.SinkHealth { return r.health }

func TestFanoutHealth(t *testing.T) {
	plain := &mockSink{name: "plain"}
	rep := &reportingSink{
		mockSink: mockSink{name: "rep"},
		health:   types.SinkHealth{Name: "ignored", IsOperational: false, StatusMessage: "offline"},
	}

	f := NewFanout(Assemble([]types.Sink{plain, rep}, false, nil), nil)
	hs := f.Health()
	if len(hs) != 2 {
		t.Fatalf("got %d snapshots, want 2", len(hs))
	}
	if !hs[0].IsOperational || hs[0].Name != "plain" {
		t.Errorf("plain sink snapshot = %+v", hs[0])
	}
	if hs[1].IsOperational || hs[1].Name != "rep" || hs[1].StatusMessage != "offline" {
		t.Errorf("reporting sink snapshot = %+v", hs[1])
	}
}

func TestDegradableMergesReportedHealth(t *testing.T) {
	tests := []struct {
		name       string
		inner      types.SinkHealth
		fail       bool
		wantOp     bool
		wantStatus string
	}{
		{
			name:       "fallback status surfaces",
			inner:      types.SinkHealth{IsOperational: true, StatusMessage: "Fallback: open failed"},
			wantOp:     true,
			wantStatus: "Fallback: open failed",
		},
		{
			name:       "inner outage wins",
			inner:      types.SinkHealth{IsOperational: false, StatusMessage: "closed"},
			wantOp:     false,
			wantStatus: "closed",
		},
		{
			name:       "wrapper status takes precedence",
			inner:      types.SinkHealth{IsOperational: true, StatusMessage: "Fallback: open failed"},
			fail:       true,
			wantOp:     false,
			wantStatus: StatusDegraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := &reportingSink{mockSink: mockSink{name: "rep", failAll: tt.fail}, health: tt.inner}
			d := NewDegradable("rep", rep, nil)
			d.Write(&types.LogEntry{})

			h := d.Health()
			if h.IsOperational != tt.wantOp {
				t.Errorf("IsOperational = %v, want %v", h.IsOperational, tt.wantOp)
			}
			if h.StatusMessage != tt.wantStatus {
				t.Errorf("StatusMessage = %q, want %q", h.StatusMessage, tt.wantStatus)
			}
		})
	}
}

func TestFanoutCloseContinuesPastFailures(t *testing.T) {
	a := &mockSink{name: "a", closeErr: errors.New("close failed")}
	b := &mockSink{name: "b"}

	f := NewFanout(Assemble([]types.Sink{a, b}, true, nil), nil)
	if err := f.Close(); err == nil {
		t.Error("expected aggregated close error")
	}
	if !a.closed || !b.closed {
		t.Error("every sink should be closed")
	}
}
