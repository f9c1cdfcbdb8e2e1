// Package scope implements nested correlation scopes that follow a logical
// flow through its context.Context.
//
// Every push returns a derived context and a Handle. Frames form a private,
// immutable chain per flow: concurrent flows built from different contexts
// never see each other's frames, and a child goroutine handed a context sees
// exactly the frames that were open when the context was derived.
//
//	ctx, h := stack.Push(ctx, map[string]interface{}{"request_id": id})
//	defer h.Release()
//	fields := stack.Current(ctx)
package scope

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Fields is the key/value shape a frame can take besides plain maps.
type Fields map[string]interface{}

// Stack owns a private context key so several stacks can coexist in one
// context without interfering.
type Stack struct {
	key *stackKey
}

type stackKey struct{ name string }

type frame struct {
	parent   *frame
	value    interface{}
	depth    int
	released atomic.Bool
}

// Handle releases one pushed frame. Releasing is idempotent and a nil Handle
// is safe to release.
type Handle struct {
	f *frame
}

// NewStack creates an empty scope stack.
func NewStack() *Stack {
	return &Stack{key: &stackKey{name: "omni-scope"}}
}

// Push opens a new frame on top of the chain carried by ctx. The returned
// context carries the frame; a nil frame is accepted and contributes nothing.
func (s *Stack) Push(ctx context.Context, value interface{}) (context.Context, *Handle) {
	if ctx == nil {
		ctx = context.Background()
	}
	parent := s.top(ctx)
	f := &frame{parent: parent, value: value, depth: 1}
	if parent != nil {
		f.depth = parent.depth + 1
	}
	return context.WithValue(ctx, s.key, f), &Handle{f: f}
}

// Release pops the frame this handle was created for.
func (h *Handle) Release() {
	if h == nil || h.f == nil {
		return
	}
	h.f.released.Store(true)
}

// Close implements io.Closer so handles can be deferred uniformly.
func (h *Handle) Close() error {
	h.Release()
	return nil
}

// Current merges all open frames of the flow into one map. The innermost
// frame wins on key collisions. Non map-shaped frames are stored under a
// positional key (scope_<depth>). Current never returns nil.
func (s *Stack) Current(ctx context.Context) map[string]interface{} {
	result := make(map[string]interface{})
	if ctx == nil {
		return result
	}
	for f := s.top(ctx); f != nil; f = f.parent {
		if f.released.Load() {
			continue
		}
		mergeFrame(result, f)
	}
	return result
}

// Depth returns the number of open frames in the flow.
func (s *Stack) Depth(ctx context.Context) int {
	n := 0
	if ctx == nil {
		return n
	}
	for f := s.top(ctx); f != nil; f = f.parent {
		if !f.released.Load() {
			n++
		}
	}
	return n
}

func (s *Stack) top(ctx context.Context) *frame {
	f, _ := ctx.Value(s.key).(*frame)
	return f
}

func mergeFrame(dst map[string]interface{}, f *frame) {
	switch v := f.value.(type) {
	case nil:
	case map[string]interface{}:
		putAbsent(dst, v)
	case Fields:
		putAbsent(dst, v)
	case map[string]string:
		for k, val := range v {
			if _, ok := dst[k]; !ok {
				dst[k] = val
			}
		}
	case []KeyValue:
		for _, kv := range v {
			if _, ok := dst[kv.Key]; !ok {
				dst[kv.Key] = kv.Value
			}
		}
	default:
		key := fmt.Sprintf("scope_%d", f.depth)
		if _, ok := dst[key]; !ok {
			dst[key] = v
		}
	}
}

func putAbsent(dst, src map[string]interface{}) {
	for k, v := range src {
		if _, ok := dst[k]; !ok {
			dst[k] = v
		}
	}
}

// KeyValue is an ordered key/value pair, usable as a frame via []KeyValue.
type KeyValue struct {
	Key   string
	Value interface{}
}
