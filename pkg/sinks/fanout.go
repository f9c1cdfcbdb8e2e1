package sinks

import (
	"fmt"
	"io"
	"reflect"

	"github.com/pkg/errors"
	"github.com/wayneeseguin/omnipipe/pkg/types"
)

// Kind tags how a member of a fan-out was assembled.
type Kind int

const (
	// KindPlain members are written to directly; failures are discarded.
	KindPlain Kind = iota
	// KindDegradable members are wrapped in a Degradable tracker.
	KindDegradable
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindDegradable:
		return "degradable"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Member is one destination of a Fanout. The degradation capability is
// decided once, when the member is built.
type Member struct {
	kind       Kind
	name       string
	plain      types.Sink
	degradable *Degradable
}

// Plain builds a member without failure tracking.
func Plain(name string, s types.Sink) Member {
	return Member{kind: KindPlain, name: name, plain: s}
}

// Tracked builds a member wrapped in a Degradable.
func Tracked(name string, s types.Sink, onError ErrorFunc) Member {
	return Member{kind: KindDegradable, name: name, degradable: NewDegradable(name, s, onError)}
}

// Kind returns how the member was assembled.
func (m Member) Kind() Kind { return m.kind }

// Name returns the member's reporting name.
func (m Member) Name() string { return m.name }

// Sink returns the raw sink behind the member.
func (m Member) Sink() types.Sink {
	if m.kind == KindDegradable {
		return m.degradable.Unwrap()
	}
	return m.plain
}

// Assemble turns raw sinks into fan-out members. Nil sinks are skipped.
// Unnamed sinks are called sink-<index>; duplicate names get a numeric suffix.
func Assemble(raw []types.Sink, degrade bool, onError ErrorFunc) []Member {
	members := make([]Member, 0, len(raw))
	seen := make(map[string]int)
	for i, s := range raw {
		if isNil(s) {
			continue
		}
		name := NameOf(s, fmt.Sprintf("sink-%d", i))
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = fmt.Sprintf("%s-%d", name, n)
		} else {
			seen[name] = 1
		}
		if degrade {
			members = append(members, Tracked(name, s, onError))
		} else {
			members = append(members, Plain(name, s))
		}
	}
	return members
}

// Fanout writes every entry to all members in order, isolating each member's
// failures from the others and from the caller.
type Fanout struct {
	members []Member
	onError ErrorFunc
}

// NewFanout creates a fan-out over the given members.
func NewFanout(members []Member, onError ErrorFunc) *Fanout {
	m := make([]Member, len(members))
	copy(m, members)
	return &Fanout{members: m, onError: onError}
}

// Write delivers entry to every member. It always returns nil.
func (f *Fanout) Write(entry *types.LogEntry) error {
	for _, m := range f.members {
		switch m.kind {
		case KindDegradable:
			_ = m.degradable.Write(entry)
		default:
			f.report(m.name, writeOne(m.plain, entry))
		}
	}
	return nil
}

// WriteBatch delivers entries to every member, using each member's batch
// path when it has one. It always returns nil.
func (f *Fanout) WriteBatch(entries []*types.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, m := range f.members {
		switch m.kind {
		case KindDegradable:
			_ = m.degradable.WriteBatch(entries)
		default:
			f.report(m.name, writeMany(m.plain, entries))
		}
	}
	return nil
}

func (f *Fanout) report(name string, err error) {
	if err != nil && f.onError != nil {
		f.onError(name, err)
	}
}

// Len returns the number of members.
func (f *Fanout) Len() int { return len(f.members) }

// Members returns a copy of the member list.
func (f *Fanout) Members() []Member {
	m := make([]Member, len(f.members))
	copy(m, f.members)
	return m
}

// Health returns a snapshot per member. Tracked members report their own
// state; plain members report through HealthReporter when they implement it
// and are assumed operational otherwise.
func (f *Fanout) Health() []types.SinkHealth {
	out := make([]types.SinkHealth, 0, len(f.members))
	for _, m := range f.members {
		if m.kind == KindDegradable {
			out = append(out, m.degradable.Health())
			continue
		}
		out = append(out, plainHealth(m))
	}
	return out
}

func plainHealth(m Member) types.SinkHealth {
	typ := TypeOf(m.plain)
	h, ok := reportedHealth(m.plain)
	if !ok {
		return types.SinkHealth{Name: m.name, Type: typ, IsOperational: true}
	}
	h.Name = m.name
	if h.Type == "" {
		h.Type = typ
	}
	return h
}

// Close closes every closable member, continuing past failures. The
// returned error lists every failure.
func (f *Fanout) Close() error {
	var errs []error
	for _, m := range f.members {
		if err := closeMember(m); err != nil {
			errs = append(errs, errors.Wrapf(err, "close sink %s", m.name))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func closeMember(m Member) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	if m.kind == KindDegradable {
		return m.degradable.Close()
	}
	if c, ok := m.plain.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func isNil(s types.Sink) bool {
	if s == nil {
		return true
	}
	v := reflect.ValueOf(s)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}
