package omni

import "fmt"

// ProviderState is a stage of the provider lifecycle. States only move
// forward: Created, Operational, Stopping, Disposing, Disposed.
type ProviderState int32

const (
	// StateCreated is the state before the first logger is created
	StateCreated ProviderState = iota
	// StateOperational accepts log entries
	StateOperational
	// StateStopping is entered by the first Close call
	StateStopping
	// StateDisposing covers the final flush
	StateDisposing
	// StateDisposed is terminal
	StateDisposed
)

var stateNames = [...]string{"Created", "Operational", "Stopping", "Disposing", "Disposed"}

func (s ProviderState) String() string {
	if s < StateCreated || s > StateDisposed {
		return fmt.Sprintf("ProviderState(%d)", int32(s))
	}
	return stateNames[s]
}

// State returns the current lifecycle state. It never blocks.
func (p *Provider) State() ProviderState {
	return ProviderState(p.state.Load())
}

// IsOperational reports whether the provider currently accepts entries.
func (p *Provider) IsOperational() bool {
	return p.State() == StateOperational
}

// activate moves Created to Operational. Concurrent callers agree on one
// winner; it reports whether the provider is operational afterwards.
func (p *Provider) activate() bool {
	p.state.CompareAndSwap(int32(StateCreated), int32(StateOperational))
	return p.State() == StateOperational
}

// beginShutdown moves Created or Operational to Stopping and reports
// whether this caller won the right to run the shutdown sequence.
func (p *Provider) beginShutdown() bool {
	for {
		current := p.State()
		if current != StateCreated && current != StateOperational {
			return false
		}
		if p.state.CompareAndSwap(int32(current), int32(StateStopping)) {
			return true
		}
	}
}

// transition performs a forward move that only the shutdown owner makes.
// Any other predecessor means the state machine is broken.
func (p *Provider) transition(from, to ProviderState) {
	if !p.state.CompareAndSwap(int32(from), int32(to)) {
		panic(&InvariantError{From: from, To: to, Actual: p.State()})
	}
}
