package omni

import (
	"errors"
	"strings"
	"testing"
)

func TestProviderStateString(t *testing.T) {
	tests := []struct {
		state ProviderState
		want  string
	}{
		{StateCreated, "Created"},
		{StateOperational, "Operational"},
		{StateStopping, "Stopping"},
		{StateDisposing, "Disposing"},
		{StateDisposed, "Disposed"},
		{ProviderState(17), "ProviderState(17)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("ProviderState(%d).String() = %q, want %q", int32(tt.state), got, tt.want)
		}
	}
}

func TestTransitionPanicsOnUnexpectedState(t *testing.T) {
	p := &Provider{}
	p.state.Store(int32(StateOperational))

	defer func() {
		r := recover()
		ie, ok := r.(*InvariantError)
		if !ok {
			t.Fatalf("Expected *InvariantError panic, got %v", r)
		}
		if ie.Actual != StateOperational || ie.From != StateStopping || ie.To != StateDisposing {
			t.Errorf("Unexpected invariant error %+v", ie)
		}
		if !strings.Contains(ie.Error(), "Stopping -> Disposing") {
			t.Errorf("Unexpected message %q", ie.Error())
		}
	}()

	p.transition(StateStopping, StateDisposing)
}

func TestBeginShutdownHasOneWinner(t *testing.T) {
	p := &Provider{}

	if !p.beginShutdown() {
		t.Fatal("Expected first shutdown to win from Created")
	}
	if p.beginShutdown() {
		t.Error("Expected second shutdown to lose")
	}
	if p.activate() {
		t.Error("Expected activate to fail while stopping")
	}
}

func TestLogErrorFormatting(t *testing.T) {
	cause := errors.New("no space left on device")
	e := LogError{Operation: "write", Destination: "app", Message: "sink write failed", Err: cause, Level: ErrorLevelMedium}

	if e.Error() != "sink write failed: no space left on device" {
		t.Errorf("Unexpected message %q", e.Error())
	}
	if !errors.Is(e, cause) {
		t.Error("Expected LogError to unwrap to its cause")
	}

	same := LogError{Message: cause.Error(), Err: cause}
	if same.Error() != cause.Error() {
		t.Errorf("Expected message not to repeat, got %q", same.Error())
	}
	if ErrorLevelHigh.String() == "" {
		t.Error("Expected a name for ErrorLevelHigh")
	}
}
