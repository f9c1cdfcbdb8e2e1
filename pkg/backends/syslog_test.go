package backends_test

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/wayneeseguin/omnipipe/pkg/backends"
	"github.com/wayneeseguin/omnipipe/pkg/types"
)

// startSyslogServer accepts one TCP connection and sends every line it
// reads on the returned channel.
func startSyslogServer(t *testing.T) (string, <-chan string) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to start mock server: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	lines := make(chan string, 16)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return listener.Addr().String(), lines
}

func TestSyslogBackend_Priorities(t *testing.T) {
	addr, lines := startSyslogServer(t)

	backend, err := backends.NewSyslogBackend("tcp", addr, "test-app")
	if err != nil {
		t.Fatalf("Failed to create syslog backend: %v", err)
	}
	defer backend.Close()

	if _, err := backend.WriteLevel(types.LevelError, []byte("disk failing\n")); err != nil {
		t.Fatalf("WriteLevel failed: %v", err)
	}
	if _, err := backend.Write([]byte("  plain  ")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := backend.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	want := []string{"<11>test-app: disk failing", "<14>test-app: plain"}
	for _, w := range want {
		select {
		case got := <-lines:
			if got != w {
				t.Errorf("Expected %q, got %q", w, got)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("Timed out waiting for %q", w)
		}
	}

	if stats := backend.GetStats(); stats.WriteCount != 2 {
		t.Errorf("Expected 2 writes, got %d", stats.WriteCount)
	}
}

func TestSeverityFor(t *testing.T) {
	tests := []struct {
		level types.Level
		want  int
	}{
		{types.LevelTrace, backends.SeverityDebug},
		{types.LevelDebug, backends.SeverityDebug},
		{types.LevelInfo, backends.SeverityInfo},
		{types.LevelWarn, backends.SeverityWarning},
		{types.LevelError, backends.SeverityError},
		{types.LevelCritical, backends.SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			if got := backends.SeverityFor(tt.level); got != tt.want {
				t.Errorf("SeverityFor(%v) = %d, want %d", tt.level, got, tt.want)
			}
		})
	}
}

func TestFormatSyslog(t *testing.T) {
	got := backends.FormatSyslog(13, "app", []byte("hello\n"))
	if got != "<13>app: hello\n" {
		t.Errorf("Unexpected framing %q", got)
	}
}
