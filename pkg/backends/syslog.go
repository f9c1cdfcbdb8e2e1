package backends

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/wayneeseguin/omnipipe/pkg/types"
)

// FacilityUser is the syslog "user-level messages" facility.
const FacilityUser = 1

// Syslog severities (RFC 5424).
const (
	SeverityCritical = 2
	SeverityError    = 3
	SeverityWarning  = 4
	SeverityInfo     = 6
	SeverityDebug    = 7
)

// SyslogBackend writes entries to a syslog daemon using
// "<priority>tag: message" framing.
type SyslogBackend struct {
	network  string
	address  string
	conn     net.Conn
	writer   *bufio.Writer
	facility int
	tag      string
	mu       sync.Mutex
	stats    writeStats
}

// NewSyslogBackend connects to a syslog daemon. An empty address probes
// the usual local sockets.
func NewSyslogBackend(network, address, tag string) (*SyslogBackend, error) {
	if address == "" {
		for _, path := range []string{"/dev/log", "/var/run/syslog", "/var/run/log"} {
			if _, err := os.Stat(path); err == nil {
				network = "unix"
				address = path
				break
			}
		}
		if address == "" {
			return nil, fmt.Errorf("no local syslog socket found")
		}
	}
	if network == "" {
		network = "udp"
	}
	if tag == "" {
		tag = "omnipipe"
	}

	conn, err := net.DialTimeout(network, address, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("dial syslog: %w", err)
	}

	return &SyslogBackend{
		network:  network,
		address:  address,
		conn:     conn,
		writer:   bufio.NewWriter(conn),
		facility: FacilityUser,
		tag:      tag,
	}, nil
}

// SeverityFor maps a log level to a syslog severity.
func SeverityFor(level types.Level) int {
	switch {
	case level >= types.LevelCritical:
		return SeverityCritical
	case level == types.LevelError:
		return SeverityError
	case level == types.LevelWarn:
		return SeverityWarning
	case level == types.LevelInfo:
		return SeverityInfo
	default:
		return SeverityDebug
	}
}

// Write writes an entry at informational severity
func (sb *SyslogBackend) Write(entry []byte) (int, error) {
	return sb.WriteLevel(types.LevelInfo, entry)
}

// WriteLevel writes an entry with the priority derived from level
func (sb *SyslogBackend) WriteLevel(level types.Level, entry []byte) (int, error) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	start := time.Now()
	message := FormatSyslog(sb.facility*8+SeverityFor(level), sb.tag, entry)
	n, err := sb.writer.WriteString(message)
	sb.stats.record(n, start, err)
	return n, err
}

// FormatSyslog frames one message, trimming surrounding whitespace and
// terminating it with a newline.
func FormatSyslog(priority int, tag string, entry []byte) string {
	return fmt.Sprintf("<%d>%s: %s\n", priority, tag, strings.TrimSpace(string(entry)))
}

// Flush flushes buffered data
func (sb *SyslogBackend) Flush() error {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.writer.Flush()
}

// Close closes the syslog connection
func (sb *SyslogBackend) Close() error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	var errs []error
	if err := sb.writer.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("flush: %w", err))
	}
	if err := sb.conn.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close conn: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// SupportsAtomic returns false as syslog doesn't support atomic writes
func (sb *SyslogBackend) SupportsAtomic() bool {
	return false
}

// Sync syncs the backend (flushes for syslog)
func (sb *SyslogBackend) Sync() error {
	return sb.Flush()
}

// GetStats returns backend statistics
func (sb *SyslogBackend) GetStats() BackendStats {
	return sb.stats.snapshot(fmt.Sprintf("syslog://%s/%s", sb.network, sb.address))
}
