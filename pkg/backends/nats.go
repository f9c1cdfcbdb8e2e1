package backends

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultNATSSubject is used when the URI has no path.
const DefaultNATSSubject = "logs"

// NATSConfig is the parsed form of a nats:// sink URI.
type NATSConfig struct {
	Servers []string
	Subject string
	Options []nats.Option
}

// ParseNATSURI parses nats://[user:pass@]host:port/subject?max_reconnect=N&reconnect_wait=S&tls=true
func ParseNATSURI(uri string) (*NATSConfig, error) {
	parsedURL, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid URI: %w", err)
	}
	if parsedURL.Scheme != "nats" {
		return nil, fmt.Errorf("invalid scheme: %s (expected 'nats')", parsedURL.Scheme)
	}

	cfg := &NATSConfig{
		Subject: strings.Trim(parsedURL.Path, "/"),
		Options: []nats.Option{nats.Name("omnipipe")},
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultNATSSubject
	}
	cfg.Subject = strings.ReplaceAll(cfg.Subject, "/", ".")

	query := parsedURL.Query()
	if v := query.Get("max_reconnect"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid max_reconnect %q: %w", v, err)
		}
		cfg.Options = append(cfg.Options, nats.MaxReconnects(n))
	}
	if v := query.Get("reconnect_wait"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid reconnect_wait %q: %w", v, err)
		}
		cfg.Options = append(cfg.Options, nats.ReconnectWait(time.Duration(n)*time.Second))
	}
	if v := query.Get("tls"); v != "" {
		if on, _ := strconv.ParseBool(v); on {
			cfg.Options = append(cfg.Options, nats.Secure())
		}
	}
	if parsedURL.User != nil {
		username := parsedURL.User.Username()
		password, _ := parsedURL.User.Password()
		cfg.Options = append(cfg.Options, nats.UserInfo(username, password))
	}

	if parsedURL.Host != "" {
		for _, host := range strings.Split(parsedURL.Host, ",") {
			cfg.Servers = append(cfg.Servers, "nats://"+host)
		}
	} else {
		cfg.Servers = []string{nats.DefaultURL}
	}
	return cfg, nil
}

// NATSBackend publishes each entry as one message on a subject. Batching
// is left to the pipeline buffer; Flush waits for the server to
// acknowledge everything published so far.
type NATSBackend struct {
	mu      sync.Mutex
	conn    *nats.Conn
	subject string
	stats   writeStats
}

// NewNATSBackend connects using a nats:// URI
func NewNATSBackend(uri string) (*NATSBackend, error) {
	cfg, err := ParseNATSURI(uri)
	if err != nil {
		return nil, err
	}
	conn, err := nats.Connect(strings.Join(cfg.Servers, ","), cfg.Options...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSBackend{conn: conn, subject: cfg.Subject}, nil
}

// Write publishes one entry
func (n *NATSBackend) Write(entry []byte) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	start := time.Now()
	err := n.conn.Publish(n.subject, entry)
	if err != nil {
		err = fmt.Errorf("failed to publish: %w", err)
		n.stats.record(0, start, err)
		return 0, err
	}
	n.stats.record(len(entry), start, nil)
	return len(entry), nil
}

// Flush round-trips to the server
func (n *NATSBackend) Flush() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn.IsClosed() {
		return nats.ErrConnectionClosed
	}
	return n.conn.Flush()
}

// Close drains pending messages and closes the connection
func (n *NATSBackend) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn.IsClosed() {
		return nil
	}
	if err := n.conn.Flush(); err != nil {
		n.conn.Close()
		return err
	}
	n.conn.Close()
	return nil
}

// SupportsAtomic returns false
func (n *NATSBackend) SupportsAtomic() bool { return false }

// Sync flushes the connection
func (n *NATSBackend) Sync() error { return n.Flush() }

// Subject returns the publish subject
func (n *NATSBackend) Subject() string { return n.subject }

// GetStats returns backend statistics
func (n *NATSBackend) GetStats() BackendStats {
	return n.stats.snapshot("nats:" + n.subject)
}
