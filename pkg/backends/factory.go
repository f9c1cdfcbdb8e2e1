package backends

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/wayneeseguin/omnipipe/pkg/types"
)

// ErrUnknownScheme is returned by Open for URIs it cannot route.
var ErrUnknownScheme = errors.New("unknown sink scheme")

// Sink type tags reported in health snapshots.
const (
	TypeConsole = "console"
	TypeFile    = "file"
	TypeSyslog  = "syslog"
	TypeNATS    = "nats"
	TypeMemory  = "memory"
)

// Open builds a formatted sink from a URI:
//
//	stdout, stderr, console://stdout
//	/var/log/app.log, file:///var/log/app.log?compress=gzip&level=9
//	syslog://localhost:514?tag=app, syslog:///dev/log
//	nats://host:4222/subject
//	memory://?limit=500
func Open(name, uri string, formatter types.Formatter) (*Sink, error) {
	if formatter == nil {
		return nil, errors.New("formatter is required")
	}
	backend, typ, err := openBackend(uri)
	if err != nil {
		return nil, errors.Wrapf(err, "open sink %q", name)
	}
	if name == "" {
		name = uri
	}
	return NewSink(name, typ, backend, formatter), nil
}

func openBackend(uri string) (Backend, string, error) {
	switch strings.ToLower(uri) {
	case "stdout", "console://stdout", "console://":
		return NewStdoutBackend(), TypeConsole, nil
	case "stderr", "console://stderr":
		return NewStderrBackend(), TypeConsole, nil
	}

	if !strings.Contains(uri, "://") {
		if uri == "" {
			return nil, "", errors.Wrap(ErrUnknownScheme, "empty uri")
		}
		b, err := NewFileBackend(uri, FileOptions{})
		return b, TypeFile, err
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, "", errors.Wrapf(err, "parse %q", uri)
	}
	q := u.Query()

	switch u.Scheme {
	case "file":
		path := u.Path
		if u.Host != "" {
			path = u.Host + u.Path
		}
		opts := FileOptions{Compress: q.Get("compress") == "gzip"}
		if v := q.Get("level"); v != "" {
			if opts.CompressionLevel, err = strconv.Atoi(v); err != nil {
				return nil, "", errors.Wrapf(err, "invalid compression level %q", v)
			}
		}
		b, err := NewFileBackend(path, opts)
		return b, TypeFile, err
	case "syslog":
		network, address := q.Get("network"), u.Host
		if address == "" && u.Path != "" {
			network, address = "unix", u.Path
		}
		b, err := NewSyslogBackend(network, address, q.Get("tag"))
		return b, TypeSyslog, err
	case "nats":
		b, err := NewNATSBackend(uri)
		return b, TypeNATS, err
	case "memory":
		limit := 0
		if v := q.Get("limit"); v != "" {
			if limit, err = strconv.Atoi(v); err != nil {
				return nil, "", errors.Wrapf(err, "invalid memory limit %q", v)
			}
		}
		return NewMemoryBackend(limit), TypeMemory, nil
	}
	return nil, "", errors.Wrapf(ErrUnknownScheme, "%q", u.Scheme)
}

// NewFallback returns a stderr console sink standing in for one that
// could not be opened. Its health status carries the cause.
func NewFallback(name string, cause error, formatter types.Formatter) *Sink {
	s := NewSink(name, TypeConsole, NewStderrBackend(), formatter)
	s.MarkFallback(cause)
	return s
}
