package omni

import (
	"io"

	"github.com/pkg/errors"
	"github.com/wayneeseguin/omnipipe/pkg/backends"
	"github.com/wayneeseguin/omnipipe/pkg/formatters"
	"github.com/wayneeseguin/omnipipe/pkg/types"
)

// openSinks opens every configured sink URI. A destination that fails to
// open is replaced by a stderr fallback sink and reported; the returned
// flag tells the caller to enter degraded mode. Unknown schemes are usage
// errors and close whatever was already opened.
func openSinks(configs []SinkConfig, handler func(LogError)) ([]types.Sink, bool, error) {
	opened := make([]types.Sink, 0, len(configs))
	degraded := false

	for _, sc := range configs {
		formatter, err := formatters.CreateFormatter(sc.Format)
		if err != nil {
			closeAll(opened)
			return nil, false, errors.Wrapf(ErrInvalidConfig, "sink %q: %v", sc.Name, err)
		}

		sink, err := backends.Open(sc.Name, sc.URI, formatter)
		if err == nil {
			opened = append(opened, sink)
			continue
		}
		if errors.Is(err, ErrUnknownSinkScheme) {
			closeAll(opened)
			return nil, false, err
		}

		name := sc.Name
		if name == "" {
			name = sc.URI
		}
		handler(LogError{
			Operation:   "open",
			Destination: name,
			Message:     "sink unavailable, writing to stderr fallback",
			Err:         err,
			Level:       ErrorLevelHigh,
		})
		opened = append(opened, backends.NewFallback(name, errors.Cause(err), formatter))
		degraded = true
	}

	return opened, degraded, nil
}

func closeAll(sinks []types.Sink) {
	for _, s := range sinks {
		if c, ok := s.(io.Closer); ok {
			_ = c.Close()
		}
	}
}
