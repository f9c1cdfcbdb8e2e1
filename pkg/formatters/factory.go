package formatters

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/wayneeseguin/omnipipe/pkg/types"
)

// Factory creates formatter instances
type Factory struct {
	mu         sync.RWMutex
	formatters map[string]FormatterConstructor
}

// FormatterConstructor is a function that creates a formatter
type FormatterConstructor func() (types.Formatter, error)

// NewFactory creates a new formatter factory with default formatters registered
func NewFactory() *Factory {
	f := &Factory{
		formatters: make(map[string]FormatterConstructor),
	}

	_ = f.Register("text", func() (types.Formatter, error) {
		return NewTextFormatter(), nil
	})

	_ = f.Register("json", func() (types.Formatter, error) {
		return NewJSONFormatter(), nil
	})

	return f
}

// Register registers a new formatter constructor
func (f *Factory) Register(name string, constructor FormatterConstructor) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if name == "" {
		return fmt.Errorf("formatter name cannot be empty")
	}

	if constructor == nil {
		return fmt.Errorf("formatter constructor cannot be nil")
	}

	f.formatters[strings.ToLower(name)] = constructor
	return nil
}

// CreateFormatter creates a formatter by name. An empty name selects text.
func (f *Factory) CreateFormatter(name string) (types.Formatter, error) {
	if name == "" {
		name = "text"
	}

	f.mu.RLock()
	constructor, exists := f.formatters[strings.ToLower(name)]
	f.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("formatter %q not registered", name)
	}

	return constructor()
}

// ListFormatters returns the sorted names of all registered formatters
func (f *Factory) ListFormatters() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]string, 0, len(f.formatters))
	for name := range f.formatters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultFactory is the global formatter factory
var DefaultFactory = NewFactory()

// Register registers a formatter with the default factory
func Register(name string, constructor FormatterConstructor) error {
	return DefaultFactory.Register(name, constructor)
}

// CreateFormatter creates a formatter using the default factory
func CreateFormatter(name string) (types.Formatter, error) {
	return DefaultFactory.CreateFormatter(name)
}
