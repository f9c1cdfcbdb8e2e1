package omni

import (
	"regexp"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/wayneeseguin/omnipipe/pkg/types"
)

// Redacted replaces sensitive values.
const Redacted = "[REDACTED]"

// maxRedactCache bounds the per-redactor memo of redacted strings.
const maxRedactCache = 1000

// sensitiveKeywords are matched case-insensitively as substrings of state and
// scope keys.
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "api_key", "apikey",
	"authorization", "private_key", "client_secret", "session",
	"credit_card", "card_number", "cvv", "ssn",
}

// Redactor masks sensitive entry data before it reaches the buffer: values
// under sensitive keys are replaced and the configured patterns are applied to
// the message and every string value.
type Redactor struct {
	patterns []*regexp.Regexp

	mu    sync.RWMutex
	cache map[string]string
}

// NewRedactor compiles patterns. Invalid patterns wrap ErrInvalidConfig.
func NewRedactor(patterns []string) (*Redactor, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidConfig, "redact pattern %q: %v", p, err)
		}
		compiled = append(compiled, re)
	}
	return &Redactor{patterns: compiled, cache: make(map[string]string)}, nil
}

// IsSensitiveKey reports whether values under key are always masked.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, s := range sensitiveKeywords {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

// Apply redacts entry in place. State and scope maps must already be owned
// by the entry; nested maps are copied before they are modified.
func (r *Redactor) Apply(entry *types.LogEntry) {
	entry.Message = r.redactString(entry.Message)
	r.redactFields(entry.State)
	r.redactFields(entry.Scopes)
	if entry.Error != nil {
		entry.Error.Message = r.redactString(entry.Error.Message)
	}
}

func (r *Redactor) redactFields(fields map[string]interface{}) {
	for k, v := range fields {
		if IsSensitiveKey(k) {
			fields[k] = Redacted
			continue
		}
		switch val := v.(type) {
		case string:
			fields[k] = r.redactString(val)
		case map[string]interface{}:
			nested := copyFields(val)
			r.redactFields(nested)
			fields[k] = nested
		}
	}
}

func (r *Redactor) redactString(input string) string {
	if len(r.patterns) == 0 || input == "" {
		return input
	}

	r.mu.RLock()
	cached, ok := r.cache[input]
	r.mu.RUnlock()
	if ok {
		return cached
	}

	result := input
	for _, re := range r.patterns {
		result = re.ReplaceAllString(result, Redacted)
	}

	r.mu.Lock()
	if len(r.cache) < maxRedactCache {
		r.cache[input] = result
	}
	r.mu.Unlock()
	return result
}
