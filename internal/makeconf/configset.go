package makeconf

import (
	"fmt"
	"io"
	"strings"
)

// ConfigSet is the result of loading a configuration file: an ordered mapping
// from key to resolved value. It is immutable after load and therefore safe to
// share across concurrent readers without locking.
type ConfigSet struct {
	keys   []string
	values map[string]string
}

func newConfigSet() *ConfigSet {
	return &ConfigSet{
		values: make(map[string]string),
	}
}

// set records an assignment. Re-assigning an existing key overwrites its value
// but keeps its original position (last-write-wins).
func (s *ConfigSet) set(key, value string) {
	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] = value
}

// Get returns the resolved value for key and whether the key was assigned.
func (s *ConfigSet) Get(key string) (string, bool) {
	value, ok := s.values[key]
	return value, ok
}

// Value returns the resolved value for key, or the empty string when the key
// was never assigned.
func (s *ConfigSet) Value(key string) string {
	return s.values[key]
}

// Keys returns the assigned keys in definition order.
func (s *ConfigSet) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Len returns the number of distinct keys.
func (s *ConfigSet) Len() int {
	return len(s.keys)
}

// Map returns a copy of the key/value mapping.
func (s *ConfigSet) Map() map[string]string {
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Encode re-serializes the set as KEY=VALUE lines in definition order. Values
// that survived loading as plain unquoted strings round-trip verbatim; values
// containing whitespace or shell metacharacters are quoted so the output loads
// back to an identical set.
func (s *ConfigSet) Encode(w io.Writer) error {
	for _, key := range s.keys {
		if _, err := fmt.Fprintf(w, "%s=%s\n", key, quoteValue(s.values[key])); err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
	}
	return nil
}

func quoteValue(value string) string {
	if value == "" || !strings.ContainsAny(value, " \t\n#'\"$") {
		return value
	}
	if !strings.Contains(value, "'") {
		return "'" + value + "'"
	}
	return `"` + value + `"`
}
