package check

import (
	"fmt"
	"strings"

	"github.com/tiendc/go-deepcopy"
)

// Properties holds configured values of one check.
// Values are scalars, strings, []string, []any or nested maps as decoded
// from the configuration file.
type Properties map[string]any

// Clone returns a deep copy; slices and maps are never shared with p.
func (p Properties) Clone() (Properties, error) {
	if p == nil {
		return Properties{}, nil
	}
	var out Properties
	if err := deepcopy.Copy(&out, p); err != nil {
		return nil, fmt.Errorf("copy properties: %w", err)
	}
	return out, nil
}

// Has reports whether key is set.
func (p Properties) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// String returns p[key] as a string, or def when absent.
func (p Properties) String(key, def string) (string, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("property %q: expected string, got %T", key, v)
	}
	return s, nil
}

// Int returns p[key] as an int, or def when absent.
func (p Properties) Int(key string, def int) (int, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("property %q: %v is not an integer", key, n)
		}
		return int(n), nil
	}
	return 0, fmt.Errorf("property %q: expected integer, got %T", key, v)
}

// Bool returns p[key] as a bool, or def when absent.
func (p Properties) Bool(key string, def bool) (bool, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("property %q: expected bool, got %T", key, v)
	}
	return b, nil
}

// Strings returns p[key] as a string list. A single string is split on commas.
// The returned slice belongs to p.
func (p Properties) Strings(key string) ([]string, error) {
	v, ok := p[key]
	if !ok {
		return nil, nil
	}
	switch list := v.(type) {
	case []string:
		return list, nil
	case string:
		out := splitList(list)
		p[key] = out
		return out, nil
	case []any:
		out := make([]string, 0, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("property %q[%d]: expected string, got %T", key, i, item)
			}
			out = append(out, s)
		}
		p[key] = out
		return out, nil
	}
	return nil, fmt.Errorf("property %q: expected list of strings, got %T", key, v)
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
