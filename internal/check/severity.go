package check

import (
	"fmt"
	"strings"
)

// Severity defines the importance of a violation.
type Severity uint8

// The zero value is SevError: a check configured without a severity reports
// errors.
const (
	SevError Severity = iota
	SevWarning
	SevInfo
	// SevIgnore events are never delivered to listeners.
	SevIgnore
)

// Rank orders severities by importance: ignore < info < warning < error.
func (s Severity) Rank() int {
	if s > SevIgnore {
		return -1
	}
	return int(SevIgnore - s)
}

func (s Severity) String() string {
	switch s {
	case SevIgnore:
		return "ignore"
	case SevInfo:
		return "info"
	case SevWarning:
		return "warning"
	case SevError:
		return "error"
	}
	return "unknown"
}

// ParseSeverity accepts the names produced by String, case-insensitively.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ignore":
		return SevIgnore, nil
	case "info":
		return SevInfo, nil
	case "warning", "warn":
		return SevWarning, nil
	case "error":
		return SevError, nil
	}
	return SevIgnore, fmt.Errorf("unknown severity %q", s)
}

// UnmarshalText allows Severity in TOML/YAML documents.
func (s *Severity) UnmarshalText(text []byte) error {
	v, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
