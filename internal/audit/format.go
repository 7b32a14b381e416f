package audit

import (
	"strconv"
	"strings"

	"arbor/internal/check"
)

// Severity is re-exported for listeners and filters.
type Severity = check.Severity

// Formatter turns an event into one line of text.
type Formatter interface {
	Format(ev *Event) string
}

// DefaultFormatter produces
//
//	[SEVERITY] file:line[:column]: message [identifier]
//
// WARNING is printed as WARN; the column is omitted when it is not positive;
// the identifier is the module id or the module's short name.
type DefaultFormatter struct{}

func (DefaultFormatter) Format(ev *Event) string {
	var sb strings.Builder
	sb.Grow(len(ev.FileName()) + len(ev.Message()) + 32)
	sb.WriteByte('[')
	sb.WriteString(SeverityLabel(ev.Severity()))
	sb.WriteString("] ")
	sb.WriteString(ev.FileName())
	sb.WriteByte(':')
	sb.WriteString(strconv.Itoa(ev.Line()))
	if ev.Column() > 0 {
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(ev.Column()))
	}
	sb.WriteString(": ")
	sb.WriteString(Sentence(ev.Message()))
	sb.WriteString(" [")
	sb.WriteString(ev.Identifier())
	sb.WriteByte(']')
	return sb.String()
}

// SeverityLabel returns the upper-case name, with WARNING abbreviated to WARN.
func SeverityLabel(s Severity) string {
	label := strings.ToUpper(s.String())
	if label == "WARNING" {
		return "WARN"
	}
	return label
}

// Sentence terminates msg with a period unless it already ends with one.
func Sentence(msg string) string {
	if msg == "" || strings.HasSuffix(msg, ".") {
		return msg
	}
	return msg + "."
}
