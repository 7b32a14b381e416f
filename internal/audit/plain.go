package audit

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"arbor/internal/check"
)

// PlainListener writes formatted events as lines of text.
type PlainListener struct {
	w        *bufio.Writer
	closer   io.Closer
	colorize bool
	trace    bool // печатать стек паники для исключений
	err      error
}

// NewPlainListener writes to w; colorize highlights severity labels and
// stacks adds panic stacks to exceptions.
func NewPlainListener(w io.Writer, colorize, stacks bool) *PlainListener {
	return &PlainListener{w: bufio.NewWriter(w), colorize: colorize, trace: stacks}
}

// CloseOnFinish closes c after the last flush.
func (l *PlainListener) CloseOnFinish(c io.Closer) *PlainListener {
	l.closer = c
	return l
}

func (l *PlainListener) write(s string) {
	if l.err != nil {
		return
	}
	_, l.err = l.w.WriteString(s)
}

func (l *PlainListener) AuditStarted() {
	l.write("Starting audit...\n")
}

func (l *PlainListener) FileStarted(string) {}

func (l *PlainListener) AddEvent(ev *Event, formatted string) {
	if l.colorize {
		formatted = colorLabel(ev.Severity(), formatted)
	}
	l.write(formatted)
	l.write("\n")
}

func (l *PlainListener) AddException(path string, err error) {
	l.write("Error auditing " + path + ": " + err.Error() + "\n")
	var pe *check.PanicError
	if l.trace && errors.As(err, &pe) {
		for line := range strings.SplitSeq(strings.TrimRight(string(pe.Stack), "\n"), "\n") {
			l.write("\t" + line + "\n")
		}
	}
}

func (l *PlainListener) FileFinished(string) {}

func (l *PlainListener) AuditFinished() error {
	l.write("Audit done.\n")
	if err := l.w.Flush(); err != nil && l.err == nil {
		l.err = err
	}
	if l.closer != nil {
		if err := l.closer.Close(); err != nil && l.err == nil {
			l.err = err
		}
	}
	if l.err != nil {
		return fmt.Errorf("plain listener: %w", l.err)
	}
	return nil
}

func colorLabel(sev Severity, formatted string) string {
	label := "[" + SeverityLabel(sev) + "]"
	var c *color.Color
	switch sev {
	case check.SevError:
		c = color.New(color.FgRed, color.Bold)
	case check.SevWarning:
		c = color.New(color.FgYellow)
	default:
		c = color.New(color.FgCyan)
	}
	c.EnableColor()
	return c.Sprint(label) + strings.TrimPrefix(formatted, label)
}
