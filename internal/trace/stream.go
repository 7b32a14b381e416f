package trace

import (
	"io"
	"os"
	"sync"
)

// Stream writes every event to w as it arrives. At LevelError it writes
// nothing: that level only feeds a Ring.
type Stream struct {
	mu     sync.Mutex
	w      io.Writer
	level  Level
	format Format
}

func NewStream(w io.Writer, level Level, format Format) *Stream {
	if format == FormatAuto {
		format = FormatText
	}
	return &Stream{w: w, level: level, format: format}
}

func (s *Stream) Emit(ev *Event) {
	if s.level <= LevelError {
		return
	}
	if ev.Kind != KindHeartbeat && !s.level.ShouldEmit(ev.Scope) {
		return
	}
	data := FormatEvent(ev, s.format)
	s.mu.Lock()
	defer s.mu.Unlock()
	// ошибка записи трассы не должна прерывать проверку
	_, _ = s.w.Write(data) //nolint:errcheck
}

func (s *Stream) Level() Level { return s.level }

// Close flushes w and closes it unless it is stdout or stderr.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.w.(interface{ Flush() error }); ok {
		if err := f.Flush(); err != nil {
			return err
		}
	}
	if s.w == os.Stdout || s.w == os.Stderr {
		return nil
	}
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
