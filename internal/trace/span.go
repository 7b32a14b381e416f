package trace

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

var (
	seq     atomic.Uint64
	spanIDs atomic.Uint64

	// открытые span'ы файлов, их перечисляет Heartbeat
	openFiles sync.Map // span id -> имя файла
)

// Span is an open interval of a run. Start returns a nil *Span when the
// tracer's level drops the scope; every method accepts a nil receiver.
type Span struct {
	t      Tracer
	ref    spanRef
	parent uint64
	scope  Scope
	name   string
	start  time.Time
	attrs  map[string]string
}

// Start begins a span under the span carried by ctx and returns a context
// carrying the new one. A file span also labels everything below it with
// name as the file.
func Start(ctx context.Context, scope Scope, name string) (context.Context, *Span) {
	t := FromContext(ctx)
	if !t.Level().ShouldEmit(scope) {
		return ctx, nil
	}
	parent := current(ctx)
	s := &Span{
		t:      t,
		ref:    spanRef{id: spanIDs.Add(1), worker: parent.worker, file: parent.file},
		parent: parent.id,
		scope:  scope,
		name:   name,
		start:  time.Now(),
	}
	if scope == ScopeFile {
		s.ref.file = name
		openFiles.Store(s.ref.id, name)
	}
	t.Emit(s.event(KindSpanBegin, s.start, ""))
	return context.WithValue(ctx, spanKey{}, s.ref), s
}

// Set records an attribute reported with the end event.
func (s *Span) Set(key string, value any) *Span {
	if s == nil {
		return nil
	}
	if s.attrs == nil {
		s.attrs = make(map[string]string)
	}
	s.attrs[key] = fmt.Sprint(value)
	return s
}

// End closes the span and returns its duration.
func (s *Span) End(detail string) time.Duration {
	if s == nil {
		return 0
	}
	now := time.Now()
	if s.scope == ScopeFile {
		openFiles.Delete(s.ref.id)
	}
	ev := s.event(KindSpanEnd, now, detail)
	ev.Attrs = s.attrs
	s.t.Emit(ev)
	return now.Sub(s.start)
}

func (s *Span) ID() uint64 {
	if s == nil {
		return 0
	}
	return s.ref.id
}

func (s *Span) event(kind Kind, at time.Time, detail string) *Event {
	return &Event{
		Time:     at,
		Seq:      seq.Add(1),
		Kind:     kind,
		Scope:    s.scope,
		SpanID:   s.ref.id,
		ParentID: s.parent,
		Worker:   s.ref.worker,
		File:     s.ref.file,
		Name:     s.name,
		Detail:   detail,
	}
}

// OpenFiles returns the files whose spans have begun but not ended, sorted.
func OpenFiles() []string {
	var files []string
	openFiles.Range(func(_, v any) bool {
		files = append(files, v.(string))
		return true
	})
	slices.Sort(files)
	return files
}
