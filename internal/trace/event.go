package trace

import "time"

// Kind is the type of a trace event.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1
	KindSpanEnd
	KindHeartbeat
)

func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindHeartbeat:
		return "heartbeat"
	}
	return "unknown"
}

// Scope is the granularity of a span. Coarser scopes have lower values.
type Scope uint8

const (
	// ScopeRun covers a whole check run.
	ScopeRun Scope = iota + 1
	// ScopeFile covers parsing, walking and reporting of one file.
	ScopeFile
	// ScopeNode covers the dispatch of one node to its checks.
	ScopeNode
)

func (s Scope) String() string {
	switch s {
	case ScopeRun:
		return "run"
	case ScopeFile:
		return "file"
	case ScopeNode:
		return "node"
	}
	return "unknown"
}

// Event is one record of the trace.
type Event struct {
	Time     time.Time
	Seq      uint64
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64 // 0 для корня
	Worker   int    // 0 - координатор, 1..N - потоки проверки файлов
	File     string // файл, внутри которого открыт span
	Name     string // "check", "src/Foo.java", "method_declaration"
	Detail   string
	Attrs    map[string]string
}
