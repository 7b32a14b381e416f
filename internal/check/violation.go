package check

import (
	"cmp"
	"slices"

	"arbor/internal/ast"
)

// Violation is a single detected problem. Values are never mutated after
// creation.
type Violation struct {
	Line            int // 1-based
	Column          int // 1-based, с раскрытием табуляции; 0 - позиция неизвестна
	ColumnCharIndex int // 0-based индекс символа в строке
	Kind            ast.Kind
	Key             string // ключ сообщения, стабильный для фильтров
	Message         string
	ModuleName      string // имя модуля, например "IllegalKindCheck"
	ModuleID        string // пользовательский id, перекрывает имя в выводе
	Severity        Severity
}

// SortViolations orders violations by position. The sort is stable, so
// violations at the same position keep the order in which they were raised.
func SortViolations(vs []Violation) {
	slices.SortStableFunc(vs, func(a, b Violation) int {
		if c := cmp.Compare(a.Line, b.Line); c != 0 {
			return c
		}
		return cmp.Compare(a.Column, b.Column)
	})
}
