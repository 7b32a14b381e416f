package ast

import (
	"fmt"
	"slices"
	"sync"
)

// KindTable interns node-kind names. It is shared by every tree produced
// by one parser, so kind values are stable across files and goroutines.
type KindTable struct {
	mu      sync.RWMutex
	byID    []string        // индекс -> имя (byID[0] = "" для AnyKind)
	index   map[string]Kind // имя -> Kind
	text    map[Kind]bool   // виды, у которых есть атрибут text
	comment map[Kind]bool   // виды комментариев
}

func NewKindTable() *KindTable {
	return &KindTable{
		byID:    []string{""},
		index:   map[string]Kind{"": AnyKind},
		text:    make(map[Kind]bool),
		comment: make(map[Kind]bool),
	}
}

// Intern возвращает Kind для имени, добавляя его при необходимости.
func (t *KindTable) Intern(name string) Kind {
	t.mu.RLock()
	k, ok := t.index[name]
	t.mu.RUnlock()
	if ok {
		return k
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if k, ok := t.index[name]; ok {
		return k
	}
	if len(t.byID) > int(^Kind(0)) {
		panic(fmt.Errorf("kind table overflow at %q", name))
	}
	k = Kind(len(t.byID))
	t.byID = append(t.byID, name)
	t.index[name] = k
	return k
}

// Lookup возвращает Kind по имени без добавления.
func (t *KindTable) Lookup(name string) (Kind, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	k, ok := t.index[name]
	return k, ok && k != AnyKind
}

// Name возвращает имя вида; для неизвестных значений пустую строку.
func (t *KindTable) Name(k Kind) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(k) >= len(t.byID) {
		return ""
	}
	return t.byID[k]
}

// MarkText records that nodes of the named kinds carry a text attribute.
func (t *KindTable) MarkText(names ...string) {
	for _, name := range names {
		k := t.Intern(name)
		t.mu.Lock()
		t.text[k] = true
		t.mu.Unlock()
	}
}

// MarkComment records that the named kinds are comments.
func (t *KindTable) MarkComment(names ...string) {
	for _, name := range names {
		k := t.Intern(name)
		t.mu.Lock()
		t.comment[k] = true
		t.mu.Unlock()
	}
}

func (t *KindTable) HasText(k Kind) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.text[k]
}

func (t *KindTable) IsComment(k Kind) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.comment[k]
}

// Len returns the number of interned kinds, AnyKind included.
func (t *KindTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}

// Snapshot returns a copy of all names indexed by Kind.
func (t *KindTable) Snapshot() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.byID)
}
