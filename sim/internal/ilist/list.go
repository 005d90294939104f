// Package ilist provides ordered membership lists whose items carry their own
// link handle (Hook). One record can belong to several lists at once by owning
// one Hook per list, and can be unlinked from any of them in O(1) without a search.
//
// Thread-safety: NOT thread-safe. Must be used from a single goroutine.
package ilist

import (
	"container/list"
	"iter"
)

// Hook is the per-list link handle embedded in a record.
// The zero value is an unlinked hook.
type Hook[T any] struct {
	e    *list.Element
	list *List[T]
}

// Linked reports whether the hook is currently linked into any list.
func (h *Hook[T]) Linked() bool {
	return h.e != nil
}

// In reports whether the hook is linked into l.
func (h *Hook[T]) In(l *List[T]) bool {
	return h.e != nil && h.list == l
}

type entry[T any] struct {
	value T
	hook  *Hook[T]
}

// List is an ordered collection of records linked through their hooks.
// The zero value is an empty list ready to use. A List must not be copied after first use.
type List[T any] struct {
	l list.List
}

// Len returns the number of linked records.
func (l *List[T]) Len() int {
	return l.l.Len()
}

// Empty reports whether the list holds no record.
func (l *List[T]) Empty() bool {
	return l.l.Len() == 0
}

// PushBack links v at the tail of the list through h.
// Panics if h is already linked: a hook belongs to at most one list.
func (l *List[T]) PushBack(v T, h *Hook[T]) {
	if h.e != nil {
		panic("ilist: PushBack on a linked hook")
	}
	h.e = l.l.PushBack(&entry[T]{value: v, hook: h})
	h.list = l
}

// PushFront links v at the head of the list through h.
func (l *List[T]) PushFront(v T, h *Hook[T]) {
	if h.e != nil {
		panic("ilist: PushFront on a linked hook")
	}
	h.e = l.l.PushFront(&entry[T]{value: v, hook: h})
	h.list = l
}

// Remove unlinks h from l. It is a no-op returning false when h is not linked into l.
func (l *List[T]) Remove(h *Hook[T]) bool {
	if !h.In(l) {
		return false
	}
	l.l.Remove(h.e)
	h.e = nil
	h.list = nil
	return true
}

// Front returns the head record without unlinking it.
func (l *List[T]) Front() (T, bool) {
	e := l.l.Front()
	if e == nil {
		var zero T
		return zero, false
	}
	return e.Value.(*entry[T]).value, true
}

// PopFront unlinks and returns the head record.
func (l *List[T]) PopFront() (T, bool) {
	e := l.l.Front()
	if e == nil {
		var zero T
		return zero, false
	}
	ent := e.Value.(*entry[T])
	l.Remove(ent.hook)
	return ent.value, true
}

// Clear unlinks every record.
func (l *List[T]) Clear() {
	for e := l.l.Front(); e != nil; {
		next := e.Next()
		ent := e.Value.(*entry[T])
		ent.hook.e = nil
		ent.hook.list = nil
		e = next
	}
	l.l.Init()
}

// All iterates the list from head to tail. The record being visited may be
// unlinked by the loop body. Iteration stops early when the body unlinks the
// record that would have been visited next.
func (l *List[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for e := l.l.Front(); e != nil; {
			next := e.Next()
			if !yield(e.Value.(*entry[T]).value) {
				return
			}
			if next != nil && next.Value.(*entry[T]).hook.e != next {
				return
			}
			e = next
		}
	}
}

// Values returns a snapshot of the records in list order.
func (l *List[T]) Values() []T {
	out := make([]T, 0, l.l.Len())
	for e := l.l.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*entry[T]).value)
	}
	return out
}
