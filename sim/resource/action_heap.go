package resource

import (
	"container/heap"
	"fmt"
)

// HeapReason tags why an Action sits in the ActionHeap.
type HeapReason int

const (
	// HeapUnset means the action is not scheduled.
	HeapUnset HeapReason = iota
	// HeapLatency is the date the startup latency of the action is paid.
	HeapLatency
	// HeapMaxDuration is the deadline set by the maximum duration.
	HeapMaxDuration
	// HeapNormal is the completion date at the current rate.
	HeapNormal
)

func (r HeapReason) String() string {
	switch r {
	case HeapUnset:
		return "unset"
	case HeapLatency:
		return "latency"
	case HeapMaxDuration:
		return "max_duration"
	case HeapNormal:
		return "normal"
	default:
		return fmt.Sprintf("HeapReason(%d)", int(r))
	}
}

// heapEntry is owned by the heap; the action only keeps a handle to it.
type heapEntry struct {
	date   float64
	seq    uint64
	action *Action
	index  int
}

// ActionHeap is a min-heap of actions keyed by date.
// Ordering: date → insertion sequence.
type ActionHeap struct {
	entries []*heapEntry
	nextSeq uint64
}

// Len implements heap.Interface
func (h *ActionHeap) Len() int { return len(h.entries) }

// Less implements heap.Interface with deterministic ordering
func (h *ActionHeap) Less(i, j int) bool {
	ei, ej := h.entries[i], h.entries[j]
	if ei.date != ej.date {
		return ei.date < ej.date
	}
	return ei.seq < ej.seq
}

// Swap implements heap.Interface
func (h *ActionHeap) Swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
	h.entries[i].index = i
	h.entries[j].index = j
}

// Push implements heap.Interface
func (h *ActionHeap) Push(x any) {
	e := x.(*heapEntry)
	e.index = len(h.entries)
	h.entries = append(h.entries, e)
}

// Pop implements heap.Interface
func (h *ActionHeap) Pop() any {
	old := h.entries
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	h.entries = old[:n-1]
	e.index = -1
	return e
}

// Empty reports whether no action is scheduled.
func (h *ActionHeap) Empty() bool { return len(h.entries) == 0 }

// Contains reports whether a is scheduled in this heap.
func (h *ActionHeap) Contains(a *Action) bool {
	e := a.heapEntry
	return e != nil && e.index >= 0 && e.index < len(h.entries) && h.entries[e.index] == e
}

// Insert schedules a at date. Panics if a is already scheduled.
func (h *ActionHeap) Insert(a *Action, date float64, reason HeapReason) {
	if a.heapEntry != nil {
		panic(fmt.Sprintf("action %s is already in the heap", a.name))
	}
	a.heapReason = reason
	a.heapEntry = &heapEntry{date: date, seq: h.nextSeq, action: a}
	h.nextSeq++
	heap.Push(h, a.heapEntry)
}

// Update moves a to date, inserting it when it is not scheduled yet.
func (h *ActionHeap) Update(a *Action, date float64, reason HeapReason) {
	if a.heapEntry == nil {
		h.Insert(a, date, reason)
		return
	}
	if !h.Contains(a) {
		panic(fmt.Sprintf("action %s is scheduled in another heap", a.name))
	}
	a.heapReason = reason
	a.heapEntry.date = date
	heap.Fix(h, a.heapEntry.index)
}

// Remove unschedules a. It is a no-op when a is not scheduled.
func (h *ActionHeap) Remove(a *Action) {
	if a.heapEntry == nil {
		a.heapReason = HeapUnset
		return
	}
	if !h.Contains(a) {
		return
	}
	a.heapReason = HeapUnset
	heap.Remove(h, a.heapEntry.index)
	a.heapEntry = nil
}

// PopAction removes and returns the earliest action. The action keeps its heap reason
// so that the caller can tell why it was scheduled. Returns nil when empty.
func (h *ActionHeap) PopAction() *Action {
	if len(h.entries) == 0 {
		return nil
	}
	e := heap.Pop(h).(*heapEntry)
	e.action.heapEntry = nil
	return e.action
}

// TopDate returns the earliest scheduled date.
func (h *ActionHeap) TopDate() (float64, bool) {
	if len(h.entries) == 0 {
		return 0, false
	}
	return h.entries[0].date, true
}

// DateOf returns the date a is scheduled at.
func (h *ActionHeap) DateOf(a *Action) (float64, bool) {
	if !h.Contains(a) {
		return 0, false
	}
	return a.heapEntry.date, true
}
