// Package table provides the priority ordered registration table shared by
// the event dispatcher and the route collection.
//
// Entries are ordered by priority, highest first. Entries with equal
// priority are ordered by sequence, highest (most recently inserted) first.
//
// Writers serialize on a mutex and publish a fresh snapshot; readers load
// the current snapshot without locking and must treat it as read-only.
package table

import (
	"slices"
	"sync"
	"sync/atomic"
)

// Entry is a value together with its ordering key.
type Entry[T comparable] struct {
	Value    T
	Priority int
	Sequence uint64
}

type snapshot[T comparable] struct {
	entries []Entry[T]
	values  []T
}

// Table is a copy-on-write ordered collection. The zero value is ready to use.
type Table[T comparable] struct {
	mu   sync.Mutex
	seq  uint64
	snap atomic.Pointer[snapshot[T]]
}

// Before reports whether a is ordered ahead of b.
func Before[T comparable](a, b Entry[T]) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.Sequence > b.Sequence
}

func compare[T comparable](a, b Entry[T]) int {
	switch {
	case Before(a, b):
		return -1
	case Before(b, a):
		return 1
	default:
		return 0
	}
}

// Insert adds v with the given priority and returns its sequence number.
func (t *Table[T]) Insert(v T, priority int) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.seq++
	e := Entry[T]{Value: v, Priority: priority, Sequence: t.seq}
	entries := append(slices.Clone(t.current()), e)
	t.publish(entries)
	return e.Sequence
}

// Swap removes every value in remove and inserts every value in add, in
// order, as a single update. Readers observe either the old or the new
// table, never a mix.
func (t *Table[T]) Swap(remove []T, add []T, priority func(T) int) []uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := slices.DeleteFunc(slices.Clone(t.current()), func(e Entry[T]) bool {
		return slices.Contains(remove, e.Value)
	})
	seqs := make([]uint64, len(add))
	for i, v := range add {
		t.seq++
		seqs[i] = t.seq
		entries = append(entries, Entry[T]{Value: v, Priority: priority(v), Sequence: t.seq})
	}
	t.publish(entries)
	return seqs
}

// Update changes the priority of v, keeping its sequence. It reports
// whether v was present.
func (t *Table[T]) Update(v T, priority int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := slices.Clone(t.current())
	idx := slices.IndexFunc(entries, func(e Entry[T]) bool { return e.Value == v })
	if idx < 0 {
		return false
	}
	entries[idx].Priority = priority
	t.publish(entries)
	return true
}

// Remove deletes v and reports whether it was present.
func (t *Table[T]) Remove(v T) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur := t.current()
	entries := slices.DeleteFunc(slices.Clone(cur), func(e Entry[T]) bool { return e.Value == v })
	if len(entries) == len(cur) {
		return false
	}
	t.publish(entries)
	return true
}

// Replace discards the table contents and loads entries with their
// recorded sequences. Later inserts continue after the highest sequence.
func (t *Table[T]) Replace(entries []Entry[T]) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.seq = 0
	for _, e := range entries {
		t.seq = max(t.seq, e.Sequence)
	}
	t.publish(slices.Clone(entries))
}

// Values returns the ordered values. The slice must not be modified.
func (t *Table[T]) Values() []T {
	if s := t.snap.Load(); s != nil {
		return s.values
	}
	return nil
}

// Entries returns the ordered entries. The slice must not be modified.
func (t *Table[T]) Entries() []Entry[T] {
	return t.current()
}

// Len returns the number of entries.
func (t *Table[T]) Len() int {
	return len(t.current())
}

func (t *Table[T]) current() []Entry[T] {
	if s := t.snap.Load(); s != nil {
		return s.entries
	}
	return nil
}

func (t *Table[T]) publish(entries []Entry[T]) {
	slices.SortStableFunc(entries, compare[T])
	values := make([]T, len(entries))
	for i, e := range entries {
		values[i] = e.Value
	}
	t.snap.Store(&snapshot[T]{entries: entries, values: values})
}
