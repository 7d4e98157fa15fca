// Copyright 2016 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dlist implements the small intrusive circular doubly-linked
// list used throughout the kernel core: a CPU's ready queue, a wait
// channel's sleeper queue, and a CPU's zombie list are all one of
// these. It is lifted directly from the teacher module's
// nsync.dll/waiter plumbing (waiter.go), generalized with a type
// parameter so sched.Thread doesn't need a bespoke copy of the same
// five methods.
//
// Every thread is on at most one list at a time (spec.md's data-model
// invariant); that's enforced by callers always calling Remove before
// PushBack/PushFront, never by this package.
package dlist

// Node is an intrusive list element. Embed it in the element type T and
// set Elem to the enclosing value; List[T] operates purely on the
// Node pointers, so inserts and removals never allocate.
type Node[T any] struct {
	next *Node[T]
	prev *Node[T]
	Elem T // the value this node is embedded in
}

// List is a circular doubly-linked list with a sentinel head node. The
// zero List is not ready to use; call MakeEmpty first (New does this
// for you).
type List[T any] struct {
	head Node[T]
}

// New returns an empty list.
func New[T any]() *List[T] {
	l := &List[T]{}
	l.MakeEmpty()
	return l
}

// MakeEmpty resets the list to empty. Requires that the list is not
// currently non-empty with elements still linked in, or those links
// become orphaned.
func (l *List[T]) MakeEmpty() {
	l.head.next = &l.head
	l.head.prev = &l.head
}

// IsEmpty reports whether the list has no elements.
func (l *List[T]) IsEmpty() bool {
	return l.head.next == &l.head
}

// Len counts the elements in the list. O(n); sched and wchan call it
// after every ready-queue, zombie-list and sleeper-queue change to feed
// the kmetrics gauges.
func (l *List[T]) Len() int {
	n := 0
	for p := l.head.next; p != &l.head; p = p.next {
		n++
	}
	return n
}

// PushBack appends e to the tail of the list. Requires e is not
// currently part of any list.
func (l *List[T]) PushBack(e *Node[T]) {
	e.insertAfter(l.head.prev)
}

// PushFront prepends e to the head of the list.
func (l *List[T]) PushFront(e *Node[T]) {
	e.insertAfter(&l.head)
}

func (e *Node[T]) insertAfter(p *Node[T]) {
	e.next = p.next
	e.prev = p
	e.next.prev = e
	e.prev.next = e
}

// Remove takes e out of whatever list it is linked into. Requires e is
// currently part of a list.
func (e *Node[T]) Remove() {
	e.next.prev = e.prev
	e.prev.next = e.next
	e.next = nil
	e.prev = nil
}

// PopFront removes and returns the head element's Elem, or the zero
// value and false if the list is empty.
func (l *List[T]) PopFront() (T, bool) {
	if l.IsEmpty() {
		var zero T
		return zero, false
	}
	n := l.head.next
	n.Remove()
	return n.Elem, true
}

// Front returns the head element's node without removing it, or nil if
// the list is empty.
func (l *List[T]) Front() *Node[T] {
	if l.IsEmpty() {
		return nil
	}
	return l.head.next
}

// DrainTo removes every element from l, in order, calling fn on each.
func (l *List[T]) DrainTo(fn func(T)) {
	for {
		e, ok := l.PopFront()
		if !ok {
			return
		}
		fn(e)
	}
}
