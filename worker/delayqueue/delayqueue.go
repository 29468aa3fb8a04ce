// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package delayqueue provides a blocking min-ordered queue releasing elements
// only once their deadline has passed. It is safe for many producers and many
// consumers; ready elements are handed out first-come first-served.
package delayqueue

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"oss.indeed.com/go/libtime"
)

// Delayed is an element with a release deadline. Elements with equal
// deadlines are ordered by ID, smaller first.
type Delayed interface {
	Deadline() time.Time
	ID() int
}

// Queue is a min-heap of delayed elements guarded by a mutex. A secondary
// index map supports removal by id, and wakeCh is closed-and-replaced to
// broadcast head changes to blocked consumers.
type Queue[E Delayed] struct {
	lock    sync.Mutex
	entries delayHeapImp[E]
	index   map[int]*delayHeapEntry[E]
	wakeCh  chan struct{}
	clock   libtime.Clock
}

// delayHeapEntry is one element in the heap.
type delayHeapEntry[E Delayed] struct {
	elem     E
	deadline time.Time
	heapIdx  int
}

type delayHeapImp[E Delayed] []*delayHeapEntry[E]

func New[E Delayed](clock libtime.Clock) *Queue[E] {
	if clock == nil {
		clock = libtime.SystemClock()
	}
	return &Queue[E]{
		entries: make(delayHeapImp[E], 0),
		index:   make(map[int]*delayHeapEntry[E]),
		wakeCh:  make(chan struct{}),
		clock:   clock,
	}
}

// Offer inserts an element. Offering an element whose deadline precedes the
// current head wakes any blocked consumer.
func (q *Queue[E]) Offer(elem E) {
	q.lock.Lock()
	defer q.lock.Unlock()

	entry := &delayHeapEntry[E]{
		elem:     elem,
		deadline: elem.Deadline(),
	}
	heap.Push(&q.entries, entry)
	q.index[elem.ID()] = entry
	q.wakeLocked()
}

// Take blocks until the head element's delay has elapsed and returns it, or
// until the context is done. Among ready elements consumers are served in
// arrival order.
func (q *Queue[E]) Take(ctx context.Context) (E, error) {
	var empty E
	for {
		q.lock.Lock()
		var timerCh <-chan time.Time
		wake := q.wakeCh
		if len(q.entries) > 0 {
			head := q.entries[0]
			remain := head.deadline.Sub(q.clock.Now())
			if remain <= 0 {
				heap.Pop(&q.entries)
				delete(q.index, head.elem.ID())
				q.lock.Unlock()
				return head.elem, nil
			}
			timerCh = time.After(remain)
		}
		q.lock.Unlock()

		select {
		case <-ctx.Done():
			return empty, ctx.Err()
		case <-timerCh:
		case <-wake:
		}
	}
}

// Remove drops the element with the given id from the queue. It returns
// whether an element was removed.
func (q *Queue[E]) Remove(id int) bool {
	q.lock.Lock()
	defer q.lock.Unlock()

	entry, ok := q.index[id]
	if !ok {
		return false
	}
	heap.Remove(&q.entries, entry.heapIdx)
	delete(q.index, id)
	q.wakeLocked()
	return true
}

// Size returns the number of queued elements.
func (q *Queue[E]) Size() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return len(q.entries)
}

// wakeLocked broadcasts a head change to all blocked consumers. Lock must be
// held.
func (q *Queue[E]) wakeLocked() {
	close(q.wakeCh)
	q.wakeCh = make(chan struct{})
}

// The heap interface implementation below is not thread safe; the queue lock
// must be held while using it.

func (h delayHeapImp[E]) Len() int { return len(h) }

func (h delayHeapImp[E]) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].elem.ID() < h[j].elem.ID()
	}
	return h[i].deadline.Before(h[j].deadline)
}

func (h delayHeapImp[E]) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIdx = i
	h[j].heapIdx = j
}

func (h *delayHeapImp[E]) Push(x interface{}) {
	entry := x.(*delayHeapEntry[E])
	entry.heapIdx = len(*h)
	*h = append(*h, entry)
}

func (h *delayHeapImp[E]) Pop() interface{} {
	old := *h
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return entry
}
