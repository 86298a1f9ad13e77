package framework

import (
	"sort"
	"sync"
)

// MessageSortingQueue delivers messages on C in the order of their counters, which start at 1,
// however out of order they are accepted.
type MessageSortingQueue[T any] struct {
	C           chan T
	lastCounter int
	deferred    []deferredMessage[T]
	lock        sync.Mutex
	closeOnce   sync.Once
}

type deferredMessage[T any] struct {
	counter int
	message T
}

// NewMessageSortingQueue creates a queue. Accept blocks if C is full, so channelSize should
// be large enough for every message that can be pending at once.
func NewMessageSortingQueue[T any](channelSize int) *MessageSortingQueue[T] {
	return &MessageSortingQueue[T]{C: make(chan T, channelSize)}
}

func (q *MessageSortingQueue[T]) Accept(counter int, message T) {
	q.lock.Lock()
	defer q.lock.Unlock()
	if counter > q.lastCounter+1 {
		q.deferred = append(q.deferred, deferredMessage[T]{counter: counter, message: message})
		sort.Slice(q.deferred, func(i, j int) bool { return q.deferred[i].counter < q.deferred[j].counter })
		return
	}
	q.lastCounter = counter
	q.C <- message
	for len(q.deferred) > 0 {
		next := q.deferred[0]
		if next.counter != q.lastCounter+1 {
			break
		}
		q.deferred = q.deferred[1:]
		q.lastCounter++
		q.C <- next.message
	}
}

// Deferred returns the messages still waiting for an earlier counter.
func (q *MessageSortingQueue[T]) Deferred() []T {
	q.lock.Lock()
	ret := make([]T, 0, len(q.deferred))
	for _, d := range q.deferred {
		ret = append(ret, d.message)
	}
	q.lock.Unlock()
	return ret
}

// Close closes C. Messages that are still deferred are dropped.
func (q *MessageSortingQueue[T]) Close() {
	q.closeOnce.Do(func() {
		close(q.C)
	})
}
