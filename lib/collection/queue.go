package collection

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// node is a single element of the queue
type node[T any] struct {
	value *T
	next  atomic.Pointer[node[T]]
}

// queue is an unbounded multi-producer single-consumer queue feeding one channel.
// Producers never block: a slow subscriber only grows its own backlog.
//
// Push appends with a CAS on the tail node. A single consumer goroutine walks the list
// from the head and forwards every value to out. Close lets the consumer drain the
// backlog before out is closed, Stop closes out as soon as the consumer notices it.
type queue[T any] struct {
	head     atomic.Pointer[node[T]]
	tail     atomic.Pointer[node[T]]
	out      chan T
	consumer sync.WaitGroup
	closed   atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once

	mu   sync.Mutex
	cond *sync.Cond
}

func newQueue[T any]() *queue[T] {
	sentinel := &node[T]{}

	q := &queue[T]{
		out:  make(chan T),
		stop: make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	q.consumer.Add(1)
	go q.consume()

	return q
}

// Push appends a value. It returns false once the queue is closed.
func (q *queue[T]) Push(value T) bool {
	if q.closed.Load() {
		return false
	}

	newNode := &node[T]{value: &value}

	var backoff uint8
	for {
		tailNode := q.tail.Load()
		next := tailNode.next.Load()
		if next == nil {
			if tailNode.next.CompareAndSwap(nil, newNode) {
				q.tail.CompareAndSwap(tailNode, newNode)

				// the consumer checks for new nodes under mu before waiting, so taking
				// mu here means the signal cannot fall between its check and its Wait
				q.mu.Lock()
				q.cond.Signal()
				q.mu.Unlock()
				return true
			}
		} else {
			// help a producer that appended but has not moved the tail yet
			q.tail.CompareAndSwap(tailNode, next)
		}

		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

func (q *queue[T]) consume() {
	defer q.consumer.Done()
	defer close(q.out)

	for {
		hasItems := false

		for {
			head := q.head.Load()
			next := head.next.Load()
			if next == nil {
				break
			}
			hasItems = true

			value := next.value
			q.head.Store(next)

			select {
			case q.out <- *value:
			case <-q.stop:
				return
			}

			next.value = nil
		}

		if !hasItems && q.closed.Load() {
			return
		}

		if !hasItems {
			q.mu.Lock()
			if q.head.Load().next.Load() == nil && !q.closed.Load() && !q.stopped() {
				q.cond.Wait()
			}
			q.mu.Unlock()
			if q.stopped() {
				return
			}
		}
	}
}

func (q *queue[T]) stopped() bool {
	select {
	case <-q.stop:
		return true
	default:
		return false
	}
}

// Recv returns the channel the values are delivered on. It is closed after Close has
// drained the backlog or after Stop.
func (q *queue[T]) Recv() <-chan T {
	return q.out
}

// Close rejects further pushes. Values already queued are still delivered.
func (q *queue[T]) Close() {
	q.closed.Store(true)
	q.mu.Lock()
	q.cond.Signal()
	q.mu.Unlock()
}

// Stop rejects further pushes and discards the backlog. It waits for the consumer to
// exit, so the channel is closed when Stop returns.
func (q *queue[T]) Stop() {
	q.closed.Store(true)
	q.stopOnce.Do(func() {
		q.mu.Lock()
		close(q.stop)
		q.cond.Signal()
		q.mu.Unlock()
	})
	q.consumer.Wait()
}

// Len counts the queued values. O(n), meant for tests and debugging.
func (q *queue[T]) Len() int {
	count := 0
	current := q.head.Load()
	for {
		next := current.next.Load()
		if next == nil {
			break
		}
		count++
		current = next
	}
	return count
}
