package collection

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueOrderSingleProducer(t *testing.T) {
	q := newQueue[int]()
	for i := 0; i < 100; i++ {
		require.True(t, q.Push(i))
	}
	q.Close()
	assert.False(t, q.Push(100))

	var got []int
	for v := range q.Recv() {
		got = append(got, v)
	}
	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestQueueConcurrentProducers(t *testing.T) {
	q := newQueue[int]()
	const producers, perProducer = 8, 500

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(i)
			}
		}()
	}

	done := make(chan int)
	go func() {
		n := 0
		for range q.Recv() {
			n++
		}
		done <- n
	}()

	wg.Wait()
	q.Close()
	assert.Equal(t, producers*perProducer, <-done)
}

func TestQueueStopDiscardsBacklog(t *testing.T) {
	q := newQueue[int]()
	for i := 0; i < 10; i++ {
		q.Push(i)
	}
	q.Stop()
	q.Stop()

	n := 0
	for range q.Recv() {
		n++
	}
	// the consumer may have been blocked handing over the first value
	assert.LessOrEqual(t, n, 1)
	assert.False(t, q.Push(1))
}
