package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQueueDrainIsNonBlocking(t *testing.T) {
	q := NewQueue[int]()
	assert.Nil(t, q.Drain())

	q.Send(1)
	q.Send(2)
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, []int{1, 2}, q.Drain())
	assert.Nil(t, q.Drain())
}

func TestQueueSendAfterCloseIsDropped(t *testing.T) {
	q := NewQueue[string]()
	assert.True(t, q.Send("kept"))
	q.Close()

	assert.NotPanics(t, func() {
		assert.False(t, q.Send("dropped"))
	})
	assert.Equal(t, []string{"kept"}, q.Drain())
}

func TestQueueKeepsPerProducerOrder(t *testing.T) {
	type item struct{ producer, seq int }
	q := NewQueue[item]()

	const producers, perProducer = 8, 500
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Send(item{p, i})
			}
		}(p)
	}
	wg.Wait()

	next := make(map[int]int)
	items := q.Drain()
	assert.Len(t, items, producers*perProducer)
	for _, it := range items {
		assert.Equal(t, next[it.producer], it.seq)
		next[it.producer]++
	}
}

func TestQueueReadySignals(t *testing.T) {
	q := NewQueue[int]()
	go q.Send(42)

	select {
	case <-q.Ready():
	case <-time.After(time.Second):
		t.Fatal("ready was not signalled")
	}
	assert.Equal(t, []int{42}, q.Drain())
}
