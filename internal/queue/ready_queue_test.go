package queue_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ricirt/feedhub/internal/domain"
	"github.com/ricirt/feedhub/internal/queue"
)

func item(id string) queue.Item {
	return queue.Item{JobID: id, Type: domain.JobNewPost}
}

func TestReadyQueue_BasicPushDequeue(t *testing.T) {
	q := queue.NewReadyQueue(4)

	require.NoError(t, q.Push(item("1")))

	got, ok := q.Dequeue(context.Background())
	require.True(t, ok)
	assert.Equal(t, "1", got.JobID)
}

func TestReadyQueue_PreservesOrder(t *testing.T) {
	q := queue.NewReadyQueue(4)
	_ = q.Push(item("a"))
	_ = q.Push(item("b"))

	first, _ := q.Dequeue(context.Background())
	second, _ := q.Dequeue(context.Background())
	assert.Equal(t, "a", first.JobID)
	assert.Equal(t, "b", second.JobID)
}

// TestReadyQueue_ContextCancellation verifies Dequeue returns (_, false)
// when the context is cancelled while blocking.
func TestReadyQueue_ContextCancellation(t *testing.T) {
	q := queue.NewReadyQueue(1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Dequeue(ctx)
		done <- ok
	}()

	cancel()

	select {
	case ok := <-done:
		assert.False(t, ok, "expected ok=false after context cancellation")
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not return after context cancellation")
	}
}

// TestReadyQueue_ErrQueueFull verifies the non-blocking Push returns
// ErrQueueFull when the buffer is saturated.
func TestReadyQueue_ErrQueueFull(t *testing.T) {
	q := queue.NewReadyQueue(1)

	require.NoError(t, q.Push(item("x")))
	assert.ErrorIs(t, q.Push(item("y")), domain.ErrQueueFull)
	assert.Equal(t, 0, q.Free())
}

// TestReadyQueue_ConcurrentPushDequeue verifies there are no races
// when multiple goroutines push and dequeue simultaneously.
func TestReadyQueue_ConcurrentPushDequeue(t *testing.T) {
	const producers = 5
	const itemsPerProducer = 100
	const total = producers * itemsPerProducer

	q := queue.NewReadyQueue(total)
	received := make(chan struct{}, total)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var consumerDone sync.WaitGroup
	consumerDone.Add(1)
	go func() {
		defer consumerDone.Done()
		for {
			_, ok := q.Dequeue(ctx)
			if !ok {
				return
			}
			received <- struct{}{}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < itemsPerProducer; j++ {
				_ = q.Push(item("id"))
			}
		}()
	}
	wg.Wait()

	for i := 0; i < total; i++ {
		select {
		case <-received:
		case <-ctx.Done():
			t.Fatalf("timeout: only received %d/%d items", i, total)
		}
	}
	cancel()
	consumerDone.Wait()
}

func TestReadyQueue_Depth(t *testing.T) {
	q := queue.NewReadyQueue(10)
	_ = q.Push(item("a"))
	_ = q.Push(item("b"))

	assert.Equal(t, 2, q.Depth())
	assert.Equal(t, 8, q.Free())
}
