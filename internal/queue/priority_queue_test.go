package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/hireloop/notify-engine/internal/queue"
)

func item(id string, priority int) queue.Item {
	return queue.Item{JobID: id, Priority: priority}
}

func TestPriorityQueue_BasicEnqueueDequeue(t *testing.T) {
	q := queue.New()
	ctx := context.Background()

	if err := q.Enqueue(item("1", 2)); err != nil {
		t.Fatal(err)
	}

	got, ok := q.Dequeue(ctx)
	if !ok {
		t.Fatal("expected item, got nothing")
	}
	if got.JobID != "1" {
		t.Fatalf("expected id=1, got %s", got.JobID)
	}
}

// TestPriorityQueue_HighBeforeNormal verifies that a high-priority item
// inserted after a normal-priority item is still served first.
func TestPriorityQueue_HighBeforeNormal(t *testing.T) {
	q := queue.New()
	ctx := context.Background()

	_ = q.Enqueue(item("normal", 2))
	_ = q.Enqueue(item("urgent", 5))

	first, _ := q.Dequeue(ctx)
	if first.JobID != "urgent" {
		t.Fatalf("expected urgent to be dequeued first, got %q", first.JobID)
	}
}

// TestPriorityQueue_TierMapping checks the priority-to-tier cut points
// through the Depths snapshot.
func TestPriorityQueue_TierMapping(t *testing.T) {
	q := queue.New()

	_ = q.Enqueue(item("a", 5))
	_ = q.Enqueue(item("b", 4))
	_ = q.Enqueue(item("c", 3))
	_ = q.Enqueue(item("d", 2))
	_ = q.Enqueue(item("e", 1))
	_ = q.Enqueue(item("f", 0))

	high, normal, low := q.Depths()
	if high != 2 || normal != 2 || low != 2 {
		t.Fatalf("depths = (%d, %d, %d), want (2, 2, 2)", high, normal, low)
	}
}

// TestPriorityQueue_ContextCancellation verifies Dequeue returns (_, false)
// when the context is cancelled while blocking.
func TestPriorityQueue_ContextCancellation(t *testing.T) {
	q := queue.New()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Dequeue(ctx)
		done <- ok
	}()

	cancel()

	select {
	case ok := <-done:
		if ok {
			t.Fatal("expected ok=false after context cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not return after context cancellation")
	}
}
