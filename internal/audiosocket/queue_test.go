package audiosocket_test

import (
	"context"
	"testing"
	"time"

	"github.com/MrWong99/payphone/internal/audiosocket"
)

func TestQueueDropOldest(t *testing.T) {
	t.Parallel()

	q := audiosocket.NewQueue[int](3, audiosocket.DropOldest)
	for i := 1; i <= 5; i++ {
		if !q.Push(i) {
			t.Fatalf("Push(%d) rejected under DropOldest", i)
		}
	}
	if q.Dropped() != 2 {
		t.Errorf("Dropped = %d, want 2", q.Dropped())
	}
	var got []int
	for {
		v, ok := q.TryPop()
		if !ok {
			break
		}
		got = append(got, v)
	}
	want := []int{3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("drained %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("drained %v, want %v", got, want)
		}
	}
}

func TestQueueDropNewest(t *testing.T) {
	t.Parallel()

	q := audiosocket.NewQueue[int](2, audiosocket.DropNewest)
	q.Push(1)
	q.Push(2)
	if q.Push(3) {
		t.Error("Push on a full DropNewest queue must be rejected")
	}
	if q.Dropped() != 1 {
		t.Errorf("Dropped = %d, want 1", q.Dropped())
	}
	if v, _ := q.TryPop(); v != 1 {
		t.Errorf("head = %d, want 1", v)
	}
}

func TestQueuePopBlocksUntilPush(t *testing.T) {
	t.Parallel()

	q := audiosocket.NewQueue[string](4, audiosocket.DropOldest)
	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Push("hello")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	v, ok := q.Pop(ctx)
	if !ok || v != "hello" {
		t.Fatalf("Pop = %q, %v", v, ok)
	}
}

func TestQueuePopTimeout(t *testing.T) {
	t.Parallel()

	q := audiosocket.NewQueue[int](4, audiosocket.DropOldest)
	start := time.Now()
	_, ok := q.PopTimeout(context.Background(), 30*time.Millisecond)
	if ok {
		t.Fatal("PopTimeout on empty queue returned a value")
	}
	if time.Since(start) > time.Second {
		t.Error("PopTimeout did not respect its deadline")
	}

	// Zero timeout drains queued values without waiting.
	q.Push(7)
	if v, ok := q.PopTimeout(context.Background(), 0); !ok || v != 7 {
		t.Errorf("zero-timeout pop = %d, %v", v, ok)
	}
	if _, ok := q.PopTimeout(context.Background(), 0); ok {
		t.Error("zero-timeout pop on empty queue returned a value")
	}
}

func TestQueueCloseDrainsThenFails(t *testing.T) {
	t.Parallel()

	q := audiosocket.NewQueue[int](4, audiosocket.DropOldest)
	q.Push(1)
	q.Close()

	if v, ok := q.Pop(context.Background()); !ok || v != 1 {
		t.Fatalf("queued value lost on close: %d, %v", v, ok)
	}
	if _, ok := q.Pop(context.Background()); ok {
		t.Fatal("Pop on closed empty queue returned a value")
	}
	if q.Push(2) {
		t.Error("Push after Close must be rejected")
	}
}

func TestQueueCloseWakesWaiter(t *testing.T) {
	t.Parallel()

	q := audiosocket.NewQueue[int](4, audiosocket.DropOldest)
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop(context.Background())
		done <- ok
	}()
	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		if ok {
			t.Error("Pop returned a value from an empty closed queue")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not wake the blocked Pop")
	}
}
