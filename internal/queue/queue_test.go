package queue

import (
	"testing"
	"time"
)

func TestPushPopOrder(t *testing.T) {
	q := New(5, DropOldest)
	for _, m := range []string{"A", "B", "C"} {
		q.Push(m)
	}
	if got := q.Size(); got != 3 {
		t.Fatalf("size = %d, want 3", got)
	}
	for _, want := range []string{"A", "B", "C"} {
		got, err := q.Pop(time.Second)
		if err != nil {
			t.Fatalf("pop: %v", err)
		}
		if got != want {
			t.Fatalf("pop = %v, want %v", got, want)
		}
	}
}

func TestPopEmptyTimesOut(t *testing.T) {
	q := New(5, DropOldest)
	start := time.Now()
	_, err := q.Pop(50 * time.Millisecond)
	if err != ErrEmpty {
		t.Fatalf("err = %v, want ErrEmpty", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("returned too early: %v", elapsed)
	}
}

func TestOverflowDropOldest(t *testing.T) {
	q := New(3, DropOldest)
	for _, m := range []string{"A", "B", "C", "D", "E"} {
		q.Push(m)
	}
	want := []string{"C", "D", "E"}
	for _, w := range want {
		got, err := q.Pop(time.Second)
		if err != nil {
			t.Fatalf("pop: %v", err)
		}
		if got != w {
			t.Fatalf("pop = %v, want %v", got, w)
		}
	}
	if q.Dropped() != 2 {
		t.Fatalf("dropped = %d, want 2", q.Dropped())
	}
}

func TestOverflowDropNewest(t *testing.T) {
	q := New(3, DropNewest)
	for _, m := range []string{"A", "B", "C", "D", "E"} {
		q.Push(m)
	}
	want := []string{"A", "B", "C"}
	for _, w := range want {
		got, err := q.Pop(time.Second)
		if err != nil {
			t.Fatalf("pop: %v", err)
		}
		if got != w {
			t.Fatalf("pop = %v, want %v", got, w)
		}
	}
}

func TestStopSignalUnblocksPop(t *testing.T) {
	q := New(5, DropOldest)
	done := make(chan any, 1)
	go func() {
		v, _ := q.Pop(5 * time.Second)
		done <- v
	}()

	time.Sleep(20 * time.Millisecond)
	q.Push(StopSignal)

	select {
	case v := <-done:
		if !IsStopSignal(v) {
			t.Fatalf("got %v, want StopSignal", v)
		}
	case <-time.After(time.Second):
		t.Fatal("pop did not unblock on StopSignal push")
	}
}

func TestTryPushFull(t *testing.T) {
	q := New(1, DropOldest)
	if err := q.TryPush("A"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := q.TryPush("B"); err != ErrFull {
		t.Fatalf("err = %v, want ErrFull", err)
	}
}

func TestDrain(t *testing.T) {
	q := New(5, DropOldest)
	q.Push("A")
	q.Push("B")
	items := q.Drain()
	if len(items) != 2 {
		t.Fatalf("drained %d items, want 2", len(items))
	}
	if q.Size() != 0 {
		t.Fatalf("size after drain = %d, want 0", q.Size())
	}
}
