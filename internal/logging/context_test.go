package logging

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDetachContextSurvivesCancellation(t *testing.T) {
	type key string
	parent, cancel := context.WithCancel(context.WithValue(context.Background(), key("slug"), "alpha"))
	detached := DetachContext(parent)
	cancel()

	if detached.Err() != nil {
		t.Errorf("detached context should survive cancellation, got %v", detached.Err())
	}
	if v := detached.Value(key("slug")); v != "alpha" {
		t.Errorf("expected value alpha, got %v", v)
	}
}

func TestDetachContextWithTimeoutHasOwnDeadline(t *testing.T) {
	parent, parentCancel := context.WithCancel(context.Background())
	detached, cancel := DetachContextWithTimeout(parent, 50*time.Millisecond)
	defer cancel()

	parentCancel()
	if detached.Err() != nil {
		t.Fatalf("detached context cancelled with parent: %v", detached.Err())
	}
	if _, ok := detached.Deadline(); !ok {
		t.Fatal("detached context should have a deadline")
	}

	<-detached.Done()
	if !errors.Is(detached.Err(), context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", detached.Err())
	}
}
