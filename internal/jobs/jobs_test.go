package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeProcessor counts attempts per asset and fails a configurable number of
// times before succeeding.
type fakeProcessor struct {
	mu         sync.Mutex
	attempts   map[string]int
	failsFirst int
	done       chan string
}

func newFakeProcessor(failsFirst int) *fakeProcessor {
	return &fakeProcessor{
		attempts:   make(map[string]int),
		failsFirst: failsFirst,
		done:       make(chan string, 100),
	}
}

func (f *fakeProcessor) Process(_ context.Context, assetID string) error {
	f.mu.Lock()
	f.attempts[assetID]++
	n := f.attempts[assetID]
	f.mu.Unlock()

	if n <= f.failsFirst {
		return errors.New("transient failure")
	}
	f.done <- assetID
	return nil
}

func (f *fakeProcessor) count(assetID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[assetID]
}

func TestQueueProcessesJobs(t *testing.T) {
	p := newFakeProcessor(0)
	q := NewQueue(p, 2, 3, time.Millisecond)
	q.Start()
	defer q.Stop()

	for _, id := range []string{"a", "b", "c"} {
		if err := q.Enqueue(id); err != nil {
			t.Fatalf("Enqueue(%s) error: %v", id, err)
		}
	}

	seen := make(map[string]bool)
	timeout := time.After(5 * time.Second)
	for len(seen) < 3 {
		select {
		case id := <-p.done:
			seen[id] = true
		case <-timeout:
			t.Fatalf("Timed out, processed %v", seen)
		}
	}
}

func TestQueueRetriesUntilSuccess(t *testing.T) {
	p := newFakeProcessor(2) // fails twice, succeeds on the third attempt
	q := NewQueue(p, 1, 3, time.Millisecond)
	q.Start()
	defer q.Stop()

	if err := q.Enqueue("a"); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}

	select {
	case <-p.done:
	case <-time.After(5 * time.Second):
		t.Fatal("Asset never succeeded")
	}
	if got := p.count("a"); got != 3 {
		t.Errorf("Attempts = %d, want 3", got)
	}
}

func TestQueueExhaustsRetryBudget(t *testing.T) {
	p := newFakeProcessor(100) // never succeeds
	q := NewQueue(p, 1, 3, time.Millisecond)
	q.Start()

	if err := q.Enqueue("a"); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}

	// Give the retries time to run out, then stop and check the budget held.
	deadline := time.Now().Add(5 * time.Second)
	for p.count("a") < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	q.Stop()

	if got := p.count("a"); got != 3 {
		t.Errorf("Attempts = %d, want exactly the budget of 3", got)
	}
}

func TestEnqueueAfterStop(t *testing.T) {
	q := NewQueue(newFakeProcessor(0), 1, 1, time.Millisecond)
	q.Start()
	q.Stop()

	if err := q.Enqueue("a"); err == nil {
		t.Error("Expected error enqueuing on a stopped queue")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	q := NewQueue(newFakeProcessor(0), 1, 1, time.Millisecond)
	q.Start()
	q.Stop()
	q.Stop()
}
