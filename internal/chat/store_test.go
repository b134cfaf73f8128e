package chat

import (
	"context"
	"sync"
	"testing"
)

func TestOrderedStoreSerializesPerTicket(t *testing.T) {
	inner := newFakeStore()
	store := NewOrderedStore(inner)

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Append(context.Background(), "t1", "u1", "body"); err != nil {
				t.Errorf("Append: %v", err)
			}
		}()
	}
	wg.Wait()

	messages, err := store.History(context.Background(), "t1", 0, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(messages) != writers {
		t.Fatalf("got %d messages, want %d", len(messages), writers)
	}
	seen := make(map[int64]bool, writers)
	for _, msg := range messages {
		if seen[msg.Seq] {
			t.Fatalf("duplicate seq %d", msg.Seq)
		}
		seen[msg.Seq] = true
	}
	for seq := int64(1); seq <= writers; seq++ {
		if !seen[seq] {
			t.Fatalf("seq %d missing", seq)
		}
	}
}

func TestOrderedStorePrunesLocks(t *testing.T) {
	store := NewOrderedStore(newFakeStore()).(*orderedStore)

	var wg sync.WaitGroup
	for _, ticketID := range []string{"t1", "t2", "t3"} {
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				store.Append(context.Background(), id, "u1", "body")
			}(ticketID)
		}
	}
	wg.Wait()

	store.mu.Lock()
	remaining := len(store.locks)
	store.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("%d ticket locks still held after all appends finished", remaining)
	}
}

func TestOrderedStorePropagatesAppendError(t *testing.T) {
	inner := newFakeStore()
	inner.setFail(true)
	store := NewOrderedStore(inner)

	if _, err := store.Append(context.Background(), "t1", "u1", "body"); err == nil {
		t.Fatal("Append returned nil error, want failure from inner store")
	}

	// a failed append must not leave its lock entry behind
	ordered := store.(*orderedStore)
	ordered.mu.Lock()
	remaining := len(ordered.locks)
	ordered.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("%d ticket locks still held after failed append", remaining)
	}
}
