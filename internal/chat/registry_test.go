package chat

import (
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
)

func testSession(ticketID, userID string) *Session {
	sess := NewSession(ticketID, false, 8)
	sess.Bind(userID, userID)
	return sess
}

func TestRegistryRegisterAndPeers(t *testing.T) {
	registry := NewRegistry(zap.NewNop())
	s1 := testSession("t1", "u1")
	s2 := testSession("t1", "u2")

	registry.Register("t1", s1)
	registry.Register("t1", s2)

	peers := registry.Peers("t1")
	if len(peers) != 2 {
		t.Fatalf("got %d peers, want 2", len(peers))
	}
}

func TestRegistryPerTicketIsolation(t *testing.T) {
	registry := NewRegistry(zap.NewNop())
	s1 := testSession("t1", "u1")
	s2 := testSession("t2", "u2")

	registry.Register("t1", s1)
	registry.Register("t2", s2)

	for _, peer := range registry.Peers("t1") {
		if peer.TicketID() != "t1" {
			t.Fatalf("ticket t1 peers contain session for %q", peer.TicketID())
		}
	}
	if registry.Count("t1") != 1 || registry.Count("t2") != 1 {
		t.Fatalf("counts = (%d, %d), want (1, 1)", registry.Count("t1"), registry.Count("t2"))
	}
}

func TestRegistryUnregisterIdempotent(t *testing.T) {
	registry := NewRegistry(zap.NewNop())
	s1 := testSession("t1", "u1")

	registry.Register("t1", s1)
	registry.Unregister("t1", s1)
	registry.Unregister("t1", s1) // second removal is a no-op

	if got := registry.Count("t1"); got != 0 {
		t.Fatalf("count after double unregister = %d, want 0", got)
	}
	// unregistering on a pruned room must not panic either
	registry.Unregister("t1", s1)
}

func TestRegistryPrunesEmptyRooms(t *testing.T) {
	registry := NewRegistry(zap.NewNop())
	s1 := testSession("t1", "u1")
	s2 := testSession("t1", "u2")

	registry.Register("t1", s1)
	registry.Register("t1", s2)
	registry.Unregister("t1", s1)
	if registry.Rooms() != 1 {
		t.Fatalf("room dropped while still occupied")
	}
	registry.Unregister("t1", s2)
	if registry.Rooms() != 0 {
		t.Fatalf("empty room not pruned, rooms = %d", registry.Rooms())
	}
}

func TestRegistryUnregisterDoesNotAffectOthers(t *testing.T) {
	registry := NewRegistry(zap.NewNop())
	s1 := testSession("t1", "u1")
	s2 := testSession("t1", "u2")
	other := testSession("t2", "u3")

	registry.Register("t1", s1)
	registry.Register("t1", s2)
	registry.Register("t2", other)

	registry.Unregister("t1", s1)

	if registry.Count("t1") != 1 {
		t.Fatalf("t1 count = %d, want 1", registry.Count("t1"))
	}
	if registry.Count("t2") != 1 {
		t.Fatalf("t2 count = %d, want 1", registry.Count("t2"))
	}
}

func TestRegistryCloseAll(t *testing.T) {
	registry := NewRegistry(zap.NewNop())
	sessions := []*Session{
		testSession("t1", "u1"),
		testSession("t1", "u2"),
		testSession("t2", "u3"),
	}
	for _, sess := range sessions {
		registry.Register(sess.TicketID(), sess)
	}

	registry.CloseAll()

	for _, sess := range sessions {
		select {
		case <-sess.Done():
		default:
			t.Fatalf("session %s not closed", sess.ID())
		}
	}
}

func TestRegistryConcurrentChurn(t *testing.T) {
	registry := NewRegistry(zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess := testSession("t1", "u")
			registry.Register("t1", sess)
			registry.Peers("t1")
			registry.Unregister("t1", sess)
		}()
	}
	wg.Wait()

	if got := registry.Count("t1"); got != 0 {
		t.Fatalf("count after churn = %d, want 0", got)
	}
	if registry.Rooms() != 0 {
		t.Fatalf("rooms after churn = %d, want 0", registry.Rooms())
	}
}

// A session must be visible to Peers the moment Register returns, even
// when registrations race the empty-room prune in Unregister.
func TestRegistryRegisterVisibleDuringChurn(t *testing.T) {
	registry := NewRegistry(zap.NewNop())

	var wg sync.WaitGroup
	var invisible atomic.Int64
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5000; j++ {
				sess := testSession("t1", "u")
				registry.Register("t1", sess)

				found := false
				for _, peer := range registry.Peers("t1") {
					if peer == sess {
						found = true
						break
					}
				}
				if !found {
					invisible.Add(1)
				}
				registry.Unregister("t1", sess)
			}
		}()
	}
	wg.Wait()

	if n := invisible.Load(); n != 0 {
		t.Fatalf("%d registered sessions were invisible to Peers", n)
	}
	if registry.Rooms() != 0 {
		t.Fatalf("rooms after churn = %d, want 0", registry.Rooms())
	}
}
