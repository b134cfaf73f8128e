package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-chat/internal/domain"
	"github.com/spec-kit/ticket-chat/internal/observability"
)

// fakeStore is an in-memory MessageStore with a switchable failure mode.
type fakeStore struct {
	mu       sync.Mutex
	seqs     map[string]int64
	messages map[string][]domain.Message
	fail     bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		seqs:     make(map[string]int64),
		messages: make(map[string][]domain.Message),
	}
}

func (s *fakeStore) Append(_ context.Context, ticketID, senderID, body string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, errors.New("store unavailable")
	}
	s.seqs[ticketID]++
	msg := domain.Message{
		ID:       s.seqs[ticketID],
		TicketID: ticketID,
		SenderID: senderID,
		Seq:      s.seqs[ticketID],
		Body:     body,
	}
	s.messages[ticketID] = append(s.messages[ticketID], msg)
	return &msg, nil
}

func (s *fakeStore) History(_ context.Context, ticketID string, afterSeq int64, limit int) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.Message
	for _, msg := range s.messages[ticketID] {
		if msg.Seq > afterSeq {
			result = append(result, msg)
		}
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func (s *fakeStore) setFail(fail bool) {
	s.mu.Lock()
	s.fail = fail
	s.mu.Unlock()
}

func newDispatcherFixture(store MessageStore) (*Dispatcher, *Registry) {
	registry := NewRegistry(zap.NewNop())
	dispatcher := NewDispatcher(store, registry, nil, zap.NewNop(), observability.NewMetrics())
	return dispatcher, registry
}

func boundSession(ticketID, userID, userName string, echo bool, buffer int) *Session {
	sess := NewSession(ticketID, echo, buffer)
	sess.Bind(userID, userName)
	return sess
}

func takeFrame(t *testing.T, sess *Session) Frame {
	t.Helper()
	select {
	case frame := <-sess.Outbound():
		return frame
	default:
		t.Fatalf("session %s: no frame queued", sess.ID())
		return Frame{}
	}
}

func assertNoFrame(t *testing.T, sess *Session) {
	t.Helper()
	select {
	case frame := <-sess.Outbound():
		t.Fatalf("session %s: unexpected frame %+v", sess.ID(), frame)
	default:
	}
}

func TestDispatcherFanout(t *testing.T) {
	dispatcher, registry := newDispatcherFixture(newFakeStore())

	sender := boundSession("42", "u1", "Alice", false, 8)
	peer := boundSession("42", "u2", "Bob", false, 8)
	stranger := boundSession("7", "u3", "Eve", false, 8)
	registry.Register("42", sender)
	registry.Register("42", peer)
	registry.Register("7", stranger)

	dispatcher.HandleInbound(context.Background(), sender, "hello")

	got := takeFrame(t, peer)
	if got.Type != FrameTypeMessage {
		t.Fatalf("peer frame type = %q, want message", got.Type)
	}
	if got.Data.SenderID != "u1" || got.Data.Body != "hello" {
		t.Fatalf("peer frame data = %+v", got.Data)
	}
	if got.Data.Seq != 1 {
		t.Fatalf("seq = %d, want 1", got.Data.Seq)
	}

	ack := takeFrame(t, sender)
	if ack.Type != FrameTypeAck {
		t.Fatalf("sender frame type = %q, want ack", ack.Type)
	}
	if ack.Data.Seq != 1 {
		t.Fatalf("ack seq = %d, want 1", ack.Data.Seq)
	}

	// delivery never crosses tickets
	assertNoFrame(t, stranger)
}

func TestDispatcherEchoOptIn(t *testing.T) {
	dispatcher, registry := newDispatcherFixture(newFakeStore())

	sender := boundSession("42", "u1", "Alice", true, 8)
	registry.Register("42", sender)

	dispatcher.HandleInbound(context.Background(), sender, "hello")

	got := takeFrame(t, sender)
	if got.Type != FrameTypeMessage {
		t.Fatalf("echo frame type = %q, want message", got.Type)
	}
	if got.Data.Body != "hello" {
		t.Fatalf("echo body = %q", got.Data.Body)
	}
}

func TestDispatcherSeqMonotonic(t *testing.T) {
	dispatcher, registry := newDispatcherFixture(newFakeStore())

	sender := boundSession("42", "u1", "Alice", false, 16)
	registry.Register("42", sender)

	for i := 0; i < 5; i++ {
		dispatcher.HandleInbound(context.Background(), sender, "msg")
	}

	var last int64
	for i := 0; i < 5; i++ {
		ack := takeFrame(t, sender)
		if ack.Data.Seq <= last {
			t.Fatalf("seq %d not strictly increasing after %d", ack.Data.Seq, last)
		}
		last = ack.Data.Seq
	}
}

func TestDispatcherStoreFailure(t *testing.T) {
	store := newFakeStore()
	dispatcher, registry := newDispatcherFixture(store)

	sender := boundSession("42", "u1", "Alice", false, 8)
	peer := boundSession("42", "u2", "Bob", false, 8)
	registry.Register("42", sender)
	registry.Register("42", peer)

	store.setFail(true)
	dispatcher.HandleInbound(context.Background(), sender, "hello")

	errFrame := takeFrame(t, sender)
	if errFrame.Type != FrameTypeError {
		t.Fatalf("sender frame type = %q, want error", errFrame.Type)
	}
	if errFrame.Error.Code != ReasonStoreUnavailable {
		t.Fatalf("error code = %q, want %q", errFrame.Error.Code, ReasonStoreUnavailable)
	}
	// nothing fanned out for a message that did not persist
	assertNoFrame(t, peer)

	// the session stays usable: a later send proceeds normally
	store.setFail(false)
	dispatcher.HandleInbound(context.Background(), sender, "hello again")

	if got := takeFrame(t, peer); got.Type != FrameTypeMessage || got.Data.Seq != 1 {
		t.Fatalf("peer frame after recovery = %+v", got)
	}
	if ack := takeFrame(t, sender); ack.Type != FrameTypeAck {
		t.Fatalf("sender frame after recovery = %+v", ack)
	}
}

func TestDispatcherIgnoresBlankBodies(t *testing.T) {
	dispatcher, registry := newDispatcherFixture(newFakeStore())

	sender := boundSession("42", "u1", "Alice", false, 8)
	registry.Register("42", sender)

	dispatcher.HandleInbound(context.Background(), sender, "   \n")
	assertNoFrame(t, sender)
}

func TestDispatcherSaturatedPeerDoesNotBlock(t *testing.T) {
	dispatcher, registry := newDispatcherFixture(newFakeStore())

	sender := boundSession("42", "u1", "Alice", false, 8)
	slow := boundSession("42", "u2", "Bob", false, 1)
	healthy := boundSession("42", "u3", "Carol", false, 8)
	registry.Register("42", sender)
	registry.Register("42", slow)
	registry.Register("42", healthy)

	// two messages: the second overflows the slow peer's single-slot queue
	dispatcher.HandleInbound(context.Background(), sender, "first")
	dispatcher.HandleInbound(context.Background(), sender, "second")

	if got := takeFrame(t, slow); got.Data.Body != "first" {
		t.Fatalf("slow peer first frame = %+v", got)
	}
	assertNoFrame(t, slow)

	// the healthy peer saw both
	if got := takeFrame(t, healthy); got.Data.Body != "first" {
		t.Fatalf("healthy peer first frame = %+v", got)
	}
	if got := takeFrame(t, healthy); got.Data.Body != "second" {
		t.Fatalf("healthy peer second frame = %+v", got)
	}
}

func TestDispatcherClosedPeerSkipped(t *testing.T) {
	dispatcher, registry := newDispatcherFixture(newFakeStore())

	sender := boundSession("42", "u1", "Alice", false, 8)
	gone := boundSession("42", "u2", "Bob", false, 8)
	registry.Register("42", sender)
	registry.Register("42", gone)

	gone.Close()
	dispatcher.HandleInbound(context.Background(), sender, "hello")

	if ack := takeFrame(t, sender); ack.Type != FrameTypeAck {
		t.Fatalf("sender frame = %+v, want ack", ack)
	}
}

func TestPreviewCutsAtRuneBoundary(t *testing.T) {
	if got := preview("hello", 80); got != "hello" {
		t.Fatalf("short body altered: %q", got)
	}

	// 50 two-byte runes; a cut at byte 81 falls inside rune 41
	body := strings.Repeat("é", 50)
	got := preview(body, 81)
	if !utf8.ValidString(got) {
		t.Fatalf("preview emitted invalid UTF-8: %q", got)
	}
	if got != strings.Repeat("é", 40) {
		t.Fatalf("preview kept %d bytes, want the first 40 runes", len(got))
	}
}
