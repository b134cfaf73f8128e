package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-chat/internal/domain"
)

type fakeTicketSource struct {
	tickets map[string]*domain.Ticket
	err     error
}

func (f *fakeTicketSource) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	if f.err != nil {
		return nil, f.err
	}
	ticket, ok := f.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return ticket, nil
}

func newGateFixture() *Gate {
	assignee := "u2"
	return NewGate(&fakeTicketSource{tickets: map[string]*domain.Ticket{
		"t1": {ID: "t1", CreatorID: "u1", AssigneeID: &assignee},
		"t2": {ID: "t2", CreatorID: "u3"},
	}})
}

func TestGateAuthorizeCreator(t *testing.T) {
	gate := newGateFixture()
	ticket, err := gate.Authorize(context.Background(), "u1", "t1")
	if err != nil {
		t.Fatalf("Authorize creator: %v", err)
	}
	if ticket.ID != "t1" {
		t.Fatalf("got ticket %q, want t1", ticket.ID)
	}
}

func TestGateAuthorizeAssignee(t *testing.T) {
	gate := newGateFixture()
	if _, err := gate.Authorize(context.Background(), "u2", "t1"); err != nil {
		t.Fatalf("Authorize assignee: %v", err)
	}
}

func TestGateRejectsStranger(t *testing.T) {
	gate := newGateFixture()
	if _, err := gate.Authorize(context.Background(), "u9", "t1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("Authorize stranger = %v, want ErrForbidden", err)
	}
}

func TestGateRejectsWhenNoAssignee(t *testing.T) {
	gate := newGateFixture()
	// t2 has no assignee; only the creator may join
	if _, err := gate.Authorize(context.Background(), "u2", "t2"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("Authorize = %v, want ErrForbidden", err)
	}
}

func TestGateTicketNotFound(t *testing.T) {
	gate := newGateFixture()
	if _, err := gate.Authorize(context.Background(), "u1", "missing"); !errors.Is(err, ErrTicketNotFound) {
		t.Fatalf("Authorize = %v, want ErrTicketNotFound", err)
	}
}

func TestGateSourceErrorPassesThrough(t *testing.T) {
	srcErr := errors.New("connection refused")
	gate := NewGate(&fakeTicketSource{err: srcErr})
	if _, err := gate.Authorize(context.Background(), "u1", "t1"); !errors.Is(err, srcErr) {
		t.Fatalf("Authorize = %v, want source error", err)
	}
}
