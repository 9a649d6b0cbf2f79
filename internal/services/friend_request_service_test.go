package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"circle-go/internal/kafka"
	"circle-go/internal/logging"
	"circle-go/internal/models"
	"circle-go/internal/storage"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.RelationshipEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e kafka.RelationshipEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type workflowFixture struct {
	store *storage.MemoryStore
	pub   *recordingPublisher
	svc   FriendRequestService
	ids   map[string]uint
}

func newWorkflowFixture(t *testing.T, usernames ...string) *workflowFixture {
	t.Helper()
	store := storage.NewMemoryStore()
	pub := &recordingPublisher{}
	f := &workflowFixture{
		store: store,
		pub:   pub,
		svc:   NewFriendRequestService(store, store, pub, logging.Discard()),
		ids:   map[string]uint{},
	}
	for _, name := range usernames {
		u := &models.User{Email: name + "@example.com", Username: name, FullName: name, IsOnboarded: true}
		if err := store.Create(context.Background(), u); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		f.ids[name] = u.ID
	}
	return f
}

func TestSendFriendRequest(t *testing.T) {
	f := newWorkflowFixture(t, "alice", "bob")
	ctx := context.Background()
	alice, bob := f.ids["alice"], f.ids["bob"]

	req, err := f.svc.SendFriendRequest(ctx, alice, bob)
	if err != nil {
		t.Fatalf("SendFriendRequest: %v", err)
	}
	if req.SenderID != alice || req.RecipientID != bob || req.Status != models.FriendRequestStatusPending {
		t.Fatalf("unexpected request %+v", req)
	}
	if got := f.pub.types(); len(got) != 1 || got[0] != kafka.EventFriendRequestCreated {
		t.Fatalf("events = %v", got)
	}

	tests := []struct {
		name     string
		from, to uint
		wantErr  error
	}{
		{"self", alice, alice, ErrFriendRequestSelf},
		{"repeat", alice, bob, ErrFriendRequestExists},
		{"reverse", bob, alice, ErrFriendRequestExists},
		{"unknown recipient", alice, 999, ErrRecipientNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.SendFriendRequest(ctx, tt.from, tt.to); !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if n := len(f.pub.types()); n != 1 {
		t.Fatalf("rejected proposals published events: %d total", n)
	}
}

func TestAcceptFriendRequest(t *testing.T) {
	f := newWorkflowFixture(t, "alice", "bob", "carol")
	ctx := context.Background()
	alice, bob, carol := f.ids["alice"], f.ids["bob"], f.ids["carol"]

	req, err := f.svc.SendFriendRequest(ctx, alice, bob)
	if err != nil {
		t.Fatalf("SendFriendRequest: %v", err)
	}

	if _, err := f.svc.AcceptFriendRequest(ctx, carol, req.ID); !errors.Is(err, ErrNotRecipientOfRequest) {
		t.Fatalf("stranger accept: %v", err)
	}
	if _, err := f.svc.AcceptFriendRequest(ctx, alice, req.ID); !errors.Is(err, ErrNotRecipientOfRequest) {
		t.Fatalf("sender accept: %v", err)
	}
	if _, err := f.svc.AcceptFriendRequest(ctx, bob, 4040); !errors.Is(err, ErrFriendRequestNotFound) {
		t.Fatalf("missing request: %v", err)
	}

	accepted, err := f.svc.AcceptFriendRequest(ctx, bob, req.ID)
	if err != nil {
		t.Fatalf("AcceptFriendRequest: %v", err)
	}
	if accepted.Status != models.FriendRequestStatusAccepted || accepted.AcceptedAt == nil {
		t.Fatalf("unexpected accepted request %+v", accepted)
	}

	if _, err := f.svc.AcceptFriendRequest(ctx, bob, req.ID); !errors.Is(err, ErrRequestAlreadyAccepted) {
		t.Fatalf("replay: %v", err)
	}
	if _, err := f.svc.SendFriendRequest(ctx, bob, alice); !errors.Is(err, ErrFriendRequestExists) {
		t.Fatalf("proposal between friends: %v", err)
	}

	want := []string{kafka.EventFriendRequestCreated, kafka.EventFriendRequestAccepted}
	if got := f.pub.types(); len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("events = %v, want %v", got, want)
	}
}

func TestPublishFailureDoesNotUndoTransition(t *testing.T) {
	f := newWorkflowFixture(t, "alice", "bob")
	f.pub.err = errors.New("broker down")
	ctx := context.Background()

	req, err := f.svc.SendFriendRequest(ctx, f.ids["alice"], f.ids["bob"])
	if err != nil {
		t.Fatalf("SendFriendRequest with failing publisher: %v", err)
	}
	if _, err := f.svc.AcceptFriendRequest(ctx, f.ids["bob"], req.ID); err != nil {
		t.Fatalf("AcceptFriendRequest with failing publisher: %v", err)
	}
	friends, _ := f.store.AreFriends(ctx, f.ids["alice"], f.ids["bob"])
	if !friends {
		t.Fatal("publish failure rolled back the friendship")
	}
}

func TestListingsAreEnriched(t *testing.T) {
	f := newWorkflowFixture(t, "alice", "bob", "carol")
	ctx := context.Background()
	alice, bob, carol := f.ids["alice"], f.ids["bob"], f.ids["carol"]

	r1, _ := f.svc.SendFriendRequest(ctx, alice, bob)
	if _, err := f.svc.SendFriendRequest(ctx, carol, bob); err != nil {
		t.Fatalf("carol -> bob: %v", err)
	}

	incoming, err := f.svc.ListIncoming(ctx, bob)
	if err != nil {
		t.Fatalf("ListIncoming: %v", err)
	}
	if len(incoming) != 2 {
		t.Fatalf("incoming = %d, want 2", len(incoming))
	}
	if incoming[0].Sender == nil || incoming[0].Sender.Username != "alice" {
		t.Fatalf("first incoming sender = %+v", incoming[0].Sender)
	}
	if incoming[1].Sender == nil || incoming[1].Sender.Username != "carol" {
		t.Fatalf("second incoming sender = %+v", incoming[1].Sender)
	}

	outgoing, _ := f.svc.ListOutgoing(ctx, alice)
	if len(outgoing) != 1 || outgoing[0].Recipient == nil || outgoing[0].Recipient.Username != "bob" {
		t.Fatalf("outgoing(alice) = %+v", outgoing)
	}

	before := time.Now().Add(-time.Hour)
	if _, err := f.svc.AcceptFriendRequest(ctx, bob, r1.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	accepted, _ := f.svc.ListAccepted(ctx, alice, before)
	if len(accepted) != 1 || accepted[0].Recipient.Username != "bob" {
		t.Fatalf("accepted(alice) = %+v", accepted)
	}
	none, _ := f.svc.ListAccepted(ctx, alice, time.Now().Add(time.Hour))
	if len(none) != 0 {
		t.Fatalf("accepted after a future cutoff = %d, want 0", len(none))
	}

	empty, err := f.svc.ListOutgoing(ctx, bob)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("empty listing = %v, %v; want non-nil empty slice", empty, err)
	}
}

func TestConcurrentOppositeProposals(t *testing.T) {
	f := newWorkflowFixture(t, "alice", "bob")
	ctx := context.Background()
	alice, bob := f.ids["alice"], f.ids["bob"]

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, p := range [][2]uint{{alice, bob}, {bob, alice}} {
		wg.Add(1)
		go func(from, to uint) {
			defer wg.Done()
			_, err := f.svc.SendFriendRequest(ctx, from, to)
			errs <- err
		}(p[0], p[1])
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
		} else if !errors.Is(err, ErrFriendRequestExists) {
			t.Fatalf("unexpected error %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("%d proposals succeeded, want 1", ok)
	}
}
