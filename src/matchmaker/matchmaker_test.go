package matchmaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itay-sho/co-buddies-server/src/bus"
	"github.com/itay-sho/co-buddies-server/src/messages"
	"github.com/itay-sho/co-buddies-server/src/models"
)

const testTimeout = 2 * time.Second

type harness struct {
	bus      *bus.Bus
	storage  <-chan any
	sessionA <-chan any
	sessionB <-chan any
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	b := bus.New()

	storage, err := b.Register(messages.StorageAddr, 0)
	require.NoError(t, err)
	sessionA, err := b.Register("session:a", 0)
	require.NoError(t, err)
	sessionB, err := b.Register("session:b", 0)
	require.NoError(t, err)

	m, err := New(b, nil, 10*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go m.Run(ctx)

	return &harness{bus: b, storage: storage, sessionA: sessionA, sessionB: sessionB}
}

func recv[T any](t *testing.T, mailbox <-chan any) T {
	t.Helper()
	for {
		select {
		case msg := <-mailbox:
			if typed, ok := msg.(T); ok {
				return typed
			}
			t.Fatalf("unexpected message %T", msg)
		case <-time.After(testTimeout):
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
		}
	}
}

func TestMatchmaker_PairsTwoWaitingUsers(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.bus.Send(messages.MatchmakerAddr, messages.RequestMatch{UserID: 1, Session: "session:a"}))
	require.NoError(t, h.bus.Send(messages.MatchmakerAddr, messages.RequestMatch{UserID: 2, Session: "session:b"}))

	create := recv[messages.CreateConversation](t, h.storage)
	assert.ElementsMatch(t, []int64{1, 2}, create.AttendeeIDs)
	assert.Equal(t, messages.MatchmakerAddr, create.ReplyTo)

	names := map[int64]string{1: "alice", 2: "bob"}
	require.NoError(t, h.bus.Send(messages.MatchmakerAddr, messages.CreateConversationReply{
		Ref:          create.Ref,
		Conversation: &models.Conversation{ID: 42, IsOpen: true, AttendeeIDs: create.AttendeeIDs},
		Attendees:    names,
	}))

	foundA := recv[messages.MatchFound](t, h.sessionA)
	foundB := recv[messages.MatchFound](t, h.sessionB)
	assert.Equal(t, int64(42), foundA.ConversationID)
	assert.Equal(t, foundA, foundB)
	assert.Equal(t, names, foundA.Attendees)
}

func TestMatchmaker_LoneUserStaysPooled(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.bus.Send(messages.MatchmakerAddr, messages.RequestMatch{UserID: 1, Session: "session:a"}))

	select {
	case msg := <-h.storage:
		t.Fatalf("unexpected storage command %v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMatchmaker_SupersedeEvictsStaleSession(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.bus.Send(messages.MatchmakerAddr, messages.RequestMatch{UserID: 1, Session: "session:a"}))
	require.NoError(t, h.bus.Send(messages.MatchmakerAddr, messages.RequestMatch{UserID: 1, Session: "session:b"}))

	// The old session is told to go; the user is pooled once, so no pair
	// forms.
	recv[messages.ForceDisconnect](t, h.sessionA)
	select {
	case msg := <-h.storage:
		t.Fatalf("unexpected storage command %v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMatchmaker_CancelIgnoresSupersededSession(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.bus.Send(messages.MatchmakerAddr, messages.RequestMatch{UserID: 1, Session: "session:b"}))
	// A stale cancel from the superseded connection must not remove the
	// fresh entry.
	require.NoError(t, h.bus.Send(messages.MatchmakerAddr, messages.CancelMatch{UserID: 1, Session: "session:a"}))
	require.NoError(t, h.bus.Send(messages.MatchmakerAddr, messages.RequestMatch{UserID: 2, Session: "session:a"}))

	create := recv[messages.CreateConversation](t, h.storage)
	assert.ElementsMatch(t, []int64{1, 2}, create.AttendeeIDs)
}

func TestMatchmaker_StorageFailureRequeuesPair(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.bus.Send(messages.MatchmakerAddr, messages.RequestMatch{UserID: 1, Session: "session:a"}))
	require.NoError(t, h.bus.Send(messages.MatchmakerAddr, messages.RequestMatch{UserID: 2, Session: "session:b"}))

	create := recv[messages.CreateConversation](t, h.storage)
	require.NoError(t, h.bus.Send(messages.MatchmakerAddr, messages.CreateConversationReply{
		Ref: create.Ref,
		Err: errors.New("database down"),
	}))

	// Both users return to the pool and are paired again next cycle.
	retry := recv[messages.CreateConversation](t, h.storage)
	assert.ElementsMatch(t, []int64{1, 2}, retry.AttendeeIDs)
}

func TestArbitraryPolicy_Pick(t *testing.T) {
	policy := ArbitraryPolicy{}

	_, _, ok := policy.Pick(map[int64]struct{}{1: {}})
	assert.False(t, ok)

	first, second, ok := policy.Pick(map[int64]struct{}{1: {}, 2: {}})
	require.True(t, ok)
	assert.NotEqual(t, first, second)
	assert.ElementsMatch(t, []int64{1, 2}, []int64{first, second})
}
