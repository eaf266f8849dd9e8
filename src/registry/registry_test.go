package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itay-sho/co-buddies-server/src/models"
)

// assertInverse checks that the two registry maps are mutual inverses for
// the given users at a quiescent point.
func assertInverse(t *testing.T, r *Registry, userIDs ...int64) {
	t.Helper()
	for _, userID := range userIDs {
		conversationID, ok := r.Conversation(userID)
		if !ok {
			continue
		}
		assert.Contains(t, r.Attendees(conversationID), userID,
			"user %d missing from conversation %d attendee set", userID, conversationID)
	}
}

func TestRegistry_JoinAndLeave(t *testing.T) {
	r := New()

	r.Join(1, models.LobbyConversationID)
	r.Join(2, models.LobbyConversationID)
	assertInverse(t, r, 1, 2)
	assert.ElementsMatch(t, []int64{1, 2}, r.LobbyAttendees())

	// Pairing moves both users out of the lobby.
	r.Join(1, 10)
	r.Join(2, 10)
	assertInverse(t, r, 1, 2)
	assert.Empty(t, r.LobbyAttendees())
	assert.ElementsMatch(t, []int64{1, 2}, r.Attendees(10))
}

func TestRegistry_JoinIsIdempotent(t *testing.T) {
	r := New()
	r.Join(1, 10)
	r.Join(2, 10)

	closed, evicted := r.Join(1, 10)
	assert.Zero(t, closed)
	assert.Empty(t, evicted)
	assert.ElementsMatch(t, []int64{1, 2}, r.Attendees(10))
	assertInverse(t, r, 1, 2)
}

func TestRegistry_CollapseClosesConversation(t *testing.T) {
	r := New()
	r.Join(1, 10)
	r.Join(2, 10)

	closed, evicted := r.Leave(1, 10)
	require.Equal(t, int64(10), closed)
	assert.Equal(t, []int64{2}, evicted)

	// The conversation is gone and so are its members.
	assert.Empty(t, r.Attendees(10))
	_, ok := r.Conversation(1)
	assert.False(t, ok)
	_, ok = r.Conversation(2)
	assert.False(t, ok)
}

func TestRegistry_LobbyNeverCloses(t *testing.T) {
	r := New()
	r.Join(1, models.LobbyConversationID)

	closed, evicted := r.Leave(1, models.LobbyConversationID)
	assert.Zero(t, closed)
	assert.Empty(t, evicted)
	assert.Empty(t, r.LobbyAttendees())

	// An empty lobby is a valid state.
	r.Join(2, models.LobbyConversationID)
	assert.ElementsMatch(t, []int64{2}, r.LobbyAttendees())
}

func TestRegistry_UserDisconnect(t *testing.T) {
	r := New()
	r.Join(1, 10)
	r.Join(2, 10)

	closed, evicted := r.UserDisconnect(2)
	assert.Equal(t, int64(10), closed)
	assert.Equal(t, []int64{1}, evicted)

	// Disconnecting an unknown user is a no-op.
	closed, evicted = r.UserDisconnect(99)
	assert.Zero(t, closed)
	assert.Empty(t, evicted)
}

func TestRegistry_JoinLeavesPreviousConversation(t *testing.T) {
	r := New()
	r.Join(1, 10)
	r.Join(2, 10)
	r.Join(3, models.LobbyConversationID)

	// User 1 being re-matched collapses the old conversation, evicting 2.
	closed, evicted := r.Join(1, 20)
	assert.Equal(t, int64(10), closed)
	assert.Equal(t, []int64{2}, evicted)
	assert.ElementsMatch(t, []int64{1}, r.Attendees(20))
	assertInverse(t, r, 1, 3)
}
