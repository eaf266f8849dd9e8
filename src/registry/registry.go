// Package registry keeps the in-memory user/conversation membership
// bookkeeping. It does no I/O and is not safe for concurrent use: the
// orchestrator is its only writer.
package registry

import "github.com/itay-sho/co-buddies-server/src/models"

// Registry maintains a bidirectional mapping between users and
// conversations. The two maps are mutual inverses at all times. Every user
// is a member of exactly one conversation, the lobby included. A non-lobby
// conversation that drops to one or zero members is closed in the same
// step, evicting the remaining members.
type Registry struct {
	userToConversation  map[int64]int64
	conversationToUsers map[int64]map[int64]struct{}
}

func New() *Registry {
	return &Registry{
		userToConversation: make(map[int64]int64),
		conversationToUsers: map[int64]map[int64]struct{}{
			models.LobbyConversationID: {},
		},
	}
}

// Join adds a user to a conversation, implicitly leaving any previous one
// first. Joining the conversation the user is already in is a no-op.
// Returns the id of a conversation closed by the implicit leave (0 if
// none) along with the users evicted by that closure.
func (r *Registry) Join(userID, conversationID int64) (closed int64, evicted []int64) {
	if current, ok := r.userToConversation[userID]; ok {
		if current == conversationID {
			return 0, nil
		}
		closed, evicted = r.Leave(userID, current)
	}

	users, ok := r.conversationToUsers[conversationID]
	if !ok {
		users = make(map[int64]struct{})
		r.conversationToUsers[conversationID] = users
	}
	users[userID] = struct{}{}
	r.userToConversation[userID] = conversationID
	return closed, evicted
}

// Leave removes a user from a conversation. If the removal collapses a
// non-lobby conversation to one or zero members, the conversation is
// closed: the stragglers are evicted, both returned to the caller so it
// can report the closure upward exactly once.
func (r *Registry) Leave(userID, conversationID int64) (closed int64, evicted []int64) {
	r.remove(userID, conversationID)

	users := r.conversationToUsers[conversationID]
	if conversationID == models.LobbyConversationID || len(users) > 1 {
		return 0, nil
	}

	for straggler := range users {
		r.remove(straggler, conversationID)
		evicted = append(evicted, straggler)
	}
	delete(r.conversationToUsers, conversationID)
	return conversationID, evicted
}

// UserDisconnect is Leave against the user's currently recorded
// conversation. Unknown users are a no-op.
func (r *Registry) UserDisconnect(userID int64) (closed int64, evicted []int64) {
	conversationID, ok := r.userToConversation[userID]
	if !ok {
		return 0, nil
	}
	return r.Leave(userID, conversationID)
}

// Conversation returns the conversation the user is currently bound to.
func (r *Registry) Conversation(userID int64) (int64, bool) {
	conversationID, ok := r.userToConversation[userID]
	return conversationID, ok
}

// Attendees returns a snapshot of a conversation's current members.
func (r *Registry) Attendees(conversationID int64) []int64 {
	users := r.conversationToUsers[conversationID]
	attendees := make([]int64, 0, len(users))
	for userID := range users {
		attendees = append(attendees, userID)
	}
	return attendees
}

// LobbyAttendees returns a snapshot of current lobby membership.
func (r *Registry) LobbyAttendees() []int64 {
	return r.Attendees(models.LobbyConversationID)
}

func (r *Registry) remove(userID, conversationID int64) {
	if users, ok := r.conversationToUsers[conversationID]; ok {
		delete(users, userID)
	}
	delete(r.userToConversation, userID)
}
