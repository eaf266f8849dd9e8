// Package messages defines the closed set of commands and replies exchanged
// over the bus. Dispatch is an exhaustive type switch in each actor, so an
// unhandled variant is visible at review time rather than a runtime lookup
// fallback.
package messages

import (
	"github.com/itay-sho/co-buddies-server/src/bus"
	"github.com/itay-sho/co-buddies-server/src/models"
)

// Well-known singleton actor addresses.
const (
	StorageAddr      bus.Address = "storage"
	NotifierAddr     bus.Address = "notifier"
	MatchmakerAddr   bus.Address = "matchmaker"
	OrchestratorAddr bus.Address = "orchestrator"
)

// --- Storage actor commands ---

// Authenticate resolves an access token to a user.
type Authenticate struct {
	Token   string
	Seq     int64
	ReplyTo bus.Address
}

// AuthenticateReply carries the resolved user, or a terminal auth error
// code (AUTH_FAIL_INVALID_TOKEN / AUTH_FAIL_USER_INACTIVE).
type AuthenticateReply struct {
	Seq  int64
	User *models.User
	Code models.ErrorCode
}

// CreateMessage persists a chat message. The storage layer re-checks that
// the author is a current attendee of an open conversation before insert.
type CreateMessage struct {
	AuthorID       int64
	ConversationID int64
	Text           string
	Seq            int64
	ReplyTo        bus.Address
}

// CreateMessageReply carries the stored message or CONVERSATION_CLOSED.
type CreateMessageReply struct {
	Seq     int64
	Message *models.Message
	Code    models.ErrorCode
}

// CreateConversation creates a durable conversation for the given
// attendees. Ref correlates the asynchronous reply with the request.
type CreateConversation struct {
	Ref         string
	AttendeeIDs []int64
	ReplyTo     bus.Address
}

// CreateConversationReply carries the new conversation and the attendees'
// display names keyed by user id.
type CreateConversationReply struct {
	Ref          string
	Conversation *models.Conversation
	Attendees    map[int64]string
	Err          error
}

// CloseConversation marks a conversation closed in durable storage.
// Fire-and-forget: closure is already committed in the registry.
type CloseConversation struct {
	ConversationID int64
}

// --- Matchmaker commands ---

// RequestMatch adds a user to the waiting pool. A user already pooled
// under a different session address supersedes the stale entry.
type RequestMatch struct {
	UserID  int64
	Session bus.Address
}

// CancelMatch removes a user from the waiting pool. The session address
// guards against a superseded connection cancelling its successor.
type CancelMatch struct {
	UserID  int64
	Session bus.Address
}

// --- Orchestrator commands ---

// Join binds a user to a conversation, implicitly leaving any previous
// one. Session is the user's bus address for fan-outs.
type Join struct {
	UserID         int64
	ConversationID int64
	Session        bus.Address
}

// UserDisconnect unwinds a departing user: notifies their conversation's
// remaining attendees, then removes the user from the registry. The session
// address guards against a superseded connection unwinding its successor.
type UserDisconnect struct {
	UserID  int64
	Session bus.Address
}

// Broadcast fans a stored message out to every session bound to the
// author's current conversation.
type Broadcast struct {
	AuthorID   int64
	AuthorName string
	Message    *models.Message
}

// LobbyAttendees requests a snapshot of current lobby membership.
type LobbyAttendees struct {
	Seq     int64
	ReplyTo bus.Address
}

// LobbyAttendeesReply carries the snapshot.
type LobbyAttendeesReply struct {
	Seq     int64
	UserIDs []int64
}

// --- Notifier commands ---

// RegisterPNListener associates a push-notification token with a session.
type RegisterPNListener struct {
	Session bus.Address
	Token   string
}

// UnregisterPNListener drops a session's push-notification association.
type UnregisterPNListener struct {
	Session bus.Address
}

// Notify delivers a best-effort push notification to a session's
// registered listener, if any.
type Notify struct {
	Session bus.Address
	Title   string
	Body    string
}

// --- Session pushes (actor -> session) ---

// MatchFound tells a session it has been paired.
type MatchFound struct {
	ConversationID int64
	Attendees      map[int64]string
}

// MessageReceived pushes a conversation message to a member session.
type MessageReceived struct {
	Message    *models.Message
	AuthorName string
}

// AttendeeDisconnected tells a session that a user left its conversation.
type AttendeeDisconnected struct {
	UserID int64
}

// ConversationClosed tells an evicted session to detach from its
// conversation and return to the lobby.
type ConversationClosed struct {
	ConversationID int64
}

// ForceDisconnect tells a stale session it has been superseded by a newer
// connection for the same user.
type ForceDisconnect struct {
	Reason string
}

// PNChannelRemoved tells a session its push-notification listener is gone
// so it clears its local flag.
type PNChannelRemoved struct{}
