package protocol

import (
	"encoding/json"

	"github.com/itay-sho/co-buddies-server/src/models"
)

// RequestType is the closed set of frame verbs exchanged with clients.
type RequestType string

// Client-to-server verbs.
const (
	TypeAuthenticate   RequestType = "authenticate"
	TypeSendMessage    RequestType = "send_message"
	TypeRequestMatch   RequestType = "request_match"
	TypeUnrequestMatch RequestType = "unrequest_match"
	TypeSetPNToken     RequestType = "set_pn_token"
)

// Server-to-client verbs.
const (
	TypeError          RequestType = "error"
	TypeReceiveMessage RequestType = "receive_message"
	TypeReceiveMatch   RequestType = "receive_match"
	TypeDisconnect     RequestType = "disconnect"
)

var knownTypes = map[RequestType]bool{
	TypeAuthenticate:   true,
	TypeSendMessage:    true,
	TypeRequestMatch:   true,
	TypeUnrequestMatch: true,
	TypeSetPNToken:     true,
	TypeError:          true,
	TypeReceiveMessage: true,
	TypeReceiveMatch:   true,
	TypeDisconnect:     true,
}

// IsClientVerb reports whether t is a verb clients are allowed to send.
func (t RequestType) IsClientVerb() bool {
	switch t {
	case TypeAuthenticate, TypeSendMessage, TypeRequestMatch, TypeUnrequestMatch, TypeSetPNToken:
		return true
	}
	return false
}

// Envelope is the wire contract for every frame. Seq is a per-connection
// strictly increasing counter assigned by the sender; it is never a global
// id. Replies that answer a specific request carry payload.response_to.
type Envelope struct {
	RequestType RequestType     `json:"request_type"`
	Seq         int64           `json:"seq"`
	Payload     json.RawMessage `json:"payload"`
}

// AuthenticatePayload carries the access token issued by the registration
// service.
type AuthenticatePayload struct {
	AccessToken string `json:"access_token" validate:"required,max=100"`
}

// SendMessagePayload carries the message text for the sender's current
// conversation.
type SendMessagePayload struct {
	Text string `json:"text" validate:"required,max=500"`
}

// RequestMatchPayload is empty; the request is identified by the session.
type RequestMatchPayload struct{}

// UnrequestMatchPayload is empty.
type UnrequestMatchPayload struct{}

// SetPNTokenPayload registers a push-notification listener token.
type SetPNTokenPayload struct {
	Token string `json:"token" validate:"required,max=200"`
}

// ErrorPayload is carried by error frames. An OK error_code is a plain
// acknowledgement of the request named by ResponseTo.
type ErrorPayload struct {
	ErrorCode    models.ErrorCode `json:"error_code" validate:"min=0"`
	ErrorMessage string           `json:"error_message" validate:"max=500"`
	ResponseTo   *int64           `json:"response_to,omitempty" validate:"omitempty,gt=0"`
}

// ReceiveMessagePayload pushes a stored message to every attendee of its
// conversation.
type ReceiveMessagePayload struct {
	ConversationID int64  `json:"conversation_id" validate:"required,gt=0"`
	AuthorID       int64  `json:"author_id" validate:"required,gt=0"`
	AuthorName     string `json:"author_name" validate:"required,max=150"`
	Text           string `json:"text" validate:"required,max=500"`
	CreatedAt      int64  `json:"created_at" validate:"required,gt=0"`
}

// ReceiveMatchPayload announces a freshly created conversation. Attendees
// maps stringified user ids to display names.
type ReceiveMatchPayload struct {
	ConversationID int64             `json:"conversation_id" validate:"required,gt=0"`
	Attendees      map[string]string `json:"attendees" validate:"required,min=1"`
}

// DisconnectPayload notifies remaining attendees that a user left their
// conversation.
type DisconnectPayload struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
}
