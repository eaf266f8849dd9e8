package models

import "time"

// LobbyConversationID is the reserved conversation that holds every
// authenticated user who is not currently paired. It is exempt from
// auto-close and may be empty.
const LobbyConversationID int64 = 1

// User represents a chat user as stored by the storage collaborator.
type User struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	IsActive    bool   `json:"is_active"`
}

// Conversation represents a durable conversation between two attendees.
type Conversation struct {
	ID          int64   `json:"id"`
	IsOpen      bool    `json:"is_open"`
	AttendeeIDs []int64 `json:"attendee_ids"`
}

// Message represents a durable chat message.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	AuthorID       int64     `json:"author_id"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"created_at"`
}
