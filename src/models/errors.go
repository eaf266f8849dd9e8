package models

import "errors"

// Domain-level sentinel errors for business logic
// These errors should not contain protocol-specific information

var (
	// ErrInvalidToken indicates that no user matches the presented access token
	ErrInvalidToken = errors.New("invalid access token")

	// ErrUserInactive indicates that the token is valid but the user is deactivated
	ErrUserInactive = errors.New("user is inactive")

	// ErrConversationClosed indicates that the target conversation is closed,
	// missing, or the author is not one of its attendees
	ErrConversationClosed = errors.New("conversation is closed")

	// ErrConversationNotFound indicates that a conversation with the given ID does not exist
	ErrConversationNotFound = errors.New("conversation not found")
)
