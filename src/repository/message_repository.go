package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/itay-sho/co-buddies-server/src/models"
)

// CreateMessage persists a message after re-checking that the author is a
// current attendee of an open conversation. The re-check is mandatory:
// in-memory membership and the durable attendee list can diverge
// transiently, and the author claim must never be trusted as-is.
func (r *Repository) CreateMessage(ctx context.Context, authorID, conversationID int64, text string) (*models.Message, error) {
	now := time.Now().UTC()

	query := `
		INSERT INTO messages (conversation_id, author_id, text, created_at)
		SELECT $1, $2, $3, $4
		WHERE EXISTS (
			SELECT 1
			FROM conversations c
			JOIN conversation_attendees ca ON ca.conversation_id = c.id
			WHERE c.id = $1 AND c.is_open AND ca.user_id = $2
		)
		RETURNING id
	`

	message := models.Message{
		ConversationID: conversationID,
		AuthorID:       authorID,
		Text:           text,
		CreatedAt:      now,
	}
	err := r.db.GetConnection().QueryRowContext(ctx, query, conversationID, authorID, text, now).Scan(&message.ID)

	if errors.Is(err, sql.ErrNoRows) {
		// Closed, deleted, or the author is not an attendee: all collapse
		// into the same user-visible outcome.
		return nil, models.ErrConversationClosed
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	return &message, nil
}
