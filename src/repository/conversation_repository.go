package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/itay-sho/co-buddies-server/src/models"
)

// CreateConversation creates an open conversation with exactly the given
// attendees.
func (r *Repository) CreateConversation(ctx context.Context, attendeeIDs []int64) (*models.Conversation, error) {
	tx, err := r.db.GetConnection().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var conversation models.Conversation
	err = tx.QueryRowContext(ctx, `
		INSERT INTO conversations (is_open)
		VALUES (TRUE)
		RETURNING id, is_open
	`).Scan(&conversation.ID, &conversation.IsOpen)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	for _, userID := range attendeeIDs {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO conversation_attendees (conversation_id, user_id)
			VALUES ($1, $2)
		`, conversation.ID, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to add attendee %d: %w", userID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit conversation: %w", err)
	}

	conversation.AttendeeIDs = attendeeIDs
	slog.Info("Created conversation",
		"conversation_id", conversation.ID,
		"attendees", attendeeIDs)
	return &conversation, nil
}

// CloseConversation marks a conversation as closed.
func (r *Repository) CloseConversation(ctx context.Context, conversationID int64) error {
	result, err := r.db.GetConnection().ExecContext(ctx, `
		UPDATE conversations
		SET is_open = FALSE
		WHERE id = $1
	`, conversationID)
	if err != nil {
		return fmt.Errorf("failed to close conversation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return models.ErrConversationNotFound
	}

	slog.Info("Closed conversation", "conversation_id", conversationID)
	return nil
}
