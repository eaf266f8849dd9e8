package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/itay-sho/co-buddies-server/src/models"
)

// Authenticate resolves an access token to a user. An unknown token yields
// models.ErrInvalidToken; a deactivated user yields models.ErrUserInactive.
func (r *Repository) Authenticate(ctx context.Context, token string) (*models.User, error) {
	query := `
		SELECT id, display_name, is_active
		FROM chat_users
		WHERE access_token = $1
	`

	var user models.User
	err := r.db.GetConnection().QueryRowContext(ctx, query, token).Scan(
		&user.ID,
		&user.DisplayName,
		&user.IsActive,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate token: %w", err)
	}

	if !user.IsActive {
		return nil, models.ErrUserInactive
	}

	slog.Info("Authenticated user", "user_id", user.ID)
	return &user, nil
}

// DisplayNames resolves the display names for a set of users.
func (r *Repository) DisplayNames(ctx context.Context, userIDs []int64) (map[int64]string, error) {
	query := `
		SELECT id, display_name
		FROM chat_users
		WHERE id = ANY($1)
	`

	rows, err := r.db.GetConnection().QueryContext(ctx, query, pq.Array(userIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query display names: %w", err)
	}
	defer rows.Close()

	names := make(map[int64]string, len(userIDs))
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan display name: %w", err)
		}
		names[id] = name
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read display names: %w", err)
	}
	return names, nil
}
