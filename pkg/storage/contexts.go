package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// UserContext is a stored description of the user's own content niche,
// used to personalize generated scenarios
type UserContext struct {
	ID          int64
	UserID      int64
	Name        string
	Description string
	ContextData string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// maxContextsPerUser caps how many contexts one user can store
const maxContextsPerUser = 5

// CreateContext stores a new context for the user
func (s *Store) CreateContext(ctx context.Context, userID int64, name, description, contextData string) (*UserContext, error) {
	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_contexts WHERE user_id = ?`, userID).Scan(&count); err != nil {
		return nil, fmt.Errorf("failed to count contexts: %w", err)
	}
	if count >= maxContextsPerUser {
		return nil, fmt.Errorf("context limit reached (%d); delete one first", maxContextsPerUser)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO user_contexts (user_id, name, description, context_data) VALUES (?, ?, ?, ?)`,
		userID, name, description, contextData)
	if err != nil {
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read context id: %w", err)
	}
	return &UserContext{
		ID:          id,
		UserID:      userID,
		Name:        name,
		Description: description,
		ContextData: contextData,
	}, nil
}

// GetContext loads one of the user's contexts by ID. Ownership is part
// of the lookup: another user's context ID does not resolve.
func (s *Store) GetContext(ctx context.Context, userID, contextID int64) (*UserContext, error) {
	var c UserContext
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, description, context_data, created_at, updated_at
		 FROM user_contexts WHERE id = ? AND user_id = ?`, contextID, userID).
		Scan(&c.ID, &c.UserID, &c.Name, &c.Description, &c.ContextData, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("context %d not found", contextID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load context: %w", err)
	}
	return &c, nil
}

// ListContexts returns the user's contexts ordered by name
func (s *Store) ListContexts(ctx context.Context, userID int64) ([]UserContext, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, description, context_data, created_at, updated_at
		 FROM user_contexts WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list contexts: %w", err)
	}
	defer rows.Close()

	var contexts []UserContext
	for rows.Next() {
		var c UserContext
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Description, &c.ContextData,
			&c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan context: %w", err)
		}
		contexts = append(contexts, c)
	}
	return contexts, rows.Err()
}

// UpdateContext replaces the description and data of a stored context
func (s *Store) UpdateContext(ctx context.Context, userID, contextID int64, description, contextData string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE user_contexts SET description = ?, context_data = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND user_id = ?`,
		description, contextData, contextID, userID)
	if err != nil {
		return fmt.Errorf("failed to update context: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("context %d not found", contextID)
	}
	return nil
}

// DeleteContext removes one of the user's contexts
func (s *Store) DeleteContext(ctx context.Context, userID, contextID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM user_contexts WHERE id = ? AND user_id = ?`, contextID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete context: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("context %d not found", contextID)
	}
	return nil
}

// ContextData returns the raw context text for scenario personalization.
// It satisfies the scenario pipeline's ContextProvider.
func (s *Store) ContextData(ctx context.Context, userID, contextID int64) (string, error) {
	c, err := s.GetContext(ctx, userID, contextID)
	if err != nil {
		return "", err
	}
	return c.ContextData, nil
}
