package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// User is a registered user of the analysis service. ExternalID is the
// identity from the chat frontend; ID is the internal key other tables
// reference.
type User struct {
	ID            int64
	ExternalID    int64
	Username      string
	FirstName     string
	LastName      string
	RequestsCount int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// GetOrCreateUser looks a user up by external ID, creating the row on
// first contact and refreshing profile fields on change
func (s *Store) GetOrCreateUser(ctx context.Context, externalID int64, username, firstName, lastName string) (*User, error) {
	user, err := s.getUser(ctx, externalID)
	if err == nil {
		if user.Username != username || user.FirstName != firstName || user.LastName != lastName {
			_, err = s.db.ExecContext(ctx,
				`UPDATE users SET username = ?, first_name = ?, last_name = ?, updated_at = CURRENT_TIMESTAMP
				 WHERE external_id = ?`,
				username, firstName, lastName, externalID)
			if err != nil {
				return nil, fmt.Errorf("failed to update user: %w", err)
			}
			user.Username = username
			user.FirstName = firstName
			user.LastName = lastName
		}
		return user, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (external_id, username, first_name, last_name) VALUES (?, ?, ?, ?)`,
		externalID, username, firstName, lastName)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read user id: %w", err)
	}

	s.logger.InfoWithFields("created new user", map[string]interface{}{
		"external_id": externalID,
	})

	return &User{
		ID:         id,
		ExternalID: externalID,
		Username:   username,
		FirstName:  firstName,
		LastName:   lastName,
	}, nil
}

func (s *Store) getUser(ctx context.Context, externalID int64) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, external_id, username, first_name, last_name, requests_count, created_at, updated_at
		 FROM users WHERE external_id = ?`, externalID).
		Scan(&u.ID, &u.ExternalID, &u.Username, &u.FirstName, &u.LastName,
			&u.RequestsCount, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// IncrementUserRequests bumps the lifetime request counter
func (s *Store) IncrementUserRequests(ctx context.Context, externalID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET requests_count = requests_count + 1 WHERE external_id = ?`, externalID)
	if err != nil {
		return fmt.Errorf("failed to increment requests: %w", err)
	}
	return nil
}

// UserRequestCount returns how many reports a user has ever requested
func (s *Store) UserRequestCount(ctx context.Context, externalID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(r.id) FROM reports r
		 JOIN users u ON u.id = r.user_id
		 WHERE u.external_id = ?`, externalID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count requests: %w", err)
	}
	return count, nil
}
