package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"webauth/pkg/models"

	"github.com/lib/pq"
)

type ProfileRepository interface {
	// Get returns the account's profile, with empty fields when none was
	// saved yet. ErrNotFound means there is no such account.
	Get(ctx context.Context, userID int) (models.Profile, error)
	Save(ctx context.Context, p models.Profile) (models.Profile, error)
}

type profileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) ProfileRepository {
	return &profileRepository{db: db}
}

const foreignKeyViolation = "23503"

func (r *profileRepository) Get(ctx context.Context, userID int) (models.Profile, error) {
	var (
		p       models.Profile
		updated sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT u.id, u.username,
		        COALESCE(p.first_name, ''), COALESCE(p.last_name, ''),
		        COALESCE(p.phone_number, ''), COALESCE(p.email, ''), p.updated_at
		 FROM users u LEFT JOIN user_profiles p ON p.user_id = u.id
		 WHERE u.id = $1`,
		userID,
	).Scan(&p.UserID, &p.Username, &p.FirstName, &p.LastName, &p.PhoneNumber, &p.Email, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Profile{}, ErrNotFound
	}
	if err != nil {
		return models.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	if updated.Valid {
		p.UpdatedAt = &updated.Time
	}
	return p, nil
}

// Save writes every field of p. Empty strings are stored as NULL so that
// cleared emails do not collide on the unique index.
func (r *profileRepository) Save(ctx context.Context, p models.Profile) (models.Profile, error) {
	var updated time.Time
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO user_profiles (user_id, first_name, last_name, phone_number, email)
		 VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''))
		 ON CONFLICT (user_id) DO UPDATE SET
		     first_name = EXCLUDED.first_name,
		     last_name = EXCLUDED.last_name,
		     phone_number = EXCLUDED.phone_number,
		     email = EXCLUDED.email,
		     updated_at = CURRENT_TIMESTAMP
		 RETURNING updated_at`,
		p.UserID, p.FirstName, p.LastName, p.PhoneNumber, p.Email,
	).Scan(&updated)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case uniqueViolation:
				return models.Profile{}, ErrConflict
			case foreignKeyViolation:
				return models.Profile{}, ErrNotFound
			}
		}
		return models.Profile{}, fmt.Errorf("save profile: %w", err)
	}
	p.UpdatedAt = &updated
	return p, nil
}
