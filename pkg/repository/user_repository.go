package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"webauth/pkg/models"

	"github.com/lib/pq"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (models.User, error)
	Create(ctx context.Context, username, hashedPassword string, role models.Role) (models.User, error)
	List(ctx context.Context) ([]models.User, error)
	UpdateRole(ctx context.Context, username string, role models.Role) (models.User, error)
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

const uniqueViolation = "23505"

func (r *userRepository) FindByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, hashed_password, role, created_at FROM users WHERE username = $1`,
		normalize(username),
	).Scan(&user.ID, &user.Username, &user.HashedPassword, &user.Role, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

func (r *userRepository) Create(ctx context.Context, username, hashedPassword string, role models.Role) (models.User, error) {
	var user models.User
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (username, hashed_password, role) VALUES ($1, $2, $3)
		 RETURNING id, username, hashed_password, role, created_at`,
		normalize(username), hashedPassword, role,
	).Scan(&user.ID, &user.Username, &user.HashedPassword, &user.Role, &user.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return models.User{}, ErrConflict
		}
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (r *userRepository) List(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, username, role, created_at FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Role, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *userRepository) UpdateRole(ctx context.Context, username string, role models.Role) (models.User, error) {
	var user models.User
	err := r.db.QueryRowContext(ctx,
		`UPDATE users SET role = $2 WHERE username = $1
		 RETURNING id, username, hashed_password, role, created_at`,
		normalize(username), role,
	).Scan(&user.ID, &user.Username, &user.HashedPassword, &user.Role, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("update role: %w", err)
	}
	return user, nil
}

func normalize(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
