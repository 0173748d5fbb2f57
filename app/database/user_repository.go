package database

import (
	"context"
	"database/sql"
	"fmt"
)

var _ UserRepository = (*UserRepositoryImpl)(nil)

// UserRepositoryImpl handles database operations for user accounts
type UserRepositoryImpl struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepositoryImpl {
	return &UserRepositoryImpl{db: db}
}

func (r *UserRepositoryImpl) GetUser(ctx context.Context, id string) (*User, error) {
	var user User
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, nationality, verified, points, created_at, updated_at
		FROM users
		WHERE id = ?
	`, id).Scan(
		&user.ID, &user.Name, &user.Email, &user.Nationality, &user.Verified, &user.Points,
		&user.CreatedAt, &user.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// UpsertUser creates the account with its initial points or refreshes the
// profile fields of an existing one. It reports whether a row was created.
func (r *UserRepositoryImpl) UpsertUser(ctx context.Context, seed UserSeed) (bool, error) {
	existing, err := r.GetUser(ctx, seed.ID)
	if err != nil {
		return false, fmt.Errorf("failed to check existing user: %w", err)
	}

	if existing != nil {
		_, err = r.db.ExecContext(ctx, `
			UPDATE users
			SET name = ?, email = ?, nationality = ?, verified = ?,
			    updated_at = strftime('%Y-%m-%d %H:%M:%f', 'now')
			WHERE id = ?
		`, seed.Name, seed.Email, seed.Nationality, seed.Verified, seed.ID)
	} else {
		_, err = r.db.ExecContext(ctx, `
			INSERT INTO users (id, name, email, nationality, verified, points)
			VALUES (?, ?, ?, ?, ?, ?)
		`, seed.ID, seed.Name, seed.Email, seed.Nationality, seed.Verified, seed.InitialPoints)
	}

	if err != nil {
		return false, fmt.Errorf("failed to upsert user: %w", err)
	}

	return existing == nil, nil
}

func (r *UserRepositoryImpl) GetUserCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get user count: %w", err)
	}
	return count, nil
}
