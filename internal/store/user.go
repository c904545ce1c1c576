package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

const userColumns = "id, email, full_name, password_hash, bio, profile_pic, created_at"

// CreateUser inserts a new account.
func (db *DB) CreateUser(ctx context.Context, u *User) error {
	prepareUser(u)
	_, err := db.ExecContext(ctx, `
		INSERT INTO users (id, email, full_name, password_hash, bio, profile_pic, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.FullName, u.PasswordHash, u.Bio, u.ProfilePic, toMillis(u.CreatedAt))
	if err != nil {
		var serr sqlite3.Error
		if errors.As(err, &serr) && serr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser returns a user by id.
func (db *DB) GetUser(ctx context.Context, id string) (*User, error) {
	return db.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetUserByEmail returns a user by normalised email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return db.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, NormalizeEmail(email))
}

func (db *DB) getUser(ctx context.Context, query string, arg string) (*User, error) {
	u, err := scanUser(db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// UserExists reports whether id names an account.
func (db *DB) UserExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("user exists: %w", err)
	}
	return true, nil
}

// ListUsersExcept returns every account other than id, ordered by name.
func (db *DB) ListUsersExcept(ctx context.Context, id string) ([]User, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE id != ? ORDER BY full_name, id`, id)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdateProfile applies the non-empty fields of p and returns the result.
func (db *DB) UpdateProfile(ctx context.Context, id string, p ProfileUpdate) (*User, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE users SET
			full_name = COALESCE(NULLIF(?, ''), full_name),
			bio = COALESCE(NULLIF(?, ''), bio),
			profile_pic = COALESCE(NULLIF(?, ''), profile_pic)
		WHERE id = ?`, p.FullName, p.Bio, p.ProfilePic, id)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return db.GetUser(ctx, id)
}

func scanUser(s scanner) (*User, error) {
	var u User
	var createdAt int64
	if err := s.Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.Bio, &u.ProfilePic, &createdAt); err != nil {
		return nil, err
	}
	u.CreatedAt = fromMillis(createdAt)
	return &u, nil
}
