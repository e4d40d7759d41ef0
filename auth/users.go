package auth

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"chathub/types"
)

var ErrDuplicateUsername = fmt.Errorf("username is already taken")

// Users is the account store.
type Users struct {
	DB *sql.DB
}

func (u *Users) Create(username, password, role string) (*types.User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	createdAt := time.Now().UTC().Format(time.RFC3339)
	res, err := u.DB.Exec(
		`INSERT INTO users (username, password_hash, role, created_at) VALUES (?, ?, ?, ?)`,
		username, hash, role, createdAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrDuplicateUsername
		}
		return nil, fmt.Errorf("user create: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("user create: %w", err)
	}
	return &types.User{
		ID:           int(id),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    createdAt,
	}, nil
}

func (u *Users) ByID(id int) (*types.User, error) {
	return u.scanOne(u.DB.QueryRow(
		`SELECT id, username, password_hash, role, created_at FROM users WHERE id = ?`, id))
}

// ByUsername looks an account up case-insensitively.
func (u *Users) ByUsername(username string) (*types.User, error) {
	return u.scanOne(u.DB.QueryRow(
		`SELECT id, username, password_hash, role, created_at FROM users WHERE username = ? COLLATE NOCASE`,
		username))
}

func (u *Users) SetRole(id int, role string) error {
	_, err := u.DB.Exec(`UPDATE users SET role = ? WHERE id = ?`, role, id)
	if err != nil {
		return fmt.Errorf("user set role: %w", err)
	}
	return nil
}

func (u *Users) SetPassword(id int, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	_, err = u.DB.Exec(`UPDATE users SET password_hash = ? WHERE id = ?`, hash, id)
	if err != nil {
		return fmt.Errorf("user set password: %w", err)
	}
	return nil
}

// Delete removes the account. Memberships, requests, messages and sanctions
// referencing the user go with it through the foreign keys.
func (u *Users) Delete(id int) error {
	_, err := u.DB.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("user delete: %w", err)
	}
	return nil
}

func (u *Users) All() ([]types.User, error) {
	rows, err := u.DB.Query(
		`SELECT id, username, password_hash, role, created_at FROM users ORDER BY username COLLATE NOCASE ASC`)
	if err != nil {
		return nil, fmt.Errorf("user list: %w", err)
	}
	defer rows.Close()

	var list []types.User
	for rows.Next() {
		var user types.User
		if err := rows.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("user scan: %w", err)
		}
		list = append(list, user)
	}
	return list, rows.Err()
}

func (u *Users) Count() (int, error) {
	var count int
	if err := u.DB.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("user count: %w", err)
	}
	return count, nil
}

func (u *Users) scanOne(row *sql.Row) (*types.User, error) {
	var user types.User
	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("user scan: %w", err)
	}
	return &user, nil
}
