// Package channels persists channels and their messages.
package channels

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"chathub/types"
)

var ErrDuplicateName = fmt.Errorf("a channel with that name already exists")

type Store struct {
	DB *sql.DB
}

// Create inserts a new channel. passwordHash may be empty for an open
// channel. Names are unique case-insensitively.
func (s *Store) Create(name, description, passwordHash string, requiresApproval bool) (*types.Channel, error) {
	createdAt := time.Now().UTC().Format(time.RFC3339)
	res, err := s.DB.Exec(
		`INSERT INTO channels (name, description, password_hash, is_writable, requires_approval, created_at)
		 VALUES (?, ?, ?, 1, ?, ?)`,
		name, description, passwordHash, requiresApproval, createdAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrDuplicateName
		}
		return nil, fmt.Errorf("channel create: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("channel create: %w", err)
	}
	return &types.Channel{
		ID:               int(id),
		Name:             name,
		Description:      description,
		PasswordHash:     passwordHash,
		IsWritable:       true,
		RequiresApproval: requiresApproval,
		CreatedAt:        createdAt,
	}, nil
}

func (s *Store) ByID(id int) (*types.Channel, error) {
	return s.scanOne(s.DB.QueryRow(
		`SELECT id, name, description, password_hash, is_writable, requires_approval, created_at
		 FROM channels WHERE id = ?`, id))
}

// ByName looks a channel up case-insensitively.
func (s *Store) ByName(name string) (*types.Channel, error) {
	return s.scanOne(s.DB.QueryRow(
		`SELECT id, name, description, password_hash, is_writable, requires_approval, created_at
		 FROM channels WHERE name = ? COLLATE NOCASE`, name))
}

// Update edits a channel's name, description, password and approval flag. An
// empty passwordHash clears protection; pass keepPassword to leave the
// existing hash untouched.
func (s *Store) Update(id int, name, description, passwordHash string, keepPassword, requiresApproval bool) error {
	var err error
	if keepPassword {
		_, err = s.DB.Exec(
			`UPDATE channels SET name = ?, description = ?, requires_approval = ? WHERE id = ?`,
			name, description, requiresApproval, id,
		)
	} else {
		_, err = s.DB.Exec(
			`UPDATE channels SET name = ?, description = ?, password_hash = ?, requires_approval = ? WHERE id = ?`,
			name, description, passwordHash, requiresApproval, id,
		)
	}
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateName
		}
		return fmt.Errorf("channel update: %w", err)
	}
	return nil
}

// SetWritable flips the channel write-lock and returns the new state.
func (s *Store) SetWritable(id int, writable bool) error {
	_, err := s.DB.Exec(`UPDATE channels SET is_writable = ? WHERE id = ?`, writable, id)
	if err != nil {
		return fmt.Errorf("channel set writable: %w", err)
	}
	return nil
}

// Delete removes the channel. Messages, memberships, join requests and
// channel-scoped sanctions go with it through the foreign keys.
func (s *Store) Delete(id int) error {
	_, err := s.DB.Exec(`DELETE FROM channels WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("channel delete: %w", err)
	}
	return nil
}

func (s *Store) All() ([]types.Channel, error) {
	rows, err := s.DB.Query(
		`SELECT id, name, description, password_hash, is_writable, requires_approval, created_at
		 FROM channels ORDER BY name COLLATE NOCASE ASC`)
	if err != nil {
		return nil, fmt.Errorf("channel list: %w", err)
	}
	defer rows.Close()

	var list []types.Channel
	for rows.Next() {
		var ch types.Channel
		if err := rows.Scan(&ch.ID, &ch.Name, &ch.Description, &ch.PasswordHash,
			&ch.IsWritable, &ch.RequiresApproval, &ch.CreatedAt); err != nil {
			return nil, fmt.Errorf("channel scan: %w", err)
		}
		list = append(list, ch)
	}
	return list, rows.Err()
}

// MemberChannels lists the channels the user belongs to.
func (s *Store) MemberChannels(userID int) ([]types.Channel, error) {
	rows, err := s.DB.Query(
		`SELECT c.id, c.name, c.description, c.password_hash, c.is_writable, c.requires_approval, c.created_at
		 FROM channels c
		 JOIN channel_members m ON m.channel_id = c.id
		 WHERE m.user_id = ?
		 ORDER BY c.name COLLATE NOCASE ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("member channels: %w", err)
	}
	defer rows.Close()

	var list []types.Channel
	for rows.Next() {
		var ch types.Channel
		if err := rows.Scan(&ch.ID, &ch.Name, &ch.Description, &ch.PasswordHash,
			&ch.IsWritable, &ch.RequiresApproval, &ch.CreatedAt); err != nil {
			return nil, fmt.Errorf("channel scan: %w", err)
		}
		list = append(list, ch)
	}
	return list, rows.Err()
}

func (s *Store) scanOne(row *sql.Row) (*types.Channel, error) {
	var ch types.Channel
	err := row.Scan(&ch.ID, &ch.Name, &ch.Description, &ch.PasswordHash,
		&ch.IsWritable, &ch.RequiresApproval, &ch.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("channel scan: %w", err)
	}
	return &ch, nil
}
