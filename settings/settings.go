// Package settings stores singleton key/value pairs, such as the
// maintenance flag that closes the site to non-admins.
package settings

import (
	"database/sql"
	"fmt"
	"strconv"
)

const KeySiteClosed = "site_closed"

type Store struct {
	DB *sql.DB
}

func (s *Store) Get(key string) (string, error) {
	var value string
	err := s.DB.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("settings get %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) Set(key, value string) error {
	_, err := s.DB.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("settings set %s: %w", key, err)
	}
	return nil
}

// SiteClosed reports whether the maintenance flag is on. A missing row means
// the site is open.
func (s *Store) SiteClosed() (bool, error) {
	value, err := s.Get(KeySiteClosed)
	if err != nil {
		return false, err
	}
	if value == "" {
		return false, nil
	}
	closed, err := strconv.ParseBool(value)
	if err != nil {
		return false, nil
	}
	return closed, nil
}

// ToggleSiteClosed flips the maintenance flag and returns the new state.
func (s *Store) ToggleSiteClosed() (bool, error) {
	closed, err := s.SiteClosed()
	if err != nil {
		return false, err
	}
	newState := !closed
	if err := s.Set(KeySiteClosed, strconv.FormatBool(newState)); err != nil {
		return false, err
	}
	return newState, nil
}
