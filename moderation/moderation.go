// Package moderation stores bans and mutes and resolves which record applies
// to a user at evaluation time.
package moderation

import (
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"chathub/types"
)

// ErrBadDuration is returned when a duration string cannot be parsed.
var ErrBadDuration = fmt.Errorf("invalid duration format, use e.g. 30m, 2h, 1d, never, remove")

var durationPattern = regexp.MustCompile(`^(\d+)\s*([mhd])$`)

// ParseDuration interprets an admin-supplied duration. "never" means
// permanent (zero expiry), "remove" lifts the record, and a number with an
// m/h/d suffix expires that long from now.
func ParseDuration(input string, now time.Time) (expiresAt time.Time, remove bool, err error) {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "never" {
		return time.Time{}, false, nil
	}
	if input == "remove" {
		return time.Time{}, true, nil
	}
	match := durationPattern.FindStringSubmatch(input)
	if match == nil {
		return time.Time{}, false, ErrBadDuration
	}
	value, convErr := strconv.Atoi(match[1])
	if convErr != nil {
		return time.Time{}, false, ErrBadDuration
	}
	switch match[2] {
	case "m":
		return now.Add(time.Duration(value) * time.Minute), false, nil
	case "h":
		return now.Add(time.Duration(value) * time.Hour), false, nil
	case "d":
		return now.Add(time.Duration(value) * 24 * time.Hour), false, nil
	}
	return time.Time{}, false, ErrBadDuration
}

// Effective picks the record in force from the channel-scoped and global
// candidates. The channel-scoped record wins when both are active; expired
// records are treated as absent.
func Effective(channelScoped, global *types.Sanction, now time.Time) *types.Sanction {
	if channelScoped != nil && channelScoped.ActiveAt(now) {
		return channelScoped
	}
	if global != nil && global.ActiveAt(now) {
		return global
	}
	return nil
}

// Describe renders a sanction for user-facing denial messages, e.g.
// `banned in "general" until 2026-01-02 15:04. Reason: spam`.
func Describe(s *types.Sanction, verb, channelName string) string {
	scope := "globally"
	if !s.Global() {
		scope = fmt.Sprintf("in %q", channelName)
	}
	expiry := "permanently"
	if !s.Permanent() {
		expiry = "until " + s.ExpiresAt.UTC().Format("2006-01-02 15:04")
	}
	out := fmt.Sprintf("%s %s %s", verb, scope, expiry)
	if s.Reason != "" {
		out += ". Reason: " + s.Reason
	}
	return out
}

// ApplyResult reports what an Apply call did.
type ApplyResult int

const (
	Applied ApplyResult = iota
	Updated
	Removed
	RemoveNoop
)

type Store struct {
	DB *sql.DB
}

// EffectiveBan resolves the ban in force for the user. channelID 0 restricts
// the lookup to the global scope.
func (s *Store) EffectiveBan(userID, channelID int) (*types.Sanction, error) {
	return s.effective("bans", userID, channelID, time.Now().UTC())
}

func (s *Store) EffectiveMute(userID, channelID int) (*types.Sanction, error) {
	return s.effective("mutes", userID, channelID, time.Now().UTC())
}

func (s *Store) effective(table string, userID, channelID int, now time.Time) (*types.Sanction, error) {
	channelScoped, err := s.lookup(table, userID, channelID)
	if err != nil {
		return nil, err
	}
	global, err := s.lookup(table, userID, 0)
	if err != nil {
		return nil, err
	}
	return Effective(channelScoped, global, now), nil
}

func (s *Store) lookup(table string, userID, channelID int) (*types.Sanction, error) {
	if channelID == 0 {
		return s.scanOne(s.DB.QueryRow(
			`SELECT id, user_id, admin_id, channel_id, reason, created_at, expires_at
			 FROM `+table+` WHERE user_id = ? AND channel_id IS NULL`, userID))
	}
	return s.scanOne(s.DB.QueryRow(
		`SELECT id, user_id, admin_id, channel_id, reason, created_at, expires_at
		 FROM `+table+` WHERE user_id = ? AND channel_id = ?`, userID, channelID))
}

func (s *Store) scanOne(row *sql.Row) (*types.Sanction, error) {
	var record types.Sanction
	var channelID sql.NullInt64
	var createdAt string
	var expiresAt sql.NullString
	err := row.Scan(&record.ID, &record.UserID, &record.AdminID, &channelID, &record.Reason, &createdAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sanction scan: %w", err)
	}
	if channelID.Valid {
		record.ChannelID = int(channelID.Int64)
	}
	if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
		record.CreatedAt = t
	}
	if expiresAt.Valid {
		if t, parseErr := time.Parse(time.RFC3339, expiresAt.String); parseErr == nil {
			record.ExpiresAt = t
		}
	}
	return &record, nil
}

// ApplyBan upserts or removes the ban for (userID, channelID). A zero
// channelID targets the global scope. Re-applying to an existing scope
// updates the record in place so each scope keeps exactly one row.
func (s *Store) ApplyBan(userID, adminID, channelID int, duration, reason string) (ApplyResult, error) {
	return s.apply("bans", userID, adminID, channelID, duration, reason)
}

func (s *Store) ApplyMute(userID, adminID, channelID int, duration, reason string) (ApplyResult, error) {
	return s.apply("mutes", userID, adminID, channelID, duration, reason)
}

func (s *Store) apply(table string, userID, adminID, channelID int, duration, reason string) (ApplyResult, error) {
	now := time.Now().UTC()
	expiresAt, remove, err := ParseDuration(duration, now)
	if err != nil {
		return RemoveNoop, err
	}

	existing, err := s.lookup(table, userID, channelID)
	if err != nil {
		return RemoveNoop, err
	}

	if remove {
		if existing == nil {
			return RemoveNoop, nil
		}
		if _, err := s.DB.Exec(`DELETE FROM `+table+` WHERE id = ?`, existing.ID); err != nil {
			return RemoveNoop, fmt.Errorf("%s remove: %w", table, err)
		}
		return Removed, nil
	}

	var expiry interface{}
	if !expiresAt.IsZero() {
		expiry = expiresAt.Format(time.RFC3339)
	}

	var channel interface{}
	if channelID != 0 {
		channel = channelID
	}

	// Single upsert keyed on the scope index, so two concurrent applies to
	// the same scope resolve to the last committed write instead of one of
	// them failing the unique constraint.
	_, err = s.DB.Exec(
		`INSERT INTO `+table+` (user_id, admin_id, channel_id, reason, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, IFNULL(channel_id, 0)) DO UPDATE SET
		   admin_id = excluded.admin_id,
		   reason = excluded.reason,
		   created_at = excluded.created_at,
		   expires_at = excluded.expires_at`,
		userID, adminID, channel, reason, now.Format(time.RFC3339), expiry,
	)
	if err != nil {
		return RemoveNoop, fmt.Errorf("%s apply: %w", table, err)
	}
	if existing != nil {
		return Updated, nil
	}
	return Applied, nil
}
