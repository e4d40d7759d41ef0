package channels

import (
	"database/sql"
	"fmt"
	"time"

	"chathub/types"
)

// MaxMessageLength caps a message body after trimming.
const MaxMessageLength = 5000

// InsertMessage persists a message and returns it with its id and timestamp
// filled in. The username is carried for broadcast payloads; only the user id
// is stored.
func (s *Store) InsertMessage(channelID, userID int, username, body, messageType string) (*types.Message, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339)
	res, err := s.DB.Exec(
		`INSERT INTO messages (channel_id, user_id, body, message_type, timestamp) VALUES (?, ?, ?, ?, ?)`,
		channelID, userID, body, messageType, timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("message insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("message insert: %w", err)
	}
	return &types.Message{
		ID:          int(id),
		ChannelID:   channelID,
		UserID:      userID,
		Username:    username,
		Body:        body,
		MessageType: messageType,
		Timestamp:   timestamp,
	}, nil
}

// History returns every surviving message in the channel, oldest first.
func (s *Store) History(channelID int) ([]types.Message, error) {
	rows, err := s.DB.Query(
		`SELECT m.id, m.channel_id, m.user_id, u.username, m.body, m.message_type, m.is_pinned, m.timestamp
		 FROM messages m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.channel_id = ?
		 ORDER BY m.timestamp ASC, m.id ASC`, channelID)
	if err != nil {
		return nil, fmt.Errorf("message history: %w", err)
	}
	defer rows.Close()

	var history []types.Message
	for rows.Next() {
		var msg types.Message
		if err := rows.Scan(&msg.ID, &msg.ChannelID, &msg.UserID, &msg.Username,
			&msg.Body, &msg.MessageType, &msg.IsPinned, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("message scan: %w", err)
		}
		history = append(history, msg)
	}
	return history, rows.Err()
}

func (s *Store) MessageByID(id int) (*types.Message, error) {
	var msg types.Message
	err := s.DB.QueryRow(
		`SELECT m.id, m.channel_id, m.user_id, u.username, m.body, m.message_type, m.is_pinned, m.timestamp
		 FROM messages m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.id = ?`, id,
	).Scan(&msg.ID, &msg.ChannelID, &msg.UserID, &msg.Username,
		&msg.Body, &msg.MessageType, &msg.IsPinned, &msg.Timestamp)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("message lookup: %w", err)
	}
	return &msg, nil
}

// SetPinned flips the pin flag on a message. Pinned messages survive the
// retention sweep.
func (s *Store) SetPinned(messageID int, pinned bool) error {
	_, err := s.DB.Exec(`UPDATE messages SET is_pinned = ? WHERE id = ?`, pinned, messageID)
	if err != nil {
		return fmt.Errorf("message pin: %w", err)
	}
	return nil
}

// ExpiredMessages lists unpinned messages older than the cutoff so their
// image files can be removed before the rows are deleted.
func (s *Store) ExpiredMessages(cutoff time.Time) ([]types.Message, error) {
	rows, err := s.DB.Query(
		`SELECT id, channel_id, user_id, body, message_type, is_pinned, timestamp
		 FROM messages WHERE timestamp < ? AND is_pinned = 0`,
		cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("expired messages: %w", err)
	}
	defer rows.Close()

	var expired []types.Message
	for rows.Next() {
		var msg types.Message
		if err := rows.Scan(&msg.ID, &msg.ChannelID, &msg.UserID,
			&msg.Body, &msg.MessageType, &msg.IsPinned, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("expired message scan: %w", err)
		}
		expired = append(expired, msg)
	}
	return expired, rows.Err()
}

// DeleteExpiredMessages removes unpinned messages older than the cutoff and
// returns how many rows were deleted.
func (s *Store) DeleteExpiredMessages(cutoff time.Time) (int64, error) {
	res, err := s.DB.Exec(
		`DELETE FROM messages WHERE timestamp < ? AND is_pinned = 0`,
		cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("expired message delete: %w", err)
	}
	return res.RowsAffected()
}
