package uploads

import (
	"database/sql"
	"fmt"
	"time"

	"chathub/types"
)

const (
	pendingStickerDir  = "stickers/pending"
	approvedStickerDir = "stickers"
)

// Stickers manages the submission queue. New stickers land in a pending
// directory and only become postable once an admin approves them.
type Stickers struct {
	DB    *sql.DB
	Files *Store
}

// Submit stores the rows for a freshly saved pending sticker file.
func (s *Stickers) Submit(uploaderID int, filePath string) (*types.Sticker, error) {
	uploadedAt := time.Now().UTC().Format(time.RFC3339)
	res, err := s.DB.Exec(
		`INSERT INTO stickers (uploader_id, file_path, is_approved, uploaded_at) VALUES (?, ?, 0, ?)`,
		uploaderID, filePath, uploadedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("sticker submit: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("sticker submit: %w", err)
	}
	return &types.Sticker{
		ID:         int(id),
		UploaderID: uploaderID,
		FilePath:   filePath,
		UploadedAt: uploadedAt,
	}, nil
}

func (s *Stickers) ByID(id int) (*types.Sticker, error) {
	var sticker types.Sticker
	err := s.DB.QueryRow(
		`SELECT id, uploader_id, file_path, is_approved, uploaded_at FROM stickers WHERE id = ?`, id,
	).Scan(&sticker.ID, &sticker.UploaderID, &sticker.FilePath, &sticker.IsApproved, &sticker.UploadedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sticker lookup: %w", err)
	}
	return &sticker, nil
}

// Approve moves the file out of the pending directory and flips the flag.
func (s *Stickers) Approve(id int) (*types.Sticker, error) {
	sticker, err := s.ByID(id)
	if err != nil {
		return nil, err
	}
	if sticker == nil {
		return nil, fmt.Errorf("sticker not found")
	}
	if sticker.IsApproved {
		return sticker, nil
	}

	newPath, err := s.Files.move(sticker.FilePath, approvedStickerDir)
	if err != nil {
		return nil, err
	}
	_, err = s.DB.Exec(`UPDATE stickers SET is_approved = 1, file_path = ? WHERE id = ?`, newPath, id)
	if err != nil {
		return nil, fmt.Errorf("sticker approve: %w", err)
	}
	sticker.IsApproved = true
	sticker.FilePath = newPath
	return sticker, nil
}

// Reject deletes the row and the stored file.
func (s *Stickers) Reject(id int) error {
	sticker, err := s.ByID(id)
	if err != nil {
		return err
	}
	if sticker == nil {
		return fmt.Errorf("sticker not found")
	}
	if _, err := s.DB.Exec(`DELETE FROM stickers WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sticker reject: %w", err)
	}
	return s.Files.Remove(sticker.FilePath)
}

func (s *Stickers) Approved() ([]types.Sticker, error) {
	return s.list(`SELECT id, uploader_id, file_path, is_approved, uploaded_at
		FROM stickers WHERE is_approved = 1 ORDER BY uploaded_at ASC, id ASC`)
}

func (s *Stickers) Pending() ([]types.Sticker, error) {
	return s.list(`SELECT id, uploader_id, file_path, is_approved, uploaded_at
		FROM stickers WHERE is_approved = 0 ORDER BY uploaded_at ASC, id ASC`)
}

func (s *Stickers) list(query string) ([]types.Sticker, error) {
	rows, err := s.DB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("sticker list: %w", err)
	}
	defer rows.Close()

	var stickers []types.Sticker
	for rows.Next() {
		var sticker types.Sticker
		if err := rows.Scan(&sticker.ID, &sticker.UploaderID, &sticker.FilePath,
			&sticker.IsApproved, &sticker.UploadedAt); err != nil {
			return nil, fmt.Errorf("sticker scan: %w", err)
		}
		stickers = append(stickers, sticker)
	}
	return stickers, rows.Err()
}
