// Package uploads stores user media on disk and runs the sticker approval
// queue.
package uploads

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// Store writes uploaded files under Dir with random names. Public URLs are
// served from /static/<subdir>/<name>.
type Store struct {
	Dir string
}

// AllowedFile reports whether the filename carries an accepted image
// extension.
func AllowedFile(filename string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Save writes the upload into subdir under a fresh uuid name and returns the
// public path.
func (s *Store) Save(file *multipart.FileHeader, subdir string) (string, error) {
	if !AllowedFile(file.Filename) {
		return "", fmt.Errorf("file type not allowed")
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	name := uuid.New().String() + ext
	dir := filepath.Join(s.Dir, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("upload dir: %w", err)
	}

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("upload open: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("upload create: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("upload write: %w", err)
	}

	return "/static/" + subdir + "/" + name, nil
}

// Remove deletes the file behind a public path. Paths that resolve outside
// the upload directory are refused.
func (s *Store) Remove(publicPath string) error {
	rel := strings.TrimPrefix(publicPath, "/static/")
	full := filepath.Join(s.Dir, filepath.Clean("/"+rel))

	absDir, err := filepath.Abs(s.Dir)
	if err != nil {
		return err
	}
	absFull, err := filepath.Abs(full)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(absFull, absDir+string(os.PathSeparator)) {
		return fmt.Errorf("path escapes upload directory")
	}

	err = os.Remove(absFull)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// move relocates a stored file between subdirs, used when a sticker is
// approved. Returns the new public path.
func (s *Store) move(publicPath, toSubdir string) (string, error) {
	rel := strings.TrimPrefix(publicPath, "/static/")
	name := filepath.Base(rel)
	src := filepath.Join(s.Dir, filepath.Clean("/"+rel))
	dstDir := filepath.Join(s.Dir, toSubdir)
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return "", fmt.Errorf("upload dir: %w", err)
	}
	if err := os.Rename(src, filepath.Join(dstDir, name)); err != nil {
		return "", fmt.Errorf("upload move: %w", err)
	}
	return "/static/" + toSubdir + "/" + name, nil
}
