package retention

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"chathub/channels"
	"chathub/db"
	"chathub/uploads"
)

func newSweeper(t *testing.T) (*Sweeper, *channels.Store, string) {
	t.Helper()
	conn, err := db.InitSQLite(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("init sqlite: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := db.EnsureSchema(conn); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if _, err := conn.Exec(
		`INSERT INTO users (id, username, password_hash, role, created_at) VALUES (1, 'root', 'x', 'admin', '2026-01-01T00:00:00Z')`,
	); err != nil {
		t.Fatalf("seed: %v", err)
	}

	store := &channels.Store{DB: conn}
	staticDir := t.TempDir()
	sweeper := &Sweeper{
		Channels: store,
		Files:    &uploads.Store{Dir: staticDir},
		MaxAge:   3 * time.Hour,
		Interval: time.Hour,
	}
	return sweeper, store, staticDir
}

func TestStartRefusesSecondTimer(t *testing.T) {
	sweeper, _, _ := newSweeper(t)

	if err := sweeper.Start(); err != nil {
		t.Fatalf("first start: %v", err)
	}
	defer sweeper.Stop()

	if err := sweeper.Start(); err == nil {
		t.Fatalf("expected second Start to fail while running")
	}

	sweeper.Stop()
	if err := sweeper.Start(); err != nil {
		t.Fatalf("restart after stop: %v", err)
	}
}

func TestSweepDeletesOldRowsAndImageFiles(t *testing.T) {
	sweeper, store, staticDir := newSweeper(t)

	channel, err := store.Create("general", "", "", false)
	if err != nil {
		t.Fatalf("create channel: %v", err)
	}

	imageDir := filepath.Join(staticDir, "images")
	if err := os.MkdirAll(imageDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	imageFile := filepath.Join(imageDir, "old.png")
	if err := os.WriteFile(imageFile, []byte("png"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	now := time.Now().UTC()
	old := now.Add(-4 * time.Hour).Format(time.RFC3339)
	inserts := []struct {
		body, msgType string
		pinned        int
		timestamp     string
	}{
		{"stale text", "text", 0, old},
		{"/static/images/old.png", "image", 0, old},
		{"kept by pin", "text", 1, old},
		{"fresh", "text", 0, now.Format(time.RFC3339)},
	}
	for _, row := range inserts {
		if _, err := store.DB.Exec(
			`INSERT INTO messages (channel_id, user_id, body, message_type, is_pinned, timestamp) VALUES (?, 1, ?, ?, ?, ?)`,
			channel.ID, row.body, row.msgType, row.pinned, row.timestamp,
		); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	sweeper.Sweep(now)

	history, err := store.History(channel.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected pinned and fresh to survive, got %+v", history)
	}
	for _, msg := range history {
		if msg.Body != "kept by pin" && msg.Body != "fresh" {
			t.Fatalf("unexpected survivor: %+v", msg)
		}
	}

	if _, err := os.Stat(imageFile); !os.IsNotExist(err) {
		t.Fatalf("expected the expired image file removed, stat err=%v", err)
	}
}
