package moderation

import (
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"chathub/db"
	"chathub/types"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.InitSQLite(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("init sqlite: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := db.EnsureSchema(conn); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	seed := []string{
		`INSERT INTO users (id, username, password_hash, role, created_at) VALUES (1, 'root', 'x', 'admin', '2026-01-01T00:00:00Z')`,
		`INSERT INTO users (id, username, password_hash, role, created_at) VALUES (2, 'alice', 'x', 'user', '2026-01-01T00:00:00Z')`,
		`INSERT INTO channels (id, name, description, password_hash, is_writable, requires_approval, created_at)
		 VALUES (1, 'general', '', '', 1, 0, '2026-01-01T00:00:00Z')`,
	}
	for _, stmt := range seed {
		if _, err := conn.Exec(stmt); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return conn
}

func TestParseDuration(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		input   string
		want    time.Time
		remove  bool
		wantErr bool
	}{
		{"30m", now.Add(30 * time.Minute), false, false},
		{"2h", now.Add(2 * time.Hour), false, false},
		{"1d", now.Add(24 * time.Hour), false, false},
		{" 7 d ", now.Add(7 * 24 * time.Hour), false, false},
		{"never", time.Time{}, false, false},
		{"NEVER", time.Time{}, false, false},
		{"remove", time.Time{}, true, false},
		{"", time.Time{}, false, true},
		{"10", time.Time{}, false, true},
		{"h", time.Time{}, false, true},
		{"-5m", time.Time{}, false, true},
		{"10w", time.Time{}, false, true},
	}

	for _, tc := range cases {
		got, remove, err := ParseDuration(tc.input, now)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseDuration(%q): expected error", tc.input)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseDuration(%q): %v", tc.input, err)
		}
		if remove != tc.remove {
			t.Fatalf("ParseDuration(%q): remove = %v, want %v", tc.input, remove, tc.remove)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("ParseDuration(%q): expiry = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestEffectivePrefersChannelScope(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	channelScoped := &types.Sanction{ID: 1, ChannelID: 1, ExpiresAt: now.Add(time.Hour)}
	global := &types.Sanction{ID: 2}

	if got := Effective(channelScoped, global, now); got != channelScoped {
		t.Fatalf("expected the channel-scoped record to win")
	}
	// Expired channel record falls through to the global one.
	channelScoped.ExpiresAt = now.Add(-time.Minute)
	if got := Effective(channelScoped, global, now); got != global {
		t.Fatalf("expected the global record after the channel one expired")
	}
	global2 := &types.Sanction{ID: 2, ExpiresAt: now.Add(-time.Second)}
	if got := Effective(channelScoped, global2, now); got != nil {
		t.Fatalf("expected nil when both records are expired")
	}
}

func TestApplyBanKeepsOneRowPerScope(t *testing.T) {
	conn := newTestDB(t)
	store := &Store{DB: conn}

	if result, err := store.ApplyBan(2, 1, 1, "1h", "spam"); err != nil || result != Applied {
		t.Fatalf("first apply: result=%v err=%v", result, err)
	}
	if result, err := store.ApplyBan(2, 1, 1, "never", "worse spam"); err != nil || result != Updated {
		t.Fatalf("second apply: result=%v err=%v", result, err)
	}

	var count int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM bans WHERE user_id = 2`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one ban row, got %d", count)
	}

	ban, err := store.EffectiveBan(2, 1)
	if err != nil {
		t.Fatalf("effective ban: %v", err)
	}
	if ban == nil || !ban.Permanent() || ban.Reason != "worse spam" {
		t.Fatalf("expected updated permanent ban, got %+v", ban)
	}
}

func TestConcurrentAppliesSettleOnOneRow(t *testing.T) {
	conn := newTestDB(t)
	conn.SetMaxOpenConns(1)
	store := &Store{DB: conn}

	// All writers target the same empty scope; the last committed write
	// must win without any of them tripping the scope's unique index.
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.ApplyBan(2, 1, 1, "1h", "spam"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent apply: %v", err)
	}

	var count int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM bans WHERE user_id = 2`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one ban row, got %d", count)
	}
	ban, err := store.EffectiveBan(2, 1)
	if err != nil || ban == nil {
		t.Fatalf("expected an effective ban, got %+v err=%v", ban, err)
	}
}

func TestApplyRemoveLiftsBan(t *testing.T) {
	conn := newTestDB(t)
	store := &Store{DB: conn}

	if result, err := store.ApplyBan(2, 1, 0, "remove", ""); err != nil || result != RemoveNoop {
		t.Fatalf("remove without ban: result=%v err=%v", result, err)
	}

	if _, err := store.ApplyBan(2, 1, 0, "never", "bye"); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if result, err := store.ApplyBan(2, 1, 0, "remove", ""); err != nil || result != Removed {
		t.Fatalf("remove: result=%v err=%v", result, err)
	}

	ban, err := store.EffectiveBan(2, 0)
	if err != nil {
		t.Fatalf("effective ban: %v", err)
	}
	if ban != nil {
		t.Fatalf("expected no ban after remove, got %+v", ban)
	}
}

func TestExpiredBanIsNotEffective(t *testing.T) {
	conn := newTestDB(t)
	store := &Store{DB: conn}

	expired := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	_, err := conn.Exec(
		`INSERT INTO bans (user_id, admin_id, channel_id, reason, created_at, expires_at)
		 VALUES (2, 1, NULL, '', ?, ?)`,
		time.Now().UTC().Add(-2*time.Hour).Format(time.RFC3339), expired,
	)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	ban, err := store.EffectiveBan(2, 1)
	if err != nil {
		t.Fatalf("effective ban: %v", err)
	}
	if ban != nil {
		t.Fatalf("expected expired ban to be ignored, got %+v", ban)
	}
}

func TestGlobalBanCoversEveryChannel(t *testing.T) {
	conn := newTestDB(t)
	store := &Store{DB: conn}

	if _, err := store.ApplyBan(2, 1, 0, "never", "global"); err != nil {
		t.Fatalf("apply: %v", err)
	}

	for _, channelID := range []int{0, 1} {
		ban, err := store.EffectiveBan(2, channelID)
		if err != nil {
			t.Fatalf("effective ban channel %d: %v", channelID, err)
		}
		if ban == nil || !ban.Global() {
			t.Fatalf("expected global ban in channel %d, got %+v", channelID, ban)
		}
	}
}

func TestDescribe(t *testing.T) {
	expiry := time.Date(2026, 1, 2, 15, 4, 0, 0, time.UTC)
	s := &types.Sanction{ChannelID: 1, Reason: "spam", ExpiresAt: expiry}
	got := Describe(s, "banned", "general")
	want := `banned in "general" until 2026-01-02 15:04. Reason: spam`
	if got != want {
		t.Fatalf("Describe = %q, want %q", got, want)
	}

	global := &types.Sanction{}
	if got := Describe(global, "muted", ""); got != "muted globally permanently" {
		t.Fatalf("Describe global = %q", got)
	}
}
