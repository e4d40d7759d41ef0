package access

import (
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"chathub/db"
	"chathub/moderation"
	"chathub/types"
)

func newEvaluator(t *testing.T) (*Evaluator, *moderation.Store, *sql.DB) {
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
	store := &moderation.Store{DB: conn}
	return &Evaluator{Moderation: store}, store, conn
}

var (
	alice       = types.User{ID: 2, Username: "alice", Role: types.RoleUser}
	openChannel = types.Channel{ID: 1, Name: "general", IsWritable: true}
)

func TestCanPostOrdering(t *testing.T) {
	evaluator, store, _ := newEvaluator(t)

	// Ban and mute at once: the ban wording wins.
	if _, err := store.ApplyBan(2, 1, 1, "never", ""); err != nil {
		t.Fatalf("apply ban: %v", err)
	}
	if _, err := store.ApplyMute(2, 1, 1, "never", ""); err != nil {
		t.Fatalf("apply mute: %v", err)
	}

	decision, err := evaluator.CanPost(alice, openChannel)
	if err != nil {
		t.Fatalf("CanPost: %v", err)
	}
	if decision.Allowed {
		t.Fatalf("expected deny")
	}
	if want := "You cannot send messages, you are banned"; !strings.HasPrefix(decision.Reason, want) {
		t.Fatalf("expected ban wording, got %q", decision.Reason)
	}

	// Lift the ban: the mute shows next.
	if _, err := store.ApplyBan(2, 1, 1, "remove", ""); err != nil {
		t.Fatalf("remove ban: %v", err)
	}
	decision, err = evaluator.CanPost(alice, openChannel)
	if err != nil {
		t.Fatalf("CanPost: %v", err)
	}
	if decision.Allowed || !strings.HasPrefix(decision.Reason, "You are muted") {
		t.Fatalf("expected mute wording, got %+v", decision)
	}

	// Lift the mute too: the write-lock is last.
	if _, err := store.ApplyMute(2, 1, 1, "remove", ""); err != nil {
		t.Fatalf("remove mute: %v", err)
	}
	locked := openChannel
	locked.IsWritable = false
	decision, err = evaluator.CanPost(alice, locked)
	if err != nil {
		t.Fatalf("CanPost: %v", err)
	}
	if decision.Allowed {
		t.Fatalf("expected write-lock deny")
	}

	decision, err = evaluator.CanPost(alice, openChannel)
	if err != nil || !decision.Allowed {
		t.Fatalf("expected allow, got %+v err=%v", decision, err)
	}
}

func TestCanReadIgnoresMutesAndWriteLocks(t *testing.T) {
	evaluator, store, _ := newEvaluator(t)

	if _, err := store.ApplyMute(2, 1, 1, "never", ""); err != nil {
		t.Fatalf("apply mute: %v", err)
	}
	locked := openChannel
	locked.IsWritable = false

	decision, err := evaluator.CanRead(alice, locked)
	if err != nil || !decision.Allowed {
		t.Fatalf("expected muted user to read, got %+v err=%v", decision, err)
	}

	if _, err := store.ApplyBan(2, 1, 0, "never", ""); err != nil {
		t.Fatalf("apply ban: %v", err)
	}
	decision, err = evaluator.CanRead(alice, locked)
	if err != nil || decision.Allowed {
		t.Fatalf("expected banned user denied, got %+v err=%v", decision, err)
	}
}

func TestCanJoinFlags(t *testing.T) {
	evaluator, store, _ := newEvaluator(t)

	decision, err := evaluator.CanJoin(alice, openChannel)
	if err != nil || !decision.Allowed {
		t.Fatalf("open channel: %+v err=%v", decision, err)
	}

	protected := openChannel
	protected.PasswordHash = "some-hash"
	decision, err = evaluator.CanJoin(alice, protected)
	if err != nil || decision.Allowed || !decision.NeedPassword {
		t.Fatalf("protected channel: %+v err=%v", decision, err)
	}

	gated := openChannel
	gated.RequiresApproval = true
	decision, err = evaluator.CanJoin(alice, gated)
	if err != nil || decision.Allowed || !decision.NeedApproval {
		t.Fatalf("approval channel: %+v err=%v", decision, err)
	}

	both := protected
	both.RequiresApproval = true
	decision, err = evaluator.CanJoin(alice, both)
	if err != nil || !decision.NeedPassword || !decision.NeedApproval {
		t.Fatalf("double-gated channel: %+v err=%v", decision, err)
	}

	if _, err := store.ApplyBan(2, 1, 1, "never", ""); err != nil {
		t.Fatalf("apply ban: %v", err)
	}
	decision, err = evaluator.CanJoin(alice, openChannel)
	if err != nil || decision.Allowed || decision.Reason == "" {
		t.Fatalf("banned join: %+v err=%v", decision, err)
	}
}
