package chatroom

import (
	"database/sql"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	_ "github.com/mattn/go-sqlite3"

	"chathub/access"
	"chathub/auth"
	"chathub/channels"
	"chathub/db"
	"chathub/membership"
	"chathub/moderation"
	"chathub/types"
)

const testReadTimeout = 3 * time.Second

type hubEnv struct {
	server *httptest.Server
	hub    *Hub
	conn   *sql.DB
	users  *auth.Users
	admin  *types.User
}

func newHubEnv(t *testing.T) *hubEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("JWT_SECRET", "test-secret")

	conn, err := db.InitSQLite(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("init sqlite: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := db.EnsureSchema(conn); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	users := &auth.Users{DB: conn}
	admin, err := users.Create("root", "rootpw", types.RoleAdmin)
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}

	moderationStore := &moderation.Store{DB: conn}
	hub := &Hub{
		Registry:   NewRegistry(),
		Channels:   &channels.Store{DB: conn},
		Members:    &membership.Registry{DB: conn},
		Moderation: moderationStore,
		Access:     &access.Evaluator{Moderation: moderationStore},
	}

	r := gin.New()
	r.GET("/ws", auth.Middleware(users), hub.HandleSocket)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	return &hubEnv{server: server, hub: hub, conn: conn, users: users, admin: admin}
}

func (env *hubEnv) newUser(t *testing.T, username string) *types.User {
	t.Helper()
	user, err := env.users.Create(username, "secret", types.RoleUser)
	if err != nil {
		t.Fatalf("create %s: %v", username, err)
	}
	return user
}

func (env *hubEnv) dial(t *testing.T, userID int) *websocket.Conn {
	t.Helper()
	token, err := auth.GenerateToken(userID, time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(testReadTimeout))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return msg
}

func readFrameOfType(t *testing.T, conn *websocket.Conn, wantType string) WSMessage {
	t.Helper()
	for i := 0; i < 10; i++ {
		msg := readFrame(t, conn)
		if msg.Type == wantType {
			return msg
		}
	}
	t.Fatalf("no %q frame in the first 10 frames", wantType)
	return WSMessage{}
}

// readChatMessage returns the next user-authored new_message payload,
// skipping transient system notices that share the same frame type.
func readChatMessage(t *testing.T, conn *websocket.Conn) NewMessagePayload {
	t.Helper()
	for i := 0; i < 10; i++ {
		frame := readFrameOfType(t, conn, "new_message")
		payload, err := decodeData[NewMessagePayload](frame.Data)
		if err != nil {
			t.Fatalf("decode new_message: %v", err)
		}
		if payload.MessageType != types.MessageSystem {
			return payload
		}
	}
	t.Fatalf("no user message among the first 10 new_message frames")
	return NewMessagePayload{}
}

func TestBannedUserCannotConnect(t *testing.T) {
	env := newHubEnv(t)
	alice := env.newUser(t, "alice")

	store := env.hub.Moderation
	if _, err := store.ApplyBan(alice.ID, env.admin.ID, 0, "never", ""); err != nil {
		t.Fatalf("apply ban: %v", err)
	}

	token, err := auth.GenerateToken(alice.ID, time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws?token=" + token
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatalf("expected the handshake to fail for a banned user")
	}
	if resp == nil || resp.StatusCode != 403 {
		t.Fatalf("expected 403, got %+v", resp)
	}
}

func TestJoinAndSendMessageRoundTrip(t *testing.T) {
	env := newHubEnv(t)
	alice := env.newUser(t, "alice")
	bob := env.newUser(t, "bob")

	channel, err := env.hub.Channels.Create("general", "", "", false)
	if err != nil {
		t.Fatalf("create channel: %v", err)
	}

	aliceConn := env.dial(t, alice.ID)
	bobConn := env.dial(t, bob.ID)

	for _, conn := range []*websocket.Conn{aliceConn, bobConn} {
		if err := conn.WriteJSON(WSMessage{Type: "attempt_join", Data: AttemptJoinData{ChannelID: channel.ID}}); err != nil {
			t.Fatalf("attempt_join: %v", err)
		}
		readFrameOfType(t, conn, "new_channel_joined")
		readFrameOfType(t, conn, "channel_status")
	}

	if err := aliceConn.WriteJSON(WSMessage{Type: "send_message", Data: SendMessageData{
		ChannelID: channel.ID,
		Body:      "  hello there  ",
	}}); err != nil {
		t.Fatalf("send_message: %v", err)
	}

	// Both the sender and the other member receive the persisted copy.
	for _, conn := range []*websocket.Conn{aliceConn, bobConn} {
		payload := readChatMessage(t, conn)
		if payload.ID == 0 {
			t.Fatalf("broadcast copy missing persisted id: %+v", payload)
		}
		if payload.Body != "hello there" {
			t.Fatalf("expected trimmed body, got %q", payload.Body)
		}
		if payload.Username != "alice" || payload.MessageType != types.MessageText {
			t.Fatalf("unexpected payload: %+v", payload)
		}
	}

	history, err := env.hub.Channels.History(channel.ID)
	if err != nil || len(history) != 1 {
		t.Fatalf("history: %+v err=%v", history, err)
	}
}

func TestApprovalGatedJoinFilesRequest(t *testing.T) {
	env := newHubEnv(t)
	alice := env.newUser(t, "alice")

	channel, err := env.hub.Channels.Create("private", "", "", true)
	if err != nil {
		t.Fatalf("create channel: %v", err)
	}

	conn := env.dial(t, alice.ID)
	if err := conn.WriteJSON(WSMessage{Type: "attempt_join", Data: AttemptJoinData{ChannelID: channel.ID}}); err != nil {
		t.Fatalf("attempt_join: %v", err)
	}

	frame := readFrameOfType(t, conn, "join_channel_feedback")
	feedback, err := decodeData[JoinFeedback](frame.Data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !feedback.RequestPending || feedback.Success == "" {
		t.Fatalf("expected pending request feedback, got %+v", feedback)
	}

	pending, err := env.hub.Members.PendingRequest(alice.ID, channel.ID)
	if err != nil || pending == nil {
		t.Fatalf("expected a pending request row, got %+v err=%v", pending, err)
	}
	if member, _ := env.hub.Members.IsMember(alice.ID, channel.ID); member {
		t.Fatalf("approval-gated join must not create a membership")
	}
}

func TestPasswordGatedJoin(t *testing.T) {
	env := newHubEnv(t)
	alice := env.newUser(t, "alice")

	hash, err := auth.HashPassword("open sesame")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	channel, err := env.hub.Channels.Create("vault", "", hash, false)
	if err != nil {
		t.Fatalf("create channel: %v", err)
	}

	conn := env.dial(t, alice.ID)

	if err := conn.WriteJSON(WSMessage{Type: "attempt_join", Data: AttemptJoinData{ChannelID: channel.ID}}); err != nil {
		t.Fatalf("attempt_join: %v", err)
	}
	frame := readFrameOfType(t, conn, "join_channel_feedback")
	feedback, _ := decodeData[JoinFeedback](frame.Data)
	if !feedback.NeedPassword {
		t.Fatalf("expected password prompt, got %+v", feedback)
	}

	if err := conn.WriteJSON(WSMessage{Type: "join_channel_with_password", Data: PasswordJoinData{
		ChannelID: channel.ID, Password: "wrong",
	}}); err != nil {
		t.Fatalf("password join: %v", err)
	}
	frame = readFrameOfType(t, conn, "join_channel_feedback")
	feedback, _ = decodeData[JoinFeedback](frame.Data)
	if feedback.Error == "" {
		t.Fatalf("expected wrong-password error, got %+v", feedback)
	}

	if err := conn.WriteJSON(WSMessage{Type: "join_channel_with_password", Data: PasswordJoinData{
		ChannelID: channel.ID, Password: "open sesame",
	}}); err != nil {
		t.Fatalf("password join: %v", err)
	}
	readFrameOfType(t, conn, "new_channel_joined")

	if member, _ := env.hub.Members.IsMember(alice.ID, channel.ID); !member {
		t.Fatalf("expected membership after correct password")
	}
}

func TestMutedUserCannotPost(t *testing.T) {
	env := newHubEnv(t)
	alice := env.newUser(t, "alice")

	channel, err := env.hub.Channels.Create("general", "", "", false)
	if err != nil {
		t.Fatalf("create channel: %v", err)
	}
	if _, err := env.hub.Members.Join(alice.ID, channel.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := env.hub.Moderation.ApplyMute(alice.ID, env.admin.ID, channel.ID, "1h", "noise"); err != nil {
		t.Fatalf("apply mute: %v", err)
	}

	conn := env.dial(t, alice.ID)
	if err := conn.WriteJSON(WSMessage{Type: "send_message", Data: SendMessageData{
		ChannelID: channel.ID, Body: "can you hear me",
	}}); err != nil {
		t.Fatalf("send_message: %v", err)
	}

	frame := readFrameOfType(t, conn, "error")
	chatErr, err := decodeData[ChatError](frame.Data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(chatErr.Content, "muted") {
		t.Fatalf("expected mute wording, got %q", chatErr.Content)
	}

	history, err := env.hub.Channels.History(channel.ID)
	if err != nil || len(history) != 0 {
		t.Fatalf("muted message must not persist, history=%+v err=%v", history, err)
	}
}

func TestTypingExcludesSenderAndSkipsGates(t *testing.T) {
	env := newHubEnv(t)
	alice := env.newUser(t, "alice")
	bob := env.newUser(t, "bob")

	channel, err := env.hub.Channels.Create("general", "", "", false)
	if err != nil {
		t.Fatalf("create channel: %v", err)
	}
	for _, id := range []int{alice.ID, bob.ID} {
		if _, err := env.hub.Members.Join(id, channel.ID); err != nil {
			t.Fatalf("join: %v", err)
		}
	}
	// Mutes do not silence typing indicators.
	if _, err := env.hub.Moderation.ApplyMute(alice.ID, env.admin.ID, channel.ID, "1h", ""); err != nil {
		t.Fatalf("apply mute: %v", err)
	}

	aliceConn := env.dial(t, alice.ID)
	bobConn := env.dial(t, bob.ID)
	for _, conn := range []*websocket.Conn{aliceConn, bobConn} {
		if err := conn.WriteJSON(WSMessage{Type: "join_channel", Data: ChannelRef{ChannelID: channel.ID}}); err != nil {
			t.Fatalf("join_channel: %v", err)
		}
		readFrameOfType(t, conn, "channel_status")
	}

	if err := aliceConn.WriteJSON(WSMessage{Type: "typing_started", Data: ChannelRef{ChannelID: channel.ID}}); err != nil {
		t.Fatalf("typing: %v", err)
	}

	frame := readFrameOfType(t, bobConn, "user_typing")
	payload, err := decodeData[TypingPayload](frame.Data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Username != "alice" || payload.ChannelID != channel.ID {
		t.Fatalf("unexpected typing payload: %+v", payload)
	}
}

func TestJoinNoticeArrivesAsSystemMessage(t *testing.T) {
	env := newHubEnv(t)
	alice := env.newUser(t, "alice")

	channel, err := env.hub.Channels.Create("general", "", "", false)
	if err != nil {
		t.Fatalf("create channel: %v", err)
	}
	if _, err := env.hub.Members.Join(alice.ID, channel.ID); err != nil {
		t.Fatalf("join: %v", err)
	}

	conn := env.dial(t, alice.ID)
	if err := conn.WriteJSON(WSMessage{Type: "join_channel", Data: ChannelRef{ChannelID: channel.ID}}); err != nil {
		t.Fatalf("join_channel: %v", err)
	}
	readFrameOfType(t, conn, "channel_status")

	// The join notice rides the regular message frame, flagged as system.
	frame := readFrameOfType(t, conn, "new_message")
	payload, err := decodeData[NewMessagePayload](frame.Data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.MessageType != types.MessageSystem || payload.Username != types.SystemUsername {
		t.Fatalf("expected a system-typed notice, got %+v", payload)
	}
	if !strings.Contains(payload.Body, "alice has joined") {
		t.Fatalf("unexpected notice body: %q", payload.Body)
	}
}

func TestMessageLengthCountsCharacters(t *testing.T) {
	env := newHubEnv(t)
	alice := env.newUser(t, "alice")

	channel, err := env.hub.Channels.Create("general", "", "", false)
	if err != nil {
		t.Fatalf("create channel: %v", err)
	}
	if _, err := env.hub.Members.Join(alice.ID, channel.ID); err != nil {
		t.Fatalf("join: %v", err)
	}

	conn := env.dial(t, alice.ID)
	if err := conn.WriteJSON(WSMessage{Type: "join_channel", Data: ChannelRef{ChannelID: channel.ID}}); err != nil {
		t.Fatalf("join_channel: %v", err)
	}
	readFrameOfType(t, conn, "channel_status")

	// 3000 two-byte characters exceed the limit in bytes but not in
	// characters, which is what the limit measures.
	inLimit := strings.Repeat("é", 3000)
	if err := conn.WriteJSON(WSMessage{Type: "send_message", Data: SendMessageData{
		ChannelID: channel.ID, Body: inLimit,
	}}); err != nil {
		t.Fatalf("send_message: %v", err)
	}
	payload := readChatMessage(t, conn)
	if payload.Body != inLimit {
		t.Fatalf("multibyte message within the limit was mangled or refused")
	}

	if err := conn.WriteJSON(WSMessage{Type: "send_message", Data: SendMessageData{
		ChannelID: channel.ID, Body: strings.Repeat("é", channels.MaxMessageLength+1),
	}}); err != nil {
		t.Fatalf("send_message: %v", err)
	}
	frame := readFrameOfType(t, conn, "error")
	chatErr, err := decodeData[ChatError](frame.Data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(chatErr.Content, "too long") {
		t.Fatalf("expected a length refusal, got %q", chatErr.Content)
	}
}

func TestHistoryReplayAscending(t *testing.T) {
	env := newHubEnv(t)
	alice := env.newUser(t, "alice")

	channel, err := env.hub.Channels.Create("general", "", "", false)
	if err != nil {
		t.Fatalf("create channel: %v", err)
	}
	if _, err := env.hub.Members.Join(alice.ID, channel.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	for _, body := range []string{"first", "second", "third"} {
		if _, err := env.hub.Channels.InsertMessage(channel.ID, alice.ID, "alice", body, types.MessageText); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	conn := env.dial(t, alice.ID)
	if err := conn.WriteJSON(WSMessage{Type: "request_history", Data: ChannelRef{ChannelID: channel.ID}}); err != nil {
		t.Fatalf("request_history: %v", err)
	}

	frame := readFrameOfType(t, conn, "channel_history")
	payload, err := decodeData[HistoryPayload](frame.Data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(payload.Messages))
	}
	for i, want := range []string{"first", "second", "third"} {
		if payload.Messages[i].Body != want {
			t.Fatalf("history out of order at %d: %+v", i, payload.Messages)
		}
	}
}
