// Package chatroom runs the realtime side of the service: the websocket
// endpoint, the in-memory presence registry and the room event handlers.
package chatroom

import "encoding/json"

// WSMessage is the envelope for every frame in both directions.
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func decodeData[T any](raw interface{}) (T, error) {
	var data T
	bytes, err := json.Marshal(raw)
	if err != nil {
		return data, err
	}
	err = json.Unmarshal(bytes, &data)
	return data, err
}

type ChatError struct {
	Content string `json:"error"`
}

// ChannelRef identifies a channel in client requests.
type ChannelRef struct {
	ChannelID int `json:"channel_id"`
}

type SendMessageData struct {
	ChannelID   int    `json:"channel_id"`
	Body        string `json:"body"`
	MessageType string `json:"message_type"`
}

type FindChannelData struct {
	Name string `json:"name"`
}

type AttemptJoinData struct {
	ChannelID int `json:"channel_id"`
}

type PasswordJoinData struct {
	ChannelID int    `json:"channel_id"`
	Password  string `json:"password"`
}

// NewMessagePayload carries one chat message to subscribers.
type NewMessagePayload struct {
	ID          int    `json:"id"`
	ChannelID   int    `json:"channel_id"`
	UserID      int    `json:"user_id"`
	Username    string `json:"username"`
	Body        string `json:"body"`
	MessageType string `json:"message_type"`
	IsPinned    bool   `json:"is_pinned"`
	Timestamp   string `json:"timestamp"`
}

type TypingPayload struct {
	ChannelID int    `json:"channel_id"`
	Username  string `json:"username"`
}

// JoinFeedback reports the outcome of a join attempt back to the requester.
type JoinFeedback struct {
	ChannelID      int    `json:"channel_id"`
	ChannelName    string `json:"channel_name,omitempty"`
	Error          string `json:"error,omitempty"`
	Info           string `json:"info,omitempty"`
	Success        string `json:"success,omitempty"`
	AlreadyMember  bool   `json:"already_member,omitempty"`
	RequestPending bool   `json:"request_pending,omitempty"`
	NeedPassword   bool   `json:"need_password,omitempty"`
	NeedApproval   bool   `json:"need_approval,omitempty"`
}

type ChannelInfoFound struct {
	ChannelID        int    `json:"channel_id"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	IsProtected      bool   `json:"is_protected"`
	RequiresApproval bool   `json:"requires_approval"`
}

type NewChannelJoined struct {
	ChannelID int    `json:"channel_id"`
	Name      string `json:"name"`
}

type HistoryPayload struct {
	ChannelID int                 `json:"channel_id"`
	Messages  []NewMessagePayload `json:"messages"`
}

// RequestDecisionPayload lands in the requester's personal room when a join
// request is approved or rejected.
type RequestDecisionPayload struct {
	ChannelID   int    `json:"channel_id"`
	ChannelName string `json:"channel_name"`
	Status      string `json:"status"`
}

type KickedPayload struct {
	ChannelID   int    `json:"channel_id"`
	ChannelName string `json:"channel_name"`
}

// ChannelStatusPayload describes a channel's gates to subscribers.
type ChannelStatusPayload struct {
	ChannelID   int  `json:"channel_id"`
	IsWritable  bool `json:"is_writable"`
	IsProtected bool `json:"is_protected"`
}
