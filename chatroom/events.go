package chatroom

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"chathub/auth"
	"chathub/channels"
	"chathub/membership"
	"chathub/types"
)

// handleJoinChannel subscribes an existing member's connection to the room
// and replays the channel status. Membership itself is created elsewhere.
func (h *Hub) handleJoinChannel(client *Client, user types.User, channelID int) {
	channel, err := h.Channels.ByID(channelID)
	if err != nil || channel == nil {
		safeSend(client, WSMessage{Type: "error", Data: ChatError{Content: "Channel not found"}})
		return
	}

	member, err := h.Members.IsMember(user.ID, channelID)
	if err != nil || !member {
		safeSend(client, WSMessage{Type: "error", Data: ChatError{Content: "You are not a member of this channel"}})
		return
	}

	decision, err := h.Access.CanRead(user, *channel)
	if err != nil {
		safeSend(client, WSMessage{Type: "error", Data: ChatError{Content: "Error checking access"}})
		return
	}
	if !decision.Allowed {
		safeSend(client, WSMessage{Type: "error", Data: ChatError{Content: decision.Reason}})
		return
	}

	h.Registry.Subscribe(client, channelID)
	safeSend(client, WSMessage{Type: "channel_status", Data: ChannelStatusPayload{
		ChannelID:   channel.ID,
		IsWritable:  channel.IsWritable,
		IsProtected: channel.IsProtected(),
	}})
	h.broadcastSystemNotice(channelID, fmt.Sprintf("%s has joined", user.Username))
}

// handleLeaveChannel drops the connection from the room without touching
// membership.
func (h *Hub) handleLeaveChannel(client *Client, channelID int) {
	if !h.Registry.Subscribed(client, channelID) {
		return
	}
	h.Registry.Unsubscribe(client, channelID)
	h.broadcastSystemNotice(channelID, fmt.Sprintf("%s has left", client.Username))
}

// handleSelfLeave removes the membership and any join requests, then drops
// every connection the user holds from the room.
func (h *Hub) handleSelfLeave(client *Client, user types.User, channelID int) {
	channel, err := h.Channels.ByID(channelID)
	if err != nil || channel == nil {
		safeSend(client, WSMessage{Type: "error", Data: ChatError{Content: "Channel not found"}})
		return
	}

	result, err := h.Members.Leave(user.ID, channelID)
	if err != nil {
		safeSend(client, WSMessage{Type: "error", Data: ChatError{Content: "Error leaving channel"}})
		return
	}
	if !result.RemovedAnything() {
		safeSend(client, WSMessage{Type: "error", Data: ChatError{Content: "You are not a member of this channel"}})
		return
	}

	h.Registry.UnsubscribeUser(user.ID, channelID)
	safeSend(client, WSMessage{Type: "left_channel", Data: ChannelRef{ChannelID: channelID}})
	h.broadcastSystemNotice(channelID, fmt.Sprintf("%s has left the channel", user.Username))
}

// handleSendMessage validates, persists and then broadcasts. The sender
// receives the broadcast copy too; that copy carries the persisted id.
func (h *Hub) handleSendMessage(client *Client, user types.User, data SendMessageData) {
	if !allowChatMessage(user.ID, time.Now().UTC()) {
		safeSend(client, WSMessage{Type: "error", Data: ChatError{Content: "You are sending messages too quickly"}})
		return
	}

	channel, err := h.Channels.ByID(data.ChannelID)
	if err != nil || channel == nil {
		safeSend(client, WSMessage{Type: "error", Data: ChatError{Content: "Channel not found"}})
		return
	}

	member, err := h.Members.IsMember(user.ID, data.ChannelID)
	if err != nil || !member {
		safeSend(client, WSMessage{Type: "error", Data: ChatError{Content: "You are not a member of this channel"}})
		return
	}

	body := strings.TrimSpace(data.Body)
	if body == "" {
		safeSend(client, WSMessage{Type: "error", Data: ChatError{Content: "Message cannot be empty"}})
		return
	}
	if utf8.RuneCountInString(body) > channels.MaxMessageLength {
		safeSend(client, WSMessage{Type: "error", Data: ChatError{Content: "Message is too long"}})
		return
	}

	decision, err := h.Access.CanPost(user, *channel)
	if err != nil {
		safeSend(client, WSMessage{Type: "error", Data: ChatError{Content: "Error checking access"}})
		return
	}
	if !decision.Allowed {
		safeSend(client, WSMessage{Type: "error", Data: ChatError{Content: decision.Reason}})
		return
	}

	msg, err := h.Channels.InsertMessage(channel.ID, user.ID, user.Username, body, types.NormalizeMessageType(data.MessageType))
	if err != nil {
		safeSend(client, WSMessage{Type: "error", Data: ChatError{Content: "Failed to save message"}})
		return
	}

	h.Registry.BroadcastToChannel(channel.ID, WSMessage{Type: "new_message", Data: messagePayload(*msg)})
}

// handleTyping relays typing indicators to everyone else in the room. They
// are transient and skip the posting gates.
func (h *Hub) handleTyping(client *Client, user types.User, eventType string, channelID int) {
	if !h.Registry.Subscribed(client, channelID) {
		return
	}
	outbound := "user_typing"
	if eventType == "typing_stopped" {
		outbound = "user_stopped_typing"
	}
	h.Registry.BroadcastToChannelExcept(channelID, client, WSMessage{
		Type: outbound,
		Data: TypingPayload{ChannelID: channelID, Username: user.Username},
	})
}

// handleFindChannelInfo resolves a channel by name so the client can start a
// join attempt.
func (h *Hub) handleFindChannelInfo(client *Client, name string) {
	channel, err := h.Channels.ByName(strings.TrimSpace(name))
	if err != nil {
		safeSend(client, WSMessage{Type: "error", Data: ChatError{Content: "Error looking up channel"}})
		return
	}
	if channel == nil {
		safeSend(client, WSMessage{Type: "channel_info_not_found", Data: ChatError{Content: "No channel with that name"}})
		return
	}
	safeSend(client, WSMessage{Type: "channel_info_found", Data: ChannelInfoFound{
		ChannelID:        channel.ID,
		Name:             channel.Name,
		Description:      channel.Description,
		IsProtected:      channel.IsProtected(),
		RequiresApproval: channel.RequiresApproval,
	}})
}

// handleAttemptJoin runs the join flow for an open or gated channel. Password
// channels bounce back for a second round through
// join_channel_with_password; approval channels file a pending request.
func (h *Hub) handleAttemptJoin(client *Client, user types.User, channelID int) {
	channel, err := h.Channels.ByID(channelID)
	if err != nil || channel == nil {
		safeSend(client, WSMessage{Type: "join_channel_feedback", Data: JoinFeedback{ChannelID: channelID, Error: "Channel not found"}})
		return
	}

	member, err := h.Members.IsMember(user.ID, channelID)
	if err == nil && member {
		safeSend(client, WSMessage{Type: "join_channel_feedback", Data: JoinFeedback{
			ChannelID: channel.ID, ChannelName: channel.Name, AlreadyMember: true,
			Info: "You are already a member",
		}})
		return
	}

	decision, err := h.Access.CanJoin(user, *channel)
	if err != nil {
		safeSend(client, WSMessage{Type: "join_channel_feedback", Data: JoinFeedback{ChannelID: channel.ID, Error: "Error checking access"}})
		return
	}
	if decision.Reason != "" {
		safeSend(client, WSMessage{Type: "join_channel_feedback", Data: JoinFeedback{ChannelID: channel.ID, Error: decision.Reason}})
		return
	}

	if decision.NeedPassword {
		safeSend(client, WSMessage{Type: "join_channel_feedback", Data: JoinFeedback{
			ChannelID: channel.ID, ChannelName: channel.Name,
			NeedPassword: true, NeedApproval: decision.NeedApproval,
			Info: "This channel requires a password",
		}})
		return
	}

	if decision.NeedApproval {
		h.fileJoinRequest(client, user, channel)
		return
	}

	h.directJoin(client, user, channel)
}

// handlePasswordJoin completes a join attempt against a protected channel.
func (h *Hub) handlePasswordJoin(client *Client, user types.User, data PasswordJoinData) {
	channel, err := h.Channels.ByID(data.ChannelID)
	if err != nil || channel == nil {
		safeSend(client, WSMessage{Type: "join_channel_feedback", Data: JoinFeedback{ChannelID: data.ChannelID, Error: "Channel not found"}})
		return
	}

	decision, err := h.Access.CanJoin(user, *channel)
	if err != nil {
		safeSend(client, WSMessage{Type: "join_channel_feedback", Data: JoinFeedback{ChannelID: channel.ID, Error: "Error checking access"}})
		return
	}
	if decision.Reason != "" {
		safeSend(client, WSMessage{Type: "join_channel_feedback", Data: JoinFeedback{ChannelID: channel.ID, Error: decision.Reason}})
		return
	}

	if !auth.VerifyChannelPassword(channel.PasswordHash, data.Password) {
		safeSend(client, WSMessage{Type: "join_channel_feedback", Data: JoinFeedback{ChannelID: channel.ID, Error: "Incorrect channel password"}})
		return
	}

	if channel.RequiresApproval {
		h.fileJoinRequest(client, user, channel)
		return
	}

	h.directJoin(client, user, channel)
}

// handleRequestHistory replays the surviving messages of a channel, oldest
// first, to one connection.
func (h *Hub) handleRequestHistory(client *Client, user types.User, channelID int) {
	channel, err := h.Channels.ByID(channelID)
	if err != nil || channel == nil {
		safeSend(client, WSMessage{Type: "error", Data: ChatError{Content: "Channel not found"}})
		return
	}

	member, err := h.Members.IsMember(user.ID, channelID)
	if err != nil || !member {
		safeSend(client, WSMessage{Type: "error", Data: ChatError{Content: "You are not a member of this channel"}})
		return
	}

	decision, err := h.Access.CanRead(user, *channel)
	if err != nil {
		safeSend(client, WSMessage{Type: "error", Data: ChatError{Content: "Error checking access"}})
		return
	}
	if !decision.Allowed {
		safeSend(client, WSMessage{Type: "error", Data: ChatError{Content: decision.Reason}})
		return
	}

	history, err := h.Channels.History(channelID)
	if err != nil {
		safeSend(client, WSMessage{Type: "error", Data: ChatError{Content: "Error loading history"}})
		return
	}

	payload := HistoryPayload{ChannelID: channelID, Messages: make([]NewMessagePayload, 0, len(history))}
	for _, msg := range history {
		payload.Messages = append(payload.Messages, messagePayload(msg))
	}
	safeSend(client, WSMessage{Type: "channel_history", Data: payload})
}

// directJoin creates the membership, subscribes the connection and announces
// the new member.
func (h *Hub) directJoin(client *Client, user types.User, channel *types.Channel) {
	outcome, err := h.Members.Join(user.ID, channel.ID)
	if err != nil {
		safeSend(client, WSMessage{Type: "join_channel_feedback", Data: JoinFeedback{ChannelID: channel.ID, Error: "Failed to join channel"}})
		return
	}

	h.Registry.Subscribe(client, channel.ID)
	safeSend(client, WSMessage{Type: "new_channel_joined", Data: NewChannelJoined{ChannelID: channel.ID, Name: channel.Name}})
	safeSend(client, WSMessage{Type: "channel_status", Data: ChannelStatusPayload{
		ChannelID:   channel.ID,
		IsWritable:  channel.IsWritable,
		IsProtected: channel.IsProtected(),
	}})

	if outcome == membership.Joined {
		h.broadcastSystemNotice(channel.ID, fmt.Sprintf("%s has joined the channel", user.Username))
	}
}

func (h *Hub) fileJoinRequest(client *Client, user types.User, channel *types.Channel) {
	outcome, err := h.Members.RequestJoin(user.ID, channel.ID)
	if err != nil {
		safeSend(client, WSMessage{Type: "join_channel_feedback", Data: JoinFeedback{ChannelID: channel.ID, Error: "Failed to request access"}})
		return
	}

	feedback := JoinFeedback{ChannelID: channel.ID, ChannelName: channel.Name}
	switch outcome {
	case membership.Requested:
		feedback.RequestPending = true
		feedback.Success = "Join request sent, an administrator will review it"
	case membership.RequestAlreadyPending:
		feedback.RequestPending = true
		feedback.Info = "Your join request is already pending"
	case membership.RequesterIsMember:
		feedback.AlreadyMember = true
		feedback.Info = "You are already a member"
	default:
		feedback.Error = "A previous join request for this channel is still on file"
	}
	safeSend(client, WSMessage{Type: "join_channel_feedback", Data: feedback})
}

// broadcastSystemNotice sends a transient system line to the room as a
// regular new_message frame. Notices are not persisted and do not survive a
// history replay.
func (h *Hub) broadcastSystemNotice(channelID int, content string) {
	h.Registry.BroadcastToChannel(channelID, WSMessage{Type: "new_message", Data: NewMessagePayload{
		ChannelID:   channelID,
		Username:    types.SystemUsername,
		Body:        content,
		MessageType: types.MessageSystem,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}})
}

func messagePayload(msg types.Message) NewMessagePayload {
	return NewMessagePayload{
		ID:          msg.ID,
		ChannelID:   msg.ChannelID,
		UserID:      msg.UserID,
		Username:    msg.Username,
		Body:        msg.Body,
		MessageType: msg.MessageType,
		IsPinned:    msg.IsPinned,
		Timestamp:   msg.Timestamp,
	}
}
