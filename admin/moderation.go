package admin

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"chathub/auth"
	"chathub/chatroom"
	"chathub/moderation"
	"chathub/types"
)

type sanctionRequest struct {
	UserID    int    `json:"user_id"`
	ChannelID int    `json:"channel_id"` // 0 targets the global scope
	Duration  string `json:"duration"`
	Reason    string `json:"reason"`
}

// HandleApplyBan upserts or lifts a ban. Duration "remove" lifts it,
// "never" makes it permanent. A banned user is pushed out of the channel
// room right away; the login and posting gates handle the rest.
func (h *Handlers) HandleApplyBan(c *gin.Context) {
	h.applySanction(c, "ban")
}

// HandleApplyMute upserts or lifts a mute with the same duration grammar.
func (h *Handlers) HandleApplyMute(c *gin.Context) {
	h.applySanction(c, "mute")
}

func (h *Handlers) applySanction(c *gin.Context, kind string) {
	actor, _ := auth.CurrentUser(c)

	var json sanctionRequest
	if err := c.BindJSON(&json); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request data"})
		return
	}
	if reason := protectedTarget(actor, json.UserID); reason != "" {
		c.JSON(403, gin.H{"error": reason})
		return
	}

	target, err := h.Users.ByID(json.UserID)
	if err != nil {
		c.JSON(500, gin.H{"error": "Error loading user"})
		return
	}
	if target == nil {
		c.JSON(404, gin.H{"error": "User not found"})
		return
	}

	channelName := ""
	if json.ChannelID != 0 {
		channel, err := h.Channels.ByID(json.ChannelID)
		if err != nil {
			c.JSON(500, gin.H{"error": "Error loading channel"})
			return
		}
		if channel == nil {
			c.JSON(404, gin.H{"error": "Channel not found"})
			return
		}
		channelName = channel.Name
	}

	var result moderation.ApplyResult
	if kind == "ban" {
		result, err = h.Moderation.ApplyBan(json.UserID, actor.ID, json.ChannelID, json.Duration, json.Reason)
	} else {
		result, err = h.Moderation.ApplyMute(json.UserID, actor.ID, json.ChannelID, json.Duration, json.Reason)
	}
	if err == moderation.ErrBadDuration {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to apply " + kind})
		return
	}

	switch result {
	case moderation.Removed:
		c.JSON(200, gin.H{"message": "The " + kind + " has been lifted"})
		return
	case moderation.RemoveNoop:
		c.JSON(200, gin.H{"message": "No " + kind + " was in place"})
		return
	}

	if kind == "ban" && json.ChannelID != 0 {
		h.Registry.UnsubscribeUser(json.UserID, json.ChannelID)
	}

	verb := "banned"
	if kind == "mute" {
		verb = "muted"
	}
	sanction := &types.Sanction{ChannelID: json.ChannelID, Reason: json.Reason}
	if expiresAt, _, parseErr := moderation.ParseDuration(json.Duration, nowUTC()); parseErr == nil {
		sanction.ExpiresAt = expiresAt
	}
	h.Registry.SendToUser(json.UserID, chatroom.WSMessage{
		Type: "moderation_notice",
		Data: chatroom.ChatError{Content: "You have been " + moderation.Describe(sanction, verb, channelName)},
	})

	c.JSON(200, gin.H{"message": "The " + kind + " is in place"})
}

// HandleKick removes a member from a channel on a moderator's order. The
// membership and any join requests go; a fresh join attempt starts over.
func (h *Handlers) HandleKick(c *gin.Context) {
	actor, _ := auth.CurrentUser(c)

	var json struct {
		UserID    int `json:"user_id"`
		ChannelID int `json:"channel_id"`
	}
	if err := c.BindJSON(&json); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request data"})
		return
	}
	if reason := protectedTarget(actor, json.UserID); reason != "" {
		c.JSON(403, gin.H{"error": reason})
		return
	}

	channel, err := h.Channels.ByID(json.ChannelID)
	if err != nil {
		c.JSON(500, gin.H{"error": "Error loading channel"})
		return
	}
	if channel == nil {
		c.JSON(404, gin.H{"error": "Channel not found"})
		return
	}

	target, err := h.Users.ByID(json.UserID)
	if err != nil {
		c.JSON(500, gin.H{"error": "Error loading user"})
		return
	}
	if target == nil {
		c.JSON(404, gin.H{"error": "User not found"})
		return
	}

	result, err := h.Members.Kick(json.UserID, json.ChannelID)
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to kick user"})
		return
	}
	if !result.RemovedAnything() {
		c.JSON(400, gin.H{"error": "User is not a member of this channel"})
		return
	}

	h.Registry.UnsubscribeUser(json.UserID, json.ChannelID)
	h.Registry.SendToUser(json.UserID, chatroom.WSMessage{
		Type: "kicked_from_channel",
		Data: chatroom.KickedPayload{ChannelID: channel.ID, ChannelName: channel.Name},
	})
	h.Registry.BroadcastToChannel(channel.ID, chatroom.WSMessage{
		Type: "new_message",
		Data: chatroom.NewMessagePayload{
			ChannelID:   channel.ID,
			Username:    types.SystemUsername,
			Body:        target.Username + " was removed from the channel",
			MessageType: types.MessageSystem,
			Timestamp:   nowRFC3339(),
		},
	})

	c.JSON(200, gin.H{"message": "User removed from channel"})
}

// HandlePinMessage flips a message's pin flag. Pinned messages are spared by
// the retention sweep.
func (h *Handlers) HandlePinMessage(c *gin.Context) {
	messageID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid message id"})
		return
	}

	var json struct {
		Pinned bool `json:"pinned"`
	}
	if err := c.BindJSON(&json); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request data"})
		return
	}

	msg, err := h.Channels.MessageByID(messageID)
	if err != nil {
		c.JSON(500, gin.H{"error": "Error loading message"})
		return
	}
	if msg == nil {
		c.JSON(404, gin.H{"error": "Message not found"})
		return
	}

	if err := h.Channels.SetPinned(messageID, json.Pinned); err != nil {
		c.JSON(500, gin.H{"error": "Failed to update message"})
		return
	}

	h.Registry.BroadcastToChannel(msg.ChannelID, chatroom.WSMessage{
		Type: "message_pinned",
		Data: gin.H{"message_id": messageID, "channel_id": msg.ChannelID, "pinned": json.Pinned},
	})

	c.JSON(200, gin.H{"message": "Message updated"})
}
