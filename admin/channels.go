package admin

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"chathub/auth"
	"chathub/channels"
	"chathub/chatroom"
)

// HandleCreateChannel creates a channel. A non-empty password makes it
// protected; requires_approval adds the review gate on top.
func (h *Handlers) HandleCreateChannel(c *gin.Context) {
	var json struct {
		Name             string `json:"name"`
		Description      string `json:"description"`
		Password         string `json:"password"`
		RequiresApproval bool   `json:"requires_approval"`
	}
	if err := c.BindJSON(&json); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request data"})
		return
	}

	name := strings.TrimSpace(json.Name)
	if name == "" {
		c.JSON(400, gin.H{"error": "Channel name is required"})
		return
	}

	var hash string
	if json.Password != "" {
		var err error
		hash, err = auth.HashPassword(json.Password)
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to hash password"})
			return
		}
	}

	channel, err := h.Channels.Create(name, strings.TrimSpace(json.Description), hash, json.RequiresApproval)
	if err == channels.ErrDuplicateName {
		c.JSON(400, gin.H{"error": "A channel with that name already exists"})
		return
	}
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to create channel"})
		return
	}

	c.JSON(201, gin.H{"channel_id": channel.ID, "name": channel.Name})
}

// HandleEditChannel updates name, description, password and approval flag.
// An absent password field keeps the current one; an explicit empty string
// clears protection.
func (h *Handlers) HandleEditChannel(c *gin.Context) {
	channelID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid channel id"})
		return
	}

	var json struct {
		Name             string  `json:"name"`
		Description      string  `json:"description"`
		Password         *string `json:"password"`
		RequiresApproval bool    `json:"requires_approval"`
	}
	if err := c.BindJSON(&json); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request data"})
		return
	}

	channel, err := h.Channels.ByID(channelID)
	if err != nil {
		c.JSON(500, gin.H{"error": "Error loading channel"})
		return
	}
	if channel == nil {
		c.JSON(404, gin.H{"error": "Channel not found"})
		return
	}

	name := strings.TrimSpace(json.Name)
	if name == "" {
		name = channel.Name
	}

	keepPassword := json.Password == nil
	var hash string
	if !keepPassword && *json.Password != "" {
		hash, err = auth.HashPassword(*json.Password)
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to hash password"})
			return
		}
	}

	err = h.Channels.Update(channelID, name, strings.TrimSpace(json.Description), hash, keepPassword, json.RequiresApproval)
	if err == channels.ErrDuplicateName {
		c.JSON(400, gin.H{"error": "A channel with that name already exists"})
		return
	}
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to update channel"})
		return
	}

	updated, err := h.Channels.ByID(channelID)
	if err == nil && updated != nil {
		h.Registry.BroadcastToChannel(channelID, chatroom.WSMessage{
			Type: "channel_status_update",
			Data: chatroom.ChannelStatusPayload{
				ChannelID:   updated.ID,
				IsWritable:  updated.IsWritable,
				IsProtected: updated.IsProtected(),
			},
		})
	}

	c.JSON(200, gin.H{"message": "Channel updated"})
}

// HandleToggleChannelWritable flips the write-lock and pushes the new status
// to everyone in the room.
func (h *Handlers) HandleToggleChannelWritable(c *gin.Context) {
	channelID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid channel id"})
		return
	}

	channel, err := h.Channels.ByID(channelID)
	if err != nil {
		c.JSON(500, gin.H{"error": "Error loading channel"})
		return
	}
	if channel == nil {
		c.JSON(404, gin.H{"error": "Channel not found"})
		return
	}

	newState := !channel.IsWritable
	if err := h.Channels.SetWritable(channelID, newState); err != nil {
		c.JSON(500, gin.H{"error": "Failed to update channel"})
		return
	}

	h.Registry.BroadcastToChannel(channelID, chatroom.WSMessage{
		Type: "channel_status_update",
		Data: chatroom.ChannelStatusPayload{
			ChannelID:   channel.ID,
			IsWritable:  newState,
			IsProtected: channel.IsProtected(),
		},
	})

	c.JSON(200, gin.H{"is_writable": newState})
}

// HandleDeleteChannel removes the channel; messages, memberships, requests
// and channel-scoped sanctions cascade away with it.
func (h *Handlers) HandleDeleteChannel(c *gin.Context) {
	channelID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid channel id"})
		return
	}

	channel, err := h.Channels.ByID(channelID)
	if err != nil {
		c.JSON(500, gin.H{"error": "Error loading channel"})
		return
	}
	if channel == nil {
		c.JSON(404, gin.H{"error": "Channel not found"})
		return
	}

	h.Registry.BroadcastToChannel(channelID, chatroom.WSMessage{
		Type: "channel_deleted",
		Data: chatroom.ChannelRef{ChannelID: channelID},
	})

	if err := h.Channels.Delete(channelID); err != nil {
		c.JSON(500, gin.H{"error": "Failed to delete channel"})
		return
	}

	c.JSON(200, gin.H{"message": "Channel deleted"})
}

// HandleListChannels returns every channel for the admin dashboard.
func (h *Handlers) HandleListChannels(c *gin.Context) {
	list, err := h.Channels.All()
	if err != nil {
		c.JSON(500, gin.H{"error": "Error loading channels"})
		return
	}
	out := make([]gin.H, 0, len(list))
	for _, channel := range list {
		out = append(out, gin.H{
			"id":                channel.ID,
			"name":              channel.Name,
			"description":       channel.Description,
			"is_writable":       channel.IsWritable,
			"is_protected":      channel.IsProtected(),
			"requires_approval": channel.RequiresApproval,
		})
	}
	c.JSON(200, gin.H{"channels": out})
}
