package uploads

import (
	"log"
	"strconv"

	"github.com/gin-gonic/gin"

	"chathub/access"
	"chathub/auth"
	"chathub/channels"
	"chathub/chatroom"
	"chathub/membership"
	"chathub/types"
)

const imageDir = "images"

// Handlers serves the media endpoints. Posting an image runs the same gates
// as posting text, then broadcasts the persisted message to the room.
type Handlers struct {
	Files    *Store
	Stickers *Stickers
	Channels *channels.Store
	Members  *membership.Registry
	Access   *access.Evaluator
	Registry *chatroom.Registry
}

// HandleUploadMedia accepts a multipart upload. With purpose=sticker the file
// enters the approval queue; otherwise it needs a channel_id and posts an
// image message there.
func (h *Handlers) HandleUploadMedia(c *gin.Context) {
	user, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(401, gin.H{"error": "Authorization required"})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(400, gin.H{"error": "Missing file"})
		return
	}
	if !AllowedFile(file.Filename) {
		c.JSON(400, gin.H{"error": "File type not allowed"})
		return
	}

	if c.PostForm("purpose") == "sticker" {
		path, err := h.Files.Save(file, pendingStickerDir)
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to store file"})
			return
		}
		sticker, err := h.Stickers.Submit(user.ID, path)
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to record sticker"})
			return
		}
		c.JSON(201, gin.H{"message": "Sticker submitted for review", "sticker_id": sticker.ID})
		return
	}

	channelID, err := strconv.Atoi(c.PostForm("channel_id"))
	if err != nil {
		c.JSON(400, gin.H{"error": "Missing or invalid channel_id"})
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

	member, err := h.Members.IsMember(user.ID, channelID)
	if err != nil {
		c.JSON(500, gin.H{"error": "Error checking membership"})
		return
	}
	if !member {
		c.JSON(403, gin.H{"error": "You are not a member of this channel"})
		return
	}

	decision, err := h.Access.CanPost(user, *channel)
	if err != nil {
		c.JSON(500, gin.H{"error": "Error checking access"})
		return
	}
	if !decision.Allowed {
		c.JSON(403, gin.H{"error": decision.Reason})
		return
	}

	path, err := h.Files.Save(file, imageDir)
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to store file"})
		return
	}

	msg, err := h.Channels.InsertMessage(channel.ID, user.ID, user.Username, path, types.MessageImage)
	if err != nil {
		// The file is already on disk; without a message row nothing would
		// ever reference it again, so take it back out.
		if removeErr := h.Files.Remove(path); removeErr != nil {
			log.Println("orphaned upload cleanup failed:", removeErr)
		}
		c.JSON(500, gin.H{"error": "Failed to save message"})
		return
	}

	h.Registry.BroadcastToChannel(channel.ID, chatroom.WSMessage{
		Type: "new_message",
		Data: chatroom.NewMessagePayload{
			ID:          msg.ID,
			ChannelID:   msg.ChannelID,
			UserID:      msg.UserID,
			Username:    msg.Username,
			Body:        msg.Body,
			MessageType: msg.MessageType,
			Timestamp:   msg.Timestamp,
		},
	})

	c.JSON(201, gin.H{"message": "Uploaded", "path": path, "message_id": msg.ID})
}

// HandleApprovedStickers lists the stickers anyone may post.
func (h *Handlers) HandleApprovedStickers(c *gin.Context) {
	stickers, err := h.Stickers.Approved()
	if err != nil {
		c.JSON(500, gin.H{"error": "Error loading stickers"})
		return
	}
	out := make([]gin.H, 0, len(stickers))
	for _, sticker := range stickers {
		out = append(out, gin.H{"id": sticker.ID, "path": sticker.FilePath})
	}
	c.JSON(200, gin.H{"stickers": out})
}
