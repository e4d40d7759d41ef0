package admin

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// HandleToggleMaintenance flips the site-closed flag. While closed, only
// admins get past the gate.
func (h *Handlers) HandleToggleMaintenance(c *gin.Context) {
	closed, err := h.Settings.ToggleSiteClosed()
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to update site status"})
		return
	}
	c.JSON(200, gin.H{"site_closed": closed})
}

// HandlePendingStickers lists stickers awaiting review.
func (h *Handlers) HandlePendingStickers(c *gin.Context) {
	stickers, err := h.Stickers.Pending()
	if err != nil {
		c.JSON(500, gin.H{"error": "Error loading stickers"})
		return
	}
	out := make([]gin.H, 0, len(stickers))
	for _, sticker := range stickers {
		out = append(out, gin.H{
			"id":          sticker.ID,
			"uploader_id": sticker.UploaderID,
			"path":        sticker.FilePath,
			"uploaded_at": sticker.UploadedAt,
		})
	}
	c.JSON(200, gin.H{"stickers": out})
}

// HandleApproveSticker moves a sticker out of the pending queue.
func (h *Handlers) HandleApproveSticker(c *gin.Context) {
	stickerID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid sticker id"})
		return
	}
	sticker, err := h.Stickers.Approve(stickerID)
	if err != nil {
		c.JSON(400, gin.H{"error": "Failed to approve sticker"})
		return
	}
	c.JSON(200, gin.H{"message": "Sticker approved", "path": sticker.FilePath})
}

// HandleRejectSticker drops a pending sticker and its file.
func (h *Handlers) HandleRejectSticker(c *gin.Context) {
	stickerID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid sticker id"})
		return
	}
	if err := h.Stickers.Reject(stickerID); err != nil {
		c.JSON(400, gin.H{"error": "Failed to reject sticker"})
		return
	}
	c.JSON(200, gin.H{"message": "Sticker rejected"})
}
