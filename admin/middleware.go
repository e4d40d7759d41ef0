// Package admin serves the privileged HTTP surface: channel and user
// management, moderation, join request review and the maintenance switch.
package admin

import (
	"github.com/gin-gonic/gin"

	"chathub/auth"
	"chathub/types"
)

func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := auth.CurrentUser(c)
		if !ok || !user.IsAdmin() {
			c.JSON(403, gin.H{"error": "Admin access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// ModeratorRequired admits moderators and admins.
func ModeratorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := auth.CurrentUser(c)
		if !ok || !user.IsModerator() {
			c.JSON(403, gin.H{"error": "Moderator access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// protectedTarget rejects moderation aimed at yourself or the bootstrap
// admin account.
func protectedTarget(actor types.User, targetID int) string {
	if targetID == actor.ID {
		return "You cannot target yourself"
	}
	if targetID == types.BootstrapAdminID {
		return "This account cannot be targeted"
	}
	return ""
}
