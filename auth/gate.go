package auth

import (
	"github.com/gin-gonic/gin"

	"chathub/moderation"
	"chathub/settings"
	"chathub/types"
)

// SiteGate sits after Middleware and enforces the two site-wide gates: the
// maintenance flag, which shuts non-admins out, and global bans, which shut
// everyone out including admins.
type SiteGate struct {
	Settings   *settings.Store
	Moderation *moderation.Store
}

func (g *SiteGate) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.JSON(401, gin.H{"error": "Authorization required"})
			c.Abort()
			return
		}

		// The maintenance flag is evaluated before any account checks, so a
		// banned non-admin on a closed site sees the maintenance refusal.
		if user.Role != types.RoleAdmin {
			closed, err := g.Settings.SiteClosed()
			if err != nil {
				c.JSON(500, gin.H{"error": "Error checking site status"})
				c.Abort()
				return
			}
			if closed {
				c.JSON(503, gin.H{"error": "The site is closed for maintenance"})
				c.Abort()
				return
			}
		}

		ban, err := g.Moderation.EffectiveBan(user.ID, 0)
		if err != nil {
			c.JSON(500, gin.H{"error": "Error checking account status"})
			c.Abort()
			return
		}
		if ban != nil {
			c.JSON(403, gin.H{"error": "You are " + moderation.Describe(ban, "banned", "")})
			c.Abort()
			return
		}

		c.Next()
	}
}
