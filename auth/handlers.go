package auth

import (
	"time"

	"github.com/gin-gonic/gin"

	"chathub/moderation"
)

const sessionLifetime = time.Hour * 672 // 28 days

// Handlers serves the login and logout endpoints.
type Handlers struct {
	Users      *Users
	Moderation *moderation.Store
}

// HandleLogin verifies credentials and issues a session token. A user with an
// active global ban cannot log in at all; the response carries the ban
// description so the client can show it.
func (h *Handlers) HandleLogin(c *gin.Context) {
	var json struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.BindJSON(&json); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request data"})
		return
	}

	user, err := h.Users.ByUsername(json.Username)
	if err != nil {
		c.JSON(500, gin.H{"error": "Error extracting data"})
		return
	}
	if user == nil || !CheckPassword(user.PasswordHash, json.Password) {
		c.JSON(400, gin.H{"error": "Incorrect username or password"})
		return
	}

	ban, err := h.Moderation.EffectiveBan(user.ID, 0)
	if err != nil {
		c.JSON(500, gin.H{"error": "Error checking account status"})
		return
	}
	if ban != nil {
		c.JSON(403, gin.H{"error": "You are " + moderation.Describe(ban, "banned", "")})
		return
	}

	token, err := GenerateToken(user.ID, sessionLifetime)
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to generate session token"})
		return
	}

	c.JSON(200, gin.H{
		"auth_token": token,
		"user_id":    user.ID,
		"username":   user.Username,
		"role":       user.Role,
	})
}

// HandleLogout exists so clients have a uniform endpoint to hit; tokens are
// stateless and simply discarded client-side.
func (h *Handlers) HandleLogout(c *gin.Context) {
	c.JSON(200, gin.H{"message": "Logged out"})
}
