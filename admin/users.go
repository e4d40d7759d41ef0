package admin

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"chathub/auth"
	"chathub/types"
)

// HandleCreateUser registers an account. Accounts are only created by
// admins; there is no open signup.
func (h *Handlers) HandleCreateUser(c *gin.Context) {
	var json struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := c.BindJSON(&json); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request data"})
		return
	}

	username := strings.TrimSpace(json.Username)
	if username == "" || json.Password == "" {
		c.JSON(400, gin.H{"error": "Username and password are required"})
		return
	}

	role := json.Role
	switch role {
	case "":
		role = types.RoleUser
	case types.RoleUser, types.RoleModerator, types.RoleAdmin:
	default:
		c.JSON(400, gin.H{"error": "Unknown role"})
		return
	}

	user, err := h.Users.Create(username, json.Password, role)
	if err == auth.ErrDuplicateUsername {
		c.JSON(400, gin.H{"error": "Username is already taken"})
		return
	}
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to create user"})
		return
	}

	c.JSON(201, gin.H{"user_id": user.ID, "username": user.Username, "role": user.Role})
}

// HandleSetUserRole promotes or demotes an account. The bootstrap admin and
// the caller's own account are off limits.
func (h *Handlers) HandleSetUserRole(c *gin.Context) {
	actor, _ := auth.CurrentUser(c)
	targetID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid user id"})
		return
	}
	if reason := protectedTarget(actor, targetID); reason != "" {
		c.JSON(403, gin.H{"error": reason})
		return
	}

	var json struct {
		Role string `json:"role"`
	}
	if err := c.BindJSON(&json); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request data"})
		return
	}
	switch json.Role {
	case types.RoleUser, types.RoleModerator, types.RoleAdmin:
	default:
		c.JSON(400, gin.H{"error": "Unknown role"})
		return
	}

	target, err := h.Users.ByID(targetID)
	if err != nil {
		c.JSON(500, gin.H{"error": "Error loading user"})
		return
	}
	if target == nil {
		c.JSON(404, gin.H{"error": "User not found"})
		return
	}

	if err := h.Users.SetRole(targetID, json.Role); err != nil {
		c.JSON(500, gin.H{"error": "Failed to update role"})
		return
	}
	c.JSON(200, gin.H{"message": "Role updated"})
}

// HandleDeleteUser removes an account and everything referencing it.
func (h *Handlers) HandleDeleteUser(c *gin.Context) {
	actor, _ := auth.CurrentUser(c)
	targetID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid user id"})
		return
	}
	if reason := protectedTarget(actor, targetID); reason != "" {
		c.JSON(403, gin.H{"error": reason})
		return
	}

	target, err := h.Users.ByID(targetID)
	if err != nil {
		c.JSON(500, gin.H{"error": "Error loading user"})
		return
	}
	if target == nil {
		c.JSON(404, gin.H{"error": "User not found"})
		return
	}

	if err := h.Users.Delete(targetID); err != nil {
		c.JSON(500, gin.H{"error": "Failed to delete user"})
		return
	}
	c.JSON(200, gin.H{"message": "User deleted"})
}

// HandleListUsers returns every account for the admin dashboard.
func (h *Handlers) HandleListUsers(c *gin.Context) {
	list, err := h.Users.All()
	if err != nil {
		c.JSON(500, gin.H{"error": "Error loading users"})
		return
	}
	out := make([]gin.H, 0, len(list))
	for _, user := range list {
		out = append(out, gin.H{"id": user.ID, "username": user.Username, "role": user.Role})
	}
	c.JSON(200, gin.H{"users": out})
}
