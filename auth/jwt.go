package auth

import (
	"fmt"
	"os"
	"strings"
	"time"

	jwt "github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"

	"chathub/types"
)

// Context keys set by Middleware for downstream handlers.
const (
	CtxUserID   = "userID"
	CtxUsername = "username"
	CtxUserRole = "userRole"
)

// GenerateToken signs a session token carrying the user id.
func GenerateToken(userID int, lifetime time.Duration) (string, error) {
	jwtSecret := os.Getenv("JWT_SECRET")
	claims := jwt.MapClaims{
		"userID": userID,
		"exp":    time.Now().Add(lifetime).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtSecret))
}

// Middleware authenticates requests with a bearer token. Websocket dials from
// browsers cannot set headers, so a `token` query parameter is accepted as a
// fallback. The user row is loaded fresh on every request so role changes and
// deletions take effect immediately.
func Middleware(users *Users) gin.HandlerFunc {
	return func(c *gin.Context) {
		jwtSecret := os.Getenv("JWT_SECRET")

		tokenString := c.GetHeader("Authorization")
		if tokenString == "" {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			c.JSON(401, gin.H{"error": "Authorization required"})
			c.Abort()
			return
		}
		tokenString = strings.TrimPrefix(tokenString, "Bearer ")

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(jwtSecret), nil
		})
		if err != nil || !token.Valid {
			c.JSON(401, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.JSON(401, gin.H{"error": "Invalid token claims"})
			c.Abort()
			return
		}
		idClaim, ok := claims["userID"].(float64)
		if !ok {
			c.JSON(401, gin.H{"error": "Invalid token claims"})
			c.Abort()
			return
		}

		user, err := users.ByID(int(idClaim))
		if err != nil {
			c.JSON(500, gin.H{"error": "Error loading user"})
			c.Abort()
			return
		}
		if user == nil {
			c.JSON(401, gin.H{"error": "Account no longer exists"})
			c.Abort()
			return
		}

		c.Set(CtxUserID, user.ID)
		c.Set(CtxUsername, user.Username)
		c.Set(CtxUserRole, user.Role)
		c.Next()
	}
}

// CurrentUser rebuilds the authenticated user from the context keys set by
// Middleware.
func CurrentUser(c *gin.Context) (types.User, bool) {
	id, exists := c.Get(CtxUserID)
	if !exists {
		return types.User{}, false
	}
	username, _ := c.Get(CtxUsername)
	role, _ := c.Get(CtxUserRole)
	return types.User{
		ID:       id.(int),
		Username: username.(string),
		Role:     role.(string),
	}, true
}
