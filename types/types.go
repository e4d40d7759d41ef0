package types

import "time"

// Roles
const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// BootstrapAdminID is the primary admin account seeded at first startup.
// It can never be deleted, demoted, kicked, muted or banned.
const BootstrapAdminID = 1

// Message types
const (
	MessageText    = "text"
	MessageImage   = "image"
	MessageSticker = "sticker"
	MessageSystem  = "system"
)

// Join request statuses
const (
	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestRejected = "rejected"
)

// SystemUsername is the author shown on system notices.
const SystemUsername = "System"

type User struct {
	ID           int
	Username     string
	PasswordHash string
	Role         string
	CreatedAt    string
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsModerator reports moderator-level privileges; admins qualify.
func (u User) IsModerator() bool {
	return u.Role == RoleModerator || u.Role == RoleAdmin
}

type Channel struct {
	ID               int
	Name             string
	Description      string
	PasswordHash     string // empty when the channel is open
	IsWritable       bool
	RequiresApproval bool
	CreatedAt        string
}

func (c Channel) IsProtected() bool {
	return c.PasswordHash != ""
}

type Message struct {
	ID          int
	ChannelID   int
	UserID      int
	Username    string
	Body        string
	MessageType string
	IsPinned    bool
	Timestamp   string
}

// NormalizeMessageType maps unknown or empty types to text. System messages
// are never accepted from clients.
func NormalizeMessageType(t string) string {
	switch t {
	case MessageText, MessageImage, MessageSticker:
		return t
	default:
		return MessageText
	}
}

type JoinRequest struct {
	ID          int
	UserID      int
	ChannelID   int
	Status      string
	RequestedAt string
	ReviewedBy  int // 0 until reviewed
	ReviewedAt  string
}

// Sanction is one ban or mute row. ChannelID 0 means the record is global.
type Sanction struct {
	ID        int
	UserID    int
	AdminID   int
	ChannelID int
	Reason    string
	CreatedAt time.Time
	ExpiresAt time.Time // zero time means permanent
}

func (s *Sanction) Global() bool {
	return s.ChannelID == 0
}

func (s *Sanction) Permanent() bool {
	return s.ExpiresAt.IsZero()
}

// ActiveAt reports whether the sanction is in force at the given instant.
// Expired records are treated as absent; they are never deleted eagerly.
func (s *Sanction) ActiveAt(now time.Time) bool {
	return s.Permanent() || s.ExpiresAt.After(now)
}

type Sticker struct {
	ID         int
	UploaderID int
	FilePath   string
	IsApproved bool
	UploadedAt string
}
