package admin

import (
	"time"

	"chathub/auth"
	"chathub/channels"
	"chathub/chatroom"
	"chathub/membership"
	"chathub/moderation"
	"chathub/settings"
	"chathub/uploads"
)

// Handlers bundles the stores the privileged endpoints operate on.
type Handlers struct {
	Users      *auth.Users
	Channels   *channels.Store
	Members    *membership.Registry
	Moderation *moderation.Store
	Settings   *settings.Store
	Stickers   *uploads.Stickers
	Registry   *chatroom.Registry
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

func nowRFC3339() string {
	return nowUTC().Format(time.RFC3339)
}
