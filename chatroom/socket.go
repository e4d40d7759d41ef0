package chatroom

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"chathub/access"
	"chathub/auth"
	"chathub/channels"
	"chathub/membership"
	"chathub/moderation"
	"chathub/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub wires the registry to the stores the event handlers need.
type Hub struct {
	Registry   *Registry
	Channels   *channels.Store
	Members    *membership.Registry
	Moderation *moderation.Store
	Access     *access.Evaluator
}

// HandleSocket upgrades the connection and runs the read loop until the
// client goes away. A globally banned user is refused before the upgrade.
func (h *Hub) HandleSocket(c *gin.Context) {
	user, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(401, gin.H{"error": "Authorization required"})
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

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("WebSocket upgrade failed:", err)
		return
	}
	conn.SetReadLimit(256 * 1024)

	client := h.Registry.Connect(conn, user.ID, user.Username)
	go client.WritePump()

	for {
		_, msgBytes, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var wsMsg WSMessage
		if err := json.Unmarshal(msgBytes, &wsMsg); err != nil {
			log.Println("Invalid message format:", err)
			continue
		}

		h.dispatchMessage(client, user, wsMsg)
	}

	// Reset the message limiter only once the user's last connection is
	// gone; other live sockets keep sharing the window.
	if h.Registry.Drop(client) {
		clearChatMessageLimiter(user.ID)
	}
}

func (h *Hub) dispatchMessage(client *Client, user types.User, wsMsg WSMessage) {
	switch wsMsg.Type {
	case "join_channel":
		data, err := decodeData[ChannelRef](wsMsg.Data)
		if err != nil {
			safeSend(client, WSMessage{Type: "error", Data: ChatError{Content: "Invalid join channel data"}})
			return
		}
		h.handleJoinChannel(client, user, data.ChannelID)

	case "leave_channel":
		data, err := decodeData[ChannelRef](wsMsg.Data)
		if err != nil {
			safeSend(client, WSMessage{Type: "error", Data: ChatError{Content: "Invalid leave channel data"}})
			return
		}
		h.handleLeaveChannel(client, data.ChannelID)

	case "self_leave_channel":
		data, err := decodeData[ChannelRef](wsMsg.Data)
		if err != nil {
			safeSend(client, WSMessage{Type: "error", Data: ChatError{Content: "Invalid leave channel data"}})
			return
		}
		h.handleSelfLeave(client, user, data.ChannelID)

	case "send_message":
		data, err := decodeData[SendMessageData](wsMsg.Data)
		if err != nil {
			safeSend(client, WSMessage{Type: "error", Data: ChatError{Content: "Invalid message data"}})
			return
		}
		h.handleSendMessage(client, user, data)

	case "typing_started", "typing_stopped":
		data, err := decodeData[ChannelRef](wsMsg.Data)
		if err != nil {
			return
		}
		h.handleTyping(client, user, wsMsg.Type, data.ChannelID)

	case "find_channel_info":
		data, err := decodeData[FindChannelData](wsMsg.Data)
		if err != nil {
			safeSend(client, WSMessage{Type: "error", Data: ChatError{Content: "Invalid channel lookup data"}})
			return
		}
		h.handleFindChannelInfo(client, data.Name)

	case "attempt_join":
		data, err := decodeData[AttemptJoinData](wsMsg.Data)
		if err != nil {
			safeSend(client, WSMessage{Type: "error", Data: ChatError{Content: "Invalid join data"}})
			return
		}
		h.handleAttemptJoin(client, user, data.ChannelID)

	case "join_channel_with_password":
		data, err := decodeData[PasswordJoinData](wsMsg.Data)
		if err != nil {
			safeSend(client, WSMessage{Type: "error", Data: ChatError{Content: "Invalid join data"}})
			return
		}
		h.handlePasswordJoin(client, user, data)

	case "request_history":
		data, err := decodeData[ChannelRef](wsMsg.Data)
		if err != nil {
			safeSend(client, WSMessage{Type: "error", Data: ChatError{Content: "Invalid history request"}})
			return
		}
		h.handleRequestHistory(client, user, data.ChannelID)

	default:
		log.Println("Unknown message type:", wsMsg.Type)
	}
}
