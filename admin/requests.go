package admin

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"chathub/auth"
	"chathub/chatroom"
	"chathub/membership"
	"chathub/types"
)

// HandlePendingRequests lists the join requests awaiting review, oldest
// first.
func (h *Handlers) HandlePendingRequests(c *gin.Context) {
	requests, err := h.Members.PendingRequests()
	if err != nil {
		c.JSON(500, gin.H{"error": "Error loading requests"})
		return
	}

	out := make([]gin.H, 0, len(requests))
	for _, request := range requests {
		entry := gin.H{
			"id":           request.ID,
			"user_id":      request.UserID,
			"channel_id":   request.ChannelID,
			"requested_at": request.RequestedAt,
		}
		if user, err := h.Users.ByID(request.UserID); err == nil && user != nil {
			entry["username"] = user.Username
		}
		if channel, err := h.Channels.ByID(request.ChannelID); err == nil && channel != nil {
			entry["channel_name"] = channel.Name
		}
		out = append(out, entry)
	}
	c.JSON(200, gin.H{"requests": out})
}

// HandleApproveRequest approves a pending request, makes the user a member
// and notifies their personal room.
func (h *Handlers) HandleApproveRequest(c *gin.Context) {
	h.reviewRequest(c, types.RequestApproved)
}

// HandleRejectRequest rejects a pending request and notifies the requester.
func (h *Handlers) HandleRejectRequest(c *gin.Context) {
	h.reviewRequest(c, types.RequestRejected)
}

func (h *Handlers) reviewRequest(c *gin.Context, status string) {
	reviewer, _ := auth.CurrentUser(c)
	requestID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid request id"})
		return
	}

	var outcome membership.ReviewOutcome
	var request *types.JoinRequest
	if status == types.RequestApproved {
		outcome, request, err = h.Members.Approve(requestID, reviewer.ID)
	} else {
		outcome, request, err = h.Members.Reject(requestID, reviewer.ID)
	}
	if err != nil {
		c.JSON(404, gin.H{"error": "Request not found"})
		return
	}
	if outcome == membership.AlreadyProcessed {
		c.JSON(400, gin.H{"error": "Request was already processed"})
		return
	}

	channelName := ""
	if channel, chErr := h.Channels.ByID(request.ChannelID); chErr == nil && channel != nil {
		channelName = channel.Name
	}

	eventType := "request_rejected"
	if status == types.RequestApproved {
		eventType = "request_approved"
	}
	h.Registry.SendToUser(request.UserID, chatroom.WSMessage{
		Type: eventType,
		Data: chatroom.RequestDecisionPayload{
			ChannelID:   request.ChannelID,
			ChannelName: channelName,
			Status:      status,
		},
	})

	c.JSON(200, gin.H{"message": "Request " + status})
}
