package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/devoverflow-hq/chat-service/internal/chat"
	"github.com/gin-gonic/gin"
)

// ModerationHandler manages the ban engine endpoints.
type ModerationHandler struct {
	svc *chat.Service
}

// NewModerationHandler constructs a ModerationHandler.
func NewModerationHandler(svc *chat.Service) *ModerationHandler {
	return &ModerationHandler{svc: svc}
}

// banRequest defines the request body for banning a user from a group.
// A zero or absent duration makes the ban permanent.
type banRequest struct {
	ChatGroupID     uint64 `json:"chat_group_id"`
	UserID          uint64 `json:"user_id"`
	DurationSeconds int64  `json:"duration_seconds"`
}

// Ban bans a user from a group and deletes their messages in it.
func (h *ModerationHandler) Ban(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var body banRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.ChatGroupID == 0 || body.UserID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing chat_group_id or user_id"})
		return
	}
	if body.DurationSeconds < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid duration_seconds"})
		return
	}

	duration := time.Duration(body.DurationSeconds) * time.Second
	outcome, errBan := h.svc.BanUser(c.Request.Context(), actor, body.ChatGroupID, body.UserID, duration)
	if errBan != nil {
		respondServiceError(c, errBan, "ban user failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":          outcome.Ban.UserID,
		"chat_group_id":    outcome.Ban.ChatGroupID,
		"banned_at":        outcome.Ban.BannedAt,
		"expires_at":       outcome.Ban.ExpiresAt,
		"deleted_messages": outcome.DeletedMessages,
	})
}

// BanStatus reports the caller's own ban state in a group.
func (h *ModerationHandler) BanStatus(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	groupID, errParse := strconv.ParseUint(c.Query("chat_group_id"), 10, 64)
	if errParse != nil || groupID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing chat_group_id"})
		return
	}

	status, errStatus := h.svc.UserBanStatus(c.Request.Context(), groupID, actor.UserID)
	if errStatus != nil {
		respondServiceError(c, errStatus, "ban status failed")
		return
	}
	c.JSON(http.StatusOK, status)
}
