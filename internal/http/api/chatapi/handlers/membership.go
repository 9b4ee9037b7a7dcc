package handlers

import (
	"net/http"
	"strconv"

	"github.com/devoverflow-hq/chat-service/internal/chat"
	"github.com/gin-gonic/gin"
)

// MembershipHandler manages join, leave, and read-tracking endpoints.
type MembershipHandler struct {
	svc *chat.Service
}

// NewMembershipHandler constructs a MembershipHandler.
func NewMembershipHandler(svc *chat.Service) *MembershipHandler {
	return &MembershipHandler{svc: svc}
}

// Join adds the caller to a group's member set. Joining a group the caller
// already belongs to is a no-op.
func (h *MembershipHandler) Join(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	groupID, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil || groupID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	if errJoin := h.svc.JoinGroup(c.Request.Context(), groupID, actor.UserID); errJoin != nil {
		respondServiceError(c, errJoin, "join group failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "joined"})
}

// Leave removes the caller from a group's member set. The group's moderator
// cannot leave their own group.
func (h *MembershipHandler) Leave(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	groupID, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil || groupID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	if errLeave := h.svc.LeaveGroup(c.Request.Context(), groupID, actor.UserID); errLeave != nil {
		respondServiceError(c, errLeave, "leave group failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "left"})
}

// markReadRequest defines the request body for read marker updates.
type markReadRequest struct {
	ChatGroupID uint64 `json:"chat_group_id"`
}

// MarkRead moves the caller's read marker for a group up to now.
func (h *MembershipHandler) MarkRead(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var body markReadRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.ChatGroupID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing chat_group_id"})
		return
	}

	if errMark := h.svc.MarkRead(c.Request.Context(), body.ChatGroupID, actor.UserID); errMark != nil {
		respondServiceError(c, errMark, "mark read failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "read"})
}
