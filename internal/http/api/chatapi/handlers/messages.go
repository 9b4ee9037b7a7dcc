package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/devoverflow-hq/chat-service/internal/chat"
	"github.com/devoverflow-hq/chat-service/internal/config"
	"github.com/devoverflow-hq/chat-service/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

// MessageHandler manages the message pipeline endpoints.
type MessageHandler struct {
	svc     *chat.Service
	limiter *ratelimit.Manager
	cfg     config.ChatConfig
}

// NewMessageHandler constructs a MessageHandler.
func NewMessageHandler(svc *chat.Service, limiter *ratelimit.Manager, cfg config.ChatConfig) *MessageHandler {
	return &MessageHandler{svc: svc, limiter: limiter, cfg: cfg}
}

// sendMessageRequest defines the request body for posting a message.
type sendMessageRequest struct {
	ChatGroupID uint64 `json:"chat_group_id"`
	Content     string `json:"content"`
}

// Send validates, rate limits, and stores a message, then fires the
// best-effort new-message broadcast. The whole call runs under a fixed
// timeout budget.
func (h *MessageHandler) Send(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var body sendMessageRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.ChatGroupID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing chat_group_id"})
		return
	}

	if h.limiter != nil && h.cfg.MessageRateLimit > 0 {
		key := "msg:user:" + strconv.FormatUint(actor.UserID, 10)
		result, errAllow := h.limiter.Allow(c.Request.Context(), key, h.cfg.MessageRateLimit, h.cfg.MessageRateWindow)
		if errAllow != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "rate limit check failed"})
			return
		}
		if !result.Allowed {
			retryAfter := int64(time.Until(result.Reset).Seconds()) + 1
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "message rate limit exceeded"})
			return
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.SendTimeout)
	defer cancel()

	message, errSend := h.svc.SendMessage(ctx, actor.UserID, body.ChatGroupID, body.Content)
	if errSend != nil {
		respondServiceError(c, errSend, "send message failed")
		return
	}
	c.JSON(http.StatusCreated, messageJSON(*message))
}

// List returns a page of a group's messages, oldest first within the page.
func (h *MessageHandler) List(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	groupID, errParse := strconv.ParseUint(c.Query("chat_group_id"), 10, 64)
	if errParse != nil || groupID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing chat_group_id"})
		return
	}
	page, _ := strconv.Atoi(c.Query("page"))
	pageSize, _ := strconv.Atoi(c.Query("page_size"))

	rows, total, errList := h.svc.ListMessages(c.Request.Context(), actor, groupID, page, pageSize)
	if errList != nil {
		respondServiceError(c, errList, "list messages failed")
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, messageJSON(row))
	}
	c.JSON(http.StatusOK, gin.H{"messages": out, "total": total})
}

// Delete removes a message. Only the author may delete their own message.
func (h *MessageHandler) Delete(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	messageID, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil || messageID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	if _, errDelete := h.svc.DeleteMessage(c.Request.Context(), actor.UserID, messageID); errDelete != nil {
		respondServiceError(c, errDelete, "delete message failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
