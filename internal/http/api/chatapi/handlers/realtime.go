package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/devoverflow-hq/chat-service/internal/chat"
	"github.com/devoverflow-hq/chat-service/internal/models"
	"github.com/devoverflow-hq/chat-service/internal/realtime"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RealtimeHandler authorizes websocket channel subscriptions.
type RealtimeHandler struct {
	db         *gorm.DB
	svc        *chat.Service
	authorizer *realtime.Authorizer
}

// NewRealtimeHandler constructs a RealtimeHandler.
func NewRealtimeHandler(db *gorm.DB, svc *chat.Service, authorizer *realtime.Authorizer) *RealtimeHandler {
	return &RealtimeHandler{db: db, svc: svc, authorizer: authorizer}
}

// channelAuthRequest defines the request body for channel authorization.
type channelAuthRequest struct {
	SocketID    string `json:"socket_id"`
	ChannelName string `json:"channel_name"`
}

// Auth signs a channel subscription for the caller. Group channels require
// the caller to be a member of (or an admin over) the group the channel
// names; presence channels carry signed identity metadata.
func (h *RealtimeHandler) Auth(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var body channelAuthRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	channelName := strings.TrimSpace(body.ChannelName)
	socketID := strings.TrimSpace(body.SocketID)

	if groupID, isGroup := realtime.ParseGroupChannel(channelName); isGroup {
		if _, errGet := h.svc.GetGroup(c.Request.Context(), actor, groupID); errGet != nil {
			respondServiceError(c, errGet, "authorize channel failed")
			return
		}
	}

	var (
		auth    realtime.ChannelAuth
		errAuth error
	)
	if strings.HasPrefix(channelName, realtime.PresenceChannelPrefix) {
		var user models.User
		if errFind := h.db.WithContext(c.Request.Context()).First(&user, actor.UserID).Error; errFind != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "load user failed"})
			return
		}
		auth, errAuth = h.authorizer.AuthorizePresenceChannel(socketID, channelName, realtime.PresenceData{
			UserID: strconv.FormatUint(user.ID, 10),
			UserInfo: map[string]any{
				"username": user.Username,
				"name":     user.Name,
			},
		})
	} else {
		auth, errAuth = h.authorizer.AuthorizeChannel(socketID, channelName)
	}
	if errAuth != nil {
		if errors.Is(errAuth, realtime.ErrInvalidChannelName) || errors.Is(errAuth, realtime.ErrInvalidSocketID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": errAuth.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "authorize channel failed"})
		return
	}
	c.JSON(http.StatusOK, auth)
}
