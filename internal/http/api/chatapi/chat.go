package chatapi

import (
	"net/http"
	"strings"

	"github.com/devoverflow-hq/chat-service/internal/chat"
	"github.com/devoverflow-hq/chat-service/internal/config"
	handlers "github.com/devoverflow-hq/chat-service/internal/http/api/chatapi/handlers"
	"github.com/devoverflow-hq/chat-service/internal/models"
	"github.com/devoverflow-hq/chat-service/internal/ratelimit"
	"github.com/devoverflow-hq/chat-service/internal/realtime"
	"github.com/devoverflow-hq/chat-service/internal/security"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegisterChatRoutes registers chat routes, middleware, and handlers.
func RegisterChatRoutes(
	r *gin.Engine,
	db *gorm.DB,
	svc *chat.Service,
	jwtCfg config.JWTConfig,
	chatCfg config.ChatConfig,
	authorizer *realtime.Authorizer,
	limiter *ratelimit.Manager,
) {
	if r == nil || db == nil || svc == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(db)
	r.GET("/healthz", healthHandler.Healthz)

	chatGroup := r.Group("/v0/chat")

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	chatGroup.POST("/login", authHandler.Login)

	authed := chatGroup.Group("")
	authed.Use(sessionAuthMiddleware(db, jwtCfg))

	groupHandler := handlers.NewGroupHandler(svc)
	authed.POST("/groups", groupHandler.Create)
	authed.GET("/groups", groupHandler.List)
	authed.GET("/groups/mine", groupHandler.ListMine)
	authed.GET("/groups/:id", groupHandler.Get)
	authed.PUT("/groups/:id", groupHandler.Update)
	authed.DELETE("/groups/:id", groupHandler.Delete)

	membershipHandler := handlers.NewMembershipHandler(svc)
	authed.POST("/groups/:id/join", membershipHandler.Join)
	authed.POST("/groups/:id/leave", membershipHandler.Leave)
	authed.POST("/groups/read", membershipHandler.MarkRead)

	messageHandler := handlers.NewMessageHandler(svc, limiter, chatCfg)
	authed.POST("/messages", messageHandler.Send)
	authed.GET("/messages", messageHandler.List)
	authed.DELETE("/messages/:id", messageHandler.Delete)

	moderationHandler := handlers.NewModerationHandler(svc)
	authed.POST("/groups/ban", moderationHandler.Ban)
	authed.GET("/ban-status", moderationHandler.BanStatus)

	authed.POST("/users/sync", authHandler.SyncUsers)

	realtimeGroup := r.Group("/v0/realtime")
	realtimeGroup.Use(sessionAuthMiddleware(db, jwtCfg))
	realtimeHandler := handlers.NewRealtimeHandler(db, svc, authorizer)
	realtimeGroup.POST("/auth", realtimeHandler.Auth)
}

// sessionAuthMiddleware validates session JWTs and loads the actor context.
func sessionAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseSessionToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var user models.User
		if errFind := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		if !user.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user disabled"})
			return
		}

		c.Set(handlers.ContextKeyActor, chat.Actor{
			UserID:      claims.UserID,
			IsAdmin:     claims.HasRole(security.RoleAdmin),
			IsModerator: claims.HasRole(security.RoleModerator),
		})
		c.Next()
	}
}
