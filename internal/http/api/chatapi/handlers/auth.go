package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/devoverflow-hq/chat-service/internal/config"
	"github.com/devoverflow-hq/chat-service/internal/models"
	"github.com/devoverflow-hq/chat-service/internal/security"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AuthHandler manages session and identity sync endpoints.
type AuthHandler struct {
	db     *gorm.DB
	jwtCfg config.JWTConfig
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, jwtCfg config.JWTConfig) *AuthHandler {
	return &AuthHandler{db: db, jwtCfg: jwtCfg}
}

// loginRequest defines the request body for password login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates a locally provisioned account and mints a session
// token. Accounts mirrored from the identity provider carry no password and
// authenticate through tokens minted upstream instead.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	username := strings.TrimSpace(body.Username)
	if username == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing username or password"})
		return
	}

	var user models.User
	errFind := h.db.WithContext(c.Request.Context()).
		Where("username = ?", username).
		First(&user).Error
	if errFind != nil || user.Password == "" || !security.CheckPassword(user.Password, body.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if !user.Active {
		c.JSON(http.StatusForbidden, gin.H{"error": "account disabled"})
		return
	}

	token, errMint := security.MintSessionToken(h.jwtCfg.Secret, h.jwtCfg.Expiry, user.ID, nil)
	if errMint != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "mint token failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":    token,
		"user_id":  user.ID,
		"username": user.Username,
	})
}

// syncUserEntry is one profile row mirrored from the identity provider.
type syncUserEntry struct {
	ExternalID string `json:"external_id"`
	Username   string `json:"username"`
	Name       string `json:"name"`
	Active     *bool  `json:"active"`
}

// syncUsersRequest defines the request body for identity sync.
type syncUsersRequest struct {
	Users []syncUserEntry `json:"users"`
}

// SyncUsers upserts local profile rows from the identity provider, keyed by
// external id. Admin only.
func (h *AuthHandler) SyncUsers(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	if !actor.IsAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	var body syncUsersRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if len(body.Users) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing users"})
		return
	}

	now := time.Now().UTC()
	synced := 0
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		for _, entry := range body.Users {
			externalID := strings.TrimSpace(entry.ExternalID)
			username := strings.TrimSpace(entry.Username)
			if externalID == "" || username == "" {
				continue
			}
			active := true
			if entry.Active != nil {
				active = *entry.Active
			}
			user := models.User{
				ExternalID: externalID,
				Username:   username,
				Name:       strings.TrimSpace(entry.Name),
				Active:     active,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			errUpsert := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "external_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"username", "name", "active", "updated_at"}),
			}).Create(&user).Error
			if errUpsert != nil {
				return errUpsert
			}
			synced++
		}
		return nil
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sync users failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"synced": synced})
}
