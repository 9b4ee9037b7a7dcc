package chatapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/devoverflow-hq/chat-service/internal/chat"
	"github.com/devoverflow-hq/chat-service/internal/config"
	"github.com/devoverflow-hq/chat-service/internal/db"
	"github.com/devoverflow-hq/chat-service/internal/models"
	"github.com/devoverflow-hq/chat-service/internal/ratelimit"
	"github.com/devoverflow-hq/chat-service/internal/realtime"
	"github.com/devoverflow-hq/chat-service/internal/security"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	testJWTSecret = "chat-test-secret"
	testAppKey    = "app-key"
	testAppSecret = "app-secret"
)

func newTestRouter(t *testing.T, messageRateLimit int) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := "file:" + filepath.Join(t.TempDir(), "chatapi-test.db")
	conn, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	svc := chat.NewService(conn, realtime.NopPublisher{})
	jwtCfg := config.JWTConfig{Secret: testJWTSecret, Expiry: time.Hour}
	chatCfg := config.ChatConfig{
		MessageRateLimit:  messageRateLimit,
		MessageRateWindow: 60,
		SendTimeout:       30 * time.Second,
	}
	authorizer := realtime.NewAuthorizer(testAppKey, testAppSecret)
	limiter := ratelimit.NewManager(ratelimit.Config{}, nil, nil)

	engine := gin.New()
	RegisterChatRoutes(engine, conn, svc, jwtCfg, chatCfg, authorizer, limiter)
	return engine, conn
}

func seedUser(t *testing.T, conn *gorm.DB, username, password string) models.User {
	t.Helper()
	user := models.User{
		ExternalID: "ext-" + username,
		Username:   username,
		Name:       username,
		Active:     true,
	}
	if password != "" {
		hash, errHash := security.HashPassword(password)
		if errHash != nil {
			t.Fatalf("hash password: %v", errHash)
		}
		user.Password = hash
	}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("seed user %s: %v", username, errCreate)
	}
	return user
}

func sessionToken(t *testing.T, userID uint64, roles ...string) string {
	t.Helper()
	token, errMint := security.MintSessionToken(testJWTSecret, time.Hour, userID, roles)
	if errMint != nil {
		t.Fatalf("mint token: %v", errMint)
	}
	return token
}

func doJSON(t *testing.T, engine *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, errMarshal := json.Marshal(body)
		if errMarshal != nil {
			t.Fatalf("marshal body: %v", errMarshal)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if errDecode := json.Unmarshal(w.Body.Bytes(), &out); errDecode != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), errDecode)
	}
	return out
}

func TestHealthz(t *testing.T) {
	engine, _ := newTestRouter(t, 0)
	w := doJSON(t, engine, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRoutesRequireSession(t *testing.T) {
	engine, _ := newTestRouter(t, 0)

	w := doJSON(t, engine, http.MethodGet, "/v0/chat/groups/mine", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing header: expected 401, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v0/chat/groups/mine", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("non-bearer header: expected 401, got %d", rec.Code)
	}

	w = doJSON(t, engine, http.MethodGet, "/v0/chat/groups/mine", "not-a-jwt", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: expected 401, got %d", w.Code)
	}
}

func TestSessionRejectsUnknownAndDisabledUsers(t *testing.T) {
	engine, conn := newTestRouter(t, 0)

	w := doJSON(t, engine, http.MethodGet, "/v0/chat/groups/mine", sessionToken(t, 999), nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unknown user: expected 401, got %d", w.Code)
	}

	user := seedUser(t, conn, "sleeper", "")
	if errUpdate := conn.Model(&models.User{}).Where("id = ?", user.ID).Update("active", false).Error; errUpdate != nil {
		t.Fatalf("disable user: %v", errUpdate)
	}
	w = doJSON(t, engine, http.MethodGet, "/v0/chat/groups/mine", sessionToken(t, user.ID), nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("disabled user: expected 403, got %d", w.Code)
	}
}

func TestLogin(t *testing.T) {
	engine, conn := newTestRouter(t, 0)
	user := seedUser(t, conn, "alice", "open sesame")

	w := doJSON(t, engine, http.MethodPost, "/v0/chat/login", "", gin.H{
		"username": "alice",
		"password": "open sesame",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("expected session token in response")
	}
	claims, errParse := security.ParseSessionToken(testJWTSecret, token)
	if errParse != nil {
		t.Fatalf("parse minted token: %v", errParse)
	}
	if claims.UserID != user.ID {
		t.Fatalf("expected user id %d in claims, got %d", user.ID, claims.UserID)
	}

	w = doJSON(t, engine, http.MethodPost, "/v0/chat/login", "", gin.H{
		"username": "alice",
		"password": "wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad password: expected 401, got %d", w.Code)
	}
}

func TestGroupLifecycleOverHTTP(t *testing.T) {
	engine, conn := newTestRouter(t, 0)
	mod := seedUser(t, conn, "mod", "")
	member := seedUser(t, conn, "member", "")
	modToken := sessionToken(t, mod.ID, security.RoleModerator)
	memberToken := sessionToken(t, member.ID)

	w := doJSON(t, engine, http.MethodPost, "/v0/chat/groups", modToken, gin.H{
		"name": "announcements",
		"tags": []string{"news"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create group: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	created := decodeBody(t, w)
	groupID := uint64(created["id"].(float64))

	// Plain users cannot create groups.
	w = doJSON(t, engine, http.MethodPost, "/v0/chat/groups", memberToken, gin.H{
		"name": "rogue",
		"tags": []string{"x"},
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("create by plain user: expected 403, got %d", w.Code)
	}

	// Non-members cannot read the group.
	path := fmt.Sprintf("/v0/chat/groups/%d", groupID)
	w = doJSON(t, engine, http.MethodGet, path, memberToken, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("get before join: expected 403, got %d", w.Code)
	}

	w = doJSON(t, engine, http.MethodPost, path+"/join", memberToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("join: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	w = doJSON(t, engine, http.MethodGet, path, memberToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get after join: expected 200, got %d", w.Code)
	}
	detail := decodeBody(t, w)
	if isMember, _ := detail["is_member"].(bool); !isMember {
		t.Fatalf("expected membership flag in response")
	}

	// The full directory stays admin only.
	w = doJSON(t, engine, http.MethodGet, "/v0/chat/groups", memberToken, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("directory as member: expected 403, got %d", w.Code)
	}
	adminToken := sessionToken(t, member.ID, security.RoleAdmin)
	w = doJSON(t, engine, http.MethodGet, "/v0/chat/groups?tag=news", adminToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("directory as admin: expected 200, got %d", w.Code)
	}
}

func TestMessagePipelineOverHTTP(t *testing.T) {
	engine, conn := newTestRouter(t, 2)
	mod := seedUser(t, conn, "mod", "")
	modToken := sessionToken(t, mod.ID, security.RoleModerator)

	w := doJSON(t, engine, http.MethodPost, "/v0/chat/groups", modToken, gin.H{
		"name": "chatter",
		"tags": []string{"misc"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create group: expected 201, got %d", w.Code)
	}
	groupID := uint64(decodeBody(t, w)["id"].(float64))

	send := func() *httptest.ResponseRecorder {
		return doJSON(t, engine, http.MethodPost, "/v0/chat/messages", modToken, gin.H{
			"chat_group_id": groupID,
			"content":       "hello",
		})
	}

	first := send()
	if first.Code != http.StatusCreated {
		t.Fatalf("first send: expected 201, got %d: %s", first.Code, first.Body.String())
	}
	messageID := uint64(decodeBody(t, first)["id"].(float64))
	if second := send(); second.Code != http.StatusCreated {
		t.Fatalf("second send: expected 201, got %d", second.Code)
	}

	third := send()
	if third.Code != http.StatusTooManyRequests {
		t.Fatalf("third send: expected 429, got %d", third.Code)
	}
	if third.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header on 429")
	}

	// Over-length content is rejected before any storage.
	w = doJSON(t, engine, http.MethodPost, "/v0/chat/messages", modToken, gin.H{
		"chat_group_id": groupID,
		"content":       strings.Repeat("a", models.MaxMessageLength+1),
	})
	if w.Code != http.StatusBadRequest && w.Code != http.StatusTooManyRequests {
		t.Fatalf("oversized send: expected 4xx, got %d", w.Code)
	}

	w = doJSON(t, engine, http.MethodGet, fmt.Sprintf("/v0/chat/messages?chat_group_id=%d", groupID), modToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list messages: expected 200, got %d", w.Code)
	}
	listed := decodeBody(t, w)
	if total, _ := listed["total"].(float64); total != 2 {
		t.Fatalf("expected 2 stored messages, got %v", listed["total"])
	}

	// Only the author may delete.
	other := seedUser(t, conn, "other", "")
	w = doJSON(t, engine, http.MethodDelete, fmt.Sprintf("/v0/chat/messages/%d", messageID), sessionToken(t, other.ID), nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("delete by non-author: expected 403, got %d", w.Code)
	}
	w = doJSON(t, engine, http.MethodDelete, fmt.Sprintf("/v0/chat/messages/%d", messageID), modToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete by author: expected 200, got %d", w.Code)
	}
}

func TestSendMessageTimesOutWith408(t *testing.T) {
	gin.SetMode(gin.TestMode)

	dsn := "file:" + filepath.Join(t.TempDir(), "chatapi-timeout-test.db")
	conn, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	svc := chat.NewService(conn, realtime.NopPublisher{})
	jwtCfg := config.JWTConfig{Secret: testJWTSecret, Expiry: time.Hour}
	// A budget no database call can meet forces the deadline path.
	chatCfg := config.ChatConfig{MessageRateWindow: 60, SendTimeout: time.Nanosecond}
	engine := gin.New()
	RegisterChatRoutes(engine, conn, svc, jwtCfg, chatCfg, realtime.NewAuthorizer(testAppKey, testAppSecret), ratelimit.NewManager(ratelimit.Config{}, nil, nil))

	mod := seedUser(t, conn, "mod", "")
	modToken := sessionToken(t, mod.ID, security.RoleModerator)
	w := doJSON(t, engine, http.MethodPost, "/v0/chat/groups", modToken, gin.H{
		"name": "hurried",
		"tags": []string{"fast"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create group: expected 201, got %d", w.Code)
	}
	groupID := uint64(decodeBody(t, w)["id"].(float64))

	w = doJSON(t, engine, http.MethodPost, "/v0/chat/messages", modToken, gin.H{
		"chat_group_id": groupID,
		"content":       "never lands",
	})
	if w.Code != http.StatusRequestTimeout {
		t.Fatalf("expected 408, got %d: %s", w.Code, w.Body.String())
	}

	var count int64
	if errCount := conn.Model(&models.ChatMessage{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count messages: %v", errCount)
	}
	if count != 0 {
		t.Fatalf("expected no message stored past the deadline, got %d", count)
	}
}

func TestBanOverHTTP(t *testing.T) {
	engine, conn := newTestRouter(t, 0)
	mod := seedUser(t, conn, "mod", "")
	target := seedUser(t, conn, "target", "")
	modToken := sessionToken(t, mod.ID, security.RoleModerator)
	targetToken := sessionToken(t, target.ID)

	w := doJSON(t, engine, http.MethodPost, "/v0/chat/groups", modToken, gin.H{
		"name": "strict",
		"tags": []string{"rules"},
	})
	groupID := uint64(decodeBody(t, w)["id"].(float64))

	w = doJSON(t, engine, http.MethodPost, fmt.Sprintf("/v0/chat/groups/%d/join", groupID), targetToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("join: expected 200, got %d", w.Code)
	}
	w = doJSON(t, engine, http.MethodPost, "/v0/chat/messages", targetToken, gin.H{
		"chat_group_id": groupID,
		"content":       "about to go",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("send: expected 201, got %d", w.Code)
	}

	// Plain users cannot ban.
	w = doJSON(t, engine, http.MethodPost, "/v0/chat/groups/ban", targetToken, gin.H{
		"chat_group_id": groupID,
		"user_id":       mod.ID,
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("ban by plain user: expected 403, got %d", w.Code)
	}

	w = doJSON(t, engine, http.MethodPost, "/v0/chat/groups/ban", modToken, gin.H{
		"chat_group_id":    groupID,
		"user_id":          target.ID,
		"duration_seconds": 3600,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("ban: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	banned := decodeBody(t, w)
	if deleted, _ := banned["deleted_messages"].(float64); deleted != 1 {
		t.Fatalf("expected 1 deleted message, got %v", banned["deleted_messages"])
	}

	w = doJSON(t, engine, http.MethodGet, fmt.Sprintf("/v0/chat/ban-status?chat_group_id=%d", groupID), targetToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("ban-status: expected 200, got %d", w.Code)
	}
	status := decodeBody(t, w)
	if isBanned, _ := status["banned"].(bool); !isBanned {
		t.Fatalf("expected banned=true, got %v", status)
	}

	// A banned member can no longer post.
	w = doJSON(t, engine, http.MethodPost, "/v0/chat/messages", targetToken, gin.H{
		"chat_group_id": groupID,
		"content":       "still here?",
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("send while banned: expected 403, got %d", w.Code)
	}
}

func TestRealtimeAuthOverHTTP(t *testing.T) {
	engine, conn := newTestRouter(t, 0)
	mod := seedUser(t, conn, "mod", "")
	stranger := seedUser(t, conn, "stranger", "")
	modToken := sessionToken(t, mod.ID, security.RoleModerator)

	w := doJSON(t, engine, http.MethodPost, "/v0/chat/groups", modToken, gin.H{
		"name": "live",
		"tags": []string{"events"},
	})
	groupID := uint64(decodeBody(t, w)["id"].(float64))
	channel := realtime.GroupChannel(groupID)

	w = doJSON(t, engine, http.MethodPost, "/v0/realtime/auth", modToken, gin.H{
		"socket_id":    "123.456",
		"channel_name": channel,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("member auth: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	auth, _ := body["auth"].(string)
	if !strings.HasPrefix(auth, testAppKey+":") {
		t.Fatalf("expected auth prefixed with app key, got %q", auth)
	}

	// Presence channels return signed channel data.
	w = doJSON(t, engine, http.MethodPost, "/v0/realtime/auth", modToken, gin.H{
		"socket_id":    "123.456",
		"channel_name": fmt.Sprintf("presence-group-%d", groupID),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("presence auth: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	presence := decodeBody(t, w)
	if data, _ := presence["channel_data"].(string); data == "" {
		t.Fatalf("expected channel_data on presence auth")
	}

	// Group channels are members only.
	w = doJSON(t, engine, http.MethodPost, "/v0/realtime/auth", sessionToken(t, stranger.ID), gin.H{
		"socket_id":    "123.456",
		"channel_name": channel,
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("stranger auth: expected 403, got %d", w.Code)
	}

	w = doJSON(t, engine, http.MethodPost, "/v0/realtime/auth", modToken, gin.H{
		"socket_id":    "123.456",
		"channel_name": "bad channel name",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid channel: expected 400, got %d", w.Code)
	}
}

func TestSyncUsersOverHTTP(t *testing.T) {
	engine, conn := newTestRouter(t, 0)
	admin := seedUser(t, conn, "admin", "")
	adminToken := sessionToken(t, admin.ID, security.RoleAdmin)

	w := doJSON(t, engine, http.MethodPost, "/v0/chat/users/sync", sessionToken(t, admin.ID), gin.H{
		"users": []gin.H{{"external_id": "u-1", "username": "newbie"}},
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("sync by non-admin: expected 403, got %d", w.Code)
	}

	w = doJSON(t, engine, http.MethodPost, "/v0/chat/users/sync", adminToken, gin.H{
		"users": []gin.H{
			{"external_id": "u-1", "username": "newbie", "name": "New Person"},
			{"external_id": "u-2", "username": "second"},
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("sync: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if synced, _ := decodeBody(t, w)["synced"].(float64); synced != 2 {
		t.Fatalf("expected 2 synced, got %v", synced)
	}

	// Re-sync updates in place instead of duplicating.
	w = doJSON(t, engine, http.MethodPost, "/v0/chat/users/sync", adminToken, gin.H{
		"users": []gin.H{{"external_id": "u-1", "username": "renamed"}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("re-sync: expected 200, got %d", w.Code)
	}
	var user models.User
	if errFind := conn.Where("external_id = ?", "u-1").First(&user).Error; errFind != nil {
		t.Fatalf("load synced user: %v", errFind)
	}
	if user.Username != "renamed" {
		t.Fatalf("expected upserted username, got %q", user.Username)
	}
	var count int64
	if errCount := conn.Model(&models.User{}).Where("external_id = ?", "u-1").Count(&count).Error; errCount != nil {
		t.Fatalf("count synced users: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("expected single row per external id, got %d", count)
	}
}
