package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/devoverflow-hq/chat-service/internal/chat"
	"github.com/devoverflow-hq/chat-service/internal/models"
	"github.com/gin-gonic/gin"
)

// ContextKeyActor is the context key the session middleware stores the
// authenticated actor under.
const ContextKeyActor = "chatActor"

// actorFrom reads the authenticated actor placed in the context by the
// session middleware.
func actorFrom(c *gin.Context) (chat.Actor, bool) {
	value, ok := c.Get(ContextKeyActor)
	if !ok {
		return chat.Actor{}, false
	}
	actor, ok := value.(chat.Actor)
	if !ok || actor.UserID == 0 {
		return chat.Actor{}, false
	}
	return actor, true
}

// requireActor aborts with 401 when no session actor is present.
func requireActor(c *gin.Context) (chat.Actor, bool) {
	actor, ok := actorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing session"})
	}
	return actor, ok
}

// respondServiceError maps chat service errors onto HTTP statuses.
func respondServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, chat.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, chat.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, chat.ErrBanned):
		c.JSON(http.StatusForbidden, gin.H{"error": "banned from group"})
	case errors.Is(err, chat.ErrNotMember):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a group member"})
	case errors.Is(err, chat.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusRequestTimeout, gin.H{"error": "request timed out"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

// groupJSON serializes a group summary for API responses.
func groupJSON(row chat.GroupSummary) gin.H {
	return gin.H{
		"id":           row.Group.ID,
		"name":         row.Group.Name,
		"description":  row.Group.Description,
		"tags":         row.Group.TagList(),
		"moderator_id": row.Group.ModeratorID,
		"members":      row.Group.MemberIDs(),
		"is_member":    row.IsMember,
		"unread_count": row.UnreadCount,
		"created_at":   row.Group.CreatedAt,
		"updated_at":   row.Group.UpdatedAt,
	}
}

// messageJSON serializes a message, including the author profile when loaded.
func messageJSON(row models.ChatMessage) gin.H {
	out := gin.H{
		"id":            row.ID,
		"chat_group_id": row.ChatGroupID,
		"author_id":     row.AuthorID,
		"content":       row.Content,
		"created_at":    row.CreatedAt,
	}
	if row.Author != nil {
		out["author"] = gin.H{
			"id":       row.Author.ID,
			"username": row.Author.Username,
			"name":     row.Author.Name,
		}
	}
	return out
}
