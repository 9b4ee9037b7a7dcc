package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/devoverflow-hq/chat-service/internal/chat"
	"github.com/gin-gonic/gin"
)

// GroupHandler manages the group directory endpoints.
type GroupHandler struct {
	svc *chat.Service
}

// NewGroupHandler constructs a GroupHandler.
func NewGroupHandler(svc *chat.Service) *GroupHandler {
	return &GroupHandler{svc: svc}
}

// createGroupRequest defines the request body for group creation.
type createGroupRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	ModeratorID uint64   `json:"moderator_id"`
}

// Create creates a new chat group owned by the caller.
func (h *GroupHandler) Create(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var body createGroupRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	group, errCreate := h.svc.CreateGroup(c.Request.Context(), actor, chat.CreateGroupParams{
		Name:        body.Name,
		Description: body.Description,
		Tags:        body.Tags,
		ModeratorID: body.ModeratorID,
	})
	if errCreate != nil {
		respondServiceError(c, errCreate, "create group failed")
		return
	}
	c.JSON(http.StatusCreated, groupJSON(chat.GroupSummary{Group: *group, IsMember: true}))
}

// List returns a page of the full group directory. Admin only.
func (h *GroupHandler) List(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	if !actor.IsAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	page, _ := strconv.Atoi(c.Query("page"))
	pageSize, _ := strconv.Atoi(c.Query("page_size"))
	rows, total, errList := h.svc.ListGroups(c.Request.Context(), chat.ListGroupsOptions{
		Tag:           strings.TrimSpace(c.Query("tag")),
		Query:         strings.TrimSpace(c.Query("q")),
		Page:          page,
		PageSize:      pageSize,
		CurrentUserID: actor.UserID,
	})
	if errList != nil {
		respondServiceError(c, errList, "list groups failed")
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, groupJSON(row))
	}
	c.JSON(http.StatusOK, gin.H{"groups": out, "total": total})
}

// ListMine returns the caller's groups with per-group unread counts.
func (h *GroupHandler) ListMine(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	rows, errList := h.svc.ListUserGroups(c.Request.Context(), actor.UserID)
	if errList != nil {
		respondServiceError(c, errList, "list groups failed")
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, groupJSON(row))
	}
	c.JSON(http.StatusOK, gin.H{"groups": out})
}

// Get returns a single group. Members and admins only.
func (h *GroupHandler) Get(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	groupID, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil || groupID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	summary, errGet := h.svc.GetGroup(c.Request.Context(), actor, groupID)
	if errGet != nil {
		respondServiceError(c, errGet, "get group failed")
		return
	}
	c.JSON(http.StatusOK, groupJSON(*summary))
}

// updateGroupRequest defines the request body for group updates. Absent
// fields are left untouched.
type updateGroupRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Tags        []string `json:"tags"`
}

// Update updates a group's name, description, or tags.
func (h *GroupHandler) Update(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	groupID, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil || groupID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}
	var body updateGroupRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	group, errUpdate := h.svc.UpdateGroup(c.Request.Context(), actor, groupID, chat.UpdateGroupParams{
		Name:        body.Name,
		Description: body.Description,
		Tags:        body.Tags,
	})
	if errUpdate != nil {
		respondServiceError(c, errUpdate, "update group failed")
		return
	}
	c.JSON(http.StatusOK, groupJSON(chat.GroupSummary{Group: *group, IsMember: group.HasMember(actor.UserID)}))
}

// Delete removes a group together with its messages, read markers, and bans.
func (h *GroupHandler) Delete(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	groupID, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil || groupID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	if errDelete := h.svc.DeleteGroup(c.Request.Context(), actor, groupID); errDelete != nil {
		respondServiceError(c, errDelete, "delete group failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
