package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	dbutil "github.com/devoverflow-hq/chat-service/internal/db"
	"github.com/devoverflow-hq/chat-service/internal/models"
	"gorm.io/gorm"
)

// CreateGroupParams carries validated-on-entry inputs for group creation.
type CreateGroupParams struct {
	Name        string
	Description string
	Tags        []string
	// ModeratorID overrides the owning moderator; zero means the actor
	// moderates the group themselves. Only admins may set it.
	ModeratorID uint64
}

// CreateGroup creates a chat group owned by a moderator, with the moderator
// as the sole initial member.
func (s *Service) CreateGroup(ctx context.Context, actor Actor, params CreateGroupParams) (*models.ChatGroup, error) {
	if !actor.CanModerate() {
		return nil, ErrForbidden
	}

	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	tags, errTags := validateTags(params.Tags)
	if errTags != nil {
		return nil, errTags
	}

	moderatorID := params.ModeratorID
	if moderatorID == 0 {
		moderatorID = actor.UserID
	}
	if moderatorID != actor.UserID && !actor.IsAdmin {
		return nil, ErrForbidden
	}
	if _, errUser := s.findUser(ctx, moderatorID); errUser != nil {
		return nil, errUser
	}

	now := time.Now().UTC()
	group := models.ChatGroup{
		Name:        name,
		Description: strings.TrimSpace(params.Description),
		ModeratorID: moderatorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if errTagsSet := group.SetTagList(tags); errTagsSet != nil {
		return nil, fmt.Errorf("chat: encode tags: %w", errTagsSet)
	}
	if errMembers := group.SetMemberIDs([]uint64{moderatorID}); errMembers != nil {
		return nil, fmt.Errorf("chat: encode members: %w", errMembers)
	}

	if errCreate := s.db.WithContext(ctx).Create(&group).Error; errCreate != nil {
		if dbutil.IsUniqueViolation(errCreate) {
			return nil, fmt.Errorf("%w: group name already taken", ErrValidation)
		}
		return nil, fmt.Errorf("chat: create group: %w", errCreate)
	}
	return &group, nil
}

// UpdateGroupParams carries inputs for group updates. Nil fields are left
// unchanged.
type UpdateGroupParams struct {
	Name        *string
	Description *string
	Tags        []string
}

// UpdateGroup updates a group's name, description, or tags. Only the group's
// moderator or an admin may update it.
func (s *Service) UpdateGroup(ctx context.Context, actor Actor, groupID uint64, params UpdateGroupParams) (*models.ChatGroup, error) {
	group, errFind := s.findGroup(ctx, nil, groupID, false)
	if errFind != nil {
		return nil, errFind
	}
	if group.ModeratorID != actor.UserID && !actor.IsAdmin {
		return nil, ErrForbidden
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if params.Name != nil {
		name := strings.TrimSpace(*params.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is required", ErrValidation)
		}
		updates["name"] = name
		group.Name = name
	}
	if params.Description != nil {
		description := strings.TrimSpace(*params.Description)
		updates["description"] = description
		group.Description = description
	}
	if params.Tags != nil {
		tags, errTags := validateTags(params.Tags)
		if errTags != nil {
			return nil, errTags
		}
		if errSet := group.SetTagList(tags); errSet != nil {
			return nil, fmt.Errorf("chat: encode tags: %w", errSet)
		}
		updates["tags"] = group.Tags
	}

	if errUpdate := s.db.WithContext(ctx).Model(&models.ChatGroup{}).
		Where("id = ?", groupID).Updates(updates).Error; errUpdate != nil {
		if dbutil.IsUniqueViolation(errUpdate) {
			return nil, fmt.Errorf("%w: group name already taken", ErrValidation)
		}
		return nil, fmt.Errorf("chat: update group: %w", errUpdate)
	}
	return group, nil
}

// DeleteGroup removes a group and cascades its messages, read markers, and
// bans in one transaction. Only the group's moderator or an admin may delete.
func (s *Service) DeleteGroup(ctx context.Context, actor Actor, groupID uint64) error {
	group, errFind := s.findGroup(ctx, nil, groupID, false)
	if errFind != nil {
		return errFind
	}
	if group.ModeratorID != actor.UserID && !actor.IsAdmin {
		return ErrForbidden
	}

	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errMsg := tx.Where("chat_group_id = ?", groupID).Delete(&models.ChatMessage{}).Error; errMsg != nil {
			return errMsg
		}
		if errRead := tx.Where("chat_group_id = ?", groupID).Delete(&models.ChatGroupRead{}).Error; errRead != nil {
			return errRead
		}
		if errBan := tx.Where("chat_group_id = ?", groupID).Delete(&models.ChatGroupBan{}).Error; errBan != nil {
			return errBan
		}
		return tx.Delete(&models.ChatGroup{}, groupID).Error
	})
	if errTx != nil {
		return fmt.Errorf("chat: delete group: %w", errTx)
	}
	return nil
}

// GroupSummary is a listing row: the group plus caller-relative flags.
type GroupSummary struct {
	Group       models.ChatGroup
	IsMember    bool
	UnreadCount int64
}

// ListGroupsOptions filters and paginates the group directory.
type ListGroupsOptions struct {
	Tag      string // Exact tag filter.
	Query    string // Case-insensitive substring over name and description.
	Page     int
	PageSize int
	// CurrentUserID resolves the IsMember flag; zero leaves it false.
	CurrentUserID uint64
}

// ListGroups returns a page of the group directory. Full-directory listing is
// admin-only; callers enforce that at the route boundary.
func (s *Service) ListGroups(ctx context.Context, opts ListGroupsOptions) ([]GroupSummary, int64, error) {
	page, pageSize := NormalizePage(opts.Page, opts.PageSize)

	q := s.db.WithContext(ctx).Model(&models.ChatGroup{})
	if tag := strings.ToLower(strings.TrimSpace(opts.Tag)); tag != "" {
		q = q.Where(dbutil.JSONArrayContainsExpr(s.db, "tags"), dbutil.JSONArrayContainsString(s.db, tag))
	}
	if query := strings.TrimSpace(opts.Query); query != "" {
		pattern := dbutil.NormalizeLikePattern(s.db, "%"+query+"%")
		q = q.Where(
			dbutil.CaseInsensitiveLikeExpr(s.db, "name")+" OR "+dbutil.CaseInsensitiveLikeExpr(s.db, "description"),
			pattern, pattern,
		)
	}

	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		return nil, 0, fmt.Errorf("chat: count groups: %w", errCount)
	}

	var rows []models.ChatGroup
	if errFind := q.Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&rows).Error; errFind != nil {
		return nil, 0, fmt.Errorf("chat: list groups: %w", errFind)
	}

	out := make([]GroupSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, GroupSummary{
			Group:    row,
			IsMember: opts.CurrentUserID != 0 && row.HasMember(opts.CurrentUserID),
		})
	}
	return out, total, nil
}

// ListUserGroups returns the groups the user belongs to, each with the
// user's unread message count.
func (s *Service) ListUserGroups(ctx context.Context, userID uint64) ([]GroupSummary, error) {
	var rows []models.ChatGroup
	if errFind := s.db.WithContext(ctx).
		Where(dbutil.JSONArrayContainsExpr(s.db, "members"), dbutil.JSONArrayContainsID(s.db, userID)).
		Order("updated_at DESC, id DESC").
		Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("chat: list user groups: %w", errFind)
	}

	out := make([]GroupSummary, 0, len(rows))
	for _, row := range rows {
		unread, errUnread := s.UnreadCount(ctx, row.ID, userID)
		if errUnread != nil {
			return nil, errUnread
		}
		out = append(out, GroupSummary{Group: row, IsMember: true, UnreadCount: unread})
	}
	return out, nil
}

// GetGroup loads a single group. Non-admin callers must be members.
func (s *Service) GetGroup(ctx context.Context, actor Actor, groupID uint64) (*GroupSummary, error) {
	group, errFind := s.findGroup(ctx, nil, groupID, false)
	if errFind != nil {
		return nil, errFind
	}
	isMember := group.HasMember(actor.UserID)
	if !isMember && !actor.IsAdmin {
		return nil, ErrForbidden
	}
	return &GroupSummary{Group: *group, IsMember: isMember}, nil
}
