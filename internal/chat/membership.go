package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/devoverflow-hq/chat-service/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JoinGroup idempotently adds the user to the group's member set. Users with
// an active ban cannot rejoin until it expires.
func (s *Service) JoinGroup(ctx context.Context, groupID, userID uint64) error {
	if _, errUser := s.findUser(ctx, userID); errUser != nil {
		return errUser
	}

	banned, _, errBan := s.banState(ctx, groupID, userID, time.Now().UTC())
	if errBan != nil {
		return errBan
	}
	if banned {
		return ErrBanned
	}

	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		group, errFind := s.findGroup(ctx, tx, groupID, true)
		if errFind != nil {
			return errFind
		}
		if group.HasMember(userID) {
			return nil
		}
		members := append(group.MemberIDs(), userID)
		if errSet := group.SetMemberIDs(members); errSet != nil {
			return fmt.Errorf("chat: encode members: %w", errSet)
		}
		return tx.Model(&models.ChatGroup{}).Where("id = ?", groupID).
			Updates(map[string]any{"members": group.Members, "updated_at": time.Now().UTC()}).Error
	})
	if errTx != nil {
		return errTx
	}
	return nil
}

// LeaveGroup idempotently removes the user from the member set. The group's
// moderator cannot leave their own group.
func (s *Service) LeaveGroup(ctx context.Context, groupID, userID uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		group, errFind := s.findGroup(ctx, tx, groupID, true)
		if errFind != nil {
			return errFind
		}
		if group.ModeratorID == userID {
			return ErrForbidden
		}
		if !group.HasMember(userID) {
			return nil
		}
		members := make([]uint64, 0, len(group.MemberIDs()))
		for _, id := range group.MemberIDs() {
			if id != userID {
				members = append(members, id)
			}
		}
		if errSet := group.SetMemberIDs(members); errSet != nil {
			return fmt.Errorf("chat: encode members: %w", errSet)
		}
		return tx.Model(&models.ChatGroup{}).Where("id = ?", groupID).
			Updates(map[string]any{"members": group.Members, "updated_at": time.Now().UTC()}).Error
	})
}

// MarkRead upserts the caller's read marker for the group to now. Last write
// wins; repeated calls are harmless.
func (s *Service) MarkRead(ctx context.Context, groupID, userID uint64) error {
	if _, errFind := s.findGroup(ctx, nil, groupID, false); errFind != nil {
		return errFind
	}
	if _, errUser := s.findUser(ctx, userID); errUser != nil {
		return errUser
	}

	now := time.Now().UTC()
	marker := models.ChatGroupRead{
		ChatGroupID: groupID,
		UserID:      userID,
		LastReadAt:  now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if errUpsert := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_group_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_read_at", "updated_at"}),
	}).Create(&marker).Error; errUpsert != nil {
		return fmt.Errorf("chat: mark read: %w", errUpsert)
	}
	return nil
}

// UnreadCount counts group messages newer than the user's read marker. Users
// with no marker see every message as unread.
func (s *Service) UnreadCount(ctx context.Context, groupID, userID uint64) (int64, error) {
	q := s.db.WithContext(ctx).Model(&models.ChatMessage{}).Where("chat_group_id = ?", groupID)

	var marker models.ChatGroupRead
	errFind := s.db.WithContext(ctx).
		Where("chat_group_id = ? AND user_id = ?", groupID, userID).
		First(&marker).Error
	switch {
	case errFind == nil:
		q = q.Where("created_at > ?", marker.LastReadAt)
	case errors.Is(errFind, gorm.ErrRecordNotFound):
		// No marker: everything is unread.
	default:
		return 0, fmt.Errorf("chat: query read marker: %w", errFind)
	}

	var count int64
	if errCount := q.Count(&count).Error; errCount != nil {
		return 0, fmt.Errorf("chat: count unread: %w", errCount)
	}
	return count, nil
}
