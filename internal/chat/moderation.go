package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/devoverflow-hq/chat-service/internal/models"
	"github.com/devoverflow-hq/chat-service/internal/realtime"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BanPayload is the broadcast body for user-banned events.
type BanPayload struct {
	UserID    uint64     `json:"user_id"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// BanOutcome reports what a ban applied.
type BanOutcome struct {
	Ban             models.ChatGroupBan
	DeletedMessages int
}

// BanUser bans a user from a group and retroactively deletes every message
// they posted in it. The ban upsert and the bulk deletion commit as one
// transaction; only after commit is each deletion broadcast, followed by a
// single user-banned event. Duplicate bans refresh the expiry.
//
// Banning the group's own moderator requires an admin actor.
func (s *Service) BanUser(ctx context.Context, actor Actor, groupID, targetID uint64, duration time.Duration) (*BanOutcome, error) {
	if !actor.CanModerate() {
		return nil, ErrForbidden
	}

	group, errFind := s.findGroup(ctx, nil, groupID, false)
	if errFind != nil {
		return nil, errFind
	}
	if _, errUser := s.findUser(ctx, targetID); errUser != nil {
		return nil, errUser
	}
	if targetID == group.ModeratorID && !actor.IsAdmin {
		return nil, ErrForbidden
	}

	now := time.Now().UTC()
	var expiresAt *time.Time
	if duration > 0 {
		t := now.Add(duration)
		expiresAt = &t
	}

	ban := models.ChatGroupBan{
		ChatGroupID: groupID,
		UserID:      targetID,
		BannedByID:  actor.UserID,
		BannedAt:    now,
		ExpiresAt:   expiresAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var deletedIDs []uint64
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errUpsert := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chat_group_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"banned_by_id", "banned_at", "expires_at", "updated_at"}),
		}).Create(&ban).Error; errUpsert != nil {
			return fmt.Errorf("upsert ban: %w", errUpsert)
		}

		if errIDs := tx.Model(&models.ChatMessage{}).
			Where("chat_group_id = ? AND author_id = ?", groupID, targetID).
			Pluck("id", &deletedIDs).Error; errIDs != nil {
			return fmt.Errorf("collect message ids: %w", errIDs)
		}
		if len(deletedIDs) == 0 {
			return nil
		}
		if errDelete := tx.Where("chat_group_id = ? AND author_id = ?", groupID, targetID).
			Delete(&models.ChatMessage{}).Error; errDelete != nil {
			return fmt.Errorf("delete messages: %w", errDelete)
		}
		return nil
	})
	if errTx != nil {
		return nil, fmt.Errorf("chat: ban user: %w", errTx)
	}

	// Broadcasts run only after the transaction is durable, so a client
	// reacting to a deletion event can no longer read the deleted message.
	channel := realtime.GroupChannel(groupID)
	for _, messageID := range deletedIDs {
		s.publisher.Publish(ctx, channel, realtime.EventMessageDeleted, DeletionPayload{MessageID: messageID})
	}
	s.publisher.Publish(ctx, channel, realtime.EventUserBanned, BanPayload{UserID: targetID, ExpiresAt: expiresAt})

	return &BanOutcome{Ban: ban, DeletedMessages: len(deletedIDs)}, nil
}

// BanStatus describes a user's ban state in a group after lazy expiry.
type BanStatus struct {
	Banned    bool       `json:"banned"`
	BannedAt  *time.Time `json:"banned_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// UserBanStatus reports whether the user is currently banned from the group.
// An expired ban reads as not banned; no unban write happens.
func (s *Service) UserBanStatus(ctx context.Context, groupID, userID uint64) (BanStatus, error) {
	if _, errFind := s.findGroup(ctx, nil, groupID, false); errFind != nil {
		return BanStatus{}, errFind
	}
	banned, ban, errBan := s.banState(ctx, groupID, userID, time.Now().UTC())
	if errBan != nil {
		return BanStatus{}, errBan
	}
	if !banned {
		return BanStatus{}, nil
	}
	bannedAt := ban.BannedAt
	return BanStatus{Banned: true, BannedAt: &bannedAt, ExpiresAt: ban.ExpiresAt}, nil
}

// banState loads the ban row for (group, user) and evaluates lazy expiry at
// the given instant.
func (s *Service) banState(ctx context.Context, groupID, userID uint64, now time.Time) (bool, *models.ChatGroupBan, error) {
	var ban models.ChatGroupBan
	errFind := s.db.WithContext(ctx).
		Where("chat_group_id = ? AND user_id = ?", groupID, userID).
		First(&ban).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return false, nil, nil
		}
		return false, nil, fmt.Errorf("chat: query ban: %w", errFind)
	}
	return ban.ActiveAt(now), &ban, nil
}
