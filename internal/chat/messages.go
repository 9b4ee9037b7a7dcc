package chat

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/devoverflow-hq/chat-service/internal/models"
	"github.com/devoverflow-hq/chat-service/internal/realtime"
	"gorm.io/gorm"
)

// MessagePayload is the broadcast body for new-message events.
type MessagePayload struct {
	MessageID   uint64    `json:"message_id"`
	ChatGroupID uint64    `json:"chat_group_id"`
	AuthorID    uint64    `json:"author_id"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

// DeletionPayload is the broadcast body for message-deleted events.
type DeletionPayload struct {
	MessageID uint64 `json:"message_id"`
}

// SendMessage validates, persists, and fans out a message. The author must be
// an active member of the group and not banned from it. The broadcast is best
// effort: it runs detached from the request and its failure is only logged.
func (s *Service) SendMessage(ctx context.Context, authorID, groupID uint64, content string) (*models.ChatMessage, error) {
	if length := utf8.RuneCountInString(content); length < models.MinMessageLength || length > models.MaxMessageLength {
		return nil, fmt.Errorf("%w: content must be between %d and %d characters",
			ErrValidation, models.MinMessageLength, models.MaxMessageLength)
	}

	group, errFind := s.findGroup(ctx, nil, groupID, false)
	if errFind != nil {
		return nil, errFind
	}
	if !group.HasMember(authorID) {
		return nil, ErrNotMember
	}

	banned, _, errBan := s.banState(ctx, groupID, authorID, time.Now().UTC())
	if errBan != nil {
		return nil, errBan
	}
	if banned {
		return nil, ErrBanned
	}

	message := models.ChatMessage{
		Content:     content,
		AuthorID:    authorID,
		ChatGroupID: groupID,
		CreatedAt:   time.Now().UTC(),
	}
	if errCreate := s.db.WithContext(ctx).Create(&message).Error; errCreate != nil {
		return nil, fmt.Errorf("chat: create message: %w", errCreate)
	}
	var author models.User
	if errAuthor := s.db.WithContext(ctx).First(&author, authorID).Error; errAuthor == nil {
		message.Author = &author
	}

	// Fan-out is detached from the request: the message is durable either way
	// and clients reconcile through the read API if they miss the push.
	go s.publisher.Publish(context.Background(), realtime.GroupChannel(groupID), realtime.EventNewMessage, MessagePayload{
		MessageID:   message.ID,
		ChatGroupID: message.ChatGroupID,
		AuthorID:    message.AuthorID,
		Content:     message.Content,
		CreatedAt:   message.CreatedAt,
	})

	return &message, nil
}

// ListMessages returns one page of a group's message stream in display order:
// the page is selected newest-first, then reversed so messages read
// oldest-first within it. Ties on created_at break by id.
func (s *Service) ListMessages(ctx context.Context, actor Actor, groupID uint64, page, pageSize int) ([]models.ChatMessage, int64, error) {
	group, errFind := s.findGroup(ctx, nil, groupID, false)
	if errFind != nil {
		return nil, 0, errFind
	}
	if !group.HasMember(actor.UserID) && !actor.IsAdmin {
		return nil, 0, ErrForbidden
	}

	page, pageSize = NormalizePage(page, pageSize)

	var total int64
	if errCount := s.db.WithContext(ctx).Model(&models.ChatMessage{}).
		Where("chat_group_id = ?", groupID).Count(&total).Error; errCount != nil {
		return nil, 0, fmt.Errorf("chat: count messages: %w", errCount)
	}

	var rows []models.ChatMessage
	if errList := s.db.WithContext(ctx).
		Where("chat_group_id = ?", groupID).
		Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Preload("Author").
		Find(&rows).Error; errList != nil {
		return nil, 0, fmt.Errorf("chat: list messages: %w", errList)
	}

	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, total, nil
}

// DeleteMessage removes a message. Only its author may delete it. Returns the
// owning group id for callers that need it; the deletion event is broadcast
// best effort after the row is gone.
func (s *Service) DeleteMessage(ctx context.Context, actorID, messageID uint64) (uint64, error) {
	var message models.ChatMessage
	if errFind := s.db.WithContext(ctx).First(&message, messageID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("chat: query message: %w", errFind)
	}
	if message.AuthorID != actorID {
		return 0, ErrForbidden
	}

	if errDelete := s.db.WithContext(ctx).Delete(&models.ChatMessage{}, messageID).Error; errDelete != nil {
		return 0, fmt.Errorf("chat: delete message: %w", errDelete)
	}

	s.publisher.Publish(ctx, realtime.GroupChannel(message.ChatGroupID), realtime.EventMessageDeleted, DeletionPayload{
		MessageID: messageID,
	})
	return message.ChatGroupID, nil
}
