package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	dbutil "github.com/devoverflow-hq/chat-service/internal/db"
	"github.com/devoverflow-hq/chat-service/internal/models"
	"github.com/devoverflow-hq/chat-service/internal/realtime"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Actor identifies the authenticated caller of a chat operation together
// with its resolved role claims.
type Actor struct {
	UserID      uint64
	IsAdmin     bool
	IsModerator bool
}

// CanModerate reports whether the actor carries a moderation-capable role.
func (a Actor) CanModerate() bool {
	return a.IsAdmin || a.IsModerator
}

// Service implements the chat group, message, and moderation operations on
// top of the database. The publisher is a best-effort side channel: its
// failures never fail a Service call.
type Service struct {
	db        *gorm.DB
	publisher realtime.Publisher
}

// NewService constructs a Service. A nil publisher disables fan-out.
func NewService(conn *gorm.DB, publisher realtime.Publisher) *Service {
	if publisher == nil {
		publisher = realtime.NopPublisher{}
	}
	return &Service{db: conn, publisher: publisher}
}

// Pagination bounds shared by list operations.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// NormalizePage clamps page and pageSize into supported bounds.
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// validateTags trims, de-duplicates, and bounds-checks group tags.
func validateTags(tags []string) ([]string, error) {
	seen := make(map[string]struct{}, len(tags))
	normalized := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.ToLower(strings.TrimSpace(tag))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		normalized = append(normalized, trimmed)
	}
	if len(normalized) < models.MinGroupTags || len(normalized) > models.MaxGroupTags {
		return nil, fmt.Errorf("%w: tags must have between %d and %d entries",
			ErrValidation, models.MinGroupTags, models.MaxGroupTags)
	}
	return normalized, nil
}

// findGroup loads a group by id, mapping gorm's not-found to ErrNotFound.
// forUpdate takes a row lock inside a transaction on dialects that support it.
func (s *Service) findGroup(ctx context.Context, tx *gorm.DB, groupID uint64, forUpdate bool) (*models.ChatGroup, error) {
	if tx == nil {
		tx = s.db
	}
	q := tx.WithContext(ctx)
	if forUpdate && !dbutil.IsSQLite(tx) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var group models.ChatGroup
	if errFind := q.First(&group, groupID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("chat: query group: %w", errFind)
	}
	return &group, nil
}

// findUser loads a user by id, mapping gorm's not-found to ErrNotFound.
func (s *Service) findUser(ctx context.Context, userID uint64) (*models.User, error) {
	var user models.User
	if errFind := s.db.WithContext(ctx).First(&user, userID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("chat: query user: %w", errFind)
	}
	return &user, nil
}
