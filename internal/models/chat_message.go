package models

import "time"

// Content length bounds enforced before a message is stored.
const (
	MinMessageLength = 1
	MaxMessageLength = 5000
)

// ChatMessage is a single message posted into a chat group. Messages are
// immutable once stored; they are removed only by their author or by the
// moderation engine when the author is banned from the group.
type ChatMessage struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Content     string `gorm:"type:text;not null"` // Message body, 1-5000 chars.
	AuthorID    uint64 `gorm:"not null;index"`     // Author user ID.
	ChatGroupID uint64 `gorm:"not null;index"`     // Owning group ID.

	Author    *User     `gorm:"foreignKey:AuthorID"`     // Populated author.
	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp; orders the stream.
}
