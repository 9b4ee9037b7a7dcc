package models

import "time"

// ChatGroupRead tracks per-user read progress in a group. One row per
// (group, user) pair; upserted on every mark-read and used to derive unread
// message counts.
type ChatGroupRead struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ChatGroupID uint64    `gorm:"not null;uniqueIndex:idx_chat_group_reads_group_user"` // Group ID.
	UserID      uint64    `gorm:"not null;uniqueIndex:idx_chat_group_reads_group_user"` // User ID.
	LastReadAt  time.Time `gorm:"not null"`                                             // Last mark-read timestamp.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
