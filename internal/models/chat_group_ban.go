package models

import "time"

// ChatGroupBan is a time-bounded revocation of a user's ability to post in a
// specific group. A nil ExpiresAt means the ban is permanent. Expiry is lazy:
// a row whose ExpiresAt has passed reads as not banned, no sweeper removes it.
type ChatGroupBan struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ChatGroupID uint64     `gorm:"not null;uniqueIndex:idx_chat_group_bans_group_user"` // Group ID.
	UserID      uint64     `gorm:"not null;uniqueIndex:idx_chat_group_bans_group_user"` // Banned user ID.
	BannedByID  uint64     `gorm:"not null"`                                            // Acting moderator/admin user ID.
	BannedAt    time.Time  `gorm:"not null"`                                            // When the ban was applied.
	ExpiresAt   *time.Time // Expiry; nil means permanent.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// ActiveAt reports whether the ban is in force at the given time.
func (b *ChatGroupBan) ActiveAt(now time.Time) bool {
	if b == nil {
		return false
	}
	if b.ExpiresAt == nil {
		return true
	}
	return now.Before(*b.ExpiresAt)
}
