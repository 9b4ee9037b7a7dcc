package models

import "time"

// User is a local profile row mirrored from the external identity provider.
// Role claims (admin, moderator) are not stored here; they travel in the
// session token and are resolved per request.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ExternalID string `gorm:"type:text;not null;uniqueIndex"` // Identity provider user ID.
	Username   string `gorm:"type:text;not null;uniqueIndex"` // Unique login name.
	Name       string `gorm:"type:text"`                      // Display name.
	Password   string `gorm:"type:text"`                      // Bcrypt hash; set only for locally provisioned accounts.

	Active bool `gorm:"not null;default:true"` // Whether the user can sign in.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
