package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Tag count bounds enforced on every group create and update.
const (
	MinGroupTags = 1
	MaxGroupTags = 4
)

// ChatGroup is a named chat room scoped to one to four topic tags and owned
// by a moderator. The moderator is always part of the member set.
type ChatGroup struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name        string         `gorm:"type:text;not null;uniqueIndex"` // Display name.
	Description string         `gorm:"type:text"`                      // Optional description.
	Tags        datatypes.JSON `gorm:"not null"`                       // Tag slugs, 1-4 entries.
	ModeratorID uint64         `gorm:"not null;index"`                 // Owning moderator user ID.
	Members     datatypes.JSON `gorm:"not null"`                       // Member user IDs, includes ModeratorID.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TagList decodes the stored tag slugs.
func (g *ChatGroup) TagList() []string {
	var tags []string
	if len(g.Tags) == 0 {
		return tags
	}
	_ = json.Unmarshal(g.Tags, &tags)
	return tags
}

// SetTagList encodes tag slugs into the JSON column.
func (g *ChatGroup) SetTagList(tags []string) error {
	data, err := json.Marshal(tags)
	if err != nil {
		return err
	}
	g.Tags = datatypes.JSON(data)
	return nil
}

// MemberIDs decodes the stored member user IDs.
func (g *ChatGroup) MemberIDs() []uint64 {
	var ids []uint64
	if len(g.Members) == 0 {
		return ids
	}
	_ = json.Unmarshal(g.Members, &ids)
	return ids
}

// SetMemberIDs encodes member user IDs into the JSON column.
func (g *ChatGroup) SetMemberIDs(ids []uint64) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	g.Members = datatypes.JSON(data)
	return nil
}

// HasMember reports whether the user is in the member set.
func (g *ChatGroup) HasMember(userID uint64) bool {
	for _, id := range g.MemberIDs() {
		if id == userID {
			return true
		}
	}
	return false
}
