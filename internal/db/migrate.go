package db

import (
	"fmt"

	"github.com/devoverflow-hq/chat-service/internal/models"
	"gorm.io/gorm"
)

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	switch DialectName(conn) {
	case DialectSQLite:
		return migrateSQLite(conn)
	case DialectPostgres, "":
		return migratePostgres(conn)
	default:
		return fmt.Errorf("db: unsupported dialect: %s", DialectName(conn))
	}
}

// autoMigrateModels lists every persisted model in dependency order.
func autoMigrateModels(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&models.User{},
		&models.ChatGroup{},
		&models.ChatMessage{},
		&models.ChatGroupRead{},
		&models.ChatGroupBan{},
	)
}

// migratePostgres applies PostgreSQL-specific schema updates and indexes.
func migratePostgres(conn *gorm.DB) error {
	if errAutoMigrate := autoMigrateModels(conn); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	_ = conn.Exec(`CREATE EXTENSION IF NOT EXISTS pg_trgm`).Error

	// ddl defines an index or DDL statement to apply.
	type ddl struct {
		name string // Human-readable name for error reporting.
		sql  string // SQL to execute.
	}
	ddls := []ddl{
		{
			name: "idx_chat_messages_group_created_at_id",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_chat_messages_group_created_at_id
				ON chat_messages (chat_group_id, created_at DESC, id DESC)
			`,
		},
		{
			name: "idx_chat_messages_group_author",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_chat_messages_group_author
				ON chat_messages (chat_group_id, author_id)
			`,
		},
		{
			name: "idx_chat_groups_tags",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_chat_groups_tags
				ON chat_groups USING gin (tags)
			`,
		},
		{
			name: "idx_chat_groups_members",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_chat_groups_members
				ON chat_groups USING gin (members)
			`,
		},
		{
			name: "idx_chat_group_bans_expires_at",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_chat_group_bans_expires_at
				ON chat_group_bans (expires_at)
			`,
		},
	}
	for _, item := range ddls {
		if errDDL := conn.Exec(item.sql).Error; errDDL != nil {
			return fmt.Errorf("db: create index %s: %w", item.name, errDDL)
		}
	}

	// trgmIndex defines trigram and fallback index statements.
	type trgmIndex struct {
		name     string // Logical index name.
		trgmSQL  string // Trigram index SQL.
		lowerSQL string // Lowercase fallback index SQL.
	}
	trgmIndexes := []trgmIndex{
		{
			name: "idx_chat_groups_name",
			trgmSQL: `
				CREATE INDEX IF NOT EXISTS idx_chat_groups_name_trgm
				ON chat_groups USING gin (name gin_trgm_ops)
			`,
			lowerSQL: `
				CREATE INDEX IF NOT EXISTS idx_chat_groups_name_lower
				ON chat_groups (LOWER(name))
			`,
		},
		{
			name: "idx_chat_groups_description",
			trgmSQL: `
				CREATE INDEX IF NOT EXISTS idx_chat_groups_description_trgm
				ON chat_groups USING gin (description gin_trgm_ops)
			`,
			lowerSQL: `
				CREATE INDEX IF NOT EXISTS idx_chat_groups_description_lower
				ON chat_groups (LOWER(description))
			`,
		},
		{
			name: "idx_users_username",
			trgmSQL: `
				CREATE INDEX IF NOT EXISTS idx_users_username_trgm
				ON users USING gin (username gin_trgm_ops)
			`,
			lowerSQL: `
				CREATE INDEX IF NOT EXISTS idx_users_username_lower
				ON users (LOWER(username))
			`,
		},
	}
	for _, item := range trgmIndexes {
		if errIdx := conn.Exec(item.trgmSQL).Error; errIdx != nil {
			if errLower := conn.Exec(item.lowerSQL).Error; errLower != nil {
				return fmt.Errorf("db: create index %s: %w", item.name, errLower)
			}
		}
	}

	return nil
}

// migrateSQLite applies SQLite-specific schema updates and indexes.
func migrateSQLite(conn *gorm.DB) error {
	if errAutoMigrate := autoMigrateModels(conn); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	// ddl defines an index or DDL statement to apply.
	type ddl struct {
		name string // Human-readable name for error reporting.
		sql  string // SQL to execute.
	}
	ddls := []ddl{
		{
			name: "idx_chat_messages_group_created_at_id",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_chat_messages_group_created_at_id
				ON chat_messages (chat_group_id, created_at DESC, id DESC)
			`,
		},
		{
			name: "idx_chat_messages_group_author",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_chat_messages_group_author
				ON chat_messages (chat_group_id, author_id)
			`,
		},
		{
			name: "idx_chat_group_bans_expires_at",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_chat_group_bans_expires_at
				ON chat_group_bans (expires_at)
			`,
		},
	}
	for _, item := range ddls {
		if errDDL := conn.Exec(item.sql).Error; errDDL != nil {
			return fmt.Errorf("db: create index %s: %w", item.name, errDDL)
		}
	}

	return nil
}
