package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	db *sql.DB
}

// GuildSettings is the per-guild policy row. One row per guild, created
// lazily with defaults on first use and only ever changed through explicit
// configuration commands.
type GuildSettings struct {
	GuildID             string
	Prefix              string
	TicketCategoryID    string
	TicketLogChannelID  string
	ModLogChannelID     string
	WelcomeChannelID    string
	WelcomeMessage      string
	ModeratorRoleID     string
	SupportRoleID       string
	AutoModEnabled      bool
	AutoModSpamLimit    int
	AutoModCapsPercent  int
	AutoModLinksEnabled bool
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *Store) Migrate() error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}

	var files []string
	for _, entry := range entries {
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := migrations.ReadFile(path.Join("migrations", file))
		if err != nil {
			return err
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			if isIgnorableMigrationError(err) {
				continue
			}
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
	}
	return nil
}

// GetGuildSettings returns the stored row for the guild, or the provided
// defaults with found=false when no row exists yet. A missing row is a
// normal result, not an error.
func (s *Store) GetGuildSettings(ctx context.Context, guildID string, defaults GuildSettings) (GuildSettings, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT prefix, ticket_category_id, ticket_log_channel_id, mod_log_channel_id,
		welcome_channel_id, welcome_message, moderator_role_id, support_role_id,
		auto_mod_enabled, auto_mod_spam_limit, auto_mod_caps_percent, auto_mod_links_enabled
		FROM guild_settings WHERE guild_id = ?`, guildID)

	result := defaults
	result.GuildID = guildID

	var autoMod, links int
	err := row.Scan(
		&result.Prefix,
		&result.TicketCategoryID,
		&result.TicketLogChannelID,
		&result.ModLogChannelID,
		&result.WelcomeChannelID,
		&result.WelcomeMessage,
		&result.ModeratorRoleID,
		&result.SupportRoleID,
		&autoMod,
		&result.AutoModSpamLimit,
		&result.AutoModCapsPercent,
		&links,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return result, false, nil
		}
		return GuildSettings{}, false, err
	}
	result.AutoModEnabled = autoMod == 1
	result.AutoModLinksEnabled = links == 1
	if result.Prefix == "" {
		result.Prefix = defaults.Prefix
	}
	return result, true, nil
}

// UpsertGuildSettings writes the full row. Every column name is fixed in the
// query text; nothing is derived from caller-supplied keys.
func (s *Store) UpsertGuildSettings(ctx context.Context, settings GuildSettings) error {
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guild_settings (
			guild_id, prefix, ticket_category_id, ticket_log_channel_id, mod_log_channel_id,
			welcome_channel_id, welcome_message, moderator_role_id, support_role_id,
			auto_mod_enabled, auto_mod_spam_limit, auto_mod_caps_percent, auto_mod_links_enabled,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			prefix = excluded.prefix,
			ticket_category_id = excluded.ticket_category_id,
			ticket_log_channel_id = excluded.ticket_log_channel_id,
			mod_log_channel_id = excluded.mod_log_channel_id,
			welcome_channel_id = excluded.welcome_channel_id,
			welcome_message = excluded.welcome_message,
			moderator_role_id = excluded.moderator_role_id,
			support_role_id = excluded.support_role_id,
			auto_mod_enabled = excluded.auto_mod_enabled,
			auto_mod_spam_limit = excluded.auto_mod_spam_limit,
			auto_mod_caps_percent = excluded.auto_mod_caps_percent,
			auto_mod_links_enabled = excluded.auto_mod_links_enabled,
			updated_at = excluded.updated_at
	`,
		settings.GuildID,
		settings.Prefix,
		settings.TicketCategoryID,
		settings.TicketLogChannelID,
		settings.ModLogChannelID,
		settings.WelcomeChannelID,
		settings.WelcomeMessage,
		settings.ModeratorRoleID,
		settings.SupportRoleID,
		boolToInt(settings.AutoModEnabled),
		settings.AutoModSpamLimit,
		settings.AutoModCapsPercent,
		boolToInt(settings.AutoModLinksEnabled),
		now,
		now,
	)
	return err
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func isIgnorableMigrationError(err error) bool {
	if err == nil {
		return false
	}
	message := err.Error()
	return strings.Contains(message, "duplicate column name") || strings.Contains(message, "already exists")
}
