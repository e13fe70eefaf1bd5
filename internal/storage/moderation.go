package storage

import (
	"context"
	"database/sql"
	"time"
)

type Warning struct {
	ID          int64
	GuildID     string
	UserID      string
	ModeratorID string
	Reason      string
	CreatedAt   time.Time
}

// Mute is the persisted sanction record. ExpiresAt is nil for permanent
// mutes; Active tracks intent, not the platform's live timeout state.
type Mute struct {
	ID          int64
	GuildID     string
	UserID      string
	ModeratorID string
	Reason      string
	ExpiresAt   *time.Time
	CreatedAt   time.Time
	Active      bool
}

type Ban struct {
	ID          int64
	GuildID     string
	UserID      string
	ModeratorID string
	Reason      string
	CreatedAt   time.Time
}

type AutoModLog struct {
	ID        int64
	GuildID   string
	UserID    string
	Action    string
	Reason    string
	CreatedAt time.Time
}

func (s *Store) AddWarning(ctx context.Context, warning Warning) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO warnings (guild_id, user_id, moderator_id, reason, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, warning.GuildID, warning.UserID, warning.ModeratorID, warning.Reason, warning.CreatedAt.Unix())
	return err
}

func (s *Store) ListWarnings(ctx context.Context, guildID, userID string) ([]Warning, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, user_id, moderator_id, reason, created_at
		FROM warnings
		WHERE guild_id = ? AND user_id = ?
		ORDER BY created_at DESC
	`, guildID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var warnings []Warning
	for rows.Next() {
		var w Warning
		var created int64
		if err := rows.Scan(&w.ID, &w.GuildID, &w.UserID, &w.ModeratorID, &w.Reason, &created); err != nil {
			return nil, err
		}
		w.CreatedAt = time.Unix(created, 0)
		warnings = append(warnings, w)
	}
	return warnings, rows.Err()
}

// ClearWarnings removes every warning for the user in the guild. This is the
// one destructive operation in the ledger.
func (s *Store) ClearWarnings(ctx context.Context, guildID, userID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM warnings WHERE guild_id = ? AND user_id = ?`, guildID, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CreateMute inserts a new active mute, deactivating any prior active row for
// the same (guild, user) first so at most one active row exists per pair.
func (s *Store) CreateMute(ctx context.Context, mute Mute) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		UPDATE mutes SET active = 0 WHERE guild_id = ? AND user_id = ? AND active = 1
	`, mute.GuildID, mute.UserID)
	if err != nil {
		return err
	}

	var expires any
	if mute.ExpiresAt != nil {
		expires = mute.ExpiresAt.Unix()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO mutes (guild_id, user_id, moderator_id, reason, expires_at, created_at, active)
		VALUES (?, ?, ?, ?, ?, ?, 1)
	`, mute.GuildID, mute.UserID, mute.ModeratorID, mute.Reason, expires, mute.CreatedAt.Unix())
	if err != nil {
		return err
	}
	return tx.Commit()
}

// ActiveMute returns the active mute for the user, or ok=false when none
// exists. Absence is a normal negative result.
func (s *Store) ActiveMute(ctx context.Context, guildID, userID string) (Mute, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, guild_id, user_id, moderator_id, reason, expires_at, created_at
		FROM mutes
		WHERE guild_id = ? AND user_id = ? AND active = 1
		ORDER BY created_at DESC
		LIMIT 1
	`, guildID, userID)

	mute, err := scanMute(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return Mute{}, false, nil
		}
		return Mute{}, false, err
	}
	return mute, true, nil
}

func (s *Store) ListActiveMutes(ctx context.Context) ([]Mute, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, user_id, moderator_id, reason, expires_at, created_at
		FROM mutes
		WHERE active = 1
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mutes []Mute
	for rows.Next() {
		mute, err := scanMute(rows)
		if err != nil {
			return nil, err
		}
		mutes = append(mutes, mute)
	}
	return mutes, rows.Err()
}

// DeactivateMutes marks every active mute for the pair inactive and reports
// how many rows changed. Zero is a valid outcome for already-lifted mutes.
func (s *Store) DeactivateMutes(ctx context.Context, guildID, userID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE mutes SET active = 0 WHERE guild_id = ? AND user_id = ? AND active = 1
	`, guildID, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *Store) AddBan(ctx context.Context, ban Ban) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bans (guild_id, user_id, moderator_id, reason, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, ban.GuildID, ban.UserID, ban.ModeratorID, ban.Reason, ban.CreatedAt.Unix())
	return err
}

func (s *Store) AddAutoModLog(ctx context.Context, log AutoModLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO automod_logs (guild_id, user_id, action, reason, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, log.GuildID, log.UserID, log.Action, log.Reason, log.CreatedAt.Unix())
	return err
}

func (s *Store) CountAutoModLogs(ctx context.Context, guildID string, since time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT action, COUNT(*)
		FROM automod_logs
		WHERE guild_id = ? AND created_at >= ?
		GROUP BY action
	`, guildID, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var action string
		var count int
		if err := rows.Scan(&action, &count); err != nil {
			return nil, err
		}
		counts[action] = count
	}
	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMute(row scanner) (Mute, error) {
	var mute Mute
	var expires sql.NullInt64
	var created int64
	if err := row.Scan(&mute.ID, &mute.GuildID, &mute.UserID, &mute.ModeratorID, &mute.Reason, &expires, &created); err != nil {
		return Mute{}, err
	}
	mute.CreatedAt = time.Unix(created, 0)
	mute.Active = true
	if expires.Valid {
		value := time.Unix(expires.Int64, 0)
		mute.ExpiresAt = &value
	}
	return mute, nil
}
