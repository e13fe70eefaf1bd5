// Package audit records moderation actions to the ledger and process log.
package audit

import (
	"context"
	"time"

	"warden/internal/storage"

	"go.uber.org/zap"
)

const (
	ActionWarn       = "warn"
	ActionClearWarns = "clear_warnings"
	ActionMute       = "mute"
	ActionUnmute     = "unmute"
	ActionKick       = "kick"
	ActionBan        = "ban"
	ActionUnban      = "unban"
	ActionPurge      = "purge"
	ActionSpam       = "automod_spam"
	ActionCaps       = "automod_caps"
	ActionLink       = "automod_link"
	ActionMuteExpire = "mute_expired"
)

type Logger struct {
	store  *storage.Store
	logger *zap.Logger
	notify func(context.Context, storage.AutoModLog)
}

func NewLogger(store *storage.Store, logger *zap.Logger) *Logger {
	return &Logger{store: store, logger: logger}
}

// SetNotifier installs a hook invoked after each entry is written, used to
// mirror entries into a guild's mod-log channel.
func (l *Logger) SetNotifier(notify func(context.Context, storage.AutoModLog)) {
	l.notify = notify
}

func (l *Logger) Log(ctx context.Context, guildID, userID, action, reason string) {
	entry := storage.AutoModLog{
		GuildID:   guildID,
		UserID:    userID,
		Action:    action,
		Reason:    reason,
		CreatedAt: time.Now(),
	}
	if l.store != nil {
		if err := l.store.AddAutoModLog(ctx, entry); err != nil {
			l.logger.Warn("automod log write failed", zap.Error(err))
		}
	}
	if l.notify != nil {
		l.notify(ctx, entry)
	}
	l.logger.Info("moderation",
		zap.String("guild_id", guildID),
		zap.String("user_id", userID),
		zap.String("action", action),
		zap.String("reason", reason),
	)
}
