// Package moderation holds the side-effecting enforcement actions and the
// mute expiry reconciler.
package moderation

import (
	"context"
	"fmt"
	"time"

	"warden/internal/audit"
	"warden/internal/automod"
	"warden/internal/metrics"
	"warden/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Gateway is the slice of the discord session the enforcement actions need.
// *discordgo.Session satisfies it.
type Gateway interface {
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	GuildMemberTimeout(guildID, userID string, until *time.Time, options ...discordgo.RequestOption) error
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Actions struct {
	gateway     Gateway
	store       *storage.Store
	audit       *audit.Logger
	logger      *zap.Logger
	metrics     *metrics.Metrics
	clock       Clock
	noticeDelay time.Duration
	defaultMute time.Duration
}

func NewActions(gateway Gateway, store *storage.Store, auditLogger *audit.Logger, logger *zap.Logger, m *metrics.Metrics, noticeDelay, defaultMute time.Duration) *Actions {
	return &Actions{
		gateway:     gateway,
		store:       store,
		audit:       auditLogger,
		logger:      logger,
		metrics:     m,
		clock:       realClock{},
		noticeDelay: noticeDelay,
		defaultMute: defaultMute,
	}
}

func (a *Actions) WithClock(clock Clock) {
	a.clock = clock
}

// SuppressMessage deletes a violating message, posts a transient notice to
// the channel and records the action. Gateway failures are logged and never
// propagated.
func (a *Actions) SuppressMessage(ctx context.Context, guildID, channelID, messageID, userID string, kind automod.Violation, reason string) {
	if err := a.gateway.ChannelMessageDelete(channelID, messageID); err != nil {
		a.logger.Warn("message delete failed",
			zap.String("guild_id", guildID),
			zap.String("channel_id", channelID),
			zap.Error(err),
		)
	}

	notice := fmt.Sprintf("<@%s> %s", userID, reason)
	if msg, err := a.gateway.ChannelMessageSend(channelID, notice); err == nil && msg != nil {
		noticeID := msg.ID
		time.AfterFunc(a.noticeDelay, func() {
			_ = a.gateway.ChannelMessageDelete(channelID, noticeID)
		})
	}

	a.audit.Log(ctx, guildID, userID, violationAction(kind), reason)
}

// ApplyTimeout applies the gateway timeout and, only on success, writes the
// mute to the ledger. A nil expiry records permanent intent; the gateway call
// still uses the platform-maximum duration since Discord has no unbounded
// timeout.
func (a *Actions) ApplyTimeout(ctx context.Context, guildID, userID, moderatorID, reason string, duration time.Duration, permanent bool) error {
	now := a.clock.Now()
	effective := duration
	if permanent || effective <= 0 {
		effective = a.defaultMute
	}
	until := now.Add(effective)

	if err := a.gateway.GuildMemberTimeout(guildID, userID, &until); err != nil {
		a.logger.Warn("timeout apply failed",
			zap.String("guild_id", guildID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return err
	}

	mute := storage.Mute{
		GuildID:     guildID,
		UserID:      userID,
		ModeratorID: moderatorID,
		Reason:      reason,
		CreatedAt:   now,
	}
	if !permanent {
		expires := until
		mute.ExpiresAt = &expires
	}
	if err := a.store.CreateMute(ctx, mute); err != nil {
		a.logger.Error("mute write failed", zap.String("guild_id", guildID), zap.String("user_id", userID), zap.Error(err))
		return err
	}

	a.metrics.MutesCreated.Inc()
	a.audit.Log(ctx, guildID, userID, audit.ActionMute, reason)
	return nil
}

// LiftTimeout removes the gateway timeout and, only on success, deactivates
// the ledger row. On failure the sanction stays active because the external
// effect could not be confirmed lifted.
func (a *Actions) LiftTimeout(ctx context.Context, guildID, userID, moderatorID string) error {
	if err := a.gateway.GuildMemberTimeout(guildID, userID, nil); err != nil {
		a.logger.Warn("timeout lift failed",
			zap.String("guild_id", guildID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return err
	}

	changed, err := a.store.DeactivateMutes(ctx, guildID, userID)
	if err != nil {
		return err
	}
	// No active mute means nothing was lifted; an audit entry for a no-op
	// would misstate the ledger.
	if changed > 0 {
		a.metrics.MutesLifted.Inc()
		a.audit.Log(ctx, guildID, userID, audit.ActionUnmute, "timeout lifted by <@"+moderatorID+">")
	}
	return nil
}

// LiftExpired is the reconciler's entry point: same contract as LiftTimeout
// but audited as an expiry rather than a moderator action.
func (a *Actions) LiftExpired(ctx context.Context, mute storage.Mute) error {
	if err := a.gateway.GuildMemberTimeout(mute.GuildID, mute.UserID, nil); err != nil {
		return err
	}
	changed, err := a.store.DeactivateMutes(ctx, mute.GuildID, mute.UserID)
	if err != nil {
		return err
	}
	if changed > 0 {
		a.metrics.MutesLifted.Inc()
		a.audit.Log(ctx, mute.GuildID, mute.UserID, audit.ActionMuteExpire, "mute expired")
	}
	return nil
}

func violationAction(kind automod.Violation) string {
	switch kind {
	case automod.ViolationSpam:
		return audit.ActionSpam
	case automod.ViolationCaps:
		return audit.ActionCaps
	case automod.ViolationLink:
		return audit.ActionLink
	default:
		return string(kind)
	}
}
