package moderation

import (
	"context"
	"errors"
	"testing"
	"time"

	"warden/internal/audit"
	"warden/internal/automod"
	"warden/internal/metrics"
	"warden/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type fakeGateway struct {
	timeoutErr error

	deleted  []string
	sent     []string
	timeouts []timeoutCall
}

type timeoutCall struct {
	guildID string
	userID  string
	until   *time.Time
}

func (f *fakeGateway) ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error {
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeGateway) ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.sent = append(f.sent, content)
	return &discordgo.Message{ID: "notice-1", ChannelID: channelID}, nil
}

func (f *fakeGateway) GuildMemberTimeout(guildID, userID string, until *time.Time, options ...discordgo.RequestOption) error {
	if f.timeoutErr != nil {
		return f.timeoutErr
	}
	f.timeouts = append(f.timeouts, timeoutCall{guildID: guildID, userID: userID, until: until})
	return nil
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func newTestActions(t *testing.T, gateway *fakeGateway) (*Actions, *storage.Store) {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logger := zap.NewNop()
	actions := NewActions(gateway, store, audit.NewLogger(store, logger), logger, metrics.New(), time.Hour, 28*24*time.Hour)
	return actions, store
}

func TestApplyTimeoutWritesLedger(t *testing.T) {
	gateway := &fakeGateway{}
	actions, store := newTestActions(t, gateway)
	now := time.Unix(1_700_000_000, 0)
	actions.WithClock(fixedClock{now: now})

	if err := actions.ApplyTimeout(context.Background(), "g1", "u1", "mod1", "spamming", time.Hour, false); err != nil {
		t.Fatalf("apply timeout: %v", err)
	}

	if len(gateway.timeouts) != 1 {
		t.Fatalf("expected 1 gateway timeout, got %d", len(gateway.timeouts))
	}
	if gateway.timeouts[0].until == nil || !gateway.timeouts[0].until.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected timeout until: %v", gateway.timeouts[0].until)
	}

	mute, ok, err := store.ActiveMute(context.Background(), "g1", "u1")
	if err != nil {
		t.Fatalf("active mute: %v", err)
	}
	if !ok {
		t.Fatalf("expected an active mute in the ledger")
	}
	if mute.ExpiresAt == nil || !mute.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected ledger expiry: %v", mute.ExpiresAt)
	}
}

func TestApplyTimeoutPermanentHasNilExpiry(t *testing.T) {
	gateway := &fakeGateway{}
	actions, store := newTestActions(t, gateway)
	now := time.Unix(1_700_000_000, 0)
	actions.WithClock(fixedClock{now: now})

	if err := actions.ApplyTimeout(context.Background(), "g1", "u1", "mod1", "repeat offender", 0, true); err != nil {
		t.Fatalf("apply timeout: %v", err)
	}

	// The gateway call is still bounded by the platform maximum.
	if gateway.timeouts[0].until == nil || !gateway.timeouts[0].until.Equal(now.Add(28*24*time.Hour)) {
		t.Fatalf("unexpected gateway until: %v", gateway.timeouts[0].until)
	}

	mute, ok, err := store.ActiveMute(context.Background(), "g1", "u1")
	if err != nil || !ok {
		t.Fatalf("active mute: ok=%t err=%v", ok, err)
	}
	if mute.ExpiresAt != nil {
		t.Fatalf("permanent mute must have nil expiry, got %v", mute.ExpiresAt)
	}
}

func TestApplyTimeoutGatewayFailureSkipsLedger(t *testing.T) {
	gateway := &fakeGateway{timeoutErr: errors.New("missing permissions")}
	actions, store := newTestActions(t, gateway)

	if err := actions.ApplyTimeout(context.Background(), "g1", "u1", "mod1", "spamming", time.Hour, false); err == nil {
		t.Fatalf("expected gateway error to propagate")
	}

	_, ok, err := store.ActiveMute(context.Background(), "g1", "u1")
	if err != nil {
		t.Fatalf("active mute: %v", err)
	}
	if ok {
		t.Fatalf("ledger must stay untouched when the gateway call fails")
	}
}

func TestLiftTimeoutDeactivates(t *testing.T) {
	gateway := &fakeGateway{}
	actions, store := newTestActions(t, gateway)
	now := time.Unix(1_700_000_000, 0)
	actions.WithClock(fixedClock{now: now})

	if err := actions.ApplyTimeout(context.Background(), "g1", "u1", "mod1", "spamming", time.Hour, false); err != nil {
		t.Fatalf("apply timeout: %v", err)
	}
	if err := actions.LiftTimeout(context.Background(), "g1", "u1", "mod2"); err != nil {
		t.Fatalf("lift timeout: %v", err)
	}

	if _, ok, _ := store.ActiveMute(context.Background(), "g1", "u1"); ok {
		t.Fatalf("expected zero active mutes after lift")
	}
	last := gateway.timeouts[len(gateway.timeouts)-1]
	if last.until != nil {
		t.Fatalf("lift must clear the gateway timeout")
	}
}

func TestLiftTimeoutWithoutActiveMuteSkipsAudit(t *testing.T) {
	gateway := &fakeGateway{}
	actions, store := newTestActions(t, gateway)

	if err := actions.LiftTimeout(context.Background(), "g1", "u1", "mod1"); err != nil {
		t.Fatalf("lift timeout: %v", err)
	}

	counts, err := store.CountAutoModLogs(context.Background(), "g1", time.Unix(0, 0))
	if err != nil {
		t.Fatalf("count logs: %v", err)
	}
	if counts[audit.ActionUnmute] != 0 {
		t.Fatalf("lifting a non-existent mute must not write an unmute entry, got %v", counts)
	}
}

func TestLiftTimeoutGatewayFailureKeepsMute(t *testing.T) {
	gateway := &fakeGateway{}
	actions, store := newTestActions(t, gateway)

	if err := actions.ApplyTimeout(context.Background(), "g1", "u1", "mod1", "spamming", time.Hour, false); err != nil {
		t.Fatalf("apply timeout: %v", err)
	}

	gateway.timeoutErr = errors.New("discord down")
	if err := actions.LiftTimeout(context.Background(), "g1", "u1", "mod2"); err == nil {
		t.Fatalf("expected lift failure to propagate")
	}
	if _, ok, _ := store.ActiveMute(context.Background(), "g1", "u1"); !ok {
		t.Fatalf("mute must stay active when the gateway lift fails")
	}
}

func TestSuppressMessageDeletesAndNotifies(t *testing.T) {
	gateway := &fakeGateway{}
	actions, store := newTestActions(t, gateway)

	actions.SuppressMessage(context.Background(), "g1", "c1", "m1", "u1", automod.ViolationSpam, "slow down")

	if len(gateway.deleted) == 0 || gateway.deleted[0] != "m1" {
		t.Fatalf("expected the violating message deleted, got %v", gateway.deleted)
	}
	if len(gateway.sent) != 1 {
		t.Fatalf("expected one notice, got %d", len(gateway.sent))
	}

	counts, err := store.CountAutoModLogs(context.Background(), "g1", time.Unix(0, 0))
	if err != nil {
		t.Fatalf("count logs: %v", err)
	}
	if counts[audit.ActionSpam] != 1 {
		t.Fatalf("expected one spam entry in the ledger, got %v", counts)
	}
}
