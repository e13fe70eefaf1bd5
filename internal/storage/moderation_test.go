package storage

import (
	"context"
	"testing"
	"time"
)

func TestWarningsAddListClear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	for i := 0; i < 3; i++ {
		warning := Warning{
			GuildID:     "g1",
			UserID:      "u1",
			ModeratorID: "mod1",
			Reason:      "spamming",
			CreatedAt:   now.Add(time.Duration(i) * time.Minute),
		}
		if err := store.AddWarning(ctx, warning); err != nil {
			t.Fatalf("add warning: %v", err)
		}
	}

	warnings, err := store.ListWarnings(ctx, "g1", "u1")
	if err != nil {
		t.Fatalf("list warnings: %v", err)
	}
	if len(warnings) != 3 {
		t.Fatalf("expected 3 warnings, got %d", len(warnings))
	}
	if !warnings[0].CreatedAt.After(warnings[2].CreatedAt) {
		t.Fatalf("warnings must be newest first")
	}

	cleared, err := store.ClearWarnings(ctx, "g1", "u1")
	if err != nil {
		t.Fatalf("clear warnings: %v", err)
	}
	if cleared != 3 {
		t.Fatalf("expected 3 cleared, got %d", cleared)
	}

	warnings, err = store.ListWarnings(ctx, "g1", "u1")
	if err != nil {
		t.Fatalf("list warnings: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings after clear, got %d", len(warnings))
	}
}

func TestCreateMuteKeepsSingleActiveRow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	first := now.Add(time.Hour)
	if err := store.CreateMute(ctx, Mute{GuildID: "g1", UserID: "u1", ModeratorID: "m1", Reason: "first", ExpiresAt: &first, CreatedAt: now}); err != nil {
		t.Fatalf("create first mute: %v", err)
	}
	second := now.Add(2 * time.Hour)
	if err := store.CreateMute(ctx, Mute{GuildID: "g1", UserID: "u1", ModeratorID: "m2", Reason: "second", ExpiresAt: &second, CreatedAt: now.Add(time.Minute)}); err != nil {
		t.Fatalf("create second mute: %v", err)
	}

	mutes, err := store.ListActiveMutes(ctx)
	if err != nil {
		t.Fatalf("list active mutes: %v", err)
	}
	if len(mutes) != 1 {
		t.Fatalf("expected exactly one active mute per pair, got %d", len(mutes))
	}
	if mutes[0].Reason != "second" {
		t.Fatalf("the newer mute must win, got %q", mutes[0].Reason)
	}
}

func TestDeactivateMutes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	if err := store.CreateMute(ctx, Mute{GuildID: "g1", UserID: "u1", ModeratorID: "m1", Reason: "x", CreatedAt: now}); err != nil {
		t.Fatalf("create mute: %v", err)
	}

	changed, err := store.DeactivateMutes(ctx, "g1", "u1")
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if changed != 1 {
		t.Fatalf("expected 1 row changed, got %d", changed)
	}

	changed, err = store.DeactivateMutes(ctx, "g1", "u1")
	if err != nil {
		t.Fatalf("deactivate again: %v", err)
	}
	if changed != 0 {
		t.Fatalf("second deactivate must be a no-op, got %d", changed)
	}

	if _, ok, _ := store.ActiveMute(ctx, "g1", "u1"); ok {
		t.Fatalf("expected no active mute")
	}
}

func TestActiveMutePreservesNilExpiry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.CreateMute(ctx, Mute{GuildID: "g1", UserID: "u1", ModeratorID: "m1", Reason: "permanent", CreatedAt: time.Unix(1_700_000_000, 0)}); err != nil {
		t.Fatalf("create mute: %v", err)
	}

	mute, ok, err := store.ActiveMute(ctx, "g1", "u1")
	if err != nil || !ok {
		t.Fatalf("active mute: ok=%t err=%v", ok, err)
	}
	if mute.ExpiresAt != nil {
		t.Fatalf("permanent mute must round-trip with nil expiry, got %v", mute.ExpiresAt)
	}
}

func TestCountAutoModLogs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	entries := []AutoModLog{
		{GuildID: "g1", UserID: "u1", Action: "automod_spam", Reason: "x", CreatedAt: now},
		{GuildID: "g1", UserID: "u2", Action: "automod_spam", Reason: "x", CreatedAt: now},
		{GuildID: "g1", UserID: "u1", Action: "warn", Reason: "x", CreatedAt: now},
		{GuildID: "g1", UserID: "u1", Action: "warn", Reason: "old", CreatedAt: now.Add(-48 * time.Hour)},
		{GuildID: "g2", UserID: "u1", Action: "warn", Reason: "other guild", CreatedAt: now},
	}
	for _, entry := range entries {
		if err := store.AddAutoModLog(ctx, entry); err != nil {
			t.Fatalf("add log: %v", err)
		}
	}

	counts, err := store.CountAutoModLogs(ctx, "g1", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("count logs: %v", err)
	}
	if counts["automod_spam"] != 2 || counts["warn"] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}
