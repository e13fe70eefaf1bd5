package stats

import (
	"context"
	"testing"
	"time"

	"warden/internal/storage"
)

func TestReport(t *testing.T) {
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	entries := []storage.AutoModLog{
		{GuildID: "g1", UserID: "u1", Action: "warn", Reason: "x", CreatedAt: now},
		{GuildID: "g1", UserID: "u2", Action: "warn", Reason: "x", CreatedAt: now},
		{GuildID: "g1", UserID: "u1", Action: "automod_spam", Reason: "x", CreatedAt: now},
		{GuildID: "g1", UserID: "u1", Action: "warn", Reason: "too old", CreatedAt: now.Add(-30 * 24 * time.Hour)},
	}
	for _, entry := range entries {
		if err := store.AddAutoModLog(ctx, entry); err != nil {
			t.Fatalf("add log: %v", err)
		}
	}

	report, err := New(store).Report(ctx, "g1", now.Add(-7*24*time.Hour))
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.Total != 3 {
		t.Fatalf("expected total 3, got %d", report.Total)
	}
	if report.ByAction["warn"] != 2 || report.ByAction["automod_spam"] != 1 {
		t.Fatalf("unexpected breakdown: %v", report.ByAction)
	}
}

func TestReportEmpty(t *testing.T) {
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	report, err := New(store).Report(context.Background(), "g1", time.Unix(0, 0))
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.Total != 0 {
		t.Fatalf("expected empty report, got %+v", report)
	}
}
