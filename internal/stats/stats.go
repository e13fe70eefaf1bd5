// Package stats summarizes moderation activity from the automod log.
package stats

import (
	"context"
	"time"

	"warden/internal/storage"
)

type Service struct {
	store *storage.Store
}

func New(store *storage.Store) *Service {
	return &Service{store: store}
}

type Report struct {
	Total    int
	ByAction map[string]int
}

func (s *Service) Report(ctx context.Context, guildID string, since time.Time) (Report, error) {
	counts, err := s.store.CountAutoModLogs(ctx, guildID, since)
	if err != nil {
		return Report{}, err
	}

	report := Report{ByAction: counts}
	for _, count := range counts {
		report.Total += count
	}
	return report, nil
}
