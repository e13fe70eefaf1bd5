package automod

import (
	"sync"
	"time"
)

// Eviction kicks in once the keyed map grows past this many users; entries
// idle for idleWindows full windows are dropped.
const (
	evictThreshold = 4096
	idleWindows    = 10
)

type userWindow struct {
	hits []time.Time
}

// Tracker keeps a sliding window of message timestamps per (guild, user).
// All mutation happens under one mutex, so trim, append and threshold check
// form a single atomic step.
type Tracker struct {
	mu      sync.Mutex
	windows map[string]*userWindow
}

func NewTracker() *Tracker {
	return &Tracker{windows: make(map[string]*userWindow)}
}

// Record registers a message at `now` and reports whether the spam threshold
// was reached by this call. On a trip the window is cleared so the user gets
// a fresh window instead of re-triggering on the very next message.
func (t *Tracker) Record(guildID, userID string, now time.Time, policy Policy) bool {
	key := guildID + ":" + userID

	t.mu.Lock()
	defer t.mu.Unlock()

	window := t.windows[key]
	if window == nil {
		if len(t.windows) >= evictThreshold {
			t.evictLocked(now, policy.Window)
		}
		window = &userWindow{}
		t.windows[key] = window
	}

	cutoff := now.Add(-policy.Window)
	idx := 0
	for _, hit := range window.hits {
		if hit.After(cutoff) {
			break
		}
		idx++
	}
	window.hits = append(window.hits[idx:], now)

	if len(window.hits) >= policy.SpamLimit {
		window.hits = window.hits[:0]
		return true
	}
	return false
}

// Len reports the number of tracked users.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.windows)
}

func (t *Tracker) evictLocked(now time.Time, span time.Duration) {
	idleCutoff := now.Add(-time.Duration(idleWindows) * span)
	for key, window := range t.windows {
		if len(window.hits) == 0 || window.hits[len(window.hits)-1].Before(idleCutoff) {
			delete(t.windows, key)
		}
	}
}
