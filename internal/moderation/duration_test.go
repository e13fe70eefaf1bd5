package moderation

import (
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Duration
		ok   bool
	}{
		{"10m", 10 * time.Minute, true},
		{"2h", 2 * time.Hour, true},
		{"7d", 7 * 24 * time.Hour, true},
		{"1m", time.Minute, true},
		{"0m", 0, false},
		{"m", 0, false},
		{"", 0, false},
		{"10", 0, false},
		{"10w", 0, false},
		{"-5m", 0, false},
		{"1h30m", 0, false},
		{"28d", 28 * 24 * time.Hour, true},
		{"29d", 0, false},
		{"672h", 672 * time.Hour, true},
		{"673h", 0, false},
		{"40320m", 40320 * time.Minute, true},
		{"40321m", 0, false},
		{"99999999999999999999m", 0, false},
	}
	for _, c := range cases {
		got, ok := ParseDuration(c.raw)
		if ok != c.ok || got != c.want {
			t.Fatalf("%q: expected (%v, %t), got (%v, %t)", c.raw, c.want, c.ok, got, ok)
		}
	}
}

func TestParseDurationNeverNegative(t *testing.T) {
	// Digit runs long enough to wrap the accumulator must be rejected, not
	// returned as a wrapped value.
	for _, raw := range []string{"9223372036854775807m", "99999999999999999999d", "184467440737095516160h"} {
		got, ok := ParseDuration(raw)
		if ok || got != 0 {
			t.Fatalf("%q: expected rejection, got (%v, %t)", raw, got, ok)
		}
	}
}

func TestDurationShaped(t *testing.T) {
	cases := []struct {
		raw  string
		want bool
	}{
		{"10m", true},
		{"60d", true},
		{"99999999999999999999m", true},
		{"spamming", false},
		{"10w", false},
		{"m", false},
		{"", false},
		{"1h30m", false},
	}
	for _, c := range cases {
		if got := DurationShaped(c.raw); got != c.want {
			t.Fatalf("%q: expected %t, got %t", c.raw, c.want, got)
		}
	}
}
