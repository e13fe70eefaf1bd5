package moderation

import "time"

// MaxMuteDuration is the platform ceiling for a member timeout.
const MaxMuteDuration = 28 * 24 * time.Hour

// The largest magnitude any unit can carry without exceeding MaxMuteDuration
// (28 days expressed in minutes). Bounding the accumulator here also keeps
// absurdly long digit runs from overflowing int.
const maxMuteValue = 28 * 24 * 60

// ParseDuration reads mute durations of the form <digits><unit> where unit is
// m, h or d, bounded to MaxMuteDuration. Anything else reports ok=false.
func ParseDuration(raw string) (time.Duration, bool) {
	if len(raw) < 2 {
		return 0, false
	}
	unit := raw[len(raw)-1]
	digits := raw[:len(raw)-1]

	value := 0
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, false
		}
		value = value*10 + int(c-'0')
		if value > maxMuteValue {
			return 0, false
		}
	}
	if value <= 0 {
		return 0, false
	}

	var d time.Duration
	switch unit {
	case 'm':
		d = time.Duration(value) * time.Minute
	case 'h':
		d = time.Duration(value) * time.Hour
	case 'd':
		d = time.Duration(value) * 24 * time.Hour
	default:
		return 0, false
	}
	if d > MaxMuteDuration {
		return 0, false
	}
	return d, true
}

// DurationShaped reports whether the argument has the <digits><unit> form at
// all, letting callers tell an out-of-range duration from a plain word.
func DurationShaped(raw string) bool {
	if len(raw) < 2 {
		return false
	}
	switch raw[len(raw)-1] {
	case 'm', 'h', 'd':
	default:
		return false
	}
	for _, c := range raw[:len(raw)-1] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
