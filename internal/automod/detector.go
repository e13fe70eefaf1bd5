// Package automod classifies guild messages against per-guild policy.
package automod

import (
	"time"
	"unicode"

	"warden/internal/linkscan"
)

type Violation string

const (
	ViolationNone Violation = ""
	ViolationSpam Violation = "spam"
	ViolationCaps Violation = "caps"
	ViolationLink Violation = "link"
)

// Messages with fewer letters than this are too short for a meaningful caps
// ratio and never trip the caps rule.
const capsMinLetters = 5

type Detector struct {
	tracker *Tracker
}

func NewDetector(tracker *Tracker) *Detector {
	return &Detector{tracker: tracker}
}

// Classify runs the rules in fixed order (spam, caps, links) and returns the
// first match. Exempt authors and disabled policies short-circuit to none.
// Classification is pure apart from the tracker's window bookkeeping.
func (d *Detector) Classify(guildID, userID, content string, exempt bool, policy Policy, now time.Time) Violation {
	if exempt || !policy.Enabled {
		return ViolationNone
	}
	if d.tracker.Record(guildID, userID, now, policy) {
		return ViolationSpam
	}
	if capsViolation(content, policy.CapsPercent) {
		return ViolationCaps
	}
	if policy.LinksEnabled && linkscan.ContainsLink(content) {
		return ViolationLink
	}
	return ViolationNone
}

// capsViolation computes uppercase letters over total letters. Non-letters
// are excluded from the base; the threshold comparison is strictly greater.
func capsViolation(content string, capsPercent int) bool {
	letters := 0
	upper := 0
	for _, r := range content {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if letters < capsMinLetters {
		return false
	}
	return upper*100 > capsPercent*letters
}
