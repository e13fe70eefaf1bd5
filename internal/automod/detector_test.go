package automod

import (
	"testing"
	"time"
)

func TestClassifyCaps(t *testing.T) {
	detector := NewDetector(NewTracker())
	policy := testPolicy()
	now := time.Now()

	cases := []struct {
		content string
		want    Violation
	}{
		{"THIS IS LOUD", ViolationCaps},
		{"This Is Fine", ViolationNone},
		{"OK!!", ViolationNone},
		{"HI", ViolationNone},
		{"hello there friend", ViolationNone},
		{"1234567890 !!!", ViolationNone},
	}
	for _, c := range cases {
		got := detector.Classify("g1", "u-"+c.content, c.content, false, policy, now)
		if got != c.want {
			t.Fatalf("%q: expected %q, got %q", c.content, c.want, got)
		}
	}
}

func TestClassifyCapsStrictThreshold(t *testing.T) {
	policy := testPolicy()
	policy.CapsPercent = 50

	if !capsViolation("ABCde", policy.CapsPercent) {
		t.Fatalf("3 of 5 uppercase should trip at 50%%")
	}
	// Exactly at the threshold must not trip.
	if capsViolation("ABcde", policy.CapsPercent) {
		t.Fatalf("exactly 40%% uppercase should not trip at 50%%")
	}
	if capsViolation("ABCDEfghij", policy.CapsPercent) {
		t.Fatalf("exactly 50%% uppercase should not trip at 50%%")
	}
}

func TestClassifyLink(t *testing.T) {
	detector := NewDetector(NewTracker())
	policy := testPolicy()
	now := time.Now()

	if got := detector.Classify("g1", "u1", "check https://example.com/x", false, policy, now); got != ViolationLink {
		t.Fatalf("expected link violation, got %q", got)
	}

	policy.LinksEnabled = false
	if got := detector.Classify("g1", "u2", "check https://example.com/x", false, policy, now); got != ViolationNone {
		t.Fatalf("links disabled should pass, got %q", got)
	}
}

func TestClassifySpamBeatsCaps(t *testing.T) {
	detector := NewDetector(NewTracker())
	policy := testPolicy()
	now := time.Now()

	detector.Classify("g1", "u1", "hello", false, policy, now)
	detector.Classify("g1", "u1", "hello", false, policy, now.Add(100*time.Millisecond))
	got := detector.Classify("g1", "u1", "SHOUTING AND SPAMMING", false, policy, now.Add(200*time.Millisecond))
	if got != ViolationSpam {
		t.Fatalf("spam outranks caps, got %q", got)
	}
}

func TestClassifyExemptAndDisabled(t *testing.T) {
	detector := NewDetector(NewTracker())
	policy := testPolicy()
	now := time.Now()

	if got := detector.Classify("g1", "u1", "THIS IS LOUD https://example.com", true, policy, now); got != ViolationNone {
		t.Fatalf("exempt author should never be flagged, got %q", got)
	}

	policy.Enabled = false
	if got := detector.Classify("g1", "u2", "THIS IS LOUD https://example.com", false, policy, now); got != ViolationNone {
		t.Fatalf("disabled policy should never flag, got %q", got)
	}
}

func TestClassifyExemptSkipsTracker(t *testing.T) {
	tracker := NewTracker()
	detector := NewDetector(tracker)
	policy := testPolicy()
	now := time.Now()

	for i := 0; i < 5; i++ {
		detector.Classify("g1", "mod", "working", true, policy, now.Add(time.Duration(i)*time.Millisecond))
	}
	if tracker.Len() != 0 {
		t.Fatalf("exempt messages must not touch the window tracker")
	}
}
