package game

import "time"

// CountdownKind names the shared countdowns a client can be running.
type CountdownKind string

const (
	CountdownDiscussion CountdownKind = "discussion"
	CountdownVoteLock   CountdownKind = "vote_lock"
	CountdownRoleReveal CountdownKind = "role_reveal"
)

// Countdown is a time-anchored shared timer. The anchor is a server-assigned
// timestamp, so every subscriber derives the same remaining seconds
// regardless of when it joined or how its local clock drifts.
type Countdown struct {
	Kind        CountdownKind
	Anchor      time.Time
	Duration    time.Duration
	SecondsLeft int
}

// Remaining derives the seconds left on an anchored countdown at now. It is
// non-negative, non-increasing in now, and reaches exactly 0 once now passes
// anchor+duration. A zero anchor means the countdown has not started.
func Remaining(anchor time.Time, duration time.Duration, now time.Time) int {
	if anchor.IsZero() {
		return 0
	}
	left := anchor.Add(duration).Sub(now)
	if left <= 0 {
		return 0
	}
	// Ceiling, so a countdown reads its full duration on the first tick
	// and 1 until the deadline actually passes.
	return int((left + time.Second - 1) / time.Second)
}

// NewCountdown builds a countdown snapshot for a given anchor.
func NewCountdown(kind CountdownKind, anchor time.Time, seconds int, now time.Time) Countdown {
	d := time.Duration(seconds) * time.Second
	return Countdown{
		Kind:        kind,
		Anchor:      anchor,
		Duration:    d,
		SecondsLeft: Remaining(anchor, d, now),
	}
}
