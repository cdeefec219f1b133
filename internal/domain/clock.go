package domain

import "time"

// ClockPhase is the wall-clock stage of a live session.
type ClockPhase string

const (
	ClockOpening ClockPhase = "opening"
	ClockMain    ClockPhase = "main"
	ClockWarning ClockPhase = "warning"
	ClockEnded   ClockPhase = "ended"
)

const (
	DefaultOpeningWindow = 5 * time.Minute
	DefaultWarningWindow = 7 * time.Minute
)

// ClockWindows sizes the opening and warning stages before they are capped
// against the session duration.
type ClockWindows struct {
	Opening time.Duration
	Warning time.Duration
}

func DefaultClockWindows() ClockWindows {
	return ClockWindows{Opening: DefaultOpeningWindow, Warning: DefaultWarningWindow}
}

// Clock is a session's timeline. It is immutable after StartClock and safe
// for concurrent readers.
type Clock struct {
	liveStart time.Time
	duration  time.Duration
	opening   time.Duration
	warning   time.Duration
}

func StartClock(liveStart time.Time, duration time.Duration, w ClockWindows) Clock {
	return Clock{
		liveStart: liveStart,
		duration:  duration,
		opening:   openingWindow(duration, w.Opening),
		warning:   warningWindow(duration, w.Warning),
	}
}

// openingWindow caps the opening stage at a quarter of the session.
func openingWindow(duration, configured time.Duration) time.Duration {
	max := duration / 4
	if configured > max {
		return max
	}
	if configured < 0 {
		return 0
	}
	return configured
}

// warningWindow is the final configured stretch or an eighth of the
// session, whichever is smaller.
func warningWindow(duration, configured time.Duration) time.Duration {
	max := duration / 8
	if configured > max {
		return max
	}
	if configured < 0 {
		return 0
	}
	return configured
}

func (c Clock) HardStop() time.Time {
	return c.liveStart.Add(c.duration)
}

// Remaining is the time left before the hard stop, never negative.
func (c Clock) Remaining(now time.Time) time.Duration {
	left := c.HardStop().Sub(now)
	if left < 0 {
		return 0
	}
	if left > c.duration {
		return c.duration
	}
	return left
}

// RemainingSeconds rounds Remaining down to whole seconds.
func (c Clock) RemainingSeconds(now time.Time) int {
	return int(c.Remaining(now) / time.Second)
}

func (c Clock) IsHardStopped(now time.Time) bool {
	return c.Remaining(now) == 0
}

func (c Clock) PhaseFor(now time.Time) ClockPhase {
	remaining := c.Remaining(now)
	switch {
	case remaining == 0:
		return ClockEnded
	case now.Sub(c.liveStart) < c.opening:
		return ClockOpening
	case remaining <= c.warning:
		return ClockWarning
	default:
		return ClockMain
	}
}
