package domain

import (
	"fmt"
	"time"
)

// ClockTime is a time of day expressed as minutes since midnight.
type ClockTime int

// ParseClockTime parses a "HH:MM" string into a ClockTime.
func ParseClockTime(s string) (ClockTime, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return ClockTime(h*60 + m), nil
}

// ClockTimeOf extracts the time of day from a timestamp.
func ClockTimeOf(t time.Time) ClockTime {
	return ClockTime(t.Hour()*60 + t.Minute())
}

// String returns the "HH:MM" form of the clock time.
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Window is an off-peak time-of-day interval. A window with Start > End
// wraps midnight.
type Window struct {
	Start ClockTime
	End   ClockTime
}

// Contains reports whether the given time of day falls inside the window.
// For a wrapping window membership is t >= Start or t <= End; otherwise
// the window is a simple closed interval.
func (w Window) Contains(t ClockTime) bool {
	if w.Start > w.End {
		return t >= w.Start || t <= w.End
	}
	return t >= w.Start && t <= w.End
}

// String returns a string representation of the window.
func (w Window) String() string {
	return fmt.Sprintf("%s-%s", w.Start, w.End)
}

// InOffPeak reports whether the given time of day falls inside any of the
// configured windows.
func InOffPeak(t ClockTime, windows []Window) bool {
	for _, w := range windows {
		if w.Contains(t) {
			return true
		}
	}
	return false
}
