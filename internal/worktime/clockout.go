package worktime

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ClockOutLayout is the wall-clock display used for the projected clock-out.
// Seconds are dropped.
const ClockOutLayout = "03:04 PM"

// ClockOutNow is shown when the target has already been met.
const ClockOutNow = "You may clock out now"

// ClockOutResult is either AlreadyComplete or a projected wall-clock time.
type ClockOutResult struct {
	complete bool
	at       time.Time
}

// AlreadyComplete is the result for a workday whose target is met.
func AlreadyComplete() ClockOutResult {
	return ClockOutResult{complete: true}
}

// ProjectedAt is the result for a workday that ends at t.
func ProjectedAt(t time.Time) ClockOutResult {
	return ClockOutResult{at: t}
}

// Complete reports whether the target is already met.
func (r ClockOutResult) Complete() bool {
	return r.complete
}

// At returns the projected time; ok is false for AlreadyComplete.
func (r ClockOutResult) At() (t time.Time, ok bool) {
	return r.at, !r.complete
}

// String renders the result for display.
func (r ClockOutResult) String() string {
	if r.complete {
		return ClockOutNow
	}
	return r.at.Format(ClockOutLayout)
}

// ProjectClockOut projects when the net worked time reaches target, starting
// from now.
func ProjectClockOut(worked, brk, target Duration, now time.Time) ClockOutResult {
	remaining := target - NetDuration(worked, brk)
	if remaining <= 0 {
		return AlreadyComplete()
	}
	return ProjectedAt(now.Add(remaining.Std()))
}

// ParseClock parses an "HH:MM" (24h) wall-clock time and places it on the
// calendar day of day, in day's location.
func ParseClock(s string, day time.Time) (time.Time, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return time.Time{}, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	hour, herr := strconv.Atoi(hh)
	minute, merr := strconv.Atoi(mm)
	if herr != nil || merr != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	y, mo, d := day.Date()
	return time.Date(y, mo, d, hour, minute, 0, 0, day.Location()), nil
}
