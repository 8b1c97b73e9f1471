// Package worktime holds the clock math behind the daily summary: parsing and
// formatting HH:MM:SS durations, net worked time, the overtime judgment and
// the projected clock-out time.
package worktime

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedInput is returned for duration strings that are not HH:MM:SS.
var ErrMalformedInput = errors.New("malformed duration")

// Duration is a non-negative number of elapsed seconds.
type Duration int64

// DefaultTarget is the workday length used when none is configured.
const DefaultTarget = Duration(8*3600 + 30*60)

// maxHours keeps hours*3600 + 59*60 + 59 within int64.
const maxHours = (math.MaxInt64 - 3599) / 3600

// ParseDuration parses a canonical "HH:MM:SS" string. Hours may exceed 23
// and use more than two digits; minutes and seconds must be in [0,59].
func ParseDuration(s string) (Duration, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q, expected HH:MM:SS", ErrMalformedInput, s)
	}

	var fields [3]int64
	for i, p := range parts {
		if p == "" || strings.ContainsAny(p, "+-") {
			return 0, fmt.Errorf("%w: %q, expected HH:MM:SS", ErrMalformedInput, s)
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("%w: %q, expected HH:MM:SS", ErrMalformedInput, s)
		}
		fields[i] = v
	}
	if fields[1] > 59 || fields[2] > 59 {
		return 0, fmt.Errorf("%w: %q, minutes and seconds must be 00-59", ErrMalformedInput, s)
	}
	if fields[0] > maxHours {
		return 0, fmt.Errorf("%w: %q, hours out of range", ErrMalformedInput, s)
	}
	return Duration(fields[0]*3600 + fields[1]*60 + fields[2]), nil
}

// MustParseDuration is ParseDuration for constants; it panics on bad input.
func MustParseDuration(s string) Duration {
	d, err := ParseDuration(s)
	if err != nil {
		panic(err)
	}
	return d
}

// String formats d as zero-padded HH:MM:SS. Negative values format as zero.
func (d Duration) String() string {
	sec := int64(d)
	if sec < 0 {
		sec = 0
	}
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// Seconds returns the duration as a plain seconds count.
func (d Duration) Seconds() int64 {
	return int64(d)
}

// Std converts d to a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d) * time.Second
}

// NetDuration is worked minus break, clamped at zero. A break longer than the
// worked time is not an error.
func NetDuration(worked, brk Duration) Duration {
	return maxDuration(0, worked-brk)
}

// IsOvertime reports whether worked is strictly less than netAfterBreak.
//
// With a non-negative break netAfterBreak never exceeds worked, so this only
// holds for inputs that did not come from NetDuration. The comparison is kept
// as the portal popup always made it.
func IsOvertime(worked, netAfterBreak Duration) bool {
	return worked < netAfterBreak
}

func maxDuration(a, b Duration) Duration {
	if a > b {
		return a
	}
	return b
}
