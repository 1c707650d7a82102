package ratelimit

import (
	"math"
	"strconv"
	"time"
)

// DefaultWindowSeconds is used when a window string cannot be understood
const DefaultWindowSeconds = 300

// MaxWindowSeconds is the longest window a time.Duration can hold
const MaxWindowSeconds = math.MaxInt64 / int64(time.Second)

var windowUnits = map[byte]int64{
	's': 1,
	'm': 60,
	'h': 3600,
	'd': 86400,
}

// ParseWindow converts a compact window string such as "5m" into seconds.
// Units are s, m, h and d. Anything else, including windows longer than
// MaxWindowSeconds, falls back to DefaultWindowSeconds.
func ParseWindow(s string) int {
	if len(s) < 2 {
		return DefaultWindowSeconds
	}

	unit, ok := windowUnits[s[len(s)-1]]
	if !ok {
		return DefaultWindowSeconds
	}

	n, err := strconv.ParseInt(s[:len(s)-1], 10, 64)
	if err != nil || n <= 0 || n > MaxWindowSeconds/unit {
		return DefaultWindowSeconds
	}
	return int(n * unit)
}

// WindowDuration is ParseWindow as a time.Duration
func WindowDuration(s string) time.Duration {
	return time.Duration(ParseWindow(s)) * time.Second
}
