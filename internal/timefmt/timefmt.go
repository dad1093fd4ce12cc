// Package timefmt converts between the backend's minutes-based durations and
// the HH:MM:SS strings shown in the dashboard, and normalizes free-typed time
// input. All functions are pure.
package timefmt

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidDuration = errors.New("invalid duration value")
	ErrInvalidFormat   = errors.New("invalid duration format")
	ErrInvalidTime     = errors.New("invalid time input")
)

// MinutesToDuration renders a non-negative number of minutes as zero-padded
// HH:MM:SS. Fractional minutes carry into the seconds component; everything is
// truncated, never rounded.
func MinutesToDuration(minutes float64) (string, error) {
	if math.IsNaN(minutes) || math.IsInf(minutes, 0) || minutes < 0 {
		return "", fmt.Errorf("format %v minutes: %w", minutes, ErrInvalidDuration)
	}

	hours := int(math.Floor(minutes / 60))
	mins := int(math.Floor(math.Mod(minutes, 60)))
	secs := int(math.Floor(math.Mod(minutes*60, 60)))
	return fmt.Sprintf("%02d:%02d:%02d", hours, mins, secs), nil
}

// DurationToMinutes parses an H:M:S string with exactly three integer
// components into minutes.
func DurationToMinutes(duration string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(duration), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("parse duration %q: %w", duration, ErrInvalidFormat)
	}

	values := make([]int, len(parts))
	for i, part := range parts {
		value, err := strconv.Atoi(part)
		if err != nil {
			return 0, fmt.Errorf("parse duration %q: %w", duration, ErrInvalidFormat)
		}
		values[i] = value
	}

	return float64(values[0])*60 + float64(values[1]) + float64(values[2])/60, nil
}

// NormalizeTimeInput turns terse keyboard input into canonical HH:MM:SS.
//
// Already-separated H:MM or H:MM:SS strings are zero-padded, with missing
// seconds defaulting to 00. Bare runs of 1-6 digits are interpreted
// positionally: 1-2 digits are hours, 3 digits are H:MM, 4 are HH:MM, 5 are
// H:MM:SS and 6 are HH:MM:SS. Anything else is rejected with ok=false and the
// caller keeps its previous value.
func NormalizeTimeInput(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	if strings.Contains(raw, ":") {
		return normalizeSeparated(raw)
	}
	if !isDigits(raw) {
		return "", false
	}

	var hh, mm, ss string
	switch len(raw) {
	case 1, 2:
		hh, mm, ss = raw, "00", "00"
	case 3:
		hh, mm, ss = raw[:1], raw[1:3], "00"
	case 4:
		hh, mm, ss = raw[:2], raw[2:4], "00"
	case 5:
		hh, mm, ss = raw[:1], raw[1:3], raw[3:5]
	case 6:
		hh, mm, ss = raw[:2], raw[2:4], raw[4:6]
	default:
		return "", false
	}
	return pad2(hh) + ":" + mm + ":" + ss, true
}

func normalizeSeparated(raw string) (string, bool) {
	parts := strings.Split(raw, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return "", false
	}
	if len(parts[0]) < 1 || len(parts[0]) > 2 || !isDigits(parts[0]) {
		return "", false
	}
	if len(parts[1]) != 2 || !isDigits(parts[1]) {
		return "", false
	}
	seconds := "00"
	if len(parts) == 3 {
		if len(parts[2]) != 2 || !isDigits(parts[2]) {
			return "", false
		}
		seconds = parts[2]
	}
	return pad2(parts[0]) + ":" + parts[1] + ":" + seconds, true
}

// CombineDateAndTime keeps the calendar date of date but replaces the clock
// with the normalized value of timeString. The sub-second component is zeroed
// and the location preserved.
func CombineDateAndTime(date time.Time, timeString string) (time.Time, error) {
	normalized, ok := NormalizeTimeInput(timeString)
	if !ok {
		return time.Time{}, fmt.Errorf("combine %q with date: %w", timeString, ErrInvalidTime)
	}

	hours, _ := strconv.Atoi(normalized[0:2])
	minutes, _ := strconv.Atoi(normalized[3:5])
	seconds, _ := strconv.Atoi(normalized[6:8])

	return time.Date(date.Year(), date.Month(), date.Day(), hours, minutes, seconds, 0, date.Location()), nil
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(value) > 0
}

func pad2(value string) string {
	if len(value) == 1 {
		return "0" + value
	}
	return value
}
