package schedule

import (
	"fmt"
	"time"
)

// TimeToMinutes converts "HH:MM" to minutes since midnight.
// Returns 0 for invalid input.
func TimeToMinutes(t string) int {
	if len(t) < 5 {
		return 0
	}
	hours := int(t[0]-'0')*10 + int(t[1]-'0')
	mins := int(t[3]-'0')*10 + int(t[4]-'0')
	return hours*60 + mins
}

// MinutesToTime converts minutes since midnight to "HH:MM" format.
func MinutesToTime(m int) string {
	if m < 0 {
		m = 0
	}
	if m >= 24*60 {
		m = 24*60 - 1
	}
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// ValidTime checks if a string is in HH:MM format (00:00-23:59).
func ValidTime(s string) bool {
	if len(s) != 5 {
		return false
	}
	_, err := time.Parse("15:04", s)
	return err == nil
}

// GapMinutes returns the absolute difference between two "HH:MM" times.
func GapMinutes(a, b string) int {
	d := TimeToMinutes(a) - TimeToMinutes(b)
	if d < 0 {
		return -d
	}
	return d
}
