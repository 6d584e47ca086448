package domain

import (
	"strconv"
	"time"
)

// FormatRelative renders t relative to now the way document cards show it:
// "Just now" under an hour, "N hours ago" under a day, "Yesterday" under two
// days, otherwise the calendar date.
func FormatRelative(t, now time.Time) string {
	hours := int(now.Sub(t).Hours())
	switch {
	case hours < 1:
		return "Just now"
	case hours < 24:
		return strconv.Itoa(hours) + " hours ago"
	case hours < 48:
		return "Yesterday"
	default:
		return t.Local().Format("2006-01-02")
	}
}
