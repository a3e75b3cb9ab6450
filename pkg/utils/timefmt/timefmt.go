package timefmt

import (
	"fmt"
	"time"
)

// Relative renders how long ago t happened relative to now, e.g. "just
// now", "5 minutes ago", "2 days ago". Months are approximated as 30 days.
func Relative(t, now time.Time) string {
	seconds := int(now.Sub(t).Seconds())
	if seconds < 0 {
		seconds = 0
	}

	if seconds <= 10 {
		return "just now"
	}
	if seconds < 60 {
		return fmt.Sprintf("%d seconds ago", seconds)
	}

	minutes := seconds / 60
	if minutes < 60 {
		return plural(minutes, "minute")
	}

	hours := minutes / 60
	if hours < 24 {
		return plural(hours, "hour")
	}

	days := hours / 24
	if days < 30 {
		return plural(days, "day")
	}

	months := days / 30
	if months < 12 {
		return plural(months, "month")
	}

	return plural(months/12, "year")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
