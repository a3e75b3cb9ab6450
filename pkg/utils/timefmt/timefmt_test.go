package timefmt_test

import (
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/miru/pkg/utils/timefmt"
)

func TestRelative(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		at   time.Time
		want string
	}{
		{"now", now, "just now"},
		{"within ten seconds", now.Add(-10 * time.Second), "just now"},
		{"seconds", now.Add(-45 * time.Second), "45 seconds ago"},
		{"one minute", now.Add(-time.Minute), "1 minute ago"},
		{"minutes", now.Add(-5 * time.Minute), "5 minutes ago"},
		{"one hour", now.Add(-time.Hour), "1 hour ago"},
		{"hours", now.Add(-7 * time.Hour), "7 hours ago"},
		{"one day", now.Add(-24 * time.Hour), "1 day ago"},
		{"days", now.Add(-3 * 24 * time.Hour), "3 days ago"},
		{"one month", now.Add(-31 * 24 * time.Hour), "1 month ago"},
		{"months", now.Add(-90 * 24 * time.Hour), "3 months ago"},
		{"one year", now.Add(-370 * 24 * time.Hour), "1 year ago"},
		{"years", now.Add(-2 * 366 * 24 * time.Hour), "2 years ago"},
		{"future timestamps clamp to now", now.Add(time.Hour), "just now"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gt.Equal(t, timefmt.Relative(tc.at, now), tc.want)
		})
	}
}
