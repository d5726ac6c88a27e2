package utils

import (
	"fmt"
	"time"
)

func Now() time.Time {
	return time.Now().UTC()
}

// FormatDuration renders a duration as "45.0s" or "2m 30.0s".
func FormatDuration(d time.Duration) string {
	seconds := d.Seconds()
	if seconds < 60 {
		return fmt.Sprintf("%.1fs", seconds)
	}
	minutes := int(seconds / 60)
	remaining := seconds - float64(minutes*60)
	return fmt.Sprintf("%dm %.1fs", minutes, remaining)
}

// FormatMessageSummary renders "'subject' from sender (2006-01-02 15:04)" for log lines.
func FormatMessageSummary(subject, sender string, received time.Time) string {
	if subject == "" {
		subject = "(No Subject)"
	}
	return fmt.Sprintf("'%s' from %s (%s)", TruncateText(subject, 50), sender, received.Format("2006-01-02 15:04"))
}
