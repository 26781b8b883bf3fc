package timefmt

import (
	"fmt"
	"math"
	"time"
)

// Placeholder is rendered for any value that cannot be formatted.
const Placeholder = "--"

const (
	timeLayout     = "03:04 PM"
	dateLayout     = "Jan 2, 2006"
	dateTimeLayout = "Jan 2, 2006 03:04 PM"
)

// FormatMinutes formats a duration given in minutes as "Hh Mm", or "Mm" below one hour.
func FormatMinutes(minutes float64) string {
	if math.IsNaN(minutes) || math.IsInf(minutes, 0) || minutes < 0 {
		return Placeholder
	}

	total := int64(math.Floor(minutes))
	hours := total / 60
	mins := total % 60
	if hours == 0 {
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%dh %dm", hours, mins)
}

// FormatDuration formats d with FormatMinutes.
func FormatDuration(d time.Duration) string {
	return FormatMinutes(d.Minutes())
}

// FormatHours formats fractional hours, e.g. 8.5 -> "8h 30m".
func FormatHours(hours float64) string {
	return FormatMinutes(hours * 60)
}

// FormatTime renders the wall clock time of t in loc.
func FormatTime(t time.Time, loc *time.Location) string {
	return format(t, loc, timeLayout)
}

func FormatDate(t time.Time, loc *time.Location) string {
	return format(t, loc, dateLayout)
}

func FormatDateTime(t time.Time, loc *time.Location) string {
	return format(t, loc, dateTimeLayout)
}

// FormatTimePtr is FormatTime for optional timestamps.
func FormatTimePtr(t *time.Time, loc *time.Location) string {
	if t == nil {
		return Placeholder
	}
	return FormatTime(*t, loc)
}

func format(t time.Time, loc *time.Location, layout string) string {
	if t.IsZero() {
		return Placeholder
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(layout)
}
