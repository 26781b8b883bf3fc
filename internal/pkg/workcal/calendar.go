package workcal

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

const dateLayout = "2006-01-02"

var weekdays = map[time.Weekday]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// Calendar describes which weekdays are working days.
type Calendar struct {
	days []int
}

// New builds a calendar from weekday indices (0=Sunday ... 6=Saturday).
func New(workingDays []int) (Calendar, error) {
	seen := make(map[int]bool, len(workingDays))
	days := make([]int, 0, len(workingDays))
	for _, d := range workingDays {
		if d < 0 || d > 6 {
			return Calendar{}, fmt.Errorf("invalid weekday index %d", d)
		}
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	sort.Ints(days)
	return Calendar{days: days}, nil
}

// IsWorkingDay reports whether the calendar day of t is a working day.
func (c Calendar) IsWorkingDay(t time.Time) bool {
	wd := int(t.Weekday())
	for _, d := range c.days {
		if d == wd {
			return true
		}
	}
	return false
}

// WorkingDays lists the working days between start and end inclusive, at midnight
// in start's location.
func (c Calendar) WorkingDays(start, end time.Time) ([]time.Time, error) {
	if len(c.days) == 0 {
		return nil, nil
	}
	from := DateOf(start, start.Location())
	to := DateOf(end, start.Location())
	if to.Before(from) {
		return nil, nil
	}

	byWeekday := make([]rrule.Weekday, 0, len(c.days))
	for _, d := range c.days {
		byWeekday = append(byWeekday, weekdays[time.Weekday(d)])
	}

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.DAILY,
		Dtstart:   from,
		Until:     to,
		Byweekday: byWeekday,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build working day rule: %w", err)
	}
	return rule.All(), nil
}

// CountWorkingDays is len(WorkingDays(start, end)).
func (c Calendar) CountWorkingDays(start, end time.Time) (int, error) {
	days, err := c.WorkingDays(start, end)
	if err != nil {
		return 0, err
	}
	return len(days), nil
}

// Clock is a wall clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM" (24h).
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return Clock{}, fmt.Errorf("invalid clock time %q: expected HH:MM", s)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Minutes returns minutes since midnight.
func (c Clock) Minutes() int {
	return c.Hour*60 + c.Minute
}

// On returns the instant of the clock on the calendar day of date in loc.
func (c Clock) On(date time.Time, loc *time.Location) time.Time {
	d := date.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour, c.Minute, 0, 0, loc)
}

// DateOf truncates t to midnight of its calendar day in loc.
func DateOf(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// Day reinterprets the calendar fields of t as midnight in loc. Dates read
// back from a DATE column arrive as UTC midnight.
func Day(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// DateKey renders the calendar day of t in loc as YYYY-MM-DD.
func DateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dateLayout)
}

// ParseDate parses YYYY-MM-DD in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, loc)
}
