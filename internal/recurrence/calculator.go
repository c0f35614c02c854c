package recurrence

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/Vantorrr/yauberu-backend/pkg/db/models"
	"github.com/Vantorrr/yauberu-backend/pkg/enums"
)

// ErrUnknownFrequency marks a subscription whose recurrence policy the
// calculator does not recognize. Callers must treat the date as not due and
// surface the condition at warning level: a silently skipped policy stops
// billing.
var ErrUnknownFrequency = errors.New("unknown recurrence frequency")

// DateOnly strips the time-of-day component, keeping the calendar date in UTC.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseScheduleDays parses "1,3,5" into ISO weekday numbers (1=Mon..7=Sun).
// Malformed entries are dropped.
func ParseScheduleDays(raw string) []int {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var days []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		day, err := strconv.Atoi(part)
		if err != nil || day < 1 || day > 7 {
			continue
		}
		days = append(days, day)
	}
	return days
}

// ISOWeekday returns the ISO weekday number (1=Mon..7=Sun) of the date.
func ISOWeekday(t time.Time) int {
	weekday := int(t.Weekday())
	if weekday == 0 {
		return 7
	}
	return weekday
}

// Due reports whether the candidate date requires a pickup for the
// subscription. Dates outside [start_date, end_date] are never due, whatever
// the day arithmetic says.
func Due(sub models.Subscription, candidate time.Time) (bool, error) {
	if sub.StartDate == nil || sub.EndDate == nil {
		return false, nil
	}
	date := DateOnly(candidate)
	start := DateOnly(*sub.StartDate)
	end := DateOnly(*sub.EndDate)
	if date.Before(start) || date.After(end) {
		return false, nil
	}

	switch sub.Frequency {
	case enums.FrequencyDaily:
		return true, nil
	case enums.FrequencyEveryOtherDay:
		// Anchored to start_date so the cadence survives month and year
		// boundaries: offsets 0, 2, 4, ...
		offset := int(date.Sub(start).Hours() / 24)
		return offset%2 == 0, nil
	case enums.FrequencySpecificWeekdays:
		weekday := ISOWeekday(date)
		for _, day := range ParseScheduleDays(sub.ScheduleDays) {
			if day == weekday {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, ErrUnknownFrequency
	}
}

// DueDates enumerates every due date in [from, to], clamped to the
// subscription window.
func DueDates(sub models.Subscription, from, to time.Time) ([]time.Time, error) {
	var dates []time.Time
	for current := DateOnly(from); !current.After(DateOnly(to)); current = current.AddDate(0, 0, 1) {
		due, err := Due(sub, current)
		if err != nil {
			return nil, err
		}
		if due {
			dates = append(dates, current)
		}
	}
	return dates, nil
}
