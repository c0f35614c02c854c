package enums

import "fmt"

// Frequency names the recurrence policy of a subscription.
type Frequency string

const (
	FrequencyDaily            Frequency = "daily"
	FrequencyEveryOtherDay    Frequency = "every_other_day"
	FrequencySpecificWeekdays Frequency = "specific_weekdays"
)

var validFrequencies = []Frequency{
	FrequencyDaily,
	FrequencyEveryOtherDay,
	FrequencySpecificWeekdays,
}

// IsValid reports whether the value matches the canonical frequency enum.
func (f Frequency) IsValid() bool {
	for _, candidate := range validFrequencies {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseFrequency converts the raw string to Frequency.
func ParseFrequency(value string) (Frequency, error) {
	for _, candidate := range validFrequencies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid frequency %q", value)
}
