package enums

import "fmt"

// TimeSlot is the pickup window offered to clients.
type TimeSlot string

const (
	TimeSlotMorning TimeSlot = "08:00-10:00"
	TimeSlotDay     TimeSlot = "12:00-14:00"
	TimeSlotEvening TimeSlot = "16:00-18:00"
	TimeSlotNight   TimeSlot = "20:00-22:00"
)

var validTimeSlots = []TimeSlot{
	TimeSlotMorning,
	TimeSlotDay,
	TimeSlotEvening,
	TimeSlotNight,
}

// IsValid reports whether the value matches the canonical time slot enum.
func (t TimeSlot) IsValid() bool {
	for _, candidate := range validTimeSlots {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTimeSlot converts the raw string to TimeSlot.
func ParseTimeSlot(value string) (TimeSlot, error) {
	for _, candidate := range validTimeSlots {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid time slot %q", value)
}
