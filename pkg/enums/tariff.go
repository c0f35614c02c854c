package enums

import "fmt"

// Tariff identifies the purchased package kind.
type Tariff string

const (
	TariffSingle  Tariff = "single"
	TariffTrial   Tariff = "trial"
	TariffMonthly Tariff = "monthly"
)

var validTariffs = []Tariff{
	TariffSingle,
	TariffTrial,
	TariffMonthly,
}

// IsValid reports whether the value matches the canonical tariff enum.
func (t Tariff) IsValid() bool {
	for _, candidate := range validTariffs {
		if candidate == t {
			return true
		}
	}
	return false
}

// IsSubscription reports whether the tariff creates a recurring package.
func (t Tariff) IsSubscription() bool {
	return t == TariffTrial || t == TariffMonthly
}

// ParseTariff converts the raw string to Tariff.
func ParseTariff(value string) (Tariff, error) {
	for _, candidate := range validTariffs {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid tariff %q", value)
}
