package enums

import "fmt"

// OrderStatus describes the lifecycle of a pickup order.
type OrderStatus string

const (
	OrderStatusScheduled   OrderStatus = "scheduled"
	OrderStatusInProgress  OrderStatus = "in_progress"
	OrderStatusCompleted   OrderStatus = "completed"
	OrderStatusCancelled   OrderStatus = "cancelled"
	OrderStatusPendingUndo OrderStatus = "pending_undo"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusScheduled,
	OrderStatusInProgress,
	OrderStatusCompleted,
	OrderStatusCancelled,
	OrderStatusPendingUndo,
}

// IsValid reports whether the value matches the canonical order status enum.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts the raw string to OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
