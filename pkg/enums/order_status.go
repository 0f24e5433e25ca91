package enums

import "fmt"

// OrderStatus tracks an order through its table lifecycle.
type OrderStatus string

const (
	// OrderStatusOpen means the cart is still being built and has not been sent to the kitchen.
	OrderStatusOpen OrderStatus = "open"
	// OrderStatusPending means at least one line carries quantity the kitchen has not accepted yet.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusCooking means the kitchen accepted every requested quantity and is working.
	OrderStatusCooking OrderStatus = "cooking"
	// OrderStatusIssue means an accept attempt failed the stock check and needs human attention.
	OrderStatusIssue OrderStatus = "issue"
	// OrderStatusServed means settlement completed and inventory was deducted.
	OrderStatusServed OrderStatus = "served"
	// OrderStatusPaid is terminal.
	OrderStatusPaid OrderStatus = "paid"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusOpen,
	OrderStatusPending,
	OrderStatusCooking,
	OrderStatusIssue,
	OrderStatusServed,
	OrderStatusPaid,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// Active reports whether the order still claims its table.
func (s OrderStatus) Active() bool {
	return s != OrderStatusPaid
}

// ClaimsStock reports whether the order's lines count toward inventory reservation.
// Issue orders are excluded: they are already flagged unfulfillable and wait
// for human resolution.
func (s OrderStatus) ClaimsStock() bool {
	switch s {
	case OrderStatusOpen, OrderStatusPending, OrderStatusCooking:
		return true
	default:
		return false
	}
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
