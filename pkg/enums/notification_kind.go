package enums

import "fmt"

// NotificationKind identifies why a notification was raised.
type NotificationKind string

const (
	NotificationKindKitchenIssue NotificationKind = "kitchen_issue"
	NotificationKindLowStock     NotificationKind = "low_stock"
	NotificationKindOrderReady   NotificationKind = "order_ready"
	NotificationKindOutOfStock   NotificationKind = "out_of_stock"
)

var validNotificationKinds = []NotificationKind{
	NotificationKindKitchenIssue,
	NotificationKindLowStock,
	NotificationKindOrderReady,
	NotificationKindOutOfStock,
}

// String implements fmt.Stringer.
func (k NotificationKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known NotificationKind.
func (k NotificationKind) IsValid() bool {
	for _, candidate := range validNotificationKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseNotificationKind converts raw input into a NotificationKind.
func ParseNotificationKind(value string) (NotificationKind, error) {
	for _, candidate := range validNotificationKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification kind %q", value)
}
