package enums

import (
	"fmt"
	"slices"
)

// NotificationType categorizes operator inbox entries.
type NotificationType string

const (
	NotificationTypeNewOrder       NotificationType = "new_order"
	NotificationTypeOrderCancelled NotificationType = "order_cancelled"
)

var notificationTypes = []NotificationType{NotificationTypeNewOrder, NotificationTypeOrderCancelled}

func (n NotificationType) String() string { return string(n) }

func (n NotificationType) IsValid() bool {
	return slices.Contains(notificationTypes, n)
}

// ParseNotificationType converts raw input into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	if n := NotificationType(value); n.IsValid() {
		return n, nil
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
