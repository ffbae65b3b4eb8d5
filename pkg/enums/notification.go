package enums

import "slices"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeDonationClaimed   NotificationType = "donation_claimed"
	NotificationTypeDonationPickedUp  NotificationType = "donation_picked_up"
	NotificationTypeDonationDelivered NotificationType = "donation_delivered"
	NotificationTypeClaimCancelled    NotificationType = "claim_cancelled"
	NotificationTypeDonationExpired   NotificationType = "donation_expired"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeDonationClaimed,
	NotificationTypeDonationPickedUp,
	NotificationTypeDonationDelivered,
	NotificationTypeClaimCancelled,
	NotificationTypeDonationExpired,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	return slices.Contains(validNotificationTypes, n)
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	return parse("notification type", value, validNotificationTypes)
}
