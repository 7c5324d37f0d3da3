package enums

import "fmt"

// NotificationCategory maps to the notification_category enum in Postgres.
type NotificationCategory string

const (
	NotificationCategoryPurchase NotificationCategory = "purchase"
	NotificationCategorySale     NotificationCategory = "sale"
	NotificationCategoryRating   NotificationCategory = "rating"
	NotificationCategoryComment  NotificationCategory = "comment"
	NotificationCategorySystem   NotificationCategory = "system"
)

var validNotificationCategories = []NotificationCategory{
	NotificationCategoryPurchase,
	NotificationCategorySale,
	NotificationCategoryRating,
	NotificationCategoryComment,
	NotificationCategorySystem,
}

// IsValid checks whether the given category matches the canonical enum.
func (n NotificationCategory) IsValid() bool {
	for _, candidate := range validNotificationCategories {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationCategory converts raw strings into NotificationCategory.
func ParseNotificationCategory(value string) (NotificationCategory, error) {
	for _, candidate := range validNotificationCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification category %q", value)
}
