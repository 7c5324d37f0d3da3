package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/soundcrate/backend/pkg/enums"
)

// Notification stores in-app notification payloads scoped to users.
type Notification struct {
	ID        uuid.UUID                  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID                  `gorm:"column:user_id;type:uuid;not null;index"`
	Category  enums.NotificationCategory `gorm:"column:category;type:notification_category_enum;not null"`
	Title     string                     `gorm:"column:title;type:text;not null"`
	Message   string                     `gorm:"column:message;type:text;not null"`
	Link      *string                    `gorm:"column:link;type:text"`
	ReadAt    *time.Time                 `gorm:"column:read_at;type:timestamptz"`
	CreatedAt time.Time                  `gorm:"column:created_at;type:timestamptz;default:now()"`
}
