package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents the canonical identity entity. AccountID is the external
// identity the auth token carries; it is the only lookup key auth uses.
type User struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	AccountID   string    `gorm:"column:account_id;type:text;not null;uniqueIndex:idx_users_account_id"`
	DisplayName string    `gorm:"column:display_name;type:text;not null"`
	Email       *string   `gorm:"column:email;type:text"`
	AvatarURL   *string   `gorm:"column:avatar_url;type:text"`
	Bio         *string   `gorm:"column:bio;type:text"`
	// WalletAddress is where completed settlements pay out; purchases
	// reference it only through the user row.
	WalletAddress *string    `gorm:"column:wallet_address;type:text"`
	IsActive      bool       `gorm:"column:is_active;not null;default:true"`
	LastSeenAt    *time.Time `gorm:"column:last_seen_at"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
