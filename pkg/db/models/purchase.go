package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/soundcrate/backend/pkg/enums"
)

// Purchase is the buyer-side order record. TxHash is set exactly once when
// the purchase is confirmed; the unique index makes settlement hashes
// single-use across all purchases.
type Purchase struct {
	ID          uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID     uuid.UUID            `gorm:"column:buyer_id;type:uuid;not null;index"`
	Status      enums.PurchaseStatus `gorm:"column:status;type:purchase_status_enum;not null;default:'pending'"`
	Total       decimal.Decimal      `gorm:"column:total;type:numeric(12,2);not null"`
	PlatformFee decimal.Decimal      `gorm:"column:platform_fee;type:numeric(12,2);not null;default:0"`
	Currency    string               `gorm:"column:currency;type:text;not null;default:'USD'"`
	TxHash      *string              `gorm:"column:tx_hash;type:text;uniqueIndex:idx_purchases_tx_hash"`
	ConfirmedAt *time.Time           `gorm:"column:confirmed_at"`
	ExpiresAt   *time.Time           `gorm:"column:expires_at"`
	CreatedAt   time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time            `gorm:"column:updated_at;autoUpdateTime"`

	Items []PurchaseItem `gorm:"foreignKey:PurchaseID"`
}
