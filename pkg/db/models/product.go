package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a sellable listing owned by a creator.
type Product struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CreatorID   uuid.UUID       `gorm:"column:creator_id;type:uuid;not null;index"`
	Title       string          `gorm:"column:title;type:text;not null"`
	Description *string         `gorm:"column:description;type:text"`
	Genre       *string         `gorm:"column:genre;type:text"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Currency    string          `gorm:"column:currency;type:text;not null;default:'USD'"`
	IsPublished bool            `gorm:"column:is_published;not null;default:false"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`

	Files []ProductFile `gorm:"foreignKey:ProductID"`
}
