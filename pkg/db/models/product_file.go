package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/soundcrate/backend/pkg/enums"
)

// ProductFile binds a blob-store object key to a product under exactly one
// access class. The unique index on key is what keeps a key from appearing
// under two products or two classes.
type ProductFile struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID uuid.UUID      `gorm:"column:product_id;type:uuid;not null;index"`
	Key       string         `gorm:"column:key;type:text;not null;uniqueIndex:idx_product_files_key"`
	Class     enums.KeyClass `gorm:"column:class;type:key_class_enum;not null"`
	SizeBytes *int64         `gorm:"column:size_bytes"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
}
