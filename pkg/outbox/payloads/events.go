package payloads

import (
	"time"

	"github.com/google/uuid"
)

// PurchaseCompletedEvent is emitted once a pending purchase is confirmed.
// One event covers the whole purchase; fan-out to the buyer and each
// creator happens in the notification consumer.
type PurchaseCompletedEvent struct {
	PurchaseID  uuid.UUID   `json:"purchase_id"`
	BuyerID     uuid.UUID   `json:"buyer_id"`
	ProductIDs  []uuid.UUID `json:"product_ids"`
	TxHash      string      `json:"tx_hash"`
	Total       string      `json:"total"`
	Currency    string      `json:"currency"`
	ConfirmedAt time.Time   `json:"confirmed_at"`
}

// PurchaseExpiredEvent reports a pending purchase aged out by the cron sweep.
type PurchaseExpiredEvent struct {
	PurchaseID uuid.UUID `json:"purchase_id"`
	BuyerID    uuid.UUID `json:"buyer_id"`
	ExpiredAt  time.Time `json:"expired_at"`
}

// PurchaseFailedEvent reports a purchase moved to the failed state.
type PurchaseFailedEvent struct {
	PurchaseID uuid.UUID `json:"purchase_id"`
	BuyerID    uuid.UUID `json:"buyer_id"`
	Reason     string    `json:"reason,omitempty"`
}

// RatingReceivedEvent is emitted when a buyer rates a product.
type RatingReceivedEvent struct {
	ReviewID  uuid.UUID `json:"review_id"`
	ProductID uuid.UUID `json:"product_id"`
	CreatorID uuid.UUID `json:"creator_id"`
	AuthorID  uuid.UUID `json:"author_id"`
	Rating    int       `json:"rating"`
}

// CommentReceivedEvent is emitted when a review carries a comment.
type CommentReceivedEvent struct {
	ReviewID  uuid.UUID `json:"review_id"`
	ProductID uuid.UUID `json:"product_id"`
	CreatorID uuid.UUID `json:"creator_id"`
	AuthorID  uuid.UUID `json:"author_id"`
	Comment   string    `json:"comment"`
}
