package cartdto

import (
	"time"

	"github.com/google/uuid"
)

// Cart is the cart snapshot exposed through the API. Prices are display
// snapshots; checkout reprices from the live catalog.
type Cart struct {
	ID                     uuid.UUID  `json:"id"`
	UserID                 *uuid.UUID `json:"user_id,omitempty"`
	SessionID              *string    `json:"session_id,omitempty"`
	Items                  []CartItem `json:"items"`
	ItemCount              int        `json:"item_count"`
	EstimatedSubtotalCents int64      `json:"estimated_subtotal_cents"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// CartItem is one line in the cart.
type CartItem struct {
	ID             uuid.UUID `json:"id"`
	ProductID      uuid.UUID `json:"product_id"`
	VariantID      string    `json:"variant_id,omitempty"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	LineTotalCents int64     `json:"line_total_cents"`
}

// MergeResult reports the outcome of a guest to user cart merge.
type MergeResult struct {
	Cart    Cart `json:"cart"`
	Merged  int  `json:"merged"`
	Skipped int  `json:"skipped"`
}

// AddItemRequest adds units of a product to the cart.
type AddItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	VariantID string    `json:"variant_id,omitempty" validate:"max=64"`
	Quantity  int       `json:"quantity" validate:"gt=0"`
}

// UpdateItemRequest sets the quantity of an existing line. Zero removes it.
type UpdateItemRequest struct {
	VariantID string `json:"variant_id,omitempty" validate:"max=64"`
	Quantity  int    `json:"quantity" validate:"min=0"`
}

// MergeRequest names the guest session folded into the caller's cart. The
// X-Session-Id header is used when it is omitted.
type MergeRequest struct {
	SessionID string `json:"session_id,omitempty" validate:"max=128"`
}
