package cart

import (
	cartdto "github.com/angelmondragon/storefront-backend/api/controllers/cart/dto"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

func newCart(record *models.Cart) cartdto.Cart {
	if record == nil {
		return cartdto.Cart{Items: []cartdto.CartItem{}}
	}
	out := cartdto.Cart{
		ID:        record.ID,
		UserID:    record.UserID,
		SessionID: record.SessionID,
		Items:     make([]cartdto.CartItem, 0, len(record.Items)),
		UpdatedAt: record.UpdatedAt,
	}
	for _, item := range record.Items {
		lineTotal := item.UnitPriceCents * int64(item.Quantity)
		out.Items = append(out.Items, cartdto.CartItem{
			ID:             item.ID,
			ProductID:      item.ProductID,
			VariantID:      item.VariantID,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			LineTotalCents: lineTotal,
		})
		out.ItemCount += item.Quantity
		out.EstimatedSubtotalCents += lineTotal
	}
	return out
}

func newMergeResult(result *cart.MergeResult) cartdto.MergeResult {
	if result == nil {
		return cartdto.MergeResult{Cart: newCart(nil)}
	}
	return cartdto.MergeResult{
		Cart:    newCart(result.Cart),
		Merged:  result.Merged,
		Skipped: result.Skipped,
	}
}
