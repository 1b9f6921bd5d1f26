package helpers

import (
	"sort"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// ProductIDs returns the distinct products referenced by items in a stable
// order.
func ProductIDs(items []models.CartItem) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// BuildLines resolves every cart item against the live product rows. Cart
// price snapshots are ignored. Inactive products fail the whole checkout and
// are all listed in the error details.
func BuildLines(items []models.CartItem, products map[uuid.UUID]models.Product) ([]pricing.Line, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	lines := make([]pricing.Line, 0, len(items))
	var unavailable []string
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok || !product.IsActive {
			unavailable = append(unavailable, item.ProductID.String())
			continue
		}
		lines = append(lines, pricing.Line{
			Product:   product,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
		})
	}
	if len(unavailable) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "some products are no longer available").
			WithDetails(map[string]any{"product_ids": unavailable})
	}
	return lines, nil
}

// ReservationRequests converts priced lines into stock requests.
func ReservationRequests(lines []pricing.PricedLine) []inventory.Request {
	out := make([]inventory.Request, 0, len(lines))
	for _, line := range lines {
		out = append(out, inventory.Request{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	return out
}

// OrderItems freezes priced lines into order item snapshots.
func OrderItems(lines []pricing.PricedLine) []models.OrderItem {
	out := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		out = append(out, models.OrderItem{
			ProductID:      line.ProductID,
			VariantID:      line.VariantID,
			SKU:            line.SKU,
			Name:           line.Name,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
			LineTotalCents: line.LineTotalCents,
		})
	}
	return out
}
