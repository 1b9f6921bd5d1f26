package cart

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	cartdto "github.com/angelmondragon/storefront-backend/api/controllers/cart/dto"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/cart"
)

func toAddInput(payload cartdto.AddItemRequest) cart.ItemInput {
	return cart.ItemInput{
		ProductID: payload.ProductID,
		VariantID: strings.TrimSpace(payload.VariantID),
		Quantity:  payload.Quantity,
	}
}

func toUpdateInput(productID uuid.UUID, payload cartdto.UpdateItemRequest) cart.ItemInput {
	return cart.ItemInput{
		ProductID: productID,
		VariantID: strings.TrimSpace(payload.VariantID),
		Quantity:  payload.Quantity,
	}
}

// variantFromQuery reads the optional variant for DELETE, which carries no body.
func variantFromQuery(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("variant_id"))
}

// mergeSessionID prefers the body over the X-Session-Id header.
func mergeSessionID(r *http.Request, payload cartdto.MergeRequest) (string, error) {
	sessionID, err := validators.SessionID(payload.SessionID)
	if err != nil || sessionID != "" {
		return sessionID, err
	}
	return middleware.SessionIDFromContext(r.Context()), nil
}
