package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type adjustStockRequest struct {
	Delta  int     `json:"delta" validate:"required"`
	Reason string  `json:"reason" validate:"required"`
	Note   *string `json:"note,omitempty" validate:"omitempty,max=500"`
}

type stockResponse struct {
	ProductID         uuid.UUID `json:"product_id"`
	SKU               string    `json:"sku"`
	Stock             int       `json:"stock"`
	StockFloor        int       `json:"stock_floor"`
	TrackQuantity     bool      `json:"track_quantity"`
	LowStock          bool      `json:"low_stock"`
	LowStockThreshold int       `json:"low_stock_threshold"`
}

// AdminAdjustStock applies a manual stock correction.
func AdminAdjustStock(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload adjustStockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reason, err := enums.ParseInventoryReason(strings.TrimSpace(payload.Reason))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid adjustment reason"))
			return
		}

		product, err := svc.AdjustStock(r.Context(), inventory.AdjustInput{
			ProductID: productID,
			Delta:     payload.Delta,
			Reason:    reason,
			Note:      payload.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newStockResponse(product))
	}
}

func newStockResponse(p *models.Product) stockResponse {
	if p == nil {
		return stockResponse{}
	}
	return stockResponse{
		ProductID:         p.ID,
		SKU:               p.SKU,
		Stock:             p.Stock,
		StockFloor:        p.StockFloor(),
		TrackQuantity:     p.TrackQuantity,
		LowStock:          inventory.IsLowStock(p),
		LowStockThreshold: p.LowStockThreshold,
	}
}
