package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront-backend/api/controllers/callercontext"
	orderdto "github.com/angelmondragon/storefront-backend/api/controllers/orders/dto"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Checkout converts the caller's cart into an order.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		owner, err := callercontext.CartOwner(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		order, err := svc.Execute(r.Context(), checkoutsvc.Input{
			Owner:           owner,
			ShippingAddress: payload.ShippingAddress,
			BillingAddress:  payload.BillingAddress,
			PaymentMethod:   method,
			CouponCode:      couponCode(payload.CouponCode),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, orderdto.FromModel(order))
	}
}

type checkoutRequest struct {
	ShippingAddress types.Address  `json:"shipping_address"`
	BillingAddress  *types.Address `json:"billing_address,omitempty" validate:"omitempty"`
	PaymentMethod   string         `json:"payment_method" validate:"required"`
	CouponCode      *string        `json:"coupon_code,omitempty" validate:"omitempty,max=64"`
}

func couponCode(raw *string) *string {
	if raw == nil {
		return nil
	}
	code := strings.TrimSpace(*raw)
	if code == "" {
		return nil
	}
	return &code
}
