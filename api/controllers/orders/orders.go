package orders

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/angelmondragon/storefront-backend/api/controllers/callercontext"
	orderdto "github.com/angelmondragon/storefront-backend/api/controllers/orders/dto"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	internalorders "github.com/angelmondragon/storefront-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

const defaultCancelReason = "cancelled by customer"

// List pages the signed-in customer's order history, newest first.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		userID, err := callercontext.UserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if userID == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in to view order history"))
			return
		}

		params := pagination.Params{Cursor: strings.TrimSpace(r.URL.Query().Get("cursor"))}
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			limit, convErr := strconv.Atoi(raw)
			if convErr != nil || limit <= 0 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "limit must be a positive integer"))
				return
			}
			params.Limit = limit
		}

		page, err := svc.List(r.Context(), *userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := orderdto.OrderPage{Orders: make([]orderdto.Order, 0, len(page.Orders)), NextCursor: page.NextCursor}
		for i := range page.Orders {
			out.Orders = append(out.Orders, orderdto.FromModel(&page.Orders[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// Detail returns one of the caller's orders. Orders placed by someone else
// read as not found.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		requester, err := callercontext.Requester(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), orderID, requester)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, orderdto.FromModel(order))
	}
}

// Cancel lets a customer cancel their own order while it is still pending or
// processing.
func Cancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		requester, err := callercontext.Requester(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload orderdto.CancelRequest
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reason := strings.TrimSpace(payload.Reason)
		if reason == "" {
			reason = defaultCancelReason
		}

		order, err := svc.Cancel(r.Context(), internalorders.CancelInput{
			OrderID:   orderID,
			Requester: requester,
			Actor:     callercontext.Actor(r),
			Reason:    reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, orderdto.FromModel(order))
	}
}
