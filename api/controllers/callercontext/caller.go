package callercontext

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

// UserID returns the authenticated user, if any.
func UserID(r *http.Request) (*uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return &id, nil
}

// CartOwner resolves whose cart the request addresses. An authenticated user
// wins over the guest session.
func CartOwner(r *http.Request) (cart.Owner, error) {
	userID, err := UserID(r)
	if err != nil {
		return cart.Owner{}, err
	}
	if userID != nil {
		return cart.UserOwner(*userID), nil
	}
	owner := cart.GuestOwner(middleware.SessionIDFromContext(r.Context()))
	if err := owner.Validate(); err != nil {
		return cart.Owner{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "session id or credentials required")
	}
	return owner, nil
}

// Requester scopes order reads and cancels to the caller.
func Requester(r *http.Request) (*orders.Requester, error) {
	userID, err := UserID(r)
	if err != nil {
		return nil, err
	}
	sessionID := middleware.SessionIDFromContext(r.Context())
	if userID == nil && sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session id or credentials required")
	}
	return &orders.Requester{UserID: userID, SessionID: sessionID}, nil
}

// Actor describes the caller on emitted events.
func Actor(r *http.Request) *outbox.ActorRef {
	ctx := r.Context()
	actor := &outbox.ActorRef{Role: middleware.RoleFromContext(ctx)}
	if userID := middleware.UserIDFromContext(ctx); userID != "" {
		actor.UserID = &userID
	}
	if sessionID := middleware.SessionIDFromContext(ctx); sessionID != "" {
		actor.SessionID = &sessionID
	}
	if actor.Role == "" {
		actor.Role = string(enums.UserRoleCustomer)
	}
	return actor
}
