package cart

import (
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Owner identifies whose cart is addressed. An authenticated user always owns
// the cart; the session only matters for guests.
type Owner struct {
	UserID    *uuid.UUID
	SessionID string
}

// UserOwner builds an owner for an authenticated user.
func UserOwner(id uuid.UUID) Owner {
	return Owner{UserID: &id}
}

// GuestOwner builds an owner for a guest session.
func GuestOwner(sessionID string) Owner {
	return Owner{SessionID: strings.TrimSpace(sessionID)}
}

// IsGuest reports whether the cart is session scoped.
func (o Owner) IsGuest() bool {
	return o.UserID == nil || *o.UserID == uuid.Nil
}

// Validate ensures the owner resolves to exactly one cart key.
func (o Owner) Validate() error {
	if !o.IsGuest() {
		return nil
	}
	if strings.TrimSpace(o.SessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id or user id required")
	}
	return nil
}

type itemKey struct {
	productID uuid.UUID
	variantID string
}

func keyOf(productID uuid.UUID, variantID string) itemKey {
	return itemKey{productID: productID, variantID: strings.TrimSpace(variantID)}
}
