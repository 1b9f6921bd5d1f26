package helpers

import (
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// NormalizeAddresses validates the shipping address and defaults billing to
// shipping when it is absent.
func NormalizeAddresses(shipping types.Address, billing *types.Address) (types.Address, types.Address, error) {
	ship := shipping.Normalize()
	if err := ship.Validate(); err != nil {
		return types.Address{}, types.Address{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping address")
	}
	if billing == nil {
		return ship, ship, nil
	}
	bill := billing.Normalize()
	if err := bill.Validate(); err != nil {
		return types.Address{}, types.Address{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid billing address")
	}
	return ship, bill, nil
}

// ValidatePaymentMethod rejects unknown payment methods.
func ValidatePaymentMethod(method enums.PaymentMethod) error {
	if !method.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method").
			WithDetails(map[string]any{"payment_method": method.String()})
	}
	return nil
}
