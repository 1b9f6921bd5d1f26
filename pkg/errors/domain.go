package errors

// CouponRejection is the details payload attached to CodeCouponRejected errors.
type CouponRejection struct {
	Reason string `json:"reason"`
	Code   string `json:"code,omitempty"`
}

// StockShortage is the details payload attached to CodeOutOfStock errors.
type StockShortage struct {
	ProductIDs []string `json:"product_ids"`
}

// TransitionDetails is the details payload attached to CodeInvalidTransition errors.
type TransitionDetails struct {
	Field string `json:"field"`
	From  string `json:"from"`
	To    string `json:"to"`
}

// CouponRejected builds a client-correctable coupon failure carrying the reason.
func CouponRejected(reason, code string) *Error {
	return Newf(CodeCouponRejected, "coupon rejected: %s", reason).
		WithDetails(CouponRejection{Reason: reason, Code: code})
}

// OutOfStock builds a reservation failure listing every short product.
func OutOfStock(productIDs ...string) *Error {
	ids := append([]string(nil), productIDs...)
	return New(CodeOutOfStock, "insufficient stock").
		WithDetails(StockShortage{ProductIDs: ids})
}

// InvalidTransition builds a state machine rejection.
func InvalidTransition(field, from, to string) *Error {
	return Newf(CodeInvalidTransition, "%s cannot move from %s to %s", field, from, to).
		WithDetails(TransitionDetails{Field: field, From: from, To: to})
}

// CouponRejectionReason extracts the rejection reason from err, if any.
func CouponRejectionReason(err error) (string, bool) {
	typed := As(err)
	if typed == nil || typed.code != CodeCouponRejected {
		return "", false
	}
	details, ok := typed.details.(CouponRejection)
	if !ok {
		return "", false
	}
	return details.Reason, true
}

// ShortProducts extracts the product ids attached to an OUT_OF_STOCK error.
func ShortProducts(err error) []string {
	typed := As(err)
	if typed == nil || typed.code != CodeOutOfStock {
		return nil
	}
	if details, ok := typed.details.(StockShortage); ok {
		return details.ProductIDs
	}
	return nil
}
