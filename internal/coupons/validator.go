package coupons

import (
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// NormalizeCode trims and upper-cases a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Check runs the rule chain against an already loaded coupon and returns the
// first failing reason, or "" when the coupon applies. A nil coupon is
// NotFound. Check never mutates the coupon.
func Check(c *models.Coupon, subtotalCents int64, now time.Time) enums.CouponRejection {
	if c == nil {
		return enums.CouponRejectionNotFound
	}
	if !c.IsActive || (c.StartsAt != nil && now.Before(*c.StartsAt)) {
		return enums.CouponRejectionInactive
	}
	if c.ExpiresAt != nil && !now.Before(*c.ExpiresAt) {
		return enums.CouponRejectionExpired
	}
	if c.MinOrderAmountCents != nil && subtotalCents < *c.MinOrderAmountCents {
		return enums.CouponRejectionBelowMinimum
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return enums.CouponRejectionLimitReached
	}
	return ""
}

// Rejected converts a rejection reason into the typed error surfaced to clients.
func Rejected(reason enums.CouponRejection, code string) error {
	return pkgerrors.CouponRejected(reason.String(), NormalizeCode(code))
}

// ValidateShape checks a coupon definition before it is stored.
func ValidateShape(c *models.Coupon) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "coupon is required")
	}
	details := map[string]string{}
	if NormalizeCode(c.Code) == "" {
		details["code"] = "required"
	}
	if !c.Type.IsValid() {
		details["type"] = "must be percentage or fixed"
	}
	if !c.Value.IsPositive() {
		details["value"] = "must be positive"
	} else if c.Type == enums.CouponTypePercentage && c.Value.GreaterThan(hundredPercent) {
		details["value"] = "percentage must not exceed 100"
	}
	if c.MinOrderAmountCents != nil && *c.MinOrderAmountCents < 0 {
		details["min_order_amount_cents"] = "must not be negative"
	}
	if c.MaxDiscountCents != nil && *c.MaxDiscountCents < 0 {
		details["max_discount_cents"] = "must not be negative"
	}
	if c.UsageLimit != nil && *c.UsageLimit < 0 {
		details["usage_limit"] = "must not be negative"
	}
	if c.StartsAt != nil && c.ExpiresAt != nil && !c.StartsAt.Before(*c.ExpiresAt) {
		details["expires_at"] = "must be after starts_at"
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid coupon").WithDetails(details)
	}
	return nil
}
