package pricing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

// StoreConfig carries the storewide knobs the calculator needs.
type StoreConfig struct {
	TaxRate                    decimal.Decimal
	ShippingFeeCents           int64
	FreeShippingThresholdCents int64
	Currency                   string
}

// Line is one product at its live catalog state.
type Line struct {
	Product   models.Product
	VariantID string
	Quantity  int
}

// Input bundles everything a price calculation depends on. At is the instant
// used to resolve time-boxed product discounts.
type Input struct {
	Lines  []Line
	Coupon *models.Coupon
	Store  StoreConfig
	At     time.Time
}

// PricedLine is the frozen per-line result.
type PricedLine struct {
	ProductID      uuid.UUID
	VariantID      string
	SKU            string
	Name           string
	Quantity       int
	UnitPriceCents int64
	LineTotalCents int64
}

// Breakdown is the itemized result of a price calculation. All amounts are in
// minor units and satisfy Total = Subtotal - Discount + Tax + Shipping.
type Breakdown struct {
	Currency      string
	Lines         []PricedLine
	SubtotalCents int64
	DiscountCents int64
	TaxableCents  int64
	TaxCents      int64
	ShippingCents int64
	TotalCents    int64
}

// Calculate prices the lines. It has no side effects.
func Calculate(in Input) (Breakdown, error) {
	if len(in.Lines) == 0 {
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "at least one line is required")
	}
	if in.Store.TaxRate.IsNegative() || in.Store.ShippingFeeCents < 0 {
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "store pricing configuration is invalid")
	}

	out := Breakdown{
		Currency: in.Store.Currency,
		Lines:    make([]PricedLine, 0, len(in.Lines)),
	}
	for _, line := range in.Lines {
		if line.Quantity <= 0 {
			return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be positive").
				WithDetails(map[string]any{"product_id": line.Product.ID.String()})
		}
		if line.Product.PriceCents < 0 {
			return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "product price must not be negative").
				WithDetails(map[string]any{"product_id": line.Product.ID.String()})
		}
		unit := EffectivePrice(line.Product, in.At)
		lineTotal := unit * int64(line.Quantity)
		out.Lines = append(out.Lines, PricedLine{
			ProductID:      line.Product.ID,
			VariantID:      line.VariantID,
			SKU:            line.Product.SKU,
			Name:           line.Product.Name,
			Quantity:       line.Quantity,
			UnitPriceCents: unit,
			LineTotalCents: lineTotal,
		})
		out.SubtotalCents += lineTotal
	}

	out.DiscountCents = CouponDiscount(in.Coupon, out.SubtotalCents)
	out.TaxableCents = out.SubtotalCents - out.DiscountCents
	out.TaxCents = roundCents(decimal.NewFromInt(out.TaxableCents).Mul(in.Store.TaxRate))
	out.ShippingCents = Shipping(out.SubtotalCents, in.Store)
	out.TotalCents = out.TaxableCents + out.TaxCents + out.ShippingCents
	return out, nil
}

// EffectivePrice applies the product's own discount when it is active at t.
// The discount window is [start, end); unset bounds are open.
func EffectivePrice(p models.Product, t time.Time) int64 {
	if !discountActive(p, t) {
		return p.PriceCents
	}
	var off int64
	switch p.DiscountType {
	case enums.DiscountTypePercentage:
		off = roundCents(decimal.NewFromInt(p.PriceCents).Mul(p.DiscountValue).Div(hundred))
	case enums.DiscountTypeFixed:
		off = roundCents(p.DiscountValue)
	}
	return clamp(p.PriceCents-off, 0, p.PriceCents)
}

func discountActive(p models.Product, t time.Time) bool {
	switch p.DiscountType {
	case enums.DiscountTypePercentage, enums.DiscountTypeFixed:
	default:
		return false
	}
	if !p.DiscountValue.IsPositive() {
		return false
	}
	if p.DiscountStartsAt != nil && t.Before(*p.DiscountStartsAt) {
		return false
	}
	if p.DiscountEndsAt != nil && !t.Before(*p.DiscountEndsAt) {
		return false
	}
	return true
}

// CouponDiscount computes the coupon discount against subtotal. Percentage
// coupons are capped by MaxDiscountCents; every discount is capped by subtotal.
func CouponDiscount(c *models.Coupon, subtotalCents int64) int64 {
	if c == nil || subtotalCents <= 0 || !c.Value.IsPositive() {
		return 0
	}
	var discount int64
	switch c.Type {
	case enums.CouponTypePercentage:
		discount = roundCents(decimal.NewFromInt(subtotalCents).Mul(c.Value).Div(hundred))
		if c.MaxDiscountCents != nil && discount > *c.MaxDiscountCents {
			discount = *c.MaxDiscountCents
		}
	case enums.CouponTypeFixed:
		discount = roundCents(c.Value)
	}
	return clamp(discount, 0, subtotalCents)
}

// Shipping is free once the pre-discount subtotal reaches the threshold.
func Shipping(subtotalCents int64, cfg StoreConfig) int64 {
	if cfg.FreeShippingThresholdCents > 0 && subtotalCents >= cfg.FreeShippingThresholdCents {
		return 0
	}
	return cfg.ShippingFeeCents
}

// roundCents rounds half away from zero to a whole minor unit.
func roundCents(v decimal.Decimal) int64 {
	return v.Round(0).IntPart()
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
