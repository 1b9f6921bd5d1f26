package enums

// CouponType selects how a coupon value is applied to the subtotal.
type CouponType string

const (
	CouponTypePercentage CouponType = "percentage"
	CouponTypeFixed      CouponType = "fixed"
)

var couponTypes = newSet("coupon type",
	CouponTypePercentage,
	CouponTypeFixed,
)

func (v CouponType) String() string { return string(v) }

func (v CouponType) IsValid() bool { return couponTypes.has(v) }

func ParseCouponType(value string) (CouponType, error) { return couponTypes.parse(value) }
