package enums

// CouponRejection is the discriminated reason a coupon cannot be applied.
type CouponRejection string

const (
	CouponRejectionNotFound     CouponRejection = "not_found"
	CouponRejectionInactive     CouponRejection = "inactive"
	CouponRejectionExpired      CouponRejection = "expired"
	CouponRejectionBelowMinimum CouponRejection = "below_minimum"
	CouponRejectionLimitReached CouponRejection = "limit_reached"
)

var couponRejections = newSet("coupon rejection",
	CouponRejectionNotFound,
	CouponRejectionInactive,
	CouponRejectionExpired,
	CouponRejectionBelowMinimum,
	CouponRejectionLimitReached,
)

func (v CouponRejection) String() string { return string(v) }

func (v CouponRejection) IsValid() bool { return couponRejections.has(v) }

func ParseCouponRejection(value string) (CouponRejection, error) {
	return couponRejections.parse(value)
}
