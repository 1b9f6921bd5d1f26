package enums

// DiscountType describes a product's own time-boxed discount.
type DiscountType string

const (
	DiscountTypeNone       DiscountType = "none"
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

var discountTypes = newSet("discount type",
	DiscountTypeNone,
	DiscountTypePercentage,
	DiscountTypeFixed,
)

func (v DiscountType) String() string { return string(v) }

func (v DiscountType) IsValid() bool { return discountTypes.has(v) }

func ParseDiscountType(value string) (DiscountType, error) { return discountTypes.parse(value) }
