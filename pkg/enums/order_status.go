package enums

// OrderStatus tracks fulfillment progress of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var orderStatuses = newSet("order status",
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
)

func (v OrderStatus) String() string { return string(v) }

func (v OrderStatus) IsValid() bool { return orderStatuses.has(v) }

func ParseOrderStatus(value string) (OrderStatus, error) { return orderStatuses.parse(value) }
