package enums

// OutboxAggregateType identifies the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder   OutboxAggregateType = "order"
	AggregateProduct OutboxAggregateType = "product"
	AggregateCart    OutboxAggregateType = "cart"
)

var aggregateTypes = newSet("aggregate type", AggregateOrder, AggregateProduct, AggregateCart)

func (a OutboxAggregateType) String() string { return string(a) }

func (a OutboxAggregateType) IsValid() bool { return aggregateTypes.has(a) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return aggregateTypes.parse(value)
}

// OutboxEventType names the domain events written to the outbox. Values are
// "<aggregate>.<what happened>" and become the relay routing key.
type OutboxEventType string

const (
	EventOrderCreated        OutboxEventType = "order.created"
	EventOrderStatusChanged  OutboxEventType = "order.status_changed"
	EventOrderCancelled      OutboxEventType = "order.cancelled"
	EventOrderPaymentUpdated OutboxEventType = "order.payment_updated"
	EventInventoryLowStock   OutboxEventType = "inventory.low_stock"
	EventCartMerged          OutboxEventType = "cart.merged"
)

var eventTypes = newSet("event type",
	EventOrderCreated,
	EventOrderStatusChanged,
	EventOrderCancelled,
	EventOrderPaymentUpdated,
	EventInventoryLowStock,
	EventCartMerged,
)

// eventAggregates pins every event type to the aggregate it is keyed by.
var eventAggregates = map[OutboxEventType]OutboxAggregateType{
	EventOrderCreated:        AggregateOrder,
	EventOrderStatusChanged:  AggregateOrder,
	EventOrderCancelled:      AggregateOrder,
	EventOrderPaymentUpdated: AggregateOrder,
	EventInventoryLowStock:   AggregateProduct,
	EventCartMerged:          AggregateCart,
}

func (e OutboxEventType) String() string { return string(e) }

func (e OutboxEventType) IsValid() bool { return eventTypes.has(e) }

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return eventTypes.parse(value)
}

// Aggregate returns the aggregate type the event must be recorded against, or
// "" for unknown events.
func (e OutboxEventType) Aggregate() OutboxAggregateType {
	return eventAggregates[e]
}
