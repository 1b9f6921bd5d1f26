package enums

// InventoryReason labels rows in the inventory movement ledger.
type InventoryReason string

const (
	InventoryReasonReservation InventoryReason = "reservation"
	InventoryReasonRestock     InventoryReason = "restock"
	InventoryReasonAdjustment  InventoryReason = "adjustment"
	InventoryReasonCorrection  InventoryReason = "correction"
	InventoryReasonDamage      InventoryReason = "damage"
	InventoryReasonReturn      InventoryReason = "return"
)

var inventoryReasons = newSet("inventory reason",
	InventoryReasonReservation,
	InventoryReasonRestock,
	InventoryReasonAdjustment,
	InventoryReasonCorrection,
	InventoryReasonDamage,
	InventoryReasonReturn,
)

func (v InventoryReason) String() string { return string(v) }

func (v InventoryReason) IsValid() bool { return inventoryReasons.has(v) }

func ParseInventoryReason(value string) (InventoryReason, error) {
	return inventoryReasons.parse(value)
}

// OrderLinked reports whether movements with this reason belong to an order.
func (v InventoryReason) OrderLinked() bool {
	return v == InventoryReasonReservation || v == InventoryReasonRestock
}
