package models

// All lists every persisted model; used by sqlite AutoMigrate in dev and tests.
func All() []any {
	return []any{
		&Product{},
		&InventoryMovement{},
		&Cart{},
		&CartItem{},
		&Coupon{},
		&Order{},
		&OrderItem{},
		&OutboxEvent{},
	}
}
