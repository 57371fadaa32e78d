package models

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPartial   OrderStatus = "partially_filled"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRejected  OrderStatus = "rejected"
)

func (status OrderStatus) IsTradingAllowed() bool {
	return status == OrderStatusPending || status == OrderStatusPartial
}

// IsTerminal reports whether the status may no longer change. Terminal
// states never re-enter pending or partially filled.
func (status OrderStatus) IsTerminal() bool {
	return status == OrderStatusFilled || status == OrderStatusCancelled || status == OrderStatusRejected
}
