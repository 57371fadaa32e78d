package models

type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

func (s OrderSide) Sign() float64 {
	if s == OrderSideSell {
		return -1
	}

	return 1
}
