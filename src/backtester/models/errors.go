package models

import "errors"

var (
	ErrInvalidOrderVolumeZero = errors.New("order quantity must be greater than 0")
	ErrInvalidLimitPrice      = errors.New("limit price must be greater than 0")
	ErrInvalidStopPrice       = errors.New("stop price must be greater than 0")
	ErrMissingLimitPrice      = errors.New("limit order requires a limit price")
	ErrMissingStopPrice       = errors.New("stop order requires a stop price")
	ErrOrderTerminal          = errors.New("order is in a terminal state")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrInsufficientPosition   = errors.New("insufficient position")
	ErrNoPriceAvailable       = errors.New("no price available")
	ErrNonMonotonicTimestamp  = errors.New("bar timestamps must be non-decreasing")
)
