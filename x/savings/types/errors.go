package types

import errorsmod "cosmossdk.io/errors"

var (
	ErrNotFound          = errorsmod.Register(ModuleName, 2, "goal not found")
	ErrUnauthorized      = errorsmod.Register(ModuleName, 3, "caller is not the goal owner")
	ErrInvalidAmount     = errorsmod.Register(ModuleName, 4, "amount must be positive")
	ErrGoalLocked        = errorsmod.Register(ModuleName, 5, "goal is locked against withdrawals")
	ErrInsufficientFunds = errorsmod.Register(ModuleName, 6, "amount exceeds goal balance")
)
