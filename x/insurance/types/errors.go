package types

import errorsmod "cosmossdk.io/errors"

var (
	ErrNotFound         = errorsmod.Register(ModuleName, 2, "policy not found")
	ErrScheduleNotFound = errorsmod.Register(ModuleName, 3, "premium schedule not found")
	ErrUnauthorized     = errorsmod.Register(ModuleName, 4, "caller is not the owner")
	ErrInvalidAmount    = errorsmod.Register(ModuleName, 5, "amount must be positive")
	ErrPolicyInactive   = errorsmod.Register(ModuleName, 6, "policy is not active")
	ErrInvalidDueDate   = errorsmod.Register(ModuleName, 7, "due date must be in the future")
	ErrBatchTooLarge    = errorsmod.Register(ModuleName, 8, "batch exceeds the maximum size")
)
