package types

import errorsmod "cosmossdk.io/errors"

var (
	ErrNotFound         = errorsmod.Register(ModuleName, 2, "bill not found")
	ErrAlreadyPaid      = errorsmod.Register(ModuleName, 3, "bill is already paid")
	ErrInvalidAmount    = errorsmod.Register(ModuleName, 4, "amount must be positive")
	ErrInvalidFrequency = errorsmod.Register(ModuleName, 5, "recurring bills need a positive frequency")
	ErrUnauthorized     = errorsmod.Register(ModuleName, 6, "caller is not the bill owner")
	ErrBatchTooLarge    = errorsmod.Register(ModuleName, 7, "batch exceeds the maximum size")
)
