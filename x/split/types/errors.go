package types

import errorsmod "cosmossdk.io/errors"

var (
	ErrNotInitialized     = errorsmod.Register(ModuleName, 2, "split is not initialized for this owner")
	ErrAlreadyInitialized = errorsmod.Register(ModuleName, 3, "split is already initialized for this owner")
	ErrUnauthorized       = errorsmod.Register(ModuleName, 4, "caller is not the split owner")
	ErrInvalidPercentages = errorsmod.Register(ModuleName, 5, "percentages must each be at most 100 and sum to 100")
	ErrInvalidAmount      = errorsmod.Register(ModuleName, 6, "amount must be non-negative")
)
