package types

import errorsmod "cosmossdk.io/errors"

var (
	ErrNotInitialized         = errorsmod.Register(ModuleName, 2, "wallet is not initialized")
	ErrAlreadyInitialized     = errorsmod.Register(ModuleName, 3, "wallet is already initialized")
	ErrUnauthorized           = errorsmod.Register(ModuleName, 4, "caller lacks required role")
	ErrNotFound               = errorsmod.Register(ModuleName, 5, "record not found")
	ErrInvalidProposalState   = errorsmod.Register(ModuleName, 6, "proposal is in a terminal state")
	ErrAlreadySigned          = errorsmod.Register(ModuleName, 7, "signer already signed this proposal")
	ErrNotASigner             = errorsmod.Register(ModuleName, 8, "caller is not in the signer set")
	ErrProposalExpired        = errorsmod.Register(ModuleName, 9, "proposal signature window has expired")
	ErrContractPaused         = errorsmod.Register(ModuleName, 10, "wallet is paused")
	ErrEmergencyModeDisabled  = errorsmod.Register(ModuleName, 11, "emergency mode is disabled")
	ErrDuplicateMember        = errorsmod.Register(ModuleName, 12, "member already exists")
	ErrRotationAlreadyPending = errorsmod.Register(ModuleName, 13, "an admin rotation is already pending")
	ErrTimelockNotElapsed     = errorsmod.Register(ModuleName, 14, "rotation timelock has not elapsed")
	ErrInvalidThreshold       = errorsmod.Register(ModuleName, 15, "threshold is zero or exceeds signer count")
	ErrLimitExceeded          = errorsmod.Register(ModuleName, 16, "amount exceeds spending limit")
	ErrInsufficientFunds      = errorsmod.Register(ModuleName, 17, "insufficient funds")
	ErrInvalidAmount          = errorsmod.Register(ModuleName, 18, "amount must be positive")
	ErrInvalidRole            = errorsmod.Register(ModuleName, 19, "invalid role for this operation")
	ErrInvalidAction          = errorsmod.Register(ModuleName, 20, "invalid or mismatched proposal action")
	ErrNoRotationPending      = errorsmod.Register(ModuleName, 21, "no admin rotation is pending")
)
