package types

import errorsmod "cosmossdk.io/errors"

var (
	ErrSourcesNotConfigured = errorsmod.Register(ModuleName, 2, "report sources are not configured")
	ErrReportNotFound       = errorsmod.Register(ModuleName, 3, "report not found")
	ErrUnauthorized         = errorsmod.Register(ModuleName, 4, "caller is not authorized")
	ErrInvalidAmount        = errorsmod.Register(ModuleName, 5, "amount cannot be negative")
)
