package keeper

import (
	"context"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/remitwise/remitwise/x/wallet/types"
)

// ConfigureEmergency sets the reduced-threshold override policy. Owner or
// Admin only. The policy is configured ahead of any declaration; enabling
// emergency mode is a separate step.
func (k Keeper) ConfigureEmergency(ctx context.Context, caller string, threshold int) error {
	if err := k.requireNotPaused(ctx); err != nil {
		return err
	}
	if err := k.requireInitialized(ctx); err != nil {
		return err
	}
	if err := k.requireOwnerOrAdmin(ctx, caller); err != nil {
		return err
	}

	config, err := k.getMultisigConfig(ctx)
	if err != nil {
		return err
	}
	if threshold <= 0 || threshold > len(config.Signers) {
		return errorsmod.Wrapf(types.ErrInvalidThreshold,
			"emergency threshold %d invalid for %d signers", threshold, len(config.Signers))
	}

	emergency, err := k.getEmergencyConfig(ctx)
	if err != nil {
		return err
	}
	emergency.Threshold = threshold
	if err := k.setEmergencyConfig(ctx, *emergency); err != nil {
		return err
	}

	sdkCtx, now := contextNow(ctx)
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"wallet_emergency_configured",
		sdk.NewAttribute("threshold", fmt.Sprintf("%d", threshold)),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", now.Unix())),
	))

	return nil
}

// SetEmergencyMode toggles the override flag. Owner or Admin only.
// Disabling does not cancel in-flight emergency proposals; they become
// permanently unexecutable and must be cancelled or left to expire.
func (k Keeper) SetEmergencyMode(ctx context.Context, caller string, enabled bool) error {
	if err := k.requireNotPaused(ctx); err != nil {
		return err
	}
	if err := k.requireInitialized(ctx); err != nil {
		return err
	}
	if err := k.requireOwnerOrAdmin(ctx, caller); err != nil {
		return err
	}

	emergency, err := k.getEmergencyConfig(ctx)
	if err != nil {
		return err
	}
	emergency.Enabled = enabled
	if err := k.setEmergencyConfig(ctx, *emergency); err != nil {
		return err
	}

	sdkCtx, now := contextNow(ctx)
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"wallet_emergency_mode",
		sdk.NewAttribute("enabled", fmt.Sprintf("%t", enabled)),
		sdk.NewAttribute("changed_by", caller),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", now.Unix())),
	))

	return nil
}

// ProposeEmergencyTransfer opens a transfer-only proposal against the
// emergency threshold. Only constructible while emergency mode is on;
// configuration and member management stay out of the emergency scope.
func (k Keeper) ProposeEmergencyTransfer(
	ctx context.Context,
	caller string,
	recipient string,
	amount sdkmath.Int,
) (uint64, error) {
	if err := k.requireNotPaused(ctx); err != nil {
		return 0, err
	}
	if err := k.requireInitialized(ctx); err != nil {
		return 0, err
	}

	emergency, err := k.getEmergencyConfig(ctx)
	if err != nil {
		return 0, err
	}
	if !emergency.Enabled {
		return 0, types.ErrEmergencyModeDisabled
	}

	return k.createProposal(ctx, caller, types.Action{
		Kind:      types.ActionEmergencyTransfer,
		Recipient: recipient,
		Amount:    amount.String(),
	})
}

// IsEmergencyMode reports the override flag.
func (k Keeper) IsEmergencyMode(ctx context.Context) bool {
	emergency, err := k.getEmergencyConfig(ctx)
	if err != nil {
		return false
	}
	return emergency.Enabled
}

// GetEmergencyConfig returns the override policy.
func (k Keeper) GetEmergencyConfig(ctx context.Context) (*types.EmergencyConfig, error) {
	return k.getEmergencyConfig(ctx)
}
