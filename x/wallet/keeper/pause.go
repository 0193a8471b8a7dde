package keeper

import (
	"context"
	"encoding/json"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/remitwise/remitwise/x/wallet/types"
)

// Pause trips the circuit breaker. Pause-admin only. While paused every
// mutating entry point fails fast with ErrContractPaused before any
// authorization runs; only Unpause and AcceptAdmin stay callable so the
// wallet can always recover.
func (k Keeper) Pause(ctx context.Context, caller string) error {
	state, err := k.GetPauseState(ctx)
	if err != nil {
		return err
	}
	if caller != state.PauseAdmin {
		return errorsmod.Wrapf(types.ErrUnauthorized, "caller %s is not the pause admin", caller)
	}

	state.Paused = true
	if err := k.setPauseState(ctx, state); err != nil {
		return err
	}

	sdkCtx, now := contextNow(ctx)
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"wallet_paused",
		sdk.NewAttribute("paused_by", caller),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", now.Unix())),
	))

	return nil
}

// Unpause clears the circuit breaker. Pause-admin only; exempt from the
// pause gate by construction.
func (k Keeper) Unpause(ctx context.Context, caller string) error {
	state, err := k.GetPauseState(ctx)
	if err != nil {
		return err
	}
	if caller != state.PauseAdmin {
		return errorsmod.Wrapf(types.ErrUnauthorized, "caller %s is not the pause admin", caller)
	}

	state.Paused = false
	if err := k.setPauseState(ctx, state); err != nil {
		return err
	}

	sdkCtx, now := contextNow(ctx)
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"wallet_unpaused",
		sdk.NewAttribute("unpaused_by", caller),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", now.Unix())),
	))

	return nil
}

// IsPaused reports the circuit-breaker flag. Reads stay available while
// paused.
func (k Keeper) IsPaused(ctx context.Context) bool {
	state, err := k.GetPauseState(ctx)
	if err != nil {
		return false
	}
	return state.Paused
}

// SetPauseAdmin rotates the pause admin immediately. Owner only. This is
// the fast remediation path, deliberately distinct from the timelocked
// rotation below: a compromised pause admin must be replaceable at once.
func (k Keeper) SetPauseAdmin(ctx context.Context, caller, newAdmin string) error {
	if err := k.requireNotPaused(ctx); err != nil {
		return err
	}
	if err := k.requireOwner(ctx, caller); err != nil {
		return err
	}
	if newAdmin == "" {
		return errorsmod.Wrap(types.ErrInvalidRole, "pause admin cannot be empty")
	}

	state, err := k.GetPauseState(ctx)
	if err != nil {
		return err
	}
	state.PauseAdmin = newAdmin
	if err := k.setPauseState(ctx, state); err != nil {
		return err
	}

	sdkCtx, now := contextNow(ctx)
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"wallet_pause_admin_set",
		sdk.NewAttribute("new_admin", newAdmin),
		sdk.NewAttribute("set_by", caller),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", now.Unix())),
	))

	return nil
}

// ---------------------------------------------------------------------
// Timelocked admin rotation
// ---------------------------------------------------------------------

// ProposeAdmin records a pending pause-admin rotation. Current-admin
// only; at most one rotation may be in flight.
func (k Keeper) ProposeAdmin(ctx context.Context, caller, newAdmin string) error {
	if err := k.requireNotPaused(ctx); err != nil {
		return err
	}

	state, err := k.GetPauseState(ctx)
	if err != nil {
		return err
	}
	if caller != state.PauseAdmin {
		return errorsmod.Wrapf(types.ErrUnauthorized, "caller %s is not the pause admin", caller)
	}
	if newAdmin == "" {
		return errorsmod.Wrap(types.ErrInvalidRole, "proposed admin cannot be empty")
	}
	if has, err := k.AdminRotation.Has(ctx); err == nil && has {
		return types.ErrRotationAlreadyPending
	}

	sdkCtx, now := contextNow(ctx)
	rotation := types.AdminRotation{
		ProposedAdmin:  newAdmin,
		ProposedAtUnix: now.Unix(),
	}
	if err := k.setAdminRotation(ctx, rotation); err != nil {
		return err
	}

	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"wallet_admin_rotation_proposed",
		sdk.NewAttribute("proposed_admin", newAdmin),
		sdk.NewAttribute("proposed_by", caller),
		sdk.NewAttribute("accept_after", fmt.Sprintf("%d", rotation.ProposedAtUnix+types.RotationTimelockSeconds)),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", rotation.ProposedAtUnix)),
	))

	return nil
}

// AcceptAdmin finalizes a pending rotation once the timelock elapsed.
// Callable by anyone — the proposed admin asserts control through its own
// key afterwards — and exempt from the pause gate so a paused wallet can
// still complete recovery.
func (k Keeper) AcceptAdmin(ctx context.Context, caller string) error {
	rotation, err := k.getAdminRotation(ctx)
	if err != nil {
		return err
	}

	_, now := contextNow(ctx)
	eligibleAt := rotation.ProposedAtUnix + types.RotationTimelockSeconds
	if now.Unix() < eligibleAt {
		return errorsmod.Wrapf(types.ErrTimelockNotElapsed,
			"rotation accepts at %d, now %d", eligibleAt, now.Unix())
	}

	state, err := k.GetPauseState(ctx)
	if err != nil {
		return err
	}
	previous := state.PauseAdmin
	state.PauseAdmin = rotation.ProposedAdmin
	if err := k.setPauseState(ctx, state); err != nil {
		return err
	}
	if err := k.AdminRotation.Remove(ctx); err != nil {
		return err
	}

	sdkCtx, _ := unwrapSDKContext(ctx)
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"wallet_admin_rotation_accepted",
		sdk.NewAttribute("new_admin", rotation.ProposedAdmin),
		sdk.NewAttribute("previous_admin", previous),
		sdk.NewAttribute("accepted_by", caller),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", now.Unix())),
	))

	return nil
}

// CancelAdminRotation clears the pending rotation. Current-admin only.
func (k Keeper) CancelAdminRotation(ctx context.Context, caller string) error {
	if err := k.requireNotPaused(ctx); err != nil {
		return err
	}

	state, err := k.GetPauseState(ctx)
	if err != nil {
		return err
	}
	if caller != state.PauseAdmin {
		return errorsmod.Wrapf(types.ErrUnauthorized, "caller %s is not the pause admin", caller)
	}

	rotation, err := k.getAdminRotation(ctx)
	if err != nil {
		return err
	}
	if err := k.AdminRotation.Remove(ctx); err != nil {
		return err
	}

	sdkCtx, now := contextNow(ctx)
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"wallet_admin_rotation_cancelled",
		sdk.NewAttribute("proposed_admin", rotation.ProposedAdmin),
		sdk.NewAttribute("cancelled_by", caller),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", now.Unix())),
	))

	return nil
}

// GetAdminRotation returns the pending rotation, if any.
func (k Keeper) GetAdminRotation(ctx context.Context) (*types.AdminRotation, error) {
	return k.getAdminRotation(ctx)
}

func (k Keeper) getAdminRotation(ctx context.Context) (*types.AdminRotation, error) {
	raw, err := k.AdminRotation.Get(ctx)
	if err != nil {
		return nil, types.ErrNoRotationPending
	}
	var rotation types.AdminRotation
	if err := json.Unmarshal([]byte(raw), &rotation); err != nil {
		return nil, fmt.Errorf("decode admin rotation: %w", err)
	}
	return &rotation, nil
}

func (k Keeper) setAdminRotation(ctx context.Context, rotation types.AdminRotation) error {
	raw, err := json.Marshal(rotation)
	if err != nil {
		return err
	}
	return k.AdminRotation.Set(ctx, string(raw))
}
