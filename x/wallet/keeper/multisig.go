package keeper

import (
	"context"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/remitwise/remitwise/x/wallet/types"
)

// ConfigureMultisig replaces the active signer policy. Owner or Admin
// only. Signers must be active members. Already-terminal proposals are
// untouched; pending proposals are evaluated against the new policy from
// the next signature on.
func (k Keeper) ConfigureMultisig(
	ctx context.Context,
	caller string,
	threshold int,
	signers []string,
	proposerSelfSigns bool,
) error {
	if err := k.requireNotPaused(ctx); err != nil {
		return err
	}
	if err := k.requireInitialized(ctx); err != nil {
		return err
	}
	if err := k.requireOwnerOrAdmin(ctx, caller); err != nil {
		return err
	}

	config := types.MultisigConfig{
		Threshold:         threshold,
		Signers:           signers,
		ProposerSelfSigns: proposerSelfSigns,
	}
	if err := config.Validate(); err != nil {
		return errorsmod.Wrap(types.ErrInvalidThreshold, err.Error())
	}
	for _, signer := range signers {
		member, err := k.getMember(ctx, signer)
		if err != nil {
			return errorsmod.Wrapf(types.ErrNotFound, "signer %s is not a member", signer)
		}
		if !member.Active() {
			return errorsmod.Wrapf(types.ErrInvalidRole, "signer %s is revoked", signer)
		}
	}

	if err := k.setMultisigConfig(ctx, config); err != nil {
		return err
	}

	sdkCtx, now := contextNow(ctx)
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"wallet_multisig_configured",
		sdk.NewAttribute("threshold", fmt.Sprintf("%d", threshold)),
		sdk.NewAttribute("signers", fmt.Sprintf("%d", len(signers))),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", now.Unix())),
	))

	return nil
}

// GetMultisigConfig returns the active signer policy.
func (k Keeper) GetMultisigConfig(ctx context.Context) (*types.MultisigConfig, error) {
	return k.getMultisigConfig(ctx)
}

// ProposeTransaction opens a proposal for a privileged action. The caller
// must be in the signer set. Emergency transfers go through
// ProposeEmergencyTransfer, which enforces the emergency gate.
//
// When the config's ProposerSelfSigns policy is on and the proposer is a
// signer, the signature set is seeded with the proposer; a threshold of
// one then executes within this same call.
func (k Keeper) ProposeTransaction(
	ctx context.Context,
	caller string,
	action types.Action,
) (uint64, error) {
	if err := k.requireNotPaused(ctx); err != nil {
		return 0, err
	}
	if err := k.requireInitialized(ctx); err != nil {
		return 0, err
	}
	if action.Kind == types.ActionEmergencyTransfer {
		return 0, errorsmod.Wrap(types.ErrInvalidAction, "emergency transfers are proposed via the emergency path")
	}
	return k.createProposal(ctx, caller, action)
}

func (k Keeper) createProposal(
	ctx context.Context,
	caller string,
	action types.Action,
) (uint64, error) {
	if err := action.Validate(); err != nil {
		return 0, errorsmod.Wrap(types.ErrInvalidAction, err.Error())
	}

	member, err := k.getMember(ctx, caller)
	if err != nil || !member.Active() {
		return 0, errorsmod.Wrapf(types.ErrNotASigner, "proposer %s is not an active member", caller)
	}
	config, err := k.getMultisigConfig(ctx)
	if err != nil {
		return 0, err
	}
	if !config.HasSigner(caller) {
		return 0, errorsmod.Wrapf(types.ErrNotASigner, "proposer %s", caller)
	}

	id, err := k.nextProposalID(ctx)
	if err != nil {
		return 0, err
	}

	sdkCtx, now := contextNow(ctx)
	nowUnix := now.Unix()

	proposal := types.Proposal{
		ID:            id,
		Proposer:      caller,
		Action:        action,
		Signatures:    []string{},
		CreatedAtUnix: nowUnix,
		ExpiresAtUnix: nowUnix + types.SignatureWindowSeconds,
		Status:        types.ProposalStatusPending,
	}
	if config.ProposerSelfSigns {
		proposal.Signatures = []string{caller}
	}

	if err := k.setProposal(ctx, proposal); err != nil {
		return 0, err
	}

	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"wallet_proposal_created",
		sdk.NewAttribute("proposal_id", fmt.Sprintf("%d", id)),
		sdk.NewAttribute("proposer", caller),
		sdk.NewAttribute("action", string(action.Kind)),
		sdk.NewAttribute("expires_at", fmt.Sprintf("%d", proposal.ExpiresAtUnix)),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", nowUnix)),
	))

	// The implicit self-signature may already satisfy the threshold.
	if len(proposal.Signatures) >= k.thresholdFor(ctx, config, action.Kind) {
		if err := k.executeProposal(ctx, &proposal, nowUnix); err != nil {
			return 0, err
		}
		if err := k.setProposal(ctx, proposal); err != nil {
			return 0, err
		}
	}

	return id, nil
}

// SignTransaction adds the caller's signature to a pending proposal.
// Signing is a set union: one vote per signer regardless of how often it
// is attempted. The signature that reaches the threshold executes the
// action atomically within this call; no separate execute step exists.
func (k Keeper) SignTransaction(ctx context.Context, caller string, id uint64) error {
	if err := k.requireNotPaused(ctx); err != nil {
		return err
	}
	if err := k.requireInitialized(ctx); err != nil {
		return err
	}

	proposal, err := k.getProposal(ctx, id)
	if err != nil {
		return err
	}
	if proposal.Status.Terminal() {
		return errorsmod.Wrapf(types.ErrInvalidProposalState, "proposal %d is %s", id, proposal.Status)
	}

	config, err := k.getMultisigConfig(ctx)
	if err != nil {
		return err
	}
	member, memberErr := k.getMember(ctx, caller)
	if memberErr != nil || !member.Active() || !config.HasSigner(caller) {
		return errorsmod.Wrapf(types.ErrNotASigner, "caller %s", caller)
	}
	if proposal.HasSigned(caller) {
		return errorsmod.Wrapf(types.ErrAlreadySigned, "signer %s on proposal %d", caller, id)
	}

	sdkCtx, now := contextNow(ctx)
	nowUnix := now.Unix()

	if nowUnix > proposal.ExpiresAtUnix {
		// Lazy transition: the stale Pending proposal becomes Expired as a
		// side effect of being observed, then the call fails.
		proposal.Status = types.ProposalStatusExpired
		proposal.ResolvedAtUnix = nowUnix
		if err := k.setProposal(ctx, *proposal); err != nil {
			return err
		}
		emitEventIfPossible(sdkCtx, sdk.NewEvent(
			"wallet_proposal_expired",
			sdk.NewAttribute("proposal_id", fmt.Sprintf("%d", id)),
			sdk.NewAttribute("timestamp", fmt.Sprintf("%d", nowUnix)),
		))
		return errorsmod.Wrapf(types.ErrProposalExpired, "proposal %d expired at %d", id, proposal.ExpiresAtUnix)
	}

	if proposal.Action.Kind == types.ActionEmergencyTransfer {
		emergency, err := k.getEmergencyConfig(ctx)
		if err != nil {
			return err
		}
		if !emergency.Enabled {
			return errorsmod.Wrapf(types.ErrEmergencyModeDisabled, "proposal %d is permanently unexecutable", id)
		}
	}

	proposal.Signatures = append(proposal.Signatures, caller)

	if len(proposal.Signatures) >= k.thresholdFor(ctx, config, proposal.Action.Kind) {
		if err := k.executeProposal(ctx, proposal, nowUnix); err != nil {
			return err
		}
	} else {
		emitEventIfPossible(sdkCtx, sdk.NewEvent(
			"wallet_proposal_signed",
			sdk.NewAttribute("proposal_id", fmt.Sprintf("%d", id)),
			sdk.NewAttribute("signer", caller),
			sdk.NewAttribute("signatures", fmt.Sprintf("%d", len(proposal.Signatures))),
			sdk.NewAttribute("timestamp", fmt.Sprintf("%d", nowUnix)),
		))
	}

	return k.setProposal(ctx, *proposal)
}

// thresholdFor resolves the approval count a proposal kind requires.
// Emergency transfers use the separately configured emergency threshold.
func (k Keeper) thresholdFor(ctx context.Context, config *types.MultisigConfig, kind types.ActionKind) int {
	if kind == types.ActionEmergencyTransfer {
		if emergency, err := k.getEmergencyConfig(ctx); err == nil && emergency.Threshold > 0 {
			return emergency.Threshold
		}
	}
	return config.Threshold
}

// executeProposal applies the action and marks the proposal Executed.
// Runs inside the call whose signature crossed the threshold; any failure
// aborts that call and leaves the proposal Pending with the new
// signature unrecorded.
func (k Keeper) executeProposal(ctx context.Context, proposal *types.Proposal, nowUnix int64) error {
	switch proposal.Action.Kind {
	case types.ActionTransfer, types.ActionEmergencyTransfer:
		amount, err := proposal.Action.AmountInt()
		if err != nil {
			return errorsmod.Wrap(types.ErrInvalidAction, err.Error())
		}
		if err := k.transferFunds(ctx, proposal.Proposer, proposal.Action.Recipient, amount); err != nil {
			return err
		}
	case types.ActionRoleChange:
		member, err := k.getMember(ctx, proposal.Action.Member)
		if err != nil {
			return err
		}
		if member.Role == types.RoleOwner {
			return errorsmod.Wrap(types.ErrInvalidRole, "owner role cannot be changed by proposal")
		}
		member.Role = proposal.Action.Role
		if err := k.setMember(ctx, *member); err != nil {
			return err
		}
	case types.ActionConfigChange:
		current, err := k.getMultisigConfig(ctx)
		if err != nil {
			return err
		}
		next := types.MultisigConfig{
			Threshold:         proposal.Action.Threshold,
			Signers:           proposal.Action.Signers,
			ProposerSelfSigns: current.ProposerSelfSigns,
		}
		if err := next.Validate(); err != nil {
			return errorsmod.Wrap(types.ErrInvalidThreshold, err.Error())
		}
		if err := k.setMultisigConfig(ctx, next); err != nil {
			return err
		}
	default:
		return errorsmod.Wrapf(types.ErrInvalidAction, "kind %q", proposal.Action.Kind)
	}

	proposal.Status = types.ProposalStatusExecuted
	proposal.ExecutedAtUnix = nowUnix
	proposal.ResolvedAtUnix = nowUnix

	sdkCtx, _ := unwrapSDKContext(ctx)
	event := sdk.NewEvent(
		"wallet_proposal_executed",
		sdk.NewAttribute("proposal_id", fmt.Sprintf("%d", proposal.ID)),
		sdk.NewAttribute("action", string(proposal.Action.Kind)),
		sdk.NewAttribute("signatures", fmt.Sprintf("%d", len(proposal.Signatures))),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", nowUnix)),
	)
	if proposal.Action.Amount != "" {
		event = event.AppendAttributes(sdk.NewAttribute("amount", proposal.Action.Amount))
	}
	emitEventIfPossible(sdkCtx, event)

	return nil
}

// CancelTransaction moves a pending proposal to the Cancelled terminal
// state. Proposer or Owner only.
func (k Keeper) CancelTransaction(ctx context.Context, caller string, id uint64) error {
	if err := k.requireNotPaused(ctx); err != nil {
		return err
	}
	if err := k.requireInitialized(ctx); err != nil {
		return err
	}

	proposal, err := k.getProposal(ctx, id)
	if err != nil {
		return err
	}
	if proposal.Status.Terminal() {
		return errorsmod.Wrapf(types.ErrInvalidProposalState, "proposal %d is %s", id, proposal.Status)
	}

	owner, err := k.GetOwner(ctx)
	if err != nil {
		return err
	}
	if caller != proposal.Proposer && caller != owner {
		return errorsmod.Wrapf(types.ErrUnauthorized, "caller %s may not cancel proposal %d", caller, id)
	}

	sdkCtx, now := contextNow(ctx)
	proposal.Status = types.ProposalStatusCancelled
	proposal.ResolvedAtUnix = now.Unix()
	if err := k.setProposal(ctx, *proposal); err != nil {
		return err
	}

	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"wallet_proposal_cancelled",
		sdk.NewAttribute("proposal_id", fmt.Sprintf("%d", id)),
		sdk.NewAttribute("cancelled_by", caller),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", now.Unix())),
	))

	return nil
}

// Withdraw executes a single-party transfer when the amount fits in the
// caller's available spending limit for the current period. Larger
// amounts must go through the proposal path; this entry point refuses
// them with ErrLimitExceeded rather than opening a proposal implicitly.
func (k Keeper) Withdraw(ctx context.Context, caller, recipient string, amount sdkmath.Int) error {
	if err := k.requireNotPaused(ctx); err != nil {
		return err
	}
	if err := k.requireInitialized(ctx); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return types.ErrInvalidAmount
	}

	member, err := k.getMember(ctx, caller)
	if err != nil {
		return errorsmod.Wrapf(types.ErrUnauthorized, "caller %s is not a member", caller)
	}
	if !member.Active() {
		return errorsmod.Wrapf(types.ErrUnauthorized, "member %s is revoked", caller)
	}

	sdkCtx, now := contextNow(ctx)
	nowUnix := now.Unix()
	rollPeriod(member, nowUnix)

	unlimited := member.Role == types.RoleOwner || member.Role == types.RoleAdmin || member.LimitInt().IsZero()
	if !unlimited {
		available := member.LimitInt().Sub(member.SpentInt())
		if amount.GT(available) {
			return errorsmod.Wrapf(types.ErrLimitExceeded,
				"amount %s exceeds available limit %s; route through propose_transaction",
				amount, available)
		}
	}

	if err := k.transferFunds(ctx, caller, recipient, amount); err != nil {
		return err
	}

	member.SpentInPeriod = member.SpentInt().Add(amount).String()
	if err := k.setMember(ctx, *member); err != nil {
		return err
	}

	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"wallet_withdrawal",
		sdk.NewAttribute("member", caller),
		sdk.NewAttribute("recipient", recipient),
		sdk.NewAttribute("amount", amount.String()),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", nowUnix)),
	))

	return nil
}

func (k Keeper) transferFunds(ctx context.Context, from, to string, amount sdkmath.Int) error {
	if k.bank == nil {
		return errorsmod.Wrap(types.ErrInsufficientFunds, "no bank keeper is wired")
	}
	if err := k.bank.Transfer(ctx, from, to, amount); err != nil {
		return errorsmod.Wrap(types.ErrInsufficientFunds, err.Error())
	}
	return nil
}

// GetProposal loads a proposal from the active index, lazily reporting
// (but not persisting) expiry: a stale Pending proposal reads back as
// Expired so callers never act on a proposal that can no longer execute.
func (k Keeper) GetProposal(ctx context.Context, id uint64) (*types.Proposal, error) {
	proposal, err := k.getProposal(ctx, id)
	if err != nil {
		return nil, err
	}
	if proposal.Status == types.ProposalStatusPending {
		_, now := contextNow(ctx)
		if now.Unix() > proposal.ExpiresAtUnix {
			proposal.Status = types.ProposalStatusExpired
		}
	}
	return proposal, nil
}
