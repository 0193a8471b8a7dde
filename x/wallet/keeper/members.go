package keeper

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/remitwise/remitwise/x/wallet/types"
)

// AddMember registers a new family member. Owner or Admin only. Adding a
// second Owner is rejected; existing addresses are rejected even when
// revoked, since member history is never overwritten.
func (k Keeper) AddMember(
	ctx context.Context,
	caller string,
	addr string,
	role types.Role,
	limit sdkmath.Int,
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

	addr = strings.TrimSpace(addr)
	if addr == "" {
		return errorsmod.Wrap(types.ErrInvalidRole, "member address cannot be empty")
	}
	if role == types.RoleOwner {
		return errorsmod.Wrap(types.ErrInvalidRole, "a wallet has exactly one owner")
	}
	if !role.Valid() || role == types.RoleRevoked {
		return errorsmod.Wrapf(types.ErrInvalidRole, "role %q", role)
	}
	if limit.IsNegative() {
		return errorsmod.Wrap(types.ErrInvalidAmount, "spending limit cannot be negative")
	}
	if has, err := k.Members.Has(ctx, addr); err == nil && has {
		return errorsmod.Wrapf(types.ErrDuplicateMember, "address %s", addr)
	}

	sdkCtx, now := contextNow(ctx)
	nowUnix := now.Unix()
	if err := k.setMember(ctx, types.Member{
		Address:         addr,
		Role:            role,
		SpendingLimit:   limit.String(),
		SpentInPeriod:   "0",
		PeriodStartUnix: nowUnix,
		AddedAtUnix:     nowUnix,
	}); err != nil {
		return err
	}

	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"wallet_member_added",
		sdk.NewAttribute("member", addr),
		sdk.NewAttribute("role", string(role)),
		sdk.NewAttribute("spending_limit", limit.String()),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", nowUnix)),
	))

	return nil
}

// UpdateSpendingLimit changes a member's per-period cap. Owner or Admin
// only. The current period's spend accrual is preserved.
func (k Keeper) UpdateSpendingLimit(
	ctx context.Context,
	caller string,
	addr string,
	newLimit sdkmath.Int,
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
	if newLimit.IsNegative() {
		return errorsmod.Wrap(types.ErrInvalidAmount, "spending limit cannot be negative")
	}

	member, err := k.getMember(ctx, addr)
	if err != nil {
		return err
	}

	oldLimit := member.SpendingLimit
	member.SpendingLimit = newLimit.String()
	if err := k.setMember(ctx, *member); err != nil {
		return err
	}

	sdkCtx, now := contextNow(ctx)
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"wallet_limit_updated",
		sdk.NewAttribute("member", addr),
		sdk.NewAttribute("old_limit", oldLimit),
		sdk.NewAttribute("new_limit", newLimit.String()),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", now.Unix())),
	))

	return nil
}

// RevokeMember sets a member's role to the inert revoked state. Owner
// only. The record stays in the store for audit; revoked members cannot
// propose, sign or withdraw.
func (k Keeper) RevokeMember(ctx context.Context, caller, addr string) error {
	if err := k.requireNotPaused(ctx); err != nil {
		return err
	}
	if err := k.requireOwner(ctx, caller); err != nil {
		return err
	}
	if addr == caller {
		return errorsmod.Wrap(types.ErrInvalidRole, "owner cannot be revoked")
	}

	member, err := k.getMember(ctx, addr)
	if err != nil {
		return err
	}
	if member.Role == types.RoleRevoked {
		return errorsmod.Wrapf(types.ErrInvalidRole, "member %s is already revoked", addr)
	}

	member.Role = types.RoleRevoked
	if err := k.setMember(ctx, *member); err != nil {
		return err
	}

	sdkCtx, now := contextNow(ctx)
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"wallet_member_revoked",
		sdk.NewAttribute("member", addr),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", now.Unix())),
	))

	return nil
}

// GetMember loads a single member record.
func (k Keeper) GetMember(ctx context.Context, addr string) (*types.Member, error) {
	if err := k.requireInitialized(ctx); err != nil {
		return nil, err
	}
	return k.getMember(ctx, addr)
}

// CheckSpendingLimit reports whether addr may spend amount on top of its
// accrual in the current period. Read-only; the period roll is evaluated
// arithmetically, never persisted here.
//
// Rules, in order: unknown or revoked address → false; negative amount →
// false; Owner and Admin → always true; limit 0 → unlimited → true;
// otherwise spent-in-current-period + amount must stay within the limit.
func (k Keeper) CheckSpendingLimit(ctx context.Context, addr string, amount sdkmath.Int) bool {
	if amount.IsNegative() {
		return false
	}
	member, err := k.getMember(ctx, addr)
	if err != nil || !member.Active() {
		return false
	}
	if member.Role == types.RoleOwner || member.Role == types.RoleAdmin {
		return true
	}
	limit := member.LimitInt()
	if limit.IsZero() {
		return true
	}

	_, now := contextNow(ctx)
	spent := member.SpentInt()
	if now.Unix() >= member.PeriodStartUnix+types.SpendingPeriodSeconds {
		spent = sdkmath.ZeroInt()
	}
	return spent.Add(amount).LTE(limit)
}

// rollPeriod resets the spend accrual when the member's window has
// elapsed. Mutates the passed record only; callers persist.
func rollPeriod(member *types.Member, nowUnix int64) {
	if nowUnix >= member.PeriodStartUnix+types.SpendingPeriodSeconds {
		member.SpentInPeriod = "0"
		member.PeriodStartUnix = nowUnix
	}
}

// countMembers walks the member index. Revoked members are included;
// they remain part of the audit surface.
func (k Keeper) countMembers(ctx context.Context) (int, error) {
	count := 0
	err := k.Members.Walk(ctx, nil, func(_ string, _ string) (bool, error) {
		count++
		return false, nil
	})
	return count, err
}

// ListMembers returns all member records ordered by address.
func (k Keeper) ListMembers(ctx context.Context) ([]types.Member, error) {
	if err := k.requireInitialized(ctx); err != nil {
		return nil, err
	}
	var members []types.Member
	err := k.Members.Walk(ctx, nil, func(_ string, raw string) (bool, error) {
		var member types.Member
		if err := json.Unmarshal([]byte(raw), &member); err != nil {
			return false, fmt.Errorf("decode member: %w", err)
		}
		members = append(members, member)
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}
