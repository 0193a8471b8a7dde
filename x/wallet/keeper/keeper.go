package keeper

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cosmossdk.io/collections"
	"cosmossdk.io/core/store"
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/cosmos/cosmos-sdk/codec"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/remitwise/remitwise/x/wallet/types"
)

// BankKeeper moves funds between internal balances. The ledger's asset
// layer is external to this module; the wallet only directs movement.
type BankKeeper interface {
	Transfer(ctx context.Context, from, to string, amount sdkmath.Int) error
}

// Keeper manages one family wallet: members, multisig proposals, the
// emergency override path, the pause circuit breaker and admin rotation.
type Keeper struct {
	cdc          codec.Codec
	storeService store.KVStoreService

	bank BankKeeper

	Owner             collections.Item[string]
	Members           collections.Map[string, string]
	MultisigConfig    collections.Item[string]
	Proposals         collections.Map[uint64, string]
	ProposalSeq       collections.Item[uint64]
	ArchivedProposals collections.Map[uint64, string]
	EmergencyConfig   collections.Item[string]
	PauseState        collections.Item[string]
	AdminRotation     collections.Item[string]
}

// NewKeeper creates a new family wallet keeper.
func NewKeeper(
	cdc codec.Codec,
	storeService store.KVStoreService,
) Keeper {
	sb := collections.NewSchemaBuilder(storeService)

	return Keeper{
		cdc:          cdc,
		storeService: storeService,
		Owner: collections.NewItem(
			sb,
			collections.NewPrefix(types.OwnerKey),
			"owner",
			collections.StringValue,
		),
		Members: collections.NewMap(
			sb,
			collections.NewPrefix(types.MemberKeyPrefix),
			"members",
			collections.StringKey,
			collections.StringValue,
		),
		MultisigConfig: collections.NewItem(
			sb,
			collections.NewPrefix(types.MultisigConfigKey),
			"multisig_config",
			collections.StringValue,
		),
		Proposals: collections.NewMap(
			sb,
			collections.NewPrefix(types.ProposalKeyPrefix),
			"proposals",
			collections.Uint64Key,
			collections.StringValue,
		),
		ProposalSeq: collections.NewItem(
			sb,
			collections.NewPrefix(types.ProposalSeqKey),
			"proposal_seq",
			collections.Uint64Value,
		),
		ArchivedProposals: collections.NewMap(
			sb,
			collections.NewPrefix(types.ArchivedProposalKeyPrefix),
			"archived_proposals",
			collections.Uint64Key,
			collections.StringValue,
		),
		EmergencyConfig: collections.NewItem(
			sb,
			collections.NewPrefix(types.EmergencyConfigKey),
			"emergency_config",
			collections.StringValue,
		),
		PauseState: collections.NewItem(
			sb,
			collections.NewPrefix(types.PauseStateKey),
			"pause_state",
			collections.StringValue,
		),
		AdminRotation: collections.NewItem(
			sb,
			collections.NewPrefix(types.AdminRotationKey),
			"admin_rotation",
			collections.StringValue,
		),
	}
}

// SetBankKeeper wires the fund-movement dependency.
func (k *Keeper) SetBankKeeper(bank BankKeeper) {
	k.bank = bank
}

// Init seeds the wallet exactly once: the owner, initial members with an
// unlimited spending limit, a default multisig config over all members,
// a disabled emergency policy and an unpaused circuit breaker with the
// owner as pause admin.
func (k Keeper) Init(ctx context.Context, owner string, initialMembers []string) error {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return errorsmod.Wrap(types.ErrInvalidRole, "owner address cannot be empty")
	}
	if has, err := k.Owner.Has(ctx); err == nil && has {
		return types.ErrAlreadyInitialized
	}

	sdkCtx, now := contextNow(ctx)
	nowUnix := now.Unix()

	if err := k.Owner.Set(ctx, owner); err != nil {
		return err
	}

	if err := k.setMember(ctx, types.Member{
		Address:         owner,
		Role:            types.RoleOwner,
		SpendingLimit:   "0",
		SpentInPeriod:   "0",
		PeriodStartUnix: nowUnix,
		AddedAtUnix:     nowUnix,
	}); err != nil {
		return err
	}

	signers := []string{owner}
	for _, addr := range initialMembers {
		addr = strings.TrimSpace(addr)
		if addr == "" || addr == owner {
			continue
		}
		if has, err := k.Members.Has(ctx, addr); err == nil && has {
			continue
		}
		if err := k.setMember(ctx, types.Member{
			Address:         addr,
			Role:            types.RoleMember,
			SpendingLimit:   "0",
			SpentInPeriod:   "0",
			PeriodStartUnix: nowUnix,
			AddedAtUnix:     nowUnix,
		}); err != nil {
			return err
		}
		signers = append(signers, addr)
	}

	threshold := types.DefaultThreshold
	if threshold > len(signers) {
		threshold = len(signers)
	}
	if err := k.setMultisigConfig(ctx, types.MultisigConfig{
		Threshold:         threshold,
		Signers:           signers,
		ProposerSelfSigns: true,
	}); err != nil {
		return err
	}

	if err := k.setEmergencyConfig(ctx, types.EmergencyConfig{
		Enabled:   false,
		Threshold: 1,
	}); err != nil {
		return err
	}

	if err := k.setPauseState(ctx, types.PauseState{
		Paused:     false,
		PauseAdmin: owner,
	}); err != nil {
		return err
	}

	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"wallet_initialized",
		sdk.NewAttribute("owner", owner),
		sdk.NewAttribute("members", fmt.Sprintf("%d", len(signers))),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", nowUnix)),
	))

	return nil
}

// GetOwner returns the wallet owner address.
func (k Keeper) GetOwner(ctx context.Context) (string, error) {
	owner, err := k.Owner.Get(ctx)
	if err != nil {
		return "", types.ErrNotInitialized
	}
	return owner, nil
}

func (k Keeper) requireInitialized(ctx context.Context) error {
	if has, err := k.Owner.Has(ctx); err != nil || !has {
		return types.ErrNotInitialized
	}
	return nil
}

// requireNotPaused is the fail-closed gate every mutating entry point
// consults before any authorization or validation runs.
func (k Keeper) requireNotPaused(ctx context.Context) error {
	state, err := k.GetPauseState(ctx)
	if err != nil {
		return nil
	}
	if state.Paused {
		return types.ErrContractPaused
	}
	return nil
}

func (k Keeper) requireOwnerOrAdmin(ctx context.Context, caller string) error {
	member, err := k.getMember(ctx, caller)
	if err != nil {
		return errorsmod.Wrapf(types.ErrUnauthorized, "caller %s is not a member", caller)
	}
	if member.Role != types.RoleOwner && member.Role != types.RoleAdmin {
		return errorsmod.Wrapf(types.ErrUnauthorized, "caller %s holds role %s", caller, member.Role)
	}
	return nil
}

func (k Keeper) requireOwner(ctx context.Context, caller string) error {
	owner, err := k.GetOwner(ctx)
	if err != nil {
		return err
	}
	if caller != owner {
		return errorsmod.Wrapf(types.ErrUnauthorized, "caller %s is not the owner", caller)
	}
	return nil
}

// ---------------------------------------------------------------------
// Record codecs
// ---------------------------------------------------------------------

func (k Keeper) getMember(ctx context.Context, addr string) (*types.Member, error) {
	raw, err := k.Members.Get(ctx, addr)
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrNotFound, "member %s", addr)
	}
	var member types.Member
	if err := json.Unmarshal([]byte(raw), &member); err != nil {
		return nil, fmt.Errorf("decode member: %w", err)
	}
	return &member, nil
}

func (k Keeper) setMember(ctx context.Context, member types.Member) error {
	raw, err := json.Marshal(member)
	if err != nil {
		return err
	}
	return k.Members.Set(ctx, member.Address, string(raw))
}

func (k Keeper) getMultisigConfig(ctx context.Context) (*types.MultisigConfig, error) {
	raw, err := k.MultisigConfig.Get(ctx)
	if err != nil {
		return nil, types.ErrNotInitialized
	}
	var config types.MultisigConfig
	if err := json.Unmarshal([]byte(raw), &config); err != nil {
		return nil, fmt.Errorf("decode multisig config: %w", err)
	}
	return &config, nil
}

func (k Keeper) setMultisigConfig(ctx context.Context, config types.MultisigConfig) error {
	raw, err := json.Marshal(config)
	if err != nil {
		return err
	}
	return k.MultisigConfig.Set(ctx, string(raw))
}

func (k Keeper) getProposal(ctx context.Context, id uint64) (*types.Proposal, error) {
	raw, err := k.Proposals.Get(ctx, id)
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrNotFound, "proposal %d", id)
	}
	var proposal types.Proposal
	if err := json.Unmarshal([]byte(raw), &proposal); err != nil {
		return nil, fmt.Errorf("decode proposal: %w", err)
	}
	return &proposal, nil
}

func (k Keeper) setProposal(ctx context.Context, proposal types.Proposal) error {
	raw, err := json.Marshal(proposal)
	if err != nil {
		return err
	}
	return k.Proposals.Set(ctx, proposal.ID, string(raw))
}

func (k Keeper) getEmergencyConfig(ctx context.Context) (*types.EmergencyConfig, error) {
	raw, err := k.EmergencyConfig.Get(ctx)
	if err != nil {
		return nil, types.ErrNotInitialized
	}
	var config types.EmergencyConfig
	if err := json.Unmarshal([]byte(raw), &config); err != nil {
		return nil, fmt.Errorf("decode emergency config: %w", err)
	}
	return &config, nil
}

func (k Keeper) setEmergencyConfig(ctx context.Context, config types.EmergencyConfig) error {
	raw, err := json.Marshal(config)
	if err != nil {
		return err
	}
	return k.EmergencyConfig.Set(ctx, string(raw))
}

// GetPauseState returns the circuit-breaker state. Before init the wallet
// reports unpaused with no admin.
func (k Keeper) GetPauseState(ctx context.Context) (types.PauseState, error) {
	raw, err := k.PauseState.Get(ctx)
	if err != nil {
		return types.PauseState{}, types.ErrNotInitialized
	}
	var state types.PauseState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return types.PauseState{}, fmt.Errorf("decode pause state: %w", err)
	}
	return state, nil
}

func (k Keeper) setPauseState(ctx context.Context, state types.PauseState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return k.PauseState.Set(ctx, string(raw))
}

func (k Keeper) nextProposalID(ctx context.Context) (uint64, error) {
	seq, err := k.ProposalSeq.Get(ctx)
	if err != nil {
		seq = 0
	}
	seq++
	if err := k.ProposalSeq.Set(ctx, seq); err != nil {
		return 0, err
	}
	return seq, nil
}

// ---------------------------------------------------------------------
// Context helpers
// ---------------------------------------------------------------------

func unwrapSDKContext(ctx context.Context) (sdk.Context, bool) {
	if ctx == nil {
		return sdk.Context{}, false
	}
	if sdkCtx, ok := ctx.(sdk.Context); ok {
		return sdkCtx, true
	}
	if val := ctx.Value(sdk.SdkContextKey); val != nil {
		if sdkCtx, ok := val.(sdk.Context); ok {
			return sdkCtx, true
		}
	}
	return sdk.Context{}, false
}

func contextNow(ctx context.Context) (sdk.Context, time.Time) {
	if sdkCtx, ok := unwrapSDKContext(ctx); ok {
		return sdkCtx, sdkCtx.BlockTime()
	}
	return sdk.Context{}, time.Now().UTC()
}

func emitEventIfPossible(ctx sdk.Context, event sdk.Event) {
	if em := ctx.EventManager(); em != nil {
		em.EmitEvent(event)
	}
}
