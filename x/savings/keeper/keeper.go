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

	"github.com/remitwise/remitwise/x/lifecycle"
	"github.com/remitwise/remitwise/x/savings/types"
)

// Keeper manages savings goals: owner-scoped targets with lockable
// balances and an archive tier for completed goals.
type Keeper struct {
	cdc          codec.Codec
	storeService store.KVStoreService

	Goals         collections.Map[uint64, string]
	GoalSeq       collections.Item[uint64]
	ArchivedGoals collections.Map[uint64, string]
}

// NewKeeper creates a new savings keeper.
func NewKeeper(
	cdc codec.Codec,
	storeService store.KVStoreService,
) Keeper {
	sb := collections.NewSchemaBuilder(storeService)

	return Keeper{
		cdc:          cdc,
		storeService: storeService,
		Goals: collections.NewMap(
			sb,
			collections.NewPrefix(types.GoalKeyPrefix),
			"goals",
			collections.Uint64Key,
			collections.StringValue,
		),
		GoalSeq: collections.NewItem(
			sb,
			collections.NewPrefix(types.GoalSeqKey),
			"goal_seq",
			collections.Uint64Value,
		),
		ArchivedGoals: collections.NewMap(
			sb,
			collections.NewPrefix(types.ArchivedGoalKeyPrefix),
			"archived_goals",
			collections.Uint64Key,
			collections.StringValue,
		),
	}
}

func (k Keeper) goalTiers() lifecycle.Manager[uint64] {
	return lifecycle.NewManager(&k.Goals, &k.ArchivedGoals)
}

// CreateGoal opens a new goal. Goals start locked so contributions
// cannot leak back out until the owner deliberately unlocks.
func (k Keeper) CreateGoal(
	ctx context.Context,
	owner string,
	name string,
	target sdkmath.Int,
	targetDateUnix int64,
) (uint64, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return 0, errorsmod.Wrap(types.ErrUnauthorized, "owner address cannot be empty")
	}
	if !target.IsPositive() {
		return 0, errorsmod.Wrapf(types.ErrInvalidAmount, "target %s", target)
	}

	id, err := k.nextGoalID(ctx)
	if err != nil {
		return 0, err
	}

	if err := k.setGoal(ctx, types.Goal{
		ID:             id,
		Owner:          owner,
		Name:           name,
		TargetAmount:   target.String(),
		CurrentAmount:  "0",
		TargetDateUnix: targetDateUnix,
		Locked:         true,
	}); err != nil {
		return 0, err
	}

	sdkCtx, now := contextNow(ctx)
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"savings_goal_created",
		sdk.NewAttribute("goal_id", fmt.Sprintf("%d", id)),
		sdk.NewAttribute("owner", owner),
		sdk.NewAttribute("target", target.String()),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", now.Unix())),
	))

	return id, nil
}

// AddToGoal credits amount to the goal balance and returns the new
// balance. Crossing the target emits a completion event; contributions
// past the target remain allowed.
func (k Keeper) AddToGoal(ctx context.Context, caller string, id uint64, amount sdkmath.Int) (sdkmath.Int, error) {
	if !amount.IsPositive() {
		return sdkmath.Int{}, errorsmod.Wrapf(types.ErrInvalidAmount, "amount %s", amount)
	}

	goal, err := k.requireGoalOwner(ctx, caller, id)
	if err != nil {
		return sdkmath.Int{}, err
	}

	current, err := goal.CurrentInt()
	if err != nil {
		return sdkmath.Int{}, err
	}
	wasCompleted := goal.Completed()
	current = current.Add(amount)
	goal.CurrentAmount = current.String()
	if err := k.setGoal(ctx, *goal); err != nil {
		return sdkmath.Int{}, err
	}

	sdkCtx, now := contextNow(ctx)
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"savings_funds_added",
		sdk.NewAttribute("goal_id", fmt.Sprintf("%d", id)),
		sdk.NewAttribute("owner", caller),
		sdk.NewAttribute("amount", amount.String()),
		sdk.NewAttribute("balance", current.String()),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", now.Unix())),
	))
	if !wasCompleted && goal.Completed() {
		emitEventIfPossible(sdkCtx, sdk.NewEvent(
			"savings_goal_completed",
			sdk.NewAttribute("goal_id", fmt.Sprintf("%d", id)),
			sdk.NewAttribute("owner", caller),
			sdk.NewAttribute("timestamp", fmt.Sprintf("%d", now.Unix())),
		))
	}

	return current, nil
}

// WithdrawFromGoal debits amount from an unlocked goal and returns the
// new balance.
func (k Keeper) WithdrawFromGoal(ctx context.Context, caller string, id uint64, amount sdkmath.Int) (sdkmath.Int, error) {
	if !amount.IsPositive() {
		return sdkmath.Int{}, errorsmod.Wrapf(types.ErrInvalidAmount, "amount %s", amount)
	}

	goal, err := k.requireGoalOwner(ctx, caller, id)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if goal.Locked {
		return sdkmath.Int{}, errorsmod.Wrapf(types.ErrGoalLocked, "goal %d", id)
	}

	current, err := goal.CurrentInt()
	if err != nil {
		return sdkmath.Int{}, err
	}
	if amount.GT(current) {
		return sdkmath.Int{}, errorsmod.Wrapf(types.ErrInsufficientFunds,
			"goal %d holds %s, requested %s", id, current, amount)
	}

	current = current.Sub(amount)
	goal.CurrentAmount = current.String()
	if err := k.setGoal(ctx, *goal); err != nil {
		return sdkmath.Int{}, err
	}

	sdkCtx, now := contextNow(ctx)
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"savings_funds_withdrawn",
		sdk.NewAttribute("goal_id", fmt.Sprintf("%d", id)),
		sdk.NewAttribute("owner", caller),
		sdk.NewAttribute("amount", amount.String()),
		sdk.NewAttribute("balance", current.String()),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", now.Unix())),
	))

	return current, nil
}

// LockGoal blocks withdrawals from the goal.
func (k Keeper) LockGoal(ctx context.Context, caller string, id uint64) error {
	return k.setLocked(ctx, caller, id, true)
}

// UnlockGoal allows withdrawals from the goal.
func (k Keeper) UnlockGoal(ctx context.Context, caller string, id uint64) error {
	return k.setLocked(ctx, caller, id, false)
}

func (k Keeper) setLocked(ctx context.Context, caller string, id uint64, locked bool) error {
	goal, err := k.requireGoalOwner(ctx, caller, id)
	if err != nil {
		return err
	}
	goal.Locked = locked
	if err := k.setGoal(ctx, *goal); err != nil {
		return err
	}

	event := "savings_goal_unlocked"
	if locked {
		event = "savings_goal_locked"
	}
	sdkCtx, now := contextNow(ctx)
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		event,
		sdk.NewAttribute("goal_id", fmt.Sprintf("%d", id)),
		sdk.NewAttribute("owner", caller),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", now.Unix())),
	))
	return nil
}

// GetGoal returns an active goal.
func (k Keeper) GetGoal(ctx context.Context, id uint64) (*types.Goal, error) {
	return k.getGoal(ctx, id)
}

// GetOwnerGoals lists all active goals belonging to owner.
func (k Keeper) GetOwnerGoals(ctx context.Context, owner string) ([]types.Goal, error) {
	var out []types.Goal
	err := k.Goals.Walk(ctx, nil, func(_ uint64, raw string) (bool, error) {
		var goal types.Goal
		if err := json.Unmarshal([]byte(raw), &goal); err != nil {
			return false, fmt.Errorf("decode goal: %w", err)
		}
		if goal.Owner == owner {
			out = append(out, goal)
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// IsGoalCompleted reports whether the goal balance reached its target.
// Unknown goals report false.
func (k Keeper) IsGoalCompleted(ctx context.Context, id uint64) bool {
	goal, err := k.getGoal(ctx, id)
	if err != nil {
		return false
	}
	return goal.Completed()
}

// ---------------------------------------------------------------------
// Archival
// ---------------------------------------------------------------------

// ArchiveCompletedGoals compresses and archives goals that reached their
// target and whose target date predates cutoff. Returns the count moved.
func (k Keeper) ArchiveCompletedGoals(ctx context.Context, caller string, cutoffUnix int64) (int, error) {
	sdkCtx, now := contextNow(ctx)
	nowUnix := now.Unix()

	var eligible []uint64
	err := k.Goals.Walk(ctx, nil, func(id uint64, raw string) (bool, error) {
		var goal types.Goal
		if err := json.Unmarshal([]byte(raw), &goal); err != nil {
			return false, fmt.Errorf("decode goal: %w", err)
		}
		if goal.Completed() && goal.TargetDateUnix < cutoffUnix {
			eligible = append(eligible, id)
		}
		return false, nil
	})
	if err != nil {
		return 0, err
	}

	tiers := k.goalTiers()
	for _, id := range eligible {
		if err := tiers.Archive(ctx, id, compressGoal(nowUnix)); err != nil {
			return 0, err
		}
	}

	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"savings_goals_archived",
		sdk.NewAttribute("count", fmt.Sprintf("%d", len(eligible))),
		sdk.NewAttribute("archived_by", caller),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", nowUnix)),
	))

	return len(eligible), nil
}

// compressGoal drops live progress fields and stamps the archive time.
func compressGoal(nowUnix int64) func(string) (string, error) {
	return func(raw string) (string, error) {
		var goal types.Goal
		if err := json.Unmarshal([]byte(raw), &goal); err != nil {
			return "", fmt.Errorf("decode goal: %w", err)
		}
		out, err := json.Marshal(types.ArchivedGoal{
			ID:             goal.ID,
			Owner:          goal.Owner,
			Name:           goal.Name,
			TargetAmount:   goal.TargetAmount,
			FinalAmount:    goal.CurrentAmount,
			ArchivedAtUnix: nowUnix,
		})
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
}

// GetArchivedGoals lists archive entries belonging to owner.
func (k Keeper) GetArchivedGoals(ctx context.Context, owner string) ([]types.ArchivedGoal, error) {
	var out []types.ArchivedGoal
	err := k.goalTiers().WalkArchived(ctx, func(_ uint64, raw string) (bool, error) {
		var archived types.ArchivedGoal
		if err := json.Unmarshal([]byte(raw), &archived); err != nil {
			return false, fmt.Errorf("decode archived goal: %w", err)
		}
		if archived.Owner == owner {
			out = append(out, archived)
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetArchivedGoal returns one archive entry.
func (k Keeper) GetArchivedGoal(ctx context.Context, id uint64) (*types.ArchivedGoal, error) {
	raw, err := k.ArchivedGoals.Get(ctx, id)
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrNotFound, "archived goal %d", id)
	}
	var archived types.ArchivedGoal
	if err := json.Unmarshal([]byte(raw), &archived); err != nil {
		return nil, fmt.Errorf("decode archived goal: %w", err)
	}
	return &archived, nil
}

// RestoreGoal moves an archived goal back to active saving. The restored
// goal keeps its final balance, gets a fresh one-year target window and
// starts locked again.
func (k Keeper) RestoreGoal(ctx context.Context, caller string, id uint64) error {
	archived, err := k.GetArchivedGoal(ctx, id)
	if err != nil {
		return err
	}
	if archived.Owner != caller {
		return errorsmod.Wrapf(types.ErrUnauthorized, "caller %s, goal owner %s", caller, archived.Owner)
	}

	sdkCtx, now := contextNow(ctx)
	nowUnix := now.Unix()
	err = k.goalTiers().Restore(ctx, id, func(raw string) (string, error) {
		var a types.ArchivedGoal
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return "", fmt.Errorf("decode archived goal: %w", err)
		}
		out, err := json.Marshal(types.Goal{
			ID:             a.ID,
			Owner:          a.Owner,
			Name:           a.Name,
			TargetAmount:   a.TargetAmount,
			CurrentAmount:  a.FinalAmount,
			TargetDateUnix: nowUnix + types.RestoredGoalHorizonSeconds,
			Locked:         true,
		})
		if err != nil {
			return "", err
		}
		return string(out), nil
	})
	if err != nil {
		return err
	}

	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"savings_goal_restored",
		sdk.NewAttribute("goal_id", fmt.Sprintf("%d", id)),
		sdk.NewAttribute("restored_by", caller),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", nowUnix)),
	))

	return nil
}

// CleanupOldArchives permanently deletes archive entries archived before
// cutoff. Returns the count removed.
func (k Keeper) CleanupOldArchives(ctx context.Context, caller string, cutoffUnix int64) (int, error) {
	removed, err := k.goalTiers().CleanupArchiveBefore(ctx, cutoffUnix, func(raw string) (int64, error) {
		var archived types.ArchivedGoal
		if err := json.Unmarshal([]byte(raw), &archived); err != nil {
			return 0, fmt.Errorf("decode archived goal: %w", err)
		}
		return archived.ArchivedAtUnix, nil
	})
	if err != nil {
		return 0, err
	}

	sdkCtx, now := contextNow(ctx)
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"savings_archives_cleaned",
		sdk.NewAttribute("count", fmt.Sprintf("%d", removed)),
		sdk.NewAttribute("cleaned_by", caller),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", now.Unix())),
	))

	return removed, nil
}

// GetStorageStats reports tier sizes and aggregate balances.
func (k Keeper) GetStorageStats(ctx context.Context) (types.StorageStats, error) {
	activeCount := 0
	activeAmount := sdkmath.ZeroInt()
	err := k.Goals.Walk(ctx, nil, func(_ uint64, raw string) (bool, error) {
		var goal types.Goal
		if err := json.Unmarshal([]byte(raw), &goal); err != nil {
			return false, fmt.Errorf("decode goal: %w", err)
		}
		current, err := goal.CurrentInt()
		if err != nil {
			return false, err
		}
		activeCount++
		activeAmount = activeAmount.Add(current)
		return false, nil
	})
	if err != nil {
		return types.StorageStats{}, err
	}

	archivedCount := 0
	archivedAmount := sdkmath.ZeroInt()
	err = k.goalTiers().WalkArchived(ctx, func(_ uint64, raw string) (bool, error) {
		var archived types.ArchivedGoal
		if err := json.Unmarshal([]byte(raw), &archived); err != nil {
			return false, fmt.Errorf("decode archived goal: %w", err)
		}
		final, ok := sdkmath.NewIntFromString(archived.FinalAmount)
		if !ok {
			return false, fmt.Errorf("invalid final amount %q", archived.FinalAmount)
		}
		archivedCount++
		archivedAmount = archivedAmount.Add(final)
		return false, nil
	})
	if err != nil {
		return types.StorageStats{}, err
	}

	_, now := contextNow(ctx)
	return types.StorageStats{
		ActiveGoals:         activeCount,
		ArchivedGoals:       archivedCount,
		TotalActiveAmount:   activeAmount.String(),
		TotalArchivedAmount: archivedAmount.String(),
		LastUpdatedUnix:     now.Unix(),
	}, nil
}

// ---------------------------------------------------------------------
// Record codecs
// ---------------------------------------------------------------------

func (k Keeper) requireGoalOwner(ctx context.Context, caller string, id uint64) (*types.Goal, error) {
	goal, err := k.getGoal(ctx, id)
	if err != nil {
		return nil, err
	}
	if goal.Owner != caller {
		return nil, errorsmod.Wrapf(types.ErrUnauthorized, "caller %s, goal owner %s", caller, goal.Owner)
	}
	return goal, nil
}

func (k Keeper) getGoal(ctx context.Context, id uint64) (*types.Goal, error) {
	raw, err := k.Goals.Get(ctx, id)
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrNotFound, "goal %d", id)
	}
	var goal types.Goal
	if err := json.Unmarshal([]byte(raw), &goal); err != nil {
		return nil, fmt.Errorf("decode goal: %w", err)
	}
	return &goal, nil
}

func (k Keeper) setGoal(ctx context.Context, goal types.Goal) error {
	raw, err := json.Marshal(goal)
	if err != nil {
		return err
	}
	return k.Goals.Set(ctx, goal.ID, string(raw))
}

func (k Keeper) nextGoalID(ctx context.Context) (uint64, error) {
	seq, err := k.GoalSeq.Get(ctx)
	if err != nil {
		seq = 0
	}
	seq++
	if err := k.GoalSeq.Set(ctx, seq); err != nil {
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
