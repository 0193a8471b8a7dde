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

	"github.com/remitwise/remitwise/x/insurance/types"
	"github.com/remitwise/remitwise/x/lifecycle"
)

// Keeper manages micro-insurance policies and their premium schedules.
// Deactivated policies age into an archive tier.
type Keeper struct {
	cdc          codec.Codec
	storeService store.KVStoreService

	Policies         collections.Map[uint64, string]
	PolicySeq        collections.Item[uint64]
	ArchivedPolicies collections.Map[uint64, string]
	Schedules        collections.Map[uint64, string]
	ScheduleSeq      collections.Item[uint64]
}

// NewKeeper creates a new insurance keeper.
func NewKeeper(
	cdc codec.Codec,
	storeService store.KVStoreService,
) Keeper {
	sb := collections.NewSchemaBuilder(storeService)

	return Keeper{
		cdc:          cdc,
		storeService: storeService,
		Policies: collections.NewMap(
			sb,
			collections.NewPrefix(types.PolicyKeyPrefix),
			"policies",
			collections.Uint64Key,
			collections.StringValue,
		),
		PolicySeq: collections.NewItem(
			sb,
			collections.NewPrefix(types.PolicySeqKey),
			"policy_seq",
			collections.Uint64Value,
		),
		ArchivedPolicies: collections.NewMap(
			sb,
			collections.NewPrefix(types.ArchivedPolicyKeyPrefix),
			"archived_policies",
			collections.Uint64Key,
			collections.StringValue,
		),
		Schedules: collections.NewMap(
			sb,
			collections.NewPrefix(types.ScheduleKeyPrefix),
			"premium_schedules",
			collections.Uint64Key,
			collections.StringValue,
		),
		ScheduleSeq: collections.NewItem(
			sb,
			collections.NewPrefix(types.ScheduleSeqKey),
			"schedule_seq",
			collections.Uint64Value,
		),
	}
}

func (k Keeper) policyTiers() lifecycle.Manager[uint64] {
	return lifecycle.NewManager(&k.Policies, &k.ArchivedPolicies)
}

// ---------------------------------------------------------------------
// Policies
// ---------------------------------------------------------------------

// CreatePolicy registers a new policy, paid through one premium period
// from now. A zero periodSecs takes the 30-day default.
func (k Keeper) CreatePolicy(
	ctx context.Context,
	owner string,
	name string,
	coverage sdkmath.Int,
	premium sdkmath.Int,
	periodSecs int64,
) (uint64, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return 0, errorsmod.Wrap(types.ErrUnauthorized, "owner address cannot be empty")
	}
	if !coverage.IsPositive() {
		return 0, errorsmod.Wrapf(types.ErrInvalidAmount, "coverage %s", coverage)
	}
	if !premium.IsPositive() {
		return 0, errorsmod.Wrapf(types.ErrInvalidAmount, "premium %s", premium)
	}
	if periodSecs <= 0 {
		periodSecs = types.DefaultPeriodSeconds
	}

	id, err := k.nextPolicyID(ctx)
	if err != nil {
		return 0, err
	}

	sdkCtx, now := contextNow(ctx)
	if err := k.setPolicy(ctx, types.Policy{
		ID:              id,
		Owner:           owner,
		Name:            name,
		Coverage:        coverage.String(),
		Premium:         premium.String(),
		PeriodSecs:      periodSecs,
		PaidThroughUnix: now.Unix() + periodSecs,
		Active:          true,
		CreatedAtUnix:   now.Unix(),
	}); err != nil {
		return 0, err
	}

	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"policy_created",
		sdk.NewAttribute("policy_id", fmt.Sprintf("%d", id)),
		sdk.NewAttribute("owner", owner),
		sdk.NewAttribute("coverage", coverage.String()),
		sdk.NewAttribute("premium", premium.String()),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", now.Unix())),
	))

	return id, nil
}

// PayPremium extends the policy's paid-through date by one period.
// Paying early stacks on the existing paid-through date; paying late
// extends from now.
func (k Keeper) PayPremium(ctx context.Context, caller string, id uint64) error {
	policy, err := k.getPolicy(ctx, id)
	if err != nil {
		return err
	}
	if policy.Owner != caller {
		return errorsmod.Wrapf(types.ErrUnauthorized, "caller %s, policy owner %s", caller, policy.Owner)
	}
	if !policy.Active {
		return errorsmod.Wrapf(types.ErrPolicyInactive, "policy %d", id)
	}
	return k.extendPaidThrough(ctx, policy, caller)
}

func (k Keeper) extendPaidThrough(ctx context.Context, policy *types.Policy, paidBy string) error {
	sdkCtx, now := contextNow(ctx)
	nowUnix := now.Unix()

	base := policy.PaidThroughUnix
	if base < nowUnix {
		base = nowUnix
	}
	policy.PaidThroughUnix = base + policy.PeriodSecs
	if err := k.setPolicy(ctx, *policy); err != nil {
		return err
	}

	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"premium_paid",
		sdk.NewAttribute("policy_id", fmt.Sprintf("%d", policy.ID)),
		sdk.NewAttribute("paid_by", paidBy),
		sdk.NewAttribute("premium", policy.Premium),
		sdk.NewAttribute("paid_through", fmt.Sprintf("%d", policy.PaidThroughUnix)),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", nowUnix)),
	))

	return nil
}

// BatchPayPremiums pays up to MaxBatchSize premiums in one call. The
// whole batch is validated before any policy is touched, so a bad id
// leaves every policy unchanged.
func (k Keeper) BatchPayPremiums(ctx context.Context, caller string, ids []uint64) (int, error) {
	if len(ids) > types.MaxBatchSize {
		return 0, errorsmod.Wrapf(types.ErrBatchTooLarge, "%d policies, max %d", len(ids), types.MaxBatchSize)
	}

	for _, id := range ids {
		policy, err := k.getPolicy(ctx, id)
		if err != nil {
			return 0, err
		}
		if policy.Owner != caller {
			return 0, errorsmod.Wrapf(types.ErrUnauthorized, "policy %d belongs to %s", id, policy.Owner)
		}
		if !policy.Active {
			return 0, errorsmod.Wrapf(types.ErrPolicyInactive, "policy %d", id)
		}
	}

	for _, id := range ids {
		policy, err := k.getPolicy(ctx, id)
		if err != nil {
			return 0, err
		}
		if err := k.extendPaidThrough(ctx, policy, caller); err != nil {
			return 0, err
		}
	}

	sdkCtx, now := contextNow(ctx)
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"premiums_batch_paid",
		sdk.NewAttribute("count", fmt.Sprintf("%d", len(ids))),
		sdk.NewAttribute("paid_by", caller),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", now.Unix())),
	))

	return len(ids), nil
}

// DeactivatePolicy ends cover. The record stays in the active index
// until an archive sweep moves it.
func (k Keeper) DeactivatePolicy(ctx context.Context, caller string, id uint64) error {
	policy, err := k.getPolicy(ctx, id)
	if err != nil {
		return err
	}
	if policy.Owner != caller {
		return errorsmod.Wrapf(types.ErrUnauthorized, "caller %s, policy owner %s", caller, policy.Owner)
	}
	if !policy.Active {
		return errorsmod.Wrapf(types.ErrPolicyInactive, "policy %d", id)
	}

	sdkCtx, now := contextNow(ctx)
	policy.Active = false
	policy.DeactivatedAtUnix = now.Unix()
	if err := k.setPolicy(ctx, *policy); err != nil {
		return err
	}

	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"policy_deactivated",
		sdk.NewAttribute("policy_id", fmt.Sprintf("%d", id)),
		sdk.NewAttribute("deactivated_by", caller),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", now.Unix())),
	))

	return nil
}

// GetPolicy returns an active-index policy.
func (k Keeper) GetPolicy(ctx context.Context, id uint64) (*types.Policy, error) {
	return k.getPolicy(ctx, id)
}

// GetActivePolicies pages through the owner's active policies.
func (k Keeper) GetActivePolicies(ctx context.Context, owner string, cursor uint64, limit int) (types.PolicyPage, error) {
	return k.pagePolicies(ctx, cursor, limit, func(policy types.Policy) bool {
		return policy.Owner == owner && policy.Active
	})
}

// GetOwnerPolicies pages through all of the owner's policies,
// deactivated included.
func (k Keeper) GetOwnerPolicies(ctx context.Context, owner string, cursor uint64, limit int) (types.PolicyPage, error) {
	return k.pagePolicies(ctx, cursor, limit, func(policy types.Policy) bool {
		return policy.Owner == owner
	})
}

// GetTotalMonthlyPremium sums the owner's active premiums.
func (k Keeper) GetTotalMonthlyPremium(ctx context.Context, owner string) (sdkmath.Int, error) {
	total := sdkmath.ZeroInt()
	err := k.Policies.Walk(ctx, nil, func(_ uint64, raw string) (bool, error) {
		var policy types.Policy
		if err := json.Unmarshal([]byte(raw), &policy); err != nil {
			return false, fmt.Errorf("decode policy: %w", err)
		}
		if policy.Owner != owner || !policy.Active {
			return false, nil
		}
		premium, err := policy.PremiumInt()
		if err != nil {
			return false, err
		}
		total = total.Add(premium)
		return false, nil
	})
	if err != nil {
		return sdkmath.Int{}, err
	}
	return total, nil
}

// pagePolicies collects up to limit matching policies after cursor. It
// stages one extra match to learn whether another page exists;
// NextCursor is the last returned id, zero when exhausted.
func (k Keeper) pagePolicies(ctx context.Context, cursor uint64, limit int, match func(types.Policy) bool) (types.PolicyPage, error) {
	limit = types.ClampLimit(limit)

	var staging []types.Policy
	err := k.Policies.Walk(ctx, nil, func(id uint64, raw string) (bool, error) {
		if id <= cursor {
			return false, nil
		}
		var policy types.Policy
		if err := json.Unmarshal([]byte(raw), &policy); err != nil {
			return false, fmt.Errorf("decode policy: %w", err)
		}
		if !match(policy) {
			return false, nil
		}
		staging = append(staging, policy)
		return len(staging) > limit, nil
	})
	if err != nil {
		return types.PolicyPage{}, err
	}

	page := types.PolicyPage{}
	take := len(staging)
	if take > limit {
		take = len(staging) - 1
		page.NextCursor = staging[take-1].ID
	}
	page.Items = staging[:take]
	page.Count = take
	return page, nil
}

// ---------------------------------------------------------------------
// Premium schedules
// ---------------------------------------------------------------------

// CreatePremiumSchedule attaches a payment schedule to a policy. A zero
// interval makes a one-shot schedule.
func (k Keeper) CreatePremiumSchedule(
	ctx context.Context,
	owner string,
	policyID uint64,
	nextDueUnix int64,
	intervalSecs int64,
) (uint64, error) {
	policy, err := k.getPolicy(ctx, policyID)
	if err != nil {
		return 0, err
	}
	if policy.Owner != owner {
		return 0, errorsmod.Wrapf(types.ErrUnauthorized, "caller %s, policy owner %s", owner, policy.Owner)
	}

	sdkCtx, now := contextNow(ctx)
	if nextDueUnix <= now.Unix() {
		return 0, errorsmod.Wrapf(types.ErrInvalidDueDate, "next due %d, now %d", nextDueUnix, now.Unix())
	}

	id, err := k.nextScheduleID(ctx)
	if err != nil {
		return 0, err
	}

	if err := k.setSchedule(ctx, types.PremiumSchedule{
		ID:            id,
		Owner:         owner,
		PolicyID:      policyID,
		NextDueUnix:   nextDueUnix,
		IntervalSecs:  intervalSecs,
		Recurring:     intervalSecs > 0,
		Active:        true,
		CreatedAtUnix: now.Unix(),
	}); err != nil {
		return 0, err
	}

	policy.ScheduleID = id
	if err := k.setPolicy(ctx, *policy); err != nil {
		return 0, err
	}

	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"premium_schedule_created",
		sdk.NewAttribute("schedule_id", fmt.Sprintf("%d", id)),
		sdk.NewAttribute("policy_id", fmt.Sprintf("%d", policyID)),
		sdk.NewAttribute("owner", owner),
		sdk.NewAttribute("next_due", fmt.Sprintf("%d", nextDueUnix)),
	))

	return id, nil
}

// ModifyPremiumSchedule rewrites a schedule's due date and interval.
func (k Keeper) ModifyPremiumSchedule(
	ctx context.Context,
	caller string,
	scheduleID uint64,
	nextDueUnix int64,
	intervalSecs int64,
) error {
	sdkCtx, now := contextNow(ctx)
	if nextDueUnix <= now.Unix() {
		return errorsmod.Wrapf(types.ErrInvalidDueDate, "next due %d, now %d", nextDueUnix, now.Unix())
	}

	schedule, err := k.getSchedule(ctx, scheduleID)
	if err != nil {
		return err
	}
	if schedule.Owner != caller {
		return errorsmod.Wrapf(types.ErrUnauthorized, "caller %s, schedule owner %s", caller, schedule.Owner)
	}

	schedule.NextDueUnix = nextDueUnix
	schedule.IntervalSecs = intervalSecs
	schedule.Recurring = intervalSecs > 0
	if err := k.setSchedule(ctx, *schedule); err != nil {
		return err
	}

	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"premium_schedule_modified",
		sdk.NewAttribute("schedule_id", fmt.Sprintf("%d", scheduleID)),
		sdk.NewAttribute("next_due", fmt.Sprintf("%d", nextDueUnix)),
	))

	return nil
}

// CancelPremiumSchedule deactivates a schedule. The record is kept for
// history.
func (k Keeper) CancelPremiumSchedule(ctx context.Context, caller string, scheduleID uint64) error {
	schedule, err := k.getSchedule(ctx, scheduleID)
	if err != nil {
		return err
	}
	if schedule.Owner != caller {
		return errorsmod.Wrapf(types.ErrUnauthorized, "caller %s, schedule owner %s", caller, schedule.Owner)
	}

	schedule.Active = false
	if err := k.setSchedule(ctx, *schedule); err != nil {
		return err
	}

	sdkCtx, _ := contextNow(ctx)
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"premium_schedule_cancelled",
		sdk.NewAttribute("schedule_id", fmt.Sprintf("%d", scheduleID)),
		sdk.NewAttribute("cancelled_by", caller),
	))

	return nil
}

// ExecuteDuePremiumSchedules pays every active schedule whose due date
// has passed. Anyone may trigger it; execution is lazy rather than
// block-driven. Recurring schedules roll their due date past now,
// counting skipped periods as missed. One-shot schedules deactivate.
// Returns the executed schedule ids.
func (k Keeper) ExecuteDuePremiumSchedules(ctx context.Context) ([]uint64, error) {
	sdkCtx, now := contextNow(ctx)
	nowUnix := now.Unix()

	var due []types.PremiumSchedule
	err := k.Schedules.Walk(ctx, nil, func(_ uint64, raw string) (bool, error) {
		var schedule types.PremiumSchedule
		if err := json.Unmarshal([]byte(raw), &schedule); err != nil {
			return false, fmt.Errorf("decode schedule: %w", err)
		}
		if schedule.Active && schedule.NextDueUnix <= nowUnix {
			due = append(due, schedule)
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}

	executed := make([]uint64, 0, len(due))
	for _, schedule := range due {
		policy, err := k.getPolicy(ctx, schedule.PolicyID)
		if err == nil && policy.Active {
			if err := k.extendPaidThrough(ctx, policy, schedule.Owner); err != nil {
				return executed, err
			}
		}

		schedule.LastExecutedUnix = nowUnix
		if schedule.Recurring && schedule.IntervalSecs > 0 {
			missed := uint32(0)
			next := schedule.NextDueUnix + schedule.IntervalSecs
			for next <= nowUnix {
				missed++
				next += schedule.IntervalSecs
			}
			schedule.MissedCount += missed
			schedule.NextDueUnix = next

			if missed > 0 {
				emitEventIfPossible(sdkCtx, sdk.NewEvent(
					"premium_schedule_missed",
					sdk.NewAttribute("schedule_id", fmt.Sprintf("%d", schedule.ID)),
					sdk.NewAttribute("missed", fmt.Sprintf("%d", missed)),
				))
			}
		} else {
			schedule.Active = false
		}

		if err := k.setSchedule(ctx, schedule); err != nil {
			return executed, err
		}
		executed = append(executed, schedule.ID)

		emitEventIfPossible(sdkCtx, sdk.NewEvent(
			"premium_schedule_executed",
			sdk.NewAttribute("schedule_id", fmt.Sprintf("%d", schedule.ID)),
			sdk.NewAttribute("timestamp", fmt.Sprintf("%d", nowUnix)),
		))
	}

	return executed, nil
}

// GetPremiumSchedules returns the owner's schedules, cancelled
// included.
func (k Keeper) GetPremiumSchedules(ctx context.Context, owner string) ([]types.PremiumSchedule, error) {
	var out []types.PremiumSchedule
	err := k.Schedules.Walk(ctx, nil, func(_ uint64, raw string) (bool, error) {
		var schedule types.PremiumSchedule
		if err := json.Unmarshal([]byte(raw), &schedule); err != nil {
			return false, fmt.Errorf("decode schedule: %w", err)
		}
		if schedule.Owner == owner {
			out = append(out, schedule)
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetPremiumSchedule returns one schedule.
func (k Keeper) GetPremiumSchedule(ctx context.Context, id uint64) (*types.PremiumSchedule, error) {
	return k.getSchedule(ctx, id)
}

// ---------------------------------------------------------------------
// Archival
// ---------------------------------------------------------------------

// ArchiveInactivePolicies compresses and archives policies deactivated
// before cutoff. Active policies never move.
func (k Keeper) ArchiveInactivePolicies(ctx context.Context, caller string, cutoffUnix int64) (int, error) {
	sdkCtx, now := contextNow(ctx)
	nowUnix := now.Unix()

	var eligible []uint64
	err := k.Policies.Walk(ctx, nil, func(id uint64, raw string) (bool, error) {
		var policy types.Policy
		if err := json.Unmarshal([]byte(raw), &policy); err != nil {
			return false, fmt.Errorf("decode policy: %w", err)
		}
		if !policy.Active && policy.DeactivatedAtUnix < cutoffUnix {
			eligible = append(eligible, id)
		}
		return false, nil
	})
	if err != nil {
		return 0, err
	}

	tiers := k.policyTiers()
	for _, id := range eligible {
		if err := tiers.Archive(ctx, id, compressPolicy(nowUnix)); err != nil {
			return 0, err
		}
	}

	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"policies_archived",
		sdk.NewAttribute("count", fmt.Sprintf("%d", len(eligible))),
		sdk.NewAttribute("archived_by", caller),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", nowUnix)),
	))

	return len(eligible), nil
}

func compressPolicy(nowUnix int64) func(string) (string, error) {
	return func(raw string) (string, error) {
		var policy types.Policy
		if err := json.Unmarshal([]byte(raw), &policy); err != nil {
			return "", fmt.Errorf("decode policy: %w", err)
		}
		out, err := json.Marshal(types.ArchivedPolicy{
			ID:                policy.ID,
			Owner:             policy.Owner,
			Name:              policy.Name,
			Coverage:          policy.Coverage,
			Premium:           policy.Premium,
			DeactivatedAtUnix: policy.DeactivatedAtUnix,
			ArchivedAtUnix:    nowUnix,
		})
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
}

// GetArchivedPolicies pages through the owner's archive entries.
func (k Keeper) GetArchivedPolicies(ctx context.Context, owner string, cursor uint64, limit int) (types.ArchivedPolicyPage, error) {
	limit = types.ClampLimit(limit)

	var staging []types.ArchivedPolicy
	err := k.policyTiers().WalkArchived(ctx, func(id uint64, raw string) (bool, error) {
		if id <= cursor {
			return false, nil
		}
		var archived types.ArchivedPolicy
		if err := json.Unmarshal([]byte(raw), &archived); err != nil {
			return false, fmt.Errorf("decode archived policy: %w", err)
		}
		if archived.Owner != owner {
			return false, nil
		}
		staging = append(staging, archived)
		return len(staging) > limit, nil
	})
	if err != nil {
		return types.ArchivedPolicyPage{}, err
	}

	page := types.ArchivedPolicyPage{}
	take := len(staging)
	if take > limit {
		take = len(staging) - 1
		page.NextCursor = staging[take-1].ID
	}
	page.Items = staging[:take]
	page.Count = take
	return page, nil
}

// GetArchivedPolicy returns one archive entry.
func (k Keeper) GetArchivedPolicy(ctx context.Context, id uint64) (*types.ArchivedPolicy, error) {
	raw, err := k.ArchivedPolicies.Get(ctx, id)
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrNotFound, "archived policy %d", id)
	}
	var archived types.ArchivedPolicy
	if err := json.Unmarshal([]byte(raw), &archived); err != nil {
		return nil, fmt.Errorf("decode archived policy: %w", err)
	}
	return &archived, nil
}

// RestorePolicy moves an archived policy back to the active index. The
// restored record stays deactivated: restoring is for audit access, and
// cover does not resume without a fresh policy.
func (k Keeper) RestorePolicy(ctx context.Context, caller string, id uint64) error {
	archived, err := k.GetArchivedPolicy(ctx, id)
	if err != nil {
		return err
	}
	if archived.Owner != caller {
		return errorsmod.Wrapf(types.ErrUnauthorized, "caller %s, policy owner %s", caller, archived.Owner)
	}

	sdkCtx, now := contextNow(ctx)
	err = k.policyTiers().Restore(ctx, id, func(raw string) (string, error) {
		var a types.ArchivedPolicy
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return "", fmt.Errorf("decode archived policy: %w", err)
		}
		out, err := json.Marshal(types.Policy{
			ID:                a.ID,
			Owner:             a.Owner,
			Name:              a.Name,
			Coverage:          a.Coverage,
			Premium:           a.Premium,
			PeriodSecs:        types.DefaultPeriodSeconds,
			PaidThroughUnix:   a.DeactivatedAtUnix,
			CreatedAtUnix:     a.DeactivatedAtUnix,
			DeactivatedAtUnix: a.DeactivatedAtUnix,
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
		"policy_restored",
		sdk.NewAttribute("policy_id", fmt.Sprintf("%d", id)),
		sdk.NewAttribute("restored_by", caller),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", now.Unix())),
	))

	return nil
}

// CleanupOldPolicies permanently deletes archive entries archived
// before cutoff. Returns the count removed.
func (k Keeper) CleanupOldPolicies(ctx context.Context, caller string, cutoffUnix int64) (int, error) {
	removed, err := k.policyTiers().CleanupArchiveBefore(ctx, cutoffUnix, func(raw string) (int64, error) {
		var archived types.ArchivedPolicy
		if err := json.Unmarshal([]byte(raw), &archived); err != nil {
			return 0, fmt.Errorf("decode archived policy: %w", err)
		}
		return archived.ArchivedAtUnix, nil
	})
	if err != nil {
		return 0, err
	}

	sdkCtx, now := contextNow(ctx)
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"policies_archive_cleaned",
		sdk.NewAttribute("count", fmt.Sprintf("%d", removed)),
		sdk.NewAttribute("cleaned_by", caller),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", now.Unix())),
	))

	return removed, nil
}

// GetStorageStats reports tier sizes and aggregate amounts. Coverage
// and premium totals count active cover only.
func (k Keeper) GetStorageStats(ctx context.Context) (types.StorageStats, error) {
	activeCount := 0
	coverage := sdkmath.ZeroInt()
	premiums := sdkmath.ZeroInt()
	err := k.Policies.Walk(ctx, nil, func(_ uint64, raw string) (bool, error) {
		var policy types.Policy
		if err := json.Unmarshal([]byte(raw), &policy); err != nil {
			return false, fmt.Errorf("decode policy: %w", err)
		}
		activeCount++
		if !policy.Active {
			return false, nil
		}
		cover, err := policy.CoverageInt()
		if err != nil {
			return false, err
		}
		premium, err := policy.PremiumInt()
		if err != nil {
			return false, err
		}
		coverage = coverage.Add(cover)
		premiums = premiums.Add(premium)
		return false, nil
	})
	if err != nil {
		return types.StorageStats{}, err
	}

	archivedCount := 0
	err = k.policyTiers().WalkArchived(ctx, func(_ uint64, _ string) (bool, error) {
		archivedCount++
		return false, nil
	})
	if err != nil {
		return types.StorageStats{}, err
	}

	scheduleCount := 0
	err = k.Schedules.Walk(ctx, nil, func(_ uint64, _ string) (bool, error) {
		scheduleCount++
		return false, nil
	})
	if err != nil {
		return types.StorageStats{}, err
	}

	_, now := contextNow(ctx)
	return types.StorageStats{
		ActivePolicies:      activeCount,
		ArchivedPolicies:    archivedCount,
		Schedules:           scheduleCount,
		TotalCoverage:       coverage.String(),
		TotalMonthlyPremium: premiums.String(),
		LastUpdatedUnix:     now.Unix(),
	}, nil
}

// ---------------------------------------------------------------------
// Record codecs
// ---------------------------------------------------------------------

func (k Keeper) getPolicy(ctx context.Context, id uint64) (*types.Policy, error) {
	raw, err := k.Policies.Get(ctx, id)
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrNotFound, "policy %d", id)
	}
	var policy types.Policy
	if err := json.Unmarshal([]byte(raw), &policy); err != nil {
		return nil, fmt.Errorf("decode policy: %w", err)
	}
	return &policy, nil
}

func (k Keeper) setPolicy(ctx context.Context, policy types.Policy) error {
	raw, err := json.Marshal(policy)
	if err != nil {
		return err
	}
	return k.Policies.Set(ctx, policy.ID, string(raw))
}

func (k Keeper) getSchedule(ctx context.Context, id uint64) (*types.PremiumSchedule, error) {
	raw, err := k.Schedules.Get(ctx, id)
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrScheduleNotFound, "schedule %d", id)
	}
	var schedule types.PremiumSchedule
	if err := json.Unmarshal([]byte(raw), &schedule); err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}
	return &schedule, nil
}

func (k Keeper) setSchedule(ctx context.Context, schedule types.PremiumSchedule) error {
	raw, err := json.Marshal(schedule)
	if err != nil {
		return err
	}
	return k.Schedules.Set(ctx, schedule.ID, string(raw))
}

func (k Keeper) nextPolicyID(ctx context.Context) (uint64, error) {
	seq, err := k.PolicySeq.Get(ctx)
	if err != nil {
		seq = 0
	}
	seq++
	if err := k.PolicySeq.Set(ctx, seq); err != nil {
		return 0, err
	}
	return seq, nil
}

func (k Keeper) nextScheduleID(ctx context.Context) (uint64, error) {
	seq, err := k.ScheduleSeq.Get(ctx)
	if err != nil {
		seq = 0
	}
	seq++
	if err := k.ScheduleSeq.Set(ctx, seq); err != nil {
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
