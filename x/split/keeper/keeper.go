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

	"github.com/remitwise/remitwise/x/split/types"
)

// Keeper manages per-owner allocation splits: the four-way percentage
// tuple and the deterministic, sum-conserving calculator over it.
type Keeper struct {
	cdc          codec.Codec
	storeService store.KVStoreService

	Configs collections.Map[string, string]
}

// NewKeeper creates a new split keeper.
func NewKeeper(
	cdc codec.Codec,
	storeService store.KVStoreService,
) Keeper {
	sb := collections.NewSchemaBuilder(storeService)

	return Keeper{
		cdc:          cdc,
		storeService: storeService,
		Configs: collections.NewMap(
			sb,
			collections.NewPrefix(types.ConfigKeyPrefix),
			"split_configs",
			collections.StringKey,
			collections.StringValue,
		),
	}
}

// InitializeSplit stores an owner's split configuration exactly once.
func (k Keeper) InitializeSplit(ctx context.Context, owner string, percentages types.Percentages) error {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return errorsmod.Wrap(types.ErrUnauthorized, "owner address cannot be empty")
	}
	if has, err := k.Configs.Has(ctx, owner); err == nil && has {
		return errorsmod.Wrapf(types.ErrAlreadyInitialized, "owner %s", owner)
	}
	if err := percentages.Validate(); err != nil {
		return err
	}

	sdkCtx, now := contextNow(ctx)
	nowUnix := now.Unix()
	if err := k.setConfig(ctx, types.Config{
		Owner:         owner,
		Percentages:   percentages,
		CreatedAtUnix: nowUnix,
		UpdatedAtUnix: nowUnix,
	}); err != nil {
		return err
	}

	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"split_initialized",
		sdk.NewAttribute("owner", owner),
		sdk.NewAttribute("spending", fmt.Sprintf("%d", percentages.Spending)),
		sdk.NewAttribute("savings", fmt.Sprintf("%d", percentages.Savings)),
		sdk.NewAttribute("bills", fmt.Sprintf("%d", percentages.Bills)),
		sdk.NewAttribute("insurance", fmt.Sprintf("%d", percentages.Insurance)),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", nowUnix)),
	))

	return nil
}

// UpdateSplit replaces the percentages of an existing configuration.
// Owner only.
func (k Keeper) UpdateSplit(ctx context.Context, caller string, percentages types.Percentages) error {
	config, err := k.getConfig(ctx, caller)
	if err != nil {
		return err
	}
	if config.Owner != caller {
		return errorsmod.Wrapf(types.ErrUnauthorized, "caller %s", caller)
	}
	if err := percentages.Validate(); err != nil {
		return err
	}

	sdkCtx, now := contextNow(ctx)
	config.Percentages = percentages
	config.UpdatedAtUnix = now.Unix()
	if err := k.setConfig(ctx, *config); err != nil {
		return err
	}

	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"split_updated",
		sdk.NewAttribute("owner", caller),
		sdk.NewAttribute("spending", fmt.Sprintf("%d", percentages.Spending)),
		sdk.NewAttribute("savings", fmt.Sprintf("%d", percentages.Savings)),
		sdk.NewAttribute("bills", fmt.Sprintf("%d", percentages.Bills)),
		sdk.NewAttribute("insurance", fmt.Sprintf("%d", percentages.Insurance)),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", config.UpdatedAtUnix)),
	))

	return nil
}

// GetSplit returns the owner's percentages, falling back to the default
// tuple when the owner never configured one.
func (k Keeper) GetSplit(ctx context.Context, owner string) types.Percentages {
	config, err := k.getConfig(ctx, owner)
	if err != nil {
		return types.DefaultPercentages()
	}
	return config.Percentages
}

// GetConfig returns the full stored configuration.
func (k Keeper) GetConfig(ctx context.Context, owner string) (*types.Config, error) {
	return k.getConfig(ctx, owner)
}

// CalculateSplit allocates total across the four categories. Spending,
// savings and bills take their integer percentage share; insurance
// receives the remainder, so the four amounts always sum to total.
func (k Keeper) CalculateSplit(ctx context.Context, owner string, total sdkmath.Int) (types.Allocation, error) {
	if total.IsNegative() {
		return types.Allocation{}, errorsmod.Wrapf(types.ErrInvalidAmount, "total %s", total)
	}

	percentages := k.GetSplit(ctx, owner)
	spending := share(total, percentages.Spending)
	savings := share(total, percentages.Savings)
	bills := share(total, percentages.Bills)
	insurance := total.Sub(spending).Sub(savings).Sub(bills)

	sdkCtx, now := contextNow(ctx)
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"split_calculated",
		sdk.NewAttribute("owner", owner),
		sdk.NewAttribute("total", total.String()),
		sdk.NewAttribute("spending", spending.String()),
		sdk.NewAttribute("savings", savings.String()),
		sdk.NewAttribute("bills", bills.String()),
		sdk.NewAttribute("insurance", insurance.String()),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", now.Unix())),
	))

	return types.Allocation{
		Spending:  spending,
		Savings:   savings,
		Bills:     bills,
		Insurance: insurance,
	}, nil
}

// share computes floor(total * percent / 100) via quotient and remainder
// so intermediate products stay near total's magnitude.
func share(total sdkmath.Int, percent uint32) sdkmath.Int {
	p := sdkmath.NewInt(int64(percent))
	quotient := total.QuoRaw(100)
	remainder := total.ModRaw(100)
	return quotient.Mul(p).Add(remainder.Mul(p).QuoRaw(100))
}

// ---------------------------------------------------------------------
// Record codecs
// ---------------------------------------------------------------------

func (k Keeper) getConfig(ctx context.Context, owner string) (*types.Config, error) {
	raw, err := k.Configs.Get(ctx, owner)
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrNotInitialized, "owner %s", owner)
	}
	var config types.Config
	if err := json.Unmarshal([]byte(raw), &config); err != nil {
		return nil, fmt.Errorf("decode split config: %w", err)
	}
	return &config, nil
}

func (k Keeper) setConfig(ctx context.Context, config types.Config) error {
	raw, err := json.Marshal(config)
	if err != nil {
		return err
	}
	return k.Configs.Set(ctx, config.Owner, string(raw))
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
