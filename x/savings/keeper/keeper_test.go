package keeper_test

import (
	"testing"
	"time"

	"cosmossdk.io/log"
	sdkmath "cosmossdk.io/math"
	storemetrics "cosmossdk.io/store/metrics"
	"cosmossdk.io/store/rootmulti"
	storetypes "cosmossdk.io/store/types"
	tmproto "github.com/cometbft/cometbft/proto/tendermint/types"
	dbm "github.com/cosmos/cosmos-db"
	"github.com/cosmos/cosmos-sdk/codec"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	"github.com/cosmos/cosmos-sdk/runtime"
	"github.com/cosmos/cosmos-sdk/std"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	"github.com/remitwise/remitwise/x/savings/keeper"
	"github.com/remitwise/remitwise/x/savings/types"
)

func setupKeeper(t *testing.T) (keeper.Keeper, sdk.Context) {
	t.Helper()

	storeKey := storetypes.NewKVStoreKey(types.StoreKey)
	db := dbm.NewMemDB()
	cms := rootmulti.NewStore(db, log.NewNopLogger(), storemetrics.NoOpMetrics{})
	cms.MountStoreWithDB(storeKey, storetypes.StoreTypeIAVL, nil)
	require.NoError(t, cms.LoadLatestVersion())

	header := tmproto.Header{
		ChainID: "remitwise-test-1",
		Height:  1,
		Time:    time.Unix(1_760_000_000, 0).UTC(),
	}
	ctx := sdk.NewContext(cms, header, false, log.NewNopLogger())

	reg := codectypes.NewInterfaceRegistry()
	std.RegisterInterfaces(reg)
	cdc := codec.NewProtoCodec(reg)

	return keeper.NewKeeper(cdc, runtime.NewKVStoreService(storeKey)), ctx
}

func TestCreateGoalStartsLockedAndEmpty(t *testing.T) {
	k, ctx := setupKeeper(t)

	id, err := k.CreateGoal(ctx, "maria", "Education", sdkmath.NewInt(5000), ctx.BlockTime().Unix()+1000)
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)

	goal, err := k.GetGoal(ctx, id)
	require.NoError(t, err)
	require.True(t, goal.Locked)
	require.Equal(t, "0", goal.CurrentAmount)
	require.Equal(t, "5000", goal.TargetAmount)

	_, err = k.CreateGoal(ctx, "maria", "Medical", sdkmath.ZeroInt(), 0)
	require.ErrorIs(t, err, types.ErrInvalidAmount)
}

func TestGoalIDsAreSequential(t *testing.T) {
	k, ctx := setupKeeper(t)

	for want := uint64(1); want <= 3; want++ {
		id, err := k.CreateGoal(ctx, "maria", "Goal", sdkmath.NewInt(100), 0)
		require.NoError(t, err)
		require.Equal(t, want, id)
	}
}

func TestAddToGoalIsOwnerScoped(t *testing.T) {
	k, ctx := setupKeeper(t)
	id, err := k.CreateGoal(ctx, "maria", "Education", sdkmath.NewInt(5000), 0)
	require.NoError(t, err)

	_, err = k.AddToGoal(ctx, "jose", id, sdkmath.NewInt(100))
	require.ErrorIs(t, err, types.ErrUnauthorized)

	balance, err := k.AddToGoal(ctx, "maria", id, sdkmath.NewInt(100))
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(100), balance)

	balance, err = k.AddToGoal(ctx, "maria", id, sdkmath.NewInt(250))
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(350), balance)

	_, err = k.AddToGoal(ctx, "maria", id, sdkmath.NewInt(-5))
	require.ErrorIs(t, err, types.ErrInvalidAmount)

	_, err = k.AddToGoal(ctx, "maria", 99, sdkmath.NewInt(5))
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestGoalCompletionDetection(t *testing.T) {
	k, ctx := setupKeeper(t)
	id, err := k.CreateGoal(ctx, "maria", "Education", sdkmath.NewInt(500), 0)
	require.NoError(t, err)

	require.False(t, k.IsGoalCompleted(ctx, id))

	_, err = k.AddToGoal(ctx, "maria", id, sdkmath.NewInt(499))
	require.NoError(t, err)
	require.False(t, k.IsGoalCompleted(ctx, id))

	_, err = k.AddToGoal(ctx, "maria", id, sdkmath.NewInt(1))
	require.NoError(t, err)
	require.True(t, k.IsGoalCompleted(ctx, id))

	// Over-contribution keeps the goal completed.
	_, err = k.AddToGoal(ctx, "maria", id, sdkmath.NewInt(100))
	require.NoError(t, err)
	require.True(t, k.IsGoalCompleted(ctx, id))

	require.False(t, k.IsGoalCompleted(ctx, 404))
}

func TestWithdrawRequiresUnlockedGoal(t *testing.T) {
	k, ctx := setupKeeper(t)
	id, err := k.CreateGoal(ctx, "maria", "Education", sdkmath.NewInt(500), 0)
	require.NoError(t, err)
	_, err = k.AddToGoal(ctx, "maria", id, sdkmath.NewInt(300))
	require.NoError(t, err)

	_, err = k.WithdrawFromGoal(ctx, "maria", id, sdkmath.NewInt(100))
	require.ErrorIs(t, err, types.ErrGoalLocked)

	require.NoError(t, k.UnlockGoal(ctx, "maria", id))

	balance, err := k.WithdrawFromGoal(ctx, "maria", id, sdkmath.NewInt(100))
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(200), balance)

	_, err = k.WithdrawFromGoal(ctx, "maria", id, sdkmath.NewInt(201))
	require.ErrorIs(t, err, types.ErrInsufficientFunds)

	_, err = k.WithdrawFromGoal(ctx, "jose", id, sdkmath.NewInt(1))
	require.ErrorIs(t, err, types.ErrUnauthorized)

	require.NoError(t, k.LockGoal(ctx, "maria", id))
	_, err = k.WithdrawFromGoal(ctx, "maria", id, sdkmath.NewInt(1))
	require.ErrorIs(t, err, types.ErrGoalLocked)
}

func TestLockUnlockIsOwnerScoped(t *testing.T) {
	k, ctx := setupKeeper(t)
	id, err := k.CreateGoal(ctx, "maria", "Education", sdkmath.NewInt(500), 0)
	require.NoError(t, err)

	require.ErrorIs(t, k.UnlockGoal(ctx, "jose", id), types.ErrUnauthorized)
	require.ErrorIs(t, k.LockGoal(ctx, "jose", id), types.ErrUnauthorized)
}

func TestGetOwnerGoalsFiltersByOwner(t *testing.T) {
	k, ctx := setupKeeper(t)
	_, err := k.CreateGoal(ctx, "maria", "Education", sdkmath.NewInt(500), 0)
	require.NoError(t, err)
	_, err = k.CreateGoal(ctx, "jose", "Medical", sdkmath.NewInt(900), 0)
	require.NoError(t, err)
	_, err = k.CreateGoal(ctx, "maria", "Housing", sdkmath.NewInt(1500), 0)
	require.NoError(t, err)

	goals, err := k.GetOwnerGoals(ctx, "maria")
	require.NoError(t, err)
	require.Len(t, goals, 2)
	for _, goal := range goals {
		require.Equal(t, "maria", goal.Owner)
	}
}

func TestArchiveCompletedGoalsCompressesRecords(t *testing.T) {
	k, ctx := setupKeeper(t)
	targetDate := ctx.BlockTime().Unix() + 100

	done, err := k.CreateGoal(ctx, "maria", "Education", sdkmath.NewInt(500), targetDate)
	require.NoError(t, err)
	_, err = k.AddToGoal(ctx, "maria", done, sdkmath.NewInt(600))
	require.NoError(t, err)

	open, err := k.CreateGoal(ctx, "maria", "Medical", sdkmath.NewInt(900), targetDate)
	require.NoError(t, err)
	_, err = k.AddToGoal(ctx, "maria", open, sdkmath.NewInt(100))
	require.NoError(t, err)

	moved, err := k.ArchiveCompletedGoals(ctx, "maria", targetDate+1)
	require.NoError(t, err)
	require.Equal(t, 1, moved)

	_, err = k.GetGoal(ctx, done)
	require.ErrorIs(t, err, types.ErrNotFound)

	archived, err := k.GetArchivedGoal(ctx, done)
	require.NoError(t, err)
	require.Equal(t, "600", archived.FinalAmount)
	require.Equal(t, ctx.BlockTime().Unix(), archived.ArchivedAtUnix)

	// Incomplete goal stays active regardless of its date.
	_, err = k.GetGoal(ctx, open)
	require.NoError(t, err)
}

func TestArchiveRespectsTargetDateCutoff(t *testing.T) {
	k, ctx := setupKeeper(t)
	targetDate := ctx.BlockTime().Unix() + 100

	id, err := k.CreateGoal(ctx, "maria", "Education", sdkmath.NewInt(500), targetDate)
	require.NoError(t, err)
	_, err = k.AddToGoal(ctx, "maria", id, sdkmath.NewInt(500))
	require.NoError(t, err)

	// Completed, but its target date is not before the cutoff.
	moved, err := k.ArchiveCompletedGoals(ctx, "maria", targetDate)
	require.NoError(t, err)
	require.Zero(t, moved)
}

func TestRestoreGoalRelocksWithFreshHorizon(t *testing.T) {
	k, ctx := setupKeeper(t)
	targetDate := ctx.BlockTime().Unix() - 100

	id, err := k.CreateGoal(ctx, "maria", "Education", sdkmath.NewInt(500), targetDate)
	require.NoError(t, err)
	_, err = k.AddToGoal(ctx, "maria", id, sdkmath.NewInt(500))
	require.NoError(t, err)
	_, err = k.ArchiveCompletedGoals(ctx, "maria", ctx.BlockTime().Unix())
	require.NoError(t, err)

	err = k.RestoreGoal(ctx, "jose", id)
	require.ErrorIs(t, err, types.ErrUnauthorized)

	require.NoError(t, k.RestoreGoal(ctx, "maria", id))

	goal, err := k.GetGoal(ctx, id)
	require.NoError(t, err)
	require.True(t, goal.Locked)
	require.Equal(t, "500", goal.CurrentAmount)
	require.Equal(t, ctx.BlockTime().Unix()+types.RestoredGoalHorizonSeconds, goal.TargetDateUnix)

	_, err = k.GetArchivedGoal(ctx, id)
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestCleanupOldArchives(t *testing.T) {
	k, ctx := setupKeeper(t)
	targetDate := ctx.BlockTime().Unix() - 100

	id, err := k.CreateGoal(ctx, "maria", "Education", sdkmath.NewInt(500), targetDate)
	require.NoError(t, err)
	_, err = k.AddToGoal(ctx, "maria", id, sdkmath.NewInt(500))
	require.NoError(t, err)
	_, err = k.ArchiveCompletedGoals(ctx, "maria", ctx.BlockTime().Unix())
	require.NoError(t, err)

	removed, err := k.CleanupOldArchives(ctx, "maria", ctx.BlockTime().Unix())
	require.NoError(t, err)
	require.Zero(t, removed)

	removed, err = k.CleanupOldArchives(ctx, "maria", ctx.BlockTime().Unix()+1)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	err = k.RestoreGoal(ctx, "maria", id)
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestStorageStatsAggregateBalances(t *testing.T) {
	k, ctx := setupKeeper(t)
	targetDate := ctx.BlockTime().Unix() - 100

	done, err := k.CreateGoal(ctx, "maria", "Education", sdkmath.NewInt(500), targetDate)
	require.NoError(t, err)
	_, err = k.AddToGoal(ctx, "maria", done, sdkmath.NewInt(500))
	require.NoError(t, err)

	open, err := k.CreateGoal(ctx, "maria", "Medical", sdkmath.NewInt(900), 0)
	require.NoError(t, err)
	_, err = k.AddToGoal(ctx, "maria", open, sdkmath.NewInt(150))
	require.NoError(t, err)

	_, err = k.ArchiveCompletedGoals(ctx, "maria", ctx.BlockTime().Unix())
	require.NoError(t, err)

	stats, err := k.GetStorageStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.ActiveGoals)
	require.Equal(t, 1, stats.ArchivedGoals)
	require.Equal(t, "150", stats.TotalActiveAmount)
	require.Equal(t, "500", stats.TotalArchivedAmount)
	require.Equal(t, ctx.BlockTime().Unix(), stats.LastUpdatedUnix)
}
