package lifecycle_test

import (
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"cosmossdk.io/collections"
	"cosmossdk.io/log"
	storemetrics "cosmossdk.io/store/metrics"
	"cosmossdk.io/store/rootmulti"
	storetypes "cosmossdk.io/store/types"
	tmproto "github.com/cometbft/cometbft/proto/tendermint/types"
	dbm "github.com/cosmos/cosmos-db"
	"github.com/cosmos/cosmos-sdk/runtime"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	"github.com/remitwise/remitwise/x/lifecycle"
)

type fixture struct {
	ctx     sdk.Context
	active  collections.Map[uint64, string]
	archive collections.Map[uint64, string]
	tiers   lifecycle.Manager[uint64]
}

func setup(t *testing.T) *fixture {
	t.Helper()

	storeKey := storetypes.NewKVStoreKey("lifecycle")
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

	sb := collections.NewSchemaBuilder(runtime.NewKVStoreService(storeKey))
	f := &fixture{ctx: ctx}
	f.active = collections.NewMap(sb, []byte{0x01}, "active", collections.Uint64Key, collections.StringValue)
	f.archive = collections.NewMap(sb, []byte{0x02}, "archive", collections.Uint64Key, collections.StringValue)
	_, err := sb.Build()
	require.NoError(t, err)

	f.tiers = lifecycle.NewManager(&f.active, &f.archive)
	return f
}

func TestArchiveAndRestoreRoundTrip(t *testing.T) {
	f := setup(t)

	require.NoError(t, f.active.Set(f.ctx, 7, "record-7"))

	require.NoError(t, f.tiers.Archive(f.ctx, 7, lifecycle.Identity))

	_, err := f.active.Get(f.ctx, 7)
	require.Error(t, err)
	raw, err := f.archive.Get(f.ctx, 7)
	require.NoError(t, err)
	require.Equal(t, "record-7", raw)

	require.NoError(t, f.tiers.Restore(f.ctx, 7, lifecycle.Identity))

	raw, err = f.active.Get(f.ctx, 7)
	require.NoError(t, err)
	require.Equal(t, "record-7", raw)
	_, err = f.archive.Get(f.ctx, 7)
	require.Error(t, err)
}

func TestArchiveMissingRecordFails(t *testing.T) {
	f := setup(t)

	err := f.tiers.Archive(f.ctx, 99, lifecycle.Identity)
	require.ErrorContains(t, err, "not in active index")

	err = f.tiers.Restore(f.ctx, 99, lifecycle.Identity)
	require.ErrorContains(t, err, "not in archive index")
}

func TestTransformsApplyOnEachMove(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.active.Set(f.ctx, 1, "payload"))

	stamp := func(raw string) (string, error) { return raw + "|archived@100", nil }
	unstamp := func(raw string) (string, error) {
		base, _, found := strings.Cut(raw, "|")
		if !found {
			return "", fmt.Errorf("missing stamp in %q", raw)
		}
		return base, nil
	}

	require.NoError(t, f.tiers.Archive(f.ctx, 1, stamp))
	raw, err := f.archive.Get(f.ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "payload|archived@100", raw)

	require.NoError(t, f.tiers.Restore(f.ctx, 1, unstamp))
	raw, err = f.active.Get(f.ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "payload", raw)
}

func TestCleanupArchiveBeforeIsStrict(t *testing.T) {
	f := setup(t)

	// Archived-at stamps stored as the raw value itself.
	for key, at := range map[uint64]int64{1: 100, 2: 200, 3: 300} {
		require.NoError(t, f.archive.Set(f.ctx, key, strconv.FormatInt(at, 10)))
	}
	stamp := func(raw string) (int64, error) { return strconv.ParseInt(raw, 10, 64) }

	removed, err := f.tiers.CleanupArchiveBefore(f.ctx, 200, stamp)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	// Entry stamped exactly at the cutoff survives.
	_, err = f.archive.Get(f.ctx, 2)
	require.NoError(t, err)

	active, archived, err := f.tiers.Counts(f.ctx)
	require.NoError(t, err)
	require.Zero(t, active)
	require.Equal(t, 2, archived)
}

func TestWalkArchivedStops(t *testing.T) {
	f := setup(t)
	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, f.archive.Set(f.ctx, i, "x"))
	}

	visited := 0
	err := f.tiers.WalkArchived(f.ctx, func(_ uint64, _ string) (bool, error) {
		visited++
		return visited == 2, nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, visited)
}
