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

	billskeeper "github.com/remitwise/remitwise/x/bills/keeper"
	billstypes "github.com/remitwise/remitwise/x/bills/types"
	insurancekeeper "github.com/remitwise/remitwise/x/insurance/keeper"
	insurancetypes "github.com/remitwise/remitwise/x/insurance/types"
	"github.com/remitwise/remitwise/x/reporting/keeper"
	"github.com/remitwise/remitwise/x/reporting/types"
	savingskeeper "github.com/remitwise/remitwise/x/savings/keeper"
	savingstypes "github.com/remitwise/remitwise/x/savings/types"
	splitkeeper "github.com/remitwise/remitwise/x/split/keeper"
	splittypes "github.com/remitwise/remitwise/x/split/types"
)

type fixture struct {
	ctx       sdk.Context
	reporting keeper.Keeper
	split     splitkeeper.Keeper
	savings   savingskeeper.Keeper
	bills     billskeeper.Keeper
	insurance insurancekeeper.Keeper
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()

	keys := map[string]*storetypes.KVStoreKey{
		types.StoreKey:          storetypes.NewKVStoreKey(types.StoreKey),
		splittypes.StoreKey:     storetypes.NewKVStoreKey(splittypes.StoreKey),
		savingstypes.StoreKey:   storetypes.NewKVStoreKey(savingstypes.StoreKey),
		billstypes.StoreKey:     storetypes.NewKVStoreKey(billstypes.StoreKey),
		insurancetypes.StoreKey: storetypes.NewKVStoreKey(insurancetypes.StoreKey),
	}

	db := dbm.NewMemDB()
	cms := rootmulti.NewStore(db, log.NewNopLogger(), storemetrics.NoOpMetrics{})
	for _, key := range keys {
		cms.MountStoreWithDB(key, storetypes.StoreTypeIAVL, nil)
	}
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

	f := &fixture{
		ctx:       ctx,
		reporting: keeper.NewKeeper(cdc, runtime.NewKVStoreService(keys[types.StoreKey]), "admin"),
		split:     splitkeeper.NewKeeper(cdc, runtime.NewKVStoreService(keys[splittypes.StoreKey])),
		savings:   savingskeeper.NewKeeper(cdc, runtime.NewKVStoreService(keys[savingstypes.StoreKey])),
		bills:     billskeeper.NewKeeper(cdc, runtime.NewKVStoreService(keys[billstypes.StoreKey])),
		insurance: insurancekeeper.NewKeeper(cdc, runtime.NewKVStoreService(keys[insurancetypes.StoreKey])),
	}
	f.reporting.ConfigureSources(f.split, f.savings, f.bills, f.insurance)
	return f
}

func TestReportsRequireConfiguredSources(t *testing.T) {
	f := setupFixture(t)

	// a keeper without wired sources refuses to report
	bare := keeper.NewKeeper(nil, nil, "admin")
	_, err := bare.GetRemittanceSummary(f.ctx, "maria", sdkmath.NewInt(100), 0, 0)
	require.ErrorIs(t, err, types.ErrSourcesNotConfigured)
	_, err = bare.CalculateHealthScore(f.ctx, "maria")
	require.ErrorIs(t, err, types.ErrSourcesNotConfigured)
}

func TestGetRemittanceSummary(t *testing.T) {
	f := setupFixture(t)

	summary, err := f.reporting.GetRemittanceSummary(f.ctx, "maria", sdkmath.NewInt(1000), 100, 200)
	require.NoError(t, err)
	require.Equal(t, "1000", summary.TotalReceived)
	require.Equal(t, "1000", summary.TotalAllocated)
	require.Len(t, summary.Breakdown, 4)

	// unconfigured owners fall back to the 50/30/15/5 default
	require.Equal(t, types.CategorySpending, summary.Breakdown[0].Category)
	require.Equal(t, "500", summary.Breakdown[0].Amount)
	require.Equal(t, uint32(50), summary.Breakdown[0].Percentage)
	require.Equal(t, "300", summary.Breakdown[1].Amount)
	require.Equal(t, "150", summary.Breakdown[2].Amount)
	require.Equal(t, "50", summary.Breakdown[3].Amount)

	require.NoError(t, f.split.InitializeSplit(f.ctx, "maria", splittypes.Percentages{
		Spending: 40, Savings: 40, Bills: 10, Insurance: 10,
	}))

	summary, err = f.reporting.GetRemittanceSummary(f.ctx, "maria", sdkmath.NewInt(1000), 100, 200)
	require.NoError(t, err)
	require.Equal(t, "400", summary.Breakdown[0].Amount)
	require.Equal(t, "400", summary.Breakdown[1].Amount)
	require.Equal(t, "100", summary.Breakdown[2].Amount)
	require.Equal(t, "100", summary.Breakdown[3].Amount)
}

func TestGetSavingsReport(t *testing.T) {
	f := setupFixture(t)
	horizon := f.ctx.BlockTime().Unix() + 86_400

	done, err := f.savings.CreateGoal(f.ctx, "maria", "Emergency", sdkmath.NewInt(500), horizon)
	require.NoError(t, err)
	_, err = f.savings.AddToGoal(f.ctx, "maria", done, sdkmath.NewInt(500))
	require.NoError(t, err)

	partial, err := f.savings.CreateGoal(f.ctx, "maria", "School", sdkmath.NewInt(1000), horizon)
	require.NoError(t, err)
	_, err = f.savings.AddToGoal(f.ctx, "maria", partial, sdkmath.NewInt(250))
	require.NoError(t, err)

	// another owner's goal never leaks in
	_, err = f.savings.CreateGoal(f.ctx, "jose", "Bike", sdkmath.NewInt(300), horizon)
	require.NoError(t, err)

	report, err := f.reporting.GetSavingsReport(f.ctx, "maria", 100, 200)
	require.NoError(t, err)
	require.Equal(t, 2, report.TotalGoals)
	require.Equal(t, 1, report.CompletedGoals)
	require.Equal(t, "1500", report.TotalTarget)
	require.Equal(t, "750", report.TotalSaved)
	require.Equal(t, uint32(50), report.CompletionPercentage)
	require.Equal(t, int64(100), report.PeriodStartUnix)
	require.Equal(t, int64(200), report.PeriodEndUnix)
}

func TestGetBillComplianceReport(t *testing.T) {
	f := setupFixture(t)
	now := f.ctx.BlockTime().Unix()

	paid, err := f.bills.CreateBill(f.ctx, "maria", "Rent", sdkmath.NewInt(700), now+86_400, false, 0)
	require.NoError(t, err)
	require.NoError(t, f.bills.PayBill(f.ctx, "maria", paid))

	_, err = f.bills.CreateBill(f.ctx, "maria", "Water", sdkmath.NewInt(50), now+86_400, false, 0)
	require.NoError(t, err)

	_, err = f.bills.CreateBill(f.ctx, "maria", "Power", sdkmath.NewInt(120), now-1, false, 0)
	require.NoError(t, err)

	// created outside the reporting period, so not counted
	later := f.ctx.WithBlockTime(time.Unix(now+5000, 0).UTC())
	_, err = f.bills.CreateBill(later, "maria", "Internet", sdkmath.NewInt(80), now+86_400, false, 0)
	require.NoError(t, err)

	report, err := f.reporting.GetBillComplianceReport(f.ctx, "maria", now-100, now+100)
	require.NoError(t, err)
	require.Equal(t, 3, report.TotalBills)
	require.Equal(t, 1, report.PaidBills)
	require.Equal(t, 2, report.UnpaidBills)
	require.Equal(t, 1, report.OverdueBills)
	require.Equal(t, "870", report.TotalAmount)
	require.Equal(t, "700", report.PaidAmount)
	require.Equal(t, "170", report.UnpaidAmount)
	require.Equal(t, uint32(33), report.CompliancePercentage)
}

func TestBillComplianceDefaultsToPerfect(t *testing.T) {
	f := setupFixture(t)

	report, err := f.reporting.GetBillComplianceReport(f.ctx, "maria", 0, 1<<40)
	require.NoError(t, err)
	require.Zero(t, report.TotalBills)
	require.Equal(t, uint32(100), report.CompliancePercentage)
}

func TestGetInsuranceReport(t *testing.T) {
	f := setupFixture(t)

	_, err := f.insurance.CreatePolicy(f.ctx, "maria", "Health", sdkmath.NewInt(10_000), sdkmath.NewInt(25), 0)
	require.NoError(t, err)
	_, err = f.insurance.CreatePolicy(f.ctx, "maria", "Crop", sdkmath.NewInt(10_000), sdkmath.NewInt(40), 0)
	require.NoError(t, err)

	report, err := f.reporting.GetInsuranceReport(f.ctx, "maria", 100, 200)
	require.NoError(t, err)
	require.Equal(t, 2, report.ActivePolicies)
	require.Equal(t, "20000", report.TotalCoverage)
	require.Equal(t, "65", report.MonthlyPremium)
	require.Equal(t, "780", report.AnnualPremium)
	require.Equal(t, uint32(2564), report.CoverageToPremiumRatio)
}

func TestCalculateHealthScore(t *testing.T) {
	f := setupFixture(t)
	now := f.ctx.BlockTime().Unix()

	// nothing on file: default savings score, clean bills, no cover
	score, err := f.reporting.CalculateHealthScore(f.ctx, "maria")
	require.NoError(t, err)
	require.Equal(t, uint32(types.SavingsScoreNoGoals), score.SavingsScore)
	require.Equal(t, uint32(types.BillsScoreMax), score.BillsScore)
	require.Zero(t, score.InsuranceScore)
	require.Equal(t, uint32(60), score.Score)

	goal, err := f.savings.CreateGoal(f.ctx, "maria", "Emergency", sdkmath.NewInt(1000), now+86_400)
	require.NoError(t, err)
	_, err = f.savings.AddToGoal(f.ctx, "maria", goal, sdkmath.NewInt(500))
	require.NoError(t, err)

	_, err = f.bills.CreateBill(f.ctx, "maria", "Water", sdkmath.NewInt(50), now+86_400, false, 0)
	require.NoError(t, err)

	_, err = f.insurance.CreatePolicy(f.ctx, "maria", "Health", sdkmath.NewInt(10_000), sdkmath.NewInt(25), 0)
	require.NoError(t, err)

	// half savings progress, unpaid but not overdue, active cover
	score, err = f.reporting.CalculateHealthScore(f.ctx, "maria")
	require.NoError(t, err)
	require.Equal(t, uint32(20), score.SavingsScore)
	require.Equal(t, uint32(types.BillsScoreUnpaidOnly), score.BillsScore)
	require.Equal(t, uint32(types.InsuranceScoreMax), score.InsuranceScore)
	require.Equal(t, uint32(75), score.Score)

	// an overdue bill drags the bills component down
	_, err = f.bills.CreateBill(f.ctx, "maria", "Power", sdkmath.NewInt(120), now-1, false, 0)
	require.NoError(t, err)

	score, err = f.reporting.CalculateHealthScore(f.ctx, "maria")
	require.NoError(t, err)
	require.Equal(t, uint32(types.BillsScoreOverdue), score.BillsScore)
	require.Equal(t, uint32(60), score.Score)
}

func TestStoreAndRetrieveReport(t *testing.T) {
	f := setupFixture(t)

	report, err := f.reporting.GetFinancialHealthReport(f.ctx, "maria", sdkmath.NewInt(1000), 100, 200)
	require.NoError(t, err)
	require.Equal(t, f.ctx.BlockTime().Unix(), report.GeneratedAtUnix)

	require.NoError(t, f.reporting.StoreReport(f.ctx, "maria", 202610, report))

	stored, err := f.reporting.GetStoredReport(f.ctx, "maria", 202610)
	require.NoError(t, err)
	require.Equal(t, "maria", stored.Owner)
	require.Equal(t, uint64(202610), stored.PeriodKey)
	require.Equal(t, report.HealthScore, stored.HealthScore)

	_, err = f.reporting.GetStoredReport(f.ctx, "maria", 202611)
	require.ErrorIs(t, err, types.ErrReportNotFound)
}

func TestArchiveOldReports(t *testing.T) {
	f := setupFixture(t)
	now := f.ctx.BlockTime().Unix()

	report, err := f.reporting.GetFinancialHealthReport(f.ctx, "maria", sdkmath.NewInt(1000), 100, 200)
	require.NoError(t, err)
	require.NoError(t, f.reporting.StoreReport(f.ctx, "maria", 202610, report))

	later := f.ctx.WithBlockTime(time.Unix(now+5000, 0).UTC())
	fresh, err := f.reporting.GetFinancialHealthReport(later, "maria", sdkmath.NewInt(1000), 100, 200)
	require.NoError(t, err)
	require.NoError(t, f.reporting.StoreReport(later, "maria", 202611, fresh))

	_, err = f.reporting.ArchiveOldReports(later, "maria", now+1000)
	require.ErrorIs(t, err, types.ErrUnauthorized)

	moved, err := f.reporting.ArchiveOldReports(later, "admin", now+1000)
	require.NoError(t, err)
	require.Equal(t, 1, moved)

	_, err = f.reporting.GetStoredReport(f.ctx, "maria", 202610)
	require.ErrorIs(t, err, types.ErrReportNotFound)
	_, err = f.reporting.GetStoredReport(f.ctx, "maria", 202611)
	require.NoError(t, err)

	archived, err := f.reporting.GetArchivedReports(f.ctx, "maria")
	require.NoError(t, err)
	require.Len(t, archived, 1)
	require.Equal(t, uint64(202610), archived[0].PeriodKey)
	require.Equal(t, report.HealthScore.Score, archived[0].HealthScore)
	require.Equal(t, now, archived[0].GeneratedAtUnix)
	require.Equal(t, now+5000, archived[0].ArchivedAtUnix)
}

func TestCleanupOldReportsIsStrict(t *testing.T) {
	f := setupFixture(t)
	now := f.ctx.BlockTime().Unix()

	report, err := f.reporting.GetFinancialHealthReport(f.ctx, "maria", sdkmath.NewInt(1000), 100, 200)
	require.NoError(t, err)
	require.NoError(t, f.reporting.StoreReport(f.ctx, "maria", 202610, report))

	_, err = f.reporting.ArchiveOldReports(f.ctx, "admin", now+1)
	require.NoError(t, err)

	_, err = f.reporting.CleanupOldReports(f.ctx, "maria", now+1)
	require.ErrorIs(t, err, types.ErrUnauthorized)

	// archived exactly at now: a cutoff of now keeps it
	removed, err := f.reporting.CleanupOldReports(f.ctx, "admin", now)
	require.NoError(t, err)
	require.Zero(t, removed)

	removed, err = f.reporting.CleanupOldReports(f.ctx, "admin", now+1)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	archived, err := f.reporting.GetArchivedReports(f.ctx, "maria")
	require.NoError(t, err)
	require.Empty(t, archived)
}

func TestGetStorageStats(t *testing.T) {
	f := setupFixture(t)
	now := f.ctx.BlockTime().Unix()

	for i, key := range []uint64{202608, 202609, 202610} {
		report, err := f.reporting.GetFinancialHealthReport(f.ctx, "maria", sdkmath.NewInt(int64(1000+i)), 100, 200)
		require.NoError(t, err)
		require.NoError(t, f.reporting.StoreReport(f.ctx, "maria", key, report))
	}

	later := f.ctx.WithBlockTime(time.Unix(now+5000, 0).UTC())
	_, err := f.reporting.ArchiveOldReports(later, "admin", now+1)
	require.NoError(t, err)

	stats, err := f.reporting.GetStorageStats(f.ctx)
	require.NoError(t, err)
	require.Zero(t, stats.ActiveReports)
	require.Equal(t, 3, stats.ArchivedReports)
}

func TestGetTrendAnalysis(t *testing.T) {
	trend := keeper.GetTrendAnalysis(sdkmath.NewInt(150), sdkmath.NewInt(100))
	require.Equal(t, "50", trend.ChangeAmount)
	require.Equal(t, int32(50), trend.ChangePercentage)

	trend = keeper.GetTrendAnalysis(sdkmath.NewInt(80), sdkmath.NewInt(100))
	require.Equal(t, "-20", trend.ChangeAmount)
	require.Equal(t, int32(-20), trend.ChangePercentage)

	// no prior period: anything counts as a full jump
	trend = keeper.GetTrendAnalysis(sdkmath.NewInt(40), sdkmath.ZeroInt())
	require.Equal(t, int32(100), trend.ChangePercentage)

	trend = keeper.GetTrendAnalysis(sdkmath.ZeroInt(), sdkmath.ZeroInt())
	require.Zero(t, trend.ChangePercentage)
}
