package keeper

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cosmossdk.io/collections"
	"cosmossdk.io/core/store"
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/cosmos/cosmos-sdk/codec"
	sdk "github.com/cosmos/cosmos-sdk/types"

	billstypes "github.com/remitwise/remitwise/x/bills/types"
	insurancetypes "github.com/remitwise/remitwise/x/insurance/types"
	"github.com/remitwise/remitwise/x/lifecycle"
	"github.com/remitwise/remitwise/x/reporting/types"
	savingstypes "github.com/remitwise/remitwise/x/savings/types"
	splittypes "github.com/remitwise/remitwise/x/split/types"
)

// SplitSource provides allocation data for remittance summaries.
type SplitSource interface {
	GetSplit(ctx context.Context, owner string) splittypes.Percentages
	CalculateSplit(ctx context.Context, owner string, total sdkmath.Int) (splittypes.Allocation, error)
}

// SavingsSource provides goal data for savings reports.
type SavingsSource interface {
	GetOwnerGoals(ctx context.Context, owner string) ([]savingstypes.Goal, error)
}

// BillsSource provides bill data for compliance reports.
type BillsSource interface {
	GetOwnerBills(ctx context.Context, owner string, cursor uint64, limit int) (billstypes.BillPage, error)
	GetUnpaidBills(ctx context.Context, owner string, cursor uint64, limit int) (billstypes.BillPage, error)
}

// InsuranceSource provides policy data for coverage reports.
type InsuranceSource interface {
	GetActivePolicies(ctx context.Context, owner string, cursor uint64, limit int) (insurancetypes.PolicyPage, error)
	GetTotalMonthlyPremium(ctx context.Context, owner string) (sdkmath.Int, error)
}

// Keeper aggregates the other modules into owner-level reports and a
// weighted financial health score. Stored reports age into an archive
// tier that keeps only the score.
type Keeper struct {
	cdc          codec.Codec
	storeService store.KVStoreService
	authority    string

	splitSource     SplitSource
	savingsSource   SavingsSource
	billsSource     BillsSource
	insuranceSource InsuranceSource

	Reports         collections.Map[string, string]
	ArchivedReports collections.Map[string, string]
}

// NewKeeper creates a new reporting keeper. Sources are wired after
// construction via ConfigureSources.
func NewKeeper(
	cdc codec.Codec,
	storeService store.KVStoreService,
	authority string,
) Keeper {
	sb := collections.NewSchemaBuilder(storeService)

	return Keeper{
		cdc:          cdc,
		storeService: storeService,
		authority:    authority,
		Reports: collections.NewMap(
			sb,
			collections.NewPrefix(types.ReportKeyPrefix),
			"reports",
			collections.StringKey,
			collections.StringValue,
		),
		ArchivedReports: collections.NewMap(
			sb,
			collections.NewPrefix(types.ArchivedReportKeyPrefix),
			"archived_reports",
			collections.StringKey,
			collections.StringValue,
		),
	}
}

// ConfigureSources wires the module keepers this keeper reads from.
func (k *Keeper) ConfigureSources(
	split SplitSource,
	savings SavingsSource,
	bills BillsSource,
	insurance InsuranceSource,
) {
	k.splitSource = split
	k.savingsSource = savings
	k.billsSource = bills
	k.insuranceSource = insurance
}

// GetAuthority returns the keeper authority address.
func (k Keeper) GetAuthority() string {
	return k.authority
}

func (k Keeper) requireSources() error {
	if k.splitSource == nil || k.savingsSource == nil || k.billsSource == nil || k.insuranceSource == nil {
		return types.ErrSourcesNotConfigured
	}
	return nil
}

func (k Keeper) reportTiers() lifecycle.Manager[string] {
	return lifecycle.NewManager(&k.Reports, &k.ArchivedReports)
}

// ---------------------------------------------------------------------
// Report generation
// ---------------------------------------------------------------------

// GetRemittanceSummary reports how an incoming amount splits across the
// owner's configured allocation.
func (k Keeper) GetRemittanceSummary(
	ctx context.Context,
	owner string,
	total sdkmath.Int,
	periodStartUnix int64,
	periodEndUnix int64,
) (types.RemittanceSummary, error) {
	if err := k.requireSources(); err != nil {
		return types.RemittanceSummary{}, err
	}

	percentages := k.splitSource.GetSplit(ctx, owner)
	allocation, err := k.splitSource.CalculateSplit(ctx, owner, total)
	if err != nil {
		return types.RemittanceSummary{}, err
	}

	breakdown := []types.CategoryBreakdown{
		{Category: types.CategorySpending, Amount: allocation.Spending.String(), Percentage: percentages.Spending},
		{Category: types.CategorySavings, Amount: allocation.Savings.String(), Percentage: percentages.Savings},
		{Category: types.CategoryBills, Amount: allocation.Bills.String(), Percentage: percentages.Bills},
		{Category: types.CategoryInsurance, Amount: allocation.Insurance.String(), Percentage: percentages.Insurance},
	}

	return types.RemittanceSummary{
		TotalReceived:   total.String(),
		TotalAllocated:  allocation.Total().String(),
		Breakdown:       breakdown,
		PeriodStartUnix: periodStartUnix,
		PeriodEndUnix:   periodEndUnix,
	}, nil
}

// GetSavingsReport summarizes the owner's goal progress.
func (k Keeper) GetSavingsReport(
	ctx context.Context,
	owner string,
	periodStartUnix int64,
	periodEndUnix int64,
) (types.SavingsReport, error) {
	if err := k.requireSources(); err != nil {
		return types.SavingsReport{}, err
	}

	goals, err := k.savingsSource.GetOwnerGoals(ctx, owner)
	if err != nil {
		return types.SavingsReport{}, err
	}

	totalTarget := sdkmath.ZeroInt()
	totalSaved := sdkmath.ZeroInt()
	completed := 0
	for _, goal := range goals {
		target, err := goal.TargetInt()
		if err != nil {
			return types.SavingsReport{}, err
		}
		current, err := goal.CurrentInt()
		if err != nil {
			return types.SavingsReport{}, err
		}
		totalTarget = totalTarget.Add(target)
		totalSaved = totalSaved.Add(current)
		if current.GTE(target) {
			completed++
		}
	}

	completion := uint32(0)
	if totalTarget.IsPositive() {
		completion = uint32(totalSaved.MulRaw(100).Quo(totalTarget).Int64())
	}

	return types.SavingsReport{
		TotalGoals:           len(goals),
		CompletedGoals:       completed,
		TotalTarget:          totalTarget.String(),
		TotalSaved:           totalSaved.String(),
		CompletionPercentage: completion,
		PeriodStartUnix:      periodStartUnix,
		PeriodEndUnix:        periodEndUnix,
	}, nil
}

// GetBillComplianceReport summarizes payment behavior for bills created
// within the period. An owner with no bills in the period scores 100.
func (k Keeper) GetBillComplianceReport(
	ctx context.Context,
	owner string,
	periodStartUnix int64,
	periodEndUnix int64,
) (types.BillComplianceReport, error) {
	if err := k.requireSources(); err != nil {
		return types.BillComplianceReport{}, err
	}

	_, now := contextNow(ctx)
	nowUnix := now.Unix()

	report := types.BillComplianceReport{
		PeriodStartUnix: periodStartUnix,
		PeriodEndUnix:   periodEndUnix,
	}
	totalAmount := sdkmath.ZeroInt()
	paidAmount := sdkmath.ZeroInt()
	unpaidAmount := sdkmath.ZeroInt()

	for cursor := uint64(0); ; {
		page, err := k.billsSource.GetOwnerBills(ctx, owner, cursor, billstypes.MaxPageLimit)
		if err != nil {
			return types.BillComplianceReport{}, err
		}
		for _, bill := range page.Items {
			if bill.CreatedAtUnix < periodStartUnix || bill.CreatedAtUnix > periodEndUnix {
				continue
			}
			amount, err := bill.AmountInt()
			if err != nil {
				return types.BillComplianceReport{}, err
			}
			report.TotalBills++
			totalAmount = totalAmount.Add(amount)
			if bill.Paid {
				report.PaidBills++
				paidAmount = paidAmount.Add(amount)
			} else {
				report.UnpaidBills++
				unpaidAmount = unpaidAmount.Add(amount)
				if bill.DueDateUnix < nowUnix {
					report.OverdueBills++
				}
			}
		}
		if page.NextCursor == 0 {
			break
		}
		cursor = page.NextCursor
	}

	report.TotalAmount = totalAmount.String()
	report.PaidAmount = paidAmount.String()
	report.UnpaidAmount = unpaidAmount.String()
	if report.TotalBills > 0 {
		report.CompliancePercentage = uint32(report.PaidBills * 100 / report.TotalBills)
	} else {
		report.CompliancePercentage = 100
	}
	return report, nil
}

// GetInsuranceReport summarizes the owner's active cover. The ratio is
// coverage per 100 units of annual premium.
func (k Keeper) GetInsuranceReport(
	ctx context.Context,
	owner string,
	periodStartUnix int64,
	periodEndUnix int64,
) (types.InsuranceReport, error) {
	if err := k.requireSources(); err != nil {
		return types.InsuranceReport{}, err
	}

	monthly, err := k.insuranceSource.GetTotalMonthlyPremium(ctx, owner)
	if err != nil {
		return types.InsuranceReport{}, err
	}

	coverage := sdkmath.ZeroInt()
	active := 0
	for cursor := uint64(0); ; {
		page, err := k.insuranceSource.GetActivePolicies(ctx, owner, cursor, insurancetypes.MaxPageLimit)
		if err != nil {
			return types.InsuranceReport{}, err
		}
		for _, policy := range page.Items {
			cover, err := policy.CoverageInt()
			if err != nil {
				return types.InsuranceReport{}, err
			}
			coverage = coverage.Add(cover)
			active++
		}
		if page.NextCursor == 0 {
			break
		}
		cursor = page.NextCursor
	}

	annual := monthly.MulRaw(12)
	ratio := uint32(0)
	if annual.IsPositive() {
		ratio = uint32(coverage.MulRaw(100).Quo(annual).Int64())
	}

	return types.InsuranceReport{
		ActivePolicies:         active,
		TotalCoverage:          coverage.String(),
		MonthlyPremium:         monthly.String(),
		AnnualPremium:          annual.String(),
		CoverageToPremiumRatio: ratio,
		PeriodStartUnix:        periodStartUnix,
		PeriodEndUnix:          periodEndUnix,
	}, nil
}

// CalculateHealthScore computes the weighted 0-100 score: savings
// progress up to 40 points, bill compliance up to 40, active insurance
// the final 20.
func (k Keeper) CalculateHealthScore(ctx context.Context, owner string) (types.HealthScore, error) {
	if err := k.requireSources(); err != nil {
		return types.HealthScore{}, err
	}

	goals, err := k.savingsSource.GetOwnerGoals(ctx, owner)
	if err != nil {
		return types.HealthScore{}, err
	}
	totalTarget := sdkmath.ZeroInt()
	totalSaved := sdkmath.ZeroInt()
	for _, goal := range goals {
		target, err := goal.TargetInt()
		if err != nil {
			return types.HealthScore{}, err
		}
		current, err := goal.CurrentInt()
		if err != nil {
			return types.HealthScore{}, err
		}
		totalTarget = totalTarget.Add(target)
		totalSaved = totalSaved.Add(current)
	}
	savingsScore := uint32(types.SavingsScoreNoGoals)
	if totalTarget.IsPositive() {
		progress := totalSaved.MulRaw(100).Quo(totalTarget).Int64()
		if progress > 100 {
			progress = 100
		}
		savingsScore = uint32(progress * types.SavingsScoreMax / 100)
	}

	_, now := contextNow(ctx)
	nowUnix := now.Unix()
	unpaid := 0
	overdue := 0
	for cursor := uint64(0); ; {
		page, err := k.billsSource.GetUnpaidBills(ctx, owner, cursor, billstypes.MaxPageLimit)
		if err != nil {
			return types.HealthScore{}, err
		}
		for _, bill := range page.Items {
			unpaid++
			if bill.DueDateUnix < nowUnix {
				overdue++
			}
		}
		if page.NextCursor == 0 {
			break
		}
		cursor = page.NextCursor
	}
	billsScore := uint32(types.BillsScoreMax)
	switch {
	case unpaid == 0:
	case overdue == 0:
		billsScore = types.BillsScoreUnpaidOnly
	default:
		billsScore = types.BillsScoreOverdue
	}

	policies, err := k.insuranceSource.GetActivePolicies(ctx, owner, 0, 1)
	if err != nil {
		return types.HealthScore{}, err
	}
	insuranceScore := uint32(0)
	if policies.Count > 0 {
		insuranceScore = types.InsuranceScoreMax
	}

	return types.HealthScore{
		Score:          savingsScore + billsScore + insuranceScore,
		SavingsScore:   savingsScore,
		BillsScore:     billsScore,
		InsuranceScore: insuranceScore,
	}, nil
}

// GetFinancialHealthReport composes every per-module report into one
// document.
func (k Keeper) GetFinancialHealthReport(
	ctx context.Context,
	owner string,
	total sdkmath.Int,
	periodStartUnix int64,
	periodEndUnix int64,
) (types.FinancialHealthReport, error) {
	score, err := k.CalculateHealthScore(ctx, owner)
	if err != nil {
		return types.FinancialHealthReport{}, err
	}
	summary, err := k.GetRemittanceSummary(ctx, owner, total, periodStartUnix, periodEndUnix)
	if err != nil {
		return types.FinancialHealthReport{}, err
	}
	savings, err := k.GetSavingsReport(ctx, owner, periodStartUnix, periodEndUnix)
	if err != nil {
		return types.FinancialHealthReport{}, err
	}
	compliance, err := k.GetBillComplianceReport(ctx, owner, periodStartUnix, periodEndUnix)
	if err != nil {
		return types.FinancialHealthReport{}, err
	}
	insurance, err := k.GetInsuranceReport(ctx, owner, periodStartUnix, periodEndUnix)
	if err != nil {
		return types.FinancialHealthReport{}, err
	}

	sdkCtx, now := contextNow(ctx)
	report := types.FinancialHealthReport{
		Owner:             owner,
		HealthScore:       score,
		RemittanceSummary: summary,
		SavingsReport:     savings,
		BillCompliance:    compliance,
		InsuranceReport:   insurance,
		GeneratedAtUnix:   now.Unix(),
	}

	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"report_generated",
		sdk.NewAttribute("owner", owner),
		sdk.NewAttribute("health_score", fmt.Sprintf("%d", score.Score)),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", now.Unix())),
	))

	return report, nil
}

// GetTrendAnalysis compares an amount across two periods. A previous
// period of zero reports a 100% change when anything arrived at all.
func GetTrendAnalysis(current, previous sdkmath.Int) types.TrendData {
	change := current.Sub(previous)
	pct := int32(0)
	if previous.IsPositive() {
		pct = int32(change.MulRaw(100).Quo(previous).Int64())
	} else if current.IsPositive() {
		pct = 100
	}
	return types.TrendData{
		CurrentAmount:    current.String(),
		PreviousAmount:   previous.String(),
		ChangeAmount:     change.String(),
		ChangePercentage: pct,
	}
}

// ---------------------------------------------------------------------
// Stored reports
// ---------------------------------------------------------------------

// StoreReport persists a report under the owner's period key,
// overwriting any report stored for the same period.
func (k Keeper) StoreReport(ctx context.Context, owner string, periodKey uint64, report types.FinancialHealthReport) error {
	report.Owner = owner
	report.PeriodKey = periodKey
	raw, err := json.Marshal(report)
	if err != nil {
		return err
	}
	if err := k.Reports.Set(ctx, reportKey(owner, periodKey), string(raw)); err != nil {
		return err
	}

	sdkCtx, now := contextNow(ctx)
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"report_stored",
		sdk.NewAttribute("owner", owner),
		sdk.NewAttribute("period_key", fmt.Sprintf("%d", periodKey)),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", now.Unix())),
	))

	return nil
}

// GetStoredReport loads a stored report.
func (k Keeper) GetStoredReport(ctx context.Context, owner string, periodKey uint64) (*types.FinancialHealthReport, error) {
	raw, err := k.Reports.Get(ctx, reportKey(owner, periodKey))
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrReportNotFound, "owner %s period %d", owner, periodKey)
	}
	var report types.FinancialHealthReport
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &report, nil
}

// ---------------------------------------------------------------------
// Archival
// ---------------------------------------------------------------------

// ArchiveOldReports compresses reports generated before cutoff down to
// their score. Authority only.
func (k Keeper) ArchiveOldReports(ctx context.Context, caller string, cutoffUnix int64) (int, error) {
	if caller != k.authority {
		return 0, errorsmod.Wrapf(types.ErrUnauthorized, "caller %s", caller)
	}

	sdkCtx, now := contextNow(ctx)
	nowUnix := now.Unix()

	var eligible []string
	err := k.Reports.Walk(ctx, nil, func(key string, raw string) (bool, error) {
		var report types.FinancialHealthReport
		if err := json.Unmarshal([]byte(raw), &report); err != nil {
			return false, fmt.Errorf("decode report: %w", err)
		}
		if report.GeneratedAtUnix < cutoffUnix {
			eligible = append(eligible, key)
		}
		return false, nil
	})
	if err != nil {
		return 0, err
	}

	tiers := k.reportTiers()
	for _, key := range eligible {
		if err := tiers.Archive(ctx, key, compressReport(nowUnix)); err != nil {
			return 0, err
		}
	}

	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"reports_archived",
		sdk.NewAttribute("count", fmt.Sprintf("%d", len(eligible))),
		sdk.NewAttribute("archived_by", caller),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", nowUnix)),
	))

	return len(eligible), nil
}

func compressReport(nowUnix int64) func(string) (string, error) {
	return func(raw string) (string, error) {
		var report types.FinancialHealthReport
		if err := json.Unmarshal([]byte(raw), &report); err != nil {
			return "", fmt.Errorf("decode report: %w", err)
		}
		out, err := json.Marshal(types.ArchivedReport{
			Owner:           report.Owner,
			PeriodKey:       report.PeriodKey,
			HealthScore:     report.HealthScore.Score,
			GeneratedAtUnix: report.GeneratedAtUnix,
			ArchivedAtUnix:  nowUnix,
		})
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
}

// GetArchivedReports returns the owner's archive entries.
func (k Keeper) GetArchivedReports(ctx context.Context, owner string) ([]types.ArchivedReport, error) {
	var out []types.ArchivedReport
	err := k.reportTiers().WalkArchived(ctx, func(_ string, raw string) (bool, error) {
		var archived types.ArchivedReport
		if err := json.Unmarshal([]byte(raw), &archived); err != nil {
			return false, fmt.Errorf("decode archived report: %w", err)
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

// CleanupOldReports permanently deletes archive entries archived before
// cutoff. Authority only.
func (k Keeper) CleanupOldReports(ctx context.Context, caller string, cutoffUnix int64) (int, error) {
	if caller != k.authority {
		return 0, errorsmod.Wrapf(types.ErrUnauthorized, "caller %s", caller)
	}

	removed, err := k.reportTiers().CleanupArchiveBefore(ctx, cutoffUnix, func(raw string) (int64, error) {
		var archived types.ArchivedReport
		if err := json.Unmarshal([]byte(raw), &archived); err != nil {
			return 0, fmt.Errorf("decode archived report: %w", err)
		}
		return archived.ArchivedAtUnix, nil
	})
	if err != nil {
		return 0, err
	}

	sdkCtx, now := contextNow(ctx)
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"reports_archive_cleaned",
		sdk.NewAttribute("count", fmt.Sprintf("%d", removed)),
		sdk.NewAttribute("cleaned_by", caller),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", now.Unix())),
	))

	return removed, nil
}

// GetStorageStats reports tier sizes.
func (k Keeper) GetStorageStats(ctx context.Context) (types.StorageStats, error) {
	active, archived, err := k.reportTiers().Counts(ctx)
	if err != nil {
		return types.StorageStats{}, err
	}
	_, now := contextNow(ctx)
	return types.StorageStats{
		ActiveReports:   active,
		ArchivedReports: archived,
		LastUpdatedUnix: now.Unix(),
	}, nil
}

func reportKey(owner string, periodKey uint64) string {
	return fmt.Sprintf("%s|%d", owner, periodKey)
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
