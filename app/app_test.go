package app_test

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	dbm "github.com/cosmos/cosmos-db"
	"github.com/stretchr/testify/require"

	"github.com/remitwise/remitwise/app"
	wallettypes "github.com/remitwise/remitwise/x/wallet/types"
)

func TestRemittanceCycle(t *testing.T) {
	a, err := app.New(dbm.NewMemDB(), "admin")
	require.NoError(t, err)
	ctx := a.NewContext(1, 1_760_000_000)
	now := ctx.BlockTime().Unix()

	// a remittance arrives and splits on the default 50/30/15/5
	allocation, err := a.SplitKeeper.CalculateSplit(ctx, "maria", sdkmath.NewInt(1000))
	require.NoError(t, err)
	require.Equal(t, "500", allocation.Spending.String())
	require.Equal(t, "1000", allocation.Total().String())

	// the savings slice lands on a goal
	goal, err := a.SavingsKeeper.CreateGoal(ctx, "maria", "Emergency", sdkmath.NewInt(600), now+86_400)
	require.NoError(t, err)
	_, err = a.SavingsKeeper.AddToGoal(ctx, "maria", goal, allocation.Savings)
	require.NoError(t, err)

	// the bills slice settles this month's rent
	bill, err := a.BillsKeeper.CreateBill(ctx, "maria", "Rent", allocation.Bills, now+86_400, false, 0)
	require.NoError(t, err)
	require.NoError(t, a.BillsKeeper.PayBill(ctx, "maria", bill))

	// the insurance slice covers the premium
	_, err = a.InsuranceKeeper.CreatePolicy(ctx, "maria", "Health", sdkmath.NewInt(10_000), allocation.Insurance, 0)
	require.NoError(t, err)

	// 300 saved of 600 target (20 pts), no unpaid bills (40), cover (20)
	report, err := a.ReportingKeeper.GetFinancialHealthReport(ctx, "maria", sdkmath.NewInt(1000), now-100, now+100)
	require.NoError(t, err)
	require.Equal(t, uint32(80), report.HealthScore.Score)
	require.Equal(t, uint32(100), report.BillCompliance.CompliancePercentage)
	require.Equal(t, "300", report.SavingsReport.TotalSaved)

	require.NoError(t, a.ReportingKeeper.StoreReport(ctx, "maria", 202610, report))
	a.Commit()

	stored, err := a.ReportingKeeper.GetStoredReport(a.NewContext(2, now+5), "maria", 202610)
	require.NoError(t, err)
	require.Equal(t, report.HealthScore, stored.HealthScore)
}

func TestWalletGovernanceThroughApp(t *testing.T) {
	a, err := app.New(dbm.NewMemDB(), "admin")
	require.NoError(t, err)
	ctx := a.NewContext(1, 1_760_000_000)

	require.NoError(t, a.WalletKeeper.Init(ctx, "owner", []string{"alice", "bob"}))
	require.NoError(t, a.WalletKeeper.ConfigureMultisig(ctx, "owner", 2, []string{"owner", "alice", "bob"}, true))
	require.NoError(t, a.Ledger.Deposit(ctx, "alice", sdkmath.NewInt(100)))

	id, err := a.WalletKeeper.ProposeTransaction(ctx, "alice", wallettypes.Action{
		Kind:      wallettypes.ActionTransfer,
		Recipient: "grocer",
		Amount:    "25",
	})
	require.NoError(t, err)
	require.NoError(t, a.WalletKeeper.SignTransaction(ctx, "bob", id))

	proposal, err := a.WalletKeeper.GetProposal(ctx, id)
	require.NoError(t, err)
	require.Equal(t, wallettypes.ProposalStatusExecuted, proposal.Status)

	balance, err := a.Ledger.Balance(ctx, "grocer")
	require.NoError(t, err)
	require.Equal(t, "25", balance.String())

	balance, err = a.Ledger.Balance(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "75", balance.String())
}
