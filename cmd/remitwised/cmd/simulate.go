package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	dbm "github.com/cosmos/cosmos-db"
	"github.com/spf13/cobra"

	"github.com/remitwise/remitwise/app"
	reportingtypes "github.com/remitwise/remitwise/x/reporting/types"
)

type simulationAllocation struct {
	Spending  string `json:"spending"`
	Savings   string `json:"savings"`
	Bills     string `json:"bills"`
	Insurance string `json:"insurance"`
}

type simulationResult struct {
	Owner      string                               `json:"owner"`
	Remittance string                               `json:"remittance"`
	Allocation simulationAllocation                 `json:"allocation"`
	Report     reportingtypes.FinancialHealthReport `json:"report"`
}

func simulateCommand() *cobra.Command {
	var (
		owner     string
		amount    string
		authority string
		pretty    bool
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run one remittance cycle against an in-memory wallet",
		Long: `Simulate a full remittance cycle: split an incoming amount across
the four categories, fund a savings goal, pay a bill, open an insurance
policy, and print the resulting financial health report.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			total, ok := sdkmath.NewIntFromString(amount)
			if !ok || !total.IsPositive() {
				return fmt.Errorf("--amount must be a positive integer, got %q", amount)
			}

			a, err := app.New(dbm.NewMemDB(), authority)
			if err != nil {
				return fmt.Errorf("initialize app: %w", err)
			}
			ctx := a.NewContext(1, time.Now().Unix())
			now := ctx.BlockTime().Unix()

			allocation, err := a.SplitKeeper.CalculateSplit(ctx, owner, total)
			if err != nil {
				return fmt.Errorf("calculate split: %w", err)
			}

			goalID, err := a.SavingsKeeper.CreateGoal(ctx, owner, "Emergency fund", allocation.Savings.MulRaw(2), now+90*86_400)
			if err != nil {
				return fmt.Errorf("create savings goal: %w", err)
			}
			if _, err := a.SavingsKeeper.AddToGoal(ctx, owner, goalID, allocation.Savings); err != nil {
				return fmt.Errorf("fund savings goal: %w", err)
			}

			billID, err := a.BillsKeeper.CreateBill(ctx, owner, "Rent", allocation.Bills, now+30*86_400, true, 30*86_400)
			if err != nil {
				return fmt.Errorf("create bill: %w", err)
			}
			if err := a.BillsKeeper.PayBill(ctx, owner, billID); err != nil {
				return fmt.Errorf("pay bill: %w", err)
			}

			if _, err := a.InsuranceKeeper.CreatePolicy(ctx, owner, "Family health", total.MulRaw(10), allocation.Insurance, 0); err != nil {
				return fmt.Errorf("create insurance policy: %w", err)
			}

			report, err := a.ReportingKeeper.GetFinancialHealthReport(ctx, owner, total, now-1, now+1)
			if err != nil {
				return fmt.Errorf("generate health report: %w", err)
			}

			result := simulationResult{
				Owner:      owner,
				Remittance: total.String(),
				Allocation: simulationAllocation{
					Spending:  allocation.Spending.String(),
					Savings:   allocation.Savings.String(),
					Bills:     allocation.Bills.String(),
					Insurance: allocation.Insurance.String(),
				},
				Report: report,
			}

			var out []byte
			if pretty {
				out, err = json.MarshalIndent(result, "", "  ")
			} else {
				out, err = json.Marshal(result)
			}
			if err != nil {
				return fmt.Errorf("marshal result: %w", err)
			}

			_, err = cmd.OutOrStdout().Write(append(out, '\n'))
			return err
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "family", "Wallet owner used for the simulated cycle")
	cmd.Flags().StringVar(&amount, "amount", "1000", "Incoming remittance amount to split")
	cmd.Flags().StringVar(&authority, "authority", "admin", "Authority account for gated operations")
	cmd.Flags().BoolVar(&pretty, "pretty", true, "Pretty-print JSON output")
	return cmd
}
