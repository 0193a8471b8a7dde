package types

// Allocation categories reported in a remittance summary.
const (
	CategorySpending  = "spending"
	CategorySavings   = "savings"
	CategoryBills     = "bills"
	CategoryInsurance = "insurance"
)

// Health score weights. Savings progress earns up to 40 points, bill
// compliance up to 40, carrying any active insurance the final 20.
const (
	SavingsScoreMax      = 40
	SavingsScoreNoGoals  = 20
	BillsScoreMax        = 40
	BillsScoreUnpaidOnly = 35
	BillsScoreOverdue    = 20
	InsuranceScoreMax    = 20
)

// HealthScore is the weighted 0-100 financial health score with its
// component parts.
type HealthScore struct {
	Score          uint32 `json:"score"`
	SavingsScore   uint32 `json:"savings_score"`
	BillsScore     uint32 `json:"bills_score"`
	InsuranceScore uint32 `json:"insurance_score"`
}

// CategoryBreakdown is one allocation slice of a remittance summary.
type CategoryBreakdown struct {
	Category   string `json:"category"`
	Amount     string `json:"amount"`
	Percentage uint32 `json:"percentage"`
}

// RemittanceSummary reports how an incoming amount splits across the
// four categories.
type RemittanceSummary struct {
	TotalReceived   string              `json:"total_received"`
	TotalAllocated  string              `json:"total_allocated"`
	Breakdown       []CategoryBreakdown `json:"breakdown"`
	PeriodStartUnix int64               `json:"period_start_unix"`
	PeriodEndUnix   int64               `json:"period_end_unix"`
}

// SavingsReport summarizes goal progress for one owner.
type SavingsReport struct {
	TotalGoals           int    `json:"total_goals"`
	CompletedGoals       int    `json:"completed_goals"`
	TotalTarget          string `json:"total_target"`
	TotalSaved           string `json:"total_saved"`
	CompletionPercentage uint32 `json:"completion_percentage"`
	PeriodStartUnix      int64  `json:"period_start_unix"`
	PeriodEndUnix        int64  `json:"period_end_unix"`
}

// BillComplianceReport summarizes payment behavior over a period.
// Bills created outside the period are not counted.
type BillComplianceReport struct {
	TotalBills           int    `json:"total_bills"`
	PaidBills            int    `json:"paid_bills"`
	UnpaidBills          int    `json:"unpaid_bills"`
	OverdueBills         int    `json:"overdue_bills"`
	TotalAmount          string `json:"total_amount"`
	PaidAmount           string `json:"paid_amount"`
	UnpaidAmount         string `json:"unpaid_amount"`
	CompliancePercentage uint32 `json:"compliance_percentage"`
	PeriodStartUnix      int64  `json:"period_start_unix"`
	PeriodEndUnix        int64  `json:"period_end_unix"`
}

// InsuranceReport summarizes active cover for one owner.
type InsuranceReport struct {
	ActivePolicies         int    `json:"active_policies"`
	TotalCoverage          string `json:"total_coverage"`
	MonthlyPremium         string `json:"monthly_premium"`
	AnnualPremium          string `json:"annual_premium"`
	CoverageToPremiumRatio uint32 `json:"coverage_to_premium_ratio"`
	PeriodStartUnix        int64  `json:"period_start_unix"`
	PeriodEndUnix          int64  `json:"period_end_unix"`
}

// TrendData compares one amount across two periods.
type TrendData struct {
	CurrentAmount    string `json:"current_amount"`
	PreviousAmount   string `json:"previous_amount"`
	ChangeAmount     string `json:"change_amount"`
	ChangePercentage int32  `json:"change_percentage"`
}

// FinancialHealthReport is the composite report covering every module.
type FinancialHealthReport struct {
	Owner             string               `json:"owner"`
	PeriodKey         uint64               `json:"period_key"`
	HealthScore       HealthScore          `json:"health_score"`
	RemittanceSummary RemittanceSummary    `json:"remittance_summary"`
	SavingsReport     SavingsReport        `json:"savings_report"`
	BillCompliance    BillComplianceReport `json:"bill_compliance"`
	InsuranceReport   InsuranceReport      `json:"insurance_report"`
	GeneratedAtUnix   int64                `json:"generated_at_unix"`
}

// ArchivedReport is the compressed archive record: the score survives,
// the full breakdown does not.
type ArchivedReport struct {
	Owner           string `json:"owner"`
	PeriodKey       uint64 `json:"period_key"`
	HealthScore     uint32 `json:"health_score"`
	GeneratedAtUnix int64  `json:"generated_at_unix"`
	ArchivedAtUnix  int64  `json:"archived_at_unix"`
}

// StorageStats reports tier sizes.
type StorageStats struct {
	ActiveReports   int   `json:"active_reports"`
	ArchivedReports int   `json:"archived_reports"`
	LastUpdatedUnix int64 `json:"last_updated_unix"`
}
