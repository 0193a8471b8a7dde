package types

import (
	sdkmath "cosmossdk.io/math"
)

// Default percentages applied when an owner never configured a split.
const (
	DefaultSpendingPercent  = 50
	DefaultSavingsPercent   = 30
	DefaultBillsPercent     = 15
	DefaultInsurancePercent = 5
)

// Percentages is a four-way allocation tuple. Each share is a whole
// percent; valid tuples sum to exactly 100.
type Percentages struct {
	Spending  uint32 `json:"spending"`
	Savings   uint32 `json:"savings"`
	Bills     uint32 `json:"bills"`
	Insurance uint32 `json:"insurance"`
}

// DefaultPercentages returns the fallback 50/30/15/5 tuple.
func DefaultPercentages() Percentages {
	return Percentages{
		Spending:  DefaultSpendingPercent,
		Savings:   DefaultSavingsPercent,
		Bills:     DefaultBillsPercent,
		Insurance: DefaultInsurancePercent,
	}
}

// Validate checks per-share bounds and the sum-to-100 requirement.
func (p Percentages) Validate() error {
	if p.Spending > 100 || p.Savings > 100 || p.Bills > 100 || p.Insurance > 100 {
		return ErrInvalidPercentages
	}
	total := uint64(p.Spending) + uint64(p.Savings) + uint64(p.Bills) + uint64(p.Insurance)
	if total != 100 {
		return ErrInvalidPercentages
	}
	return nil
}

// Config is one owner's split configuration.
type Config struct {
	Owner         string      `json:"owner"`
	Percentages   Percentages `json:"percentages"`
	CreatedAtUnix int64       `json:"created_at_unix"`
	UpdatedAtUnix int64       `json:"updated_at_unix"`
}

// Allocation is the result of splitting one total. The four amounts sum
// to the total exactly; rounding residue lands in Insurance.
type Allocation struct {
	Spending  sdkmath.Int `json:"spending"`
	Savings   sdkmath.Int `json:"savings"`
	Bills     sdkmath.Int `json:"bills"`
	Insurance sdkmath.Int `json:"insurance"`
}

// Total returns the sum of the four category amounts.
func (a Allocation) Total() sdkmath.Int {
	return a.Spending.Add(a.Savings).Add(a.Bills).Add(a.Insurance)
}
