package types

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
)

const (
	// DefaultPageLimit applies when a query passes limit 0.
	DefaultPageLimit = 20

	// MaxPageLimit caps caller-supplied page sizes.
	MaxPageLimit = 50

	// MaxBatchSize caps batch premium payments.
	MaxBatchSize = 50

	// DefaultPeriodSeconds is the premium period used when a policy is
	// created without one (30 days).
	DefaultPeriodSeconds = 2_592_000
)

// Policy is one owner's micro-insurance cover. Coverage and premium are
// integer amounts in the remittance denomination. PaidThroughUnix marks
// the end of the currently paid premium period.
type Policy struct {
	ID                uint64 `json:"id"`
	Owner             string `json:"owner"`
	Name              string `json:"name"`
	Coverage          string `json:"coverage"`
	Premium           string `json:"premium"`
	PeriodSecs        int64  `json:"period_secs"`
	PaidThroughUnix   int64  `json:"paid_through_unix"`
	Active            bool   `json:"active"`
	ScheduleID        uint64 `json:"schedule_id,omitempty"`
	CreatedAtUnix     int64  `json:"created_at_unix"`
	DeactivatedAtUnix int64  `json:"deactivated_at_unix,omitempty"`
}

// PremiumInt parses the policy premium.
func (p Policy) PremiumInt() (sdkmath.Int, error) {
	premium, ok := sdkmath.NewIntFromString(p.Premium)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("invalid policy premium %q", p.Premium)
	}
	return premium, nil
}

// CoverageInt parses the policy coverage amount.
func (p Policy) CoverageInt() (sdkmath.Int, error) {
	coverage, ok := sdkmath.NewIntFromString(p.Coverage)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("invalid policy coverage %q", p.Coverage)
	}
	return coverage, nil
}

// PremiumSchedule drives lazy premium automation: anyone may trigger
// execution, which pays every schedule whose due date has passed.
type PremiumSchedule struct {
	ID               uint64 `json:"id"`
	Owner            string `json:"owner"`
	PolicyID         uint64 `json:"policy_id"`
	NextDueUnix      int64  `json:"next_due_unix"`
	IntervalSecs     int64  `json:"interval_secs"`
	Recurring        bool   `json:"recurring"`
	Active           bool   `json:"active"`
	CreatedAtUnix    int64  `json:"created_at_unix"`
	LastExecutedUnix int64  `json:"last_executed_unix,omitempty"`
	MissedCount      uint32 `json:"missed_count"`
}

// ArchivedPolicy is the compressed archive record for a deactivated
// policy.
type ArchivedPolicy struct {
	ID                uint64 `json:"id"`
	Owner             string `json:"owner"`
	Name              string `json:"name"`
	Coverage          string `json:"coverage"`
	Premium           string `json:"premium"`
	DeactivatedAtUnix int64  `json:"deactivated_at_unix"`
	ArchivedAtUnix    int64  `json:"archived_at_unix"`
}

// PolicyPage is one page of a cursor query. NextCursor is the last
// returned id; zero means no further pages.
type PolicyPage struct {
	Items      []Policy `json:"items"`
	NextCursor uint64   `json:"next_cursor"`
	Count      int      `json:"count"`
}

// ArchivedPolicyPage mirrors PolicyPage for archive queries.
type ArchivedPolicyPage struct {
	Items      []ArchivedPolicy `json:"items"`
	NextCursor uint64           `json:"next_cursor"`
	Count      int              `json:"count"`
}

// StorageStats reports tier sizes and aggregate amounts.
type StorageStats struct {
	ActivePolicies      int    `json:"active_policies"`
	ArchivedPolicies    int    `json:"archived_policies"`
	Schedules           int    `json:"schedules"`
	TotalCoverage       string `json:"total_coverage"`
	TotalMonthlyPremium string `json:"total_monthly_premium"`
	LastUpdatedUnix     int64  `json:"last_updated_unix"`
}

// ClampLimit normalizes a caller-supplied page limit: zero becomes the
// default, anything above the cap is clamped.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultPageLimit
	case limit > MaxPageLimit:
		return MaxPageLimit
	default:
		return limit
	}
}
