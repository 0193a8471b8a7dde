package types

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// RestoredGoalHorizonSeconds is the fresh target window assigned when an
// archived goal is restored to active saving (one year).
const RestoredGoalHorizonSeconds = 31_536_000

// Goal is one owner's savings target. Goals start locked: funds are
// meant to stay put until the owner deliberately unlocks.
type Goal struct {
	ID             uint64 `json:"id"`
	Owner          string `json:"owner"`
	Name           string `json:"name"`
	TargetAmount   string `json:"target_amount"`
	CurrentAmount  string `json:"current_amount"`
	TargetDateUnix int64  `json:"target_date_unix"`
	Locked         bool   `json:"locked"`
}

// TargetInt parses the target amount.
func (g Goal) TargetInt() (sdkmath.Int, error) {
	amount, ok := sdkmath.NewIntFromString(g.TargetAmount)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("invalid target amount %q", g.TargetAmount)
	}
	return amount, nil
}

// CurrentInt parses the current balance.
func (g Goal) CurrentInt() (sdkmath.Int, error) {
	amount, ok := sdkmath.NewIntFromString(g.CurrentAmount)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("invalid current amount %q", g.CurrentAmount)
	}
	return amount, nil
}

// Completed reports whether the balance reached the target.
func (g Goal) Completed() bool {
	target, err := g.TargetInt()
	if err != nil {
		return false
	}
	current, err := g.CurrentInt()
	if err != nil {
		return false
	}
	return current.GTE(target)
}

// ArchivedGoal is the compressed archive record: the live balance
// becomes a final amount and progress fields are dropped.
type ArchivedGoal struct {
	ID             uint64 `json:"id"`
	Owner          string `json:"owner"`
	Name           string `json:"name"`
	TargetAmount   string `json:"target_amount"`
	FinalAmount    string `json:"final_amount"`
	ArchivedAtUnix int64  `json:"archived_at_unix"`
}

// StorageStats reports active and archive tier sizes and balances.
type StorageStats struct {
	ActiveGoals         int    `json:"active_goals"`
	ArchivedGoals       int    `json:"archived_goals"`
	TotalActiveAmount   string `json:"total_active_amount"`
	TotalArchivedAmount string `json:"total_archived_amount"`
	LastUpdatedUnix     int64  `json:"last_updated_unix"`
}
