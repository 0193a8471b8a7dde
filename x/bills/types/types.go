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

	// MaxBatchSize caps batch payment requests.
	MaxBatchSize = 50

	// RestoredBillDueSeconds is the due window assigned when an archived
	// bill is restored (30 days).
	RestoredBillDueSeconds = 2_592_000
)

// Bill is one owner's payable. Recurring bills spawn a successor with
// the next due date when paid.
type Bill struct {
	ID            uint64 `json:"id"`
	Owner         string `json:"owner"`
	Name          string `json:"name"`
	Amount        string `json:"amount"`
	DueDateUnix   int64  `json:"due_date_unix"`
	Recurring     bool   `json:"recurring"`
	FrequencySecs int64  `json:"frequency_secs"`
	Paid          bool   `json:"paid"`
	CreatedAtUnix int64  `json:"created_at_unix"`
	PaidAtUnix    int64  `json:"paid_at_unix,omitempty"`
}

// AmountInt parses the bill amount.
func (b Bill) AmountInt() (sdkmath.Int, error) {
	amount, ok := sdkmath.NewIntFromString(b.Amount)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("invalid bill amount %q", b.Amount)
	}
	return amount, nil
}

// Overdue reports whether the bill is unpaid past its due date.
func (b Bill) Overdue(nowUnix int64) bool {
	return !b.Paid && b.DueDateUnix < nowUnix
}

// ArchivedBill is the compressed archive record for a paid bill.
type ArchivedBill struct {
	ID             uint64 `json:"id"`
	Owner          string `json:"owner"`
	Name           string `json:"name"`
	Amount         string `json:"amount"`
	PaidAtUnix     int64  `json:"paid_at_unix"`
	ArchivedAtUnix int64  `json:"archived_at_unix"`
}

// BillPage is one page of a cursor query. NextCursor is the last
// returned id; zero means no further pages.
type BillPage struct {
	Items      []Bill `json:"items"`
	NextCursor uint64 `json:"next_cursor"`
	Count      int    `json:"count"`
}

// ArchivedBillPage mirrors BillPage for archive queries.
type ArchivedBillPage struct {
	Items      []ArchivedBill `json:"items"`
	NextCursor uint64         `json:"next_cursor"`
	Count      int            `json:"count"`
}

// StorageStats reports tier sizes and aggregate amounts.
type StorageStats struct {
	ActiveBills         int    `json:"active_bills"`
	ArchivedBills       int    `json:"archived_bills"`
	TotalUnpaidAmount   string `json:"total_unpaid_amount"`
	TotalArchivedAmount string `json:"total_archived_amount"`
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
