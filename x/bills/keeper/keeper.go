package keeper

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cosmossdk.io/collections"
	"cosmossdk.io/core/store"
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/cosmos/cosmos-sdk/codec"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/remitwise/remitwise/x/bills/types"
	"github.com/remitwise/remitwise/x/lifecycle"
)

// Keeper manages recurring bills: owner-scoped payables with cursor
// pagination and an archive tier for settled bills.
type Keeper struct {
	cdc          codec.Codec
	storeService store.KVStoreService

	Bills         collections.Map[uint64, string]
	BillSeq       collections.Item[uint64]
	ArchivedBills collections.Map[uint64, string]
}

// NewKeeper creates a new bills keeper.
func NewKeeper(
	cdc codec.Codec,
	storeService store.KVStoreService,
) Keeper {
	sb := collections.NewSchemaBuilder(storeService)

	return Keeper{
		cdc:          cdc,
		storeService: storeService,
		Bills: collections.NewMap(
			sb,
			collections.NewPrefix(types.BillKeyPrefix),
			"bills",
			collections.Uint64Key,
			collections.StringValue,
		),
		BillSeq: collections.NewItem(
			sb,
			collections.NewPrefix(types.BillSeqKey),
			"bill_seq",
			collections.Uint64Value,
		),
		ArchivedBills: collections.NewMap(
			sb,
			collections.NewPrefix(types.ArchivedBillKeyPrefix),
			"archived_bills",
			collections.Uint64Key,
			collections.StringValue,
		),
	}
}

func (k Keeper) billTiers() lifecycle.Manager[uint64] {
	return lifecycle.NewManager(&k.Bills, &k.ArchivedBills)
}

// CreateBill registers a new payable. Recurring bills need a positive
// frequency; one-off bills ignore it.
func (k Keeper) CreateBill(
	ctx context.Context,
	owner string,
	name string,
	amount sdkmath.Int,
	dueDateUnix int64,
	recurring bool,
	frequencySecs int64,
) (uint64, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return 0, errorsmod.Wrap(types.ErrUnauthorized, "owner address cannot be empty")
	}
	if !amount.IsPositive() {
		return 0, errorsmod.Wrapf(types.ErrInvalidAmount, "amount %s", amount)
	}
	if recurring && frequencySecs <= 0 {
		return 0, errorsmod.Wrapf(types.ErrInvalidFrequency, "frequency %d", frequencySecs)
	}

	id, err := k.nextBillID(ctx)
	if err != nil {
		return 0, err
	}

	sdkCtx, now := contextNow(ctx)
	if err := k.setBill(ctx, types.Bill{
		ID:            id,
		Owner:         owner,
		Name:          name,
		Amount:        amount.String(),
		DueDateUnix:   dueDateUnix,
		Recurring:     recurring,
		FrequencySecs: frequencySecs,
		CreatedAtUnix: now.Unix(),
	}); err != nil {
		return 0, err
	}

	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"bill_created",
		sdk.NewAttribute("bill_id", fmt.Sprintf("%d", id)),
		sdk.NewAttribute("owner", owner),
		sdk.NewAttribute("amount", amount.String()),
		sdk.NewAttribute("due_date", fmt.Sprintf("%d", dueDateUnix)),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", now.Unix())),
	))

	return id, nil
}

// PayBill settles one bill. Paying a recurring bill spawns its
// successor, due one frequency after the settled due date.
func (k Keeper) PayBill(ctx context.Context, caller string, id uint64) error {
	bill, err := k.getBill(ctx, id)
	if err != nil {
		return err
	}
	if bill.Owner != caller {
		return errorsmod.Wrapf(types.ErrUnauthorized, "caller %s, bill owner %s", caller, bill.Owner)
	}
	if bill.Paid {
		return errorsmod.Wrapf(types.ErrAlreadyPaid, "bill %d", id)
	}
	return k.settleBill(ctx, caller, bill)
}

func (k Keeper) settleBill(ctx context.Context, caller string, bill *types.Bill) error {
	sdkCtx, now := contextNow(ctx)
	nowUnix := now.Unix()

	bill.Paid = true
	bill.PaidAtUnix = nowUnix
	if err := k.setBill(ctx, *bill); err != nil {
		return err
	}

	if bill.Recurring {
		nextID, err := k.nextBillID(ctx)
		if err != nil {
			return err
		}
		if err := k.setBill(ctx, types.Bill{
			ID:            nextID,
			Owner:         bill.Owner,
			Name:          bill.Name,
			Amount:        bill.Amount,
			DueDateUnix:   bill.DueDateUnix + bill.FrequencySecs,
			Recurring:     true,
			FrequencySecs: bill.FrequencySecs,
			CreatedAtUnix: nowUnix,
		}); err != nil {
			return err
		}
	}

	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"bill_paid",
		sdk.NewAttribute("bill_id", fmt.Sprintf("%d", bill.ID)),
		sdk.NewAttribute("paid_by", caller),
		sdk.NewAttribute("amount", bill.Amount),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", nowUnix)),
	))

	return nil
}

// BatchPayBills settles up to MaxBatchSize bills in one call. The whole
// batch is validated before any bill is touched, so a bad id leaves
// every bill unpaid.
func (k Keeper) BatchPayBills(ctx context.Context, caller string, ids []uint64) (int, error) {
	if len(ids) > types.MaxBatchSize {
		return 0, errorsmod.Wrapf(types.ErrBatchTooLarge, "%d bills, max %d", len(ids), types.MaxBatchSize)
	}

	for _, id := range ids {
		bill, err := k.getBill(ctx, id)
		if err != nil {
			return 0, err
		}
		if bill.Owner != caller {
			return 0, errorsmod.Wrapf(types.ErrUnauthorized, "bill %d belongs to %s", id, bill.Owner)
		}
		if bill.Paid {
			return 0, errorsmod.Wrapf(types.ErrAlreadyPaid, "bill %d", id)
		}
	}

	for _, id := range ids {
		bill, err := k.getBill(ctx, id)
		if err != nil {
			return 0, err
		}
		if err := k.settleBill(ctx, caller, bill); err != nil {
			return 0, err
		}
	}

	sdkCtx, now := contextNow(ctx)
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"bills_batch_paid",
		sdk.NewAttribute("count", fmt.Sprintf("%d", len(ids))),
		sdk.NewAttribute("paid_by", caller),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", now.Unix())),
	))

	return len(ids), nil
}

// CancelBill removes a bill entirely. Owner only.
func (k Keeper) CancelBill(ctx context.Context, caller string, id uint64) error {
	bill, err := k.getBill(ctx, id)
	if err != nil {
		return err
	}
	if bill.Owner != caller {
		return errorsmod.Wrapf(types.ErrUnauthorized, "caller %s, bill owner %s", caller, bill.Owner)
	}
	if err := k.Bills.Remove(ctx, id); err != nil {
		return err
	}

	sdkCtx, now := contextNow(ctx)
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"bill_cancelled",
		sdk.NewAttribute("bill_id", fmt.Sprintf("%d", id)),
		sdk.NewAttribute("cancelled_by", caller),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", now.Unix())),
	))

	return nil
}

// GetBill returns an active bill.
func (k Keeper) GetBill(ctx context.Context, id uint64) (*types.Bill, error) {
	return k.getBill(ctx, id)
}

// GetTotalUnpaid sums the owner's unpaid bill amounts.
func (k Keeper) GetTotalUnpaid(ctx context.Context, owner string) (sdkmath.Int, error) {
	total := sdkmath.ZeroInt()
	err := k.Bills.Walk(ctx, nil, func(_ uint64, raw string) (bool, error) {
		var bill types.Bill
		if err := json.Unmarshal([]byte(raw), &bill); err != nil {
			return false, fmt.Errorf("decode bill: %w", err)
		}
		if bill.Owner != owner || bill.Paid {
			return false, nil
		}
		amount, err := bill.AmountInt()
		if err != nil {
			return false, err
		}
		total = total.Add(amount)
		return false, nil
	})
	if err != nil {
		return sdkmath.Int{}, err
	}
	return total, nil
}

// ---------------------------------------------------------------------
// Paginated queries
// ---------------------------------------------------------------------

// GetUnpaidBills pages through the owner's unpaid bills.
func (k Keeper) GetUnpaidBills(ctx context.Context, owner string, cursor uint64, limit int) (types.BillPage, error) {
	return k.pageBills(ctx, cursor, limit, func(bill types.Bill) bool {
		return bill.Owner == owner && !bill.Paid
	})
}

// GetOwnerBills pages through all of the owner's bills, paid included.
func (k Keeper) GetOwnerBills(ctx context.Context, owner string, cursor uint64, limit int) (types.BillPage, error) {
	return k.pageBills(ctx, cursor, limit, func(bill types.Bill) bool {
		return bill.Owner == owner
	})
}

// GetOverdueBills pages through unpaid bills past their due date,
// across all owners.
func (k Keeper) GetOverdueBills(ctx context.Context, cursor uint64, limit int) (types.BillPage, error) {
	_, now := contextNow(ctx)
	nowUnix := now.Unix()
	return k.pageBills(ctx, cursor, limit, func(bill types.Bill) bool {
		return bill.Overdue(nowUnix)
	})
}

// pageBills collects up to limit matching bills after cursor. It stages
// one extra match to learn whether another page exists; NextCursor is
// the last returned id, zero when the listing is exhausted.
func (k Keeper) pageBills(ctx context.Context, cursor uint64, limit int, match func(types.Bill) bool) (types.BillPage, error) {
	limit = types.ClampLimit(limit)

	var staging []types.Bill
	err := k.Bills.Walk(ctx, nil, func(id uint64, raw string) (bool, error) {
		if id <= cursor {
			return false, nil
		}
		var bill types.Bill
		if err := json.Unmarshal([]byte(raw), &bill); err != nil {
			return false, fmt.Errorf("decode bill: %w", err)
		}
		if !match(bill) {
			return false, nil
		}
		staging = append(staging, bill)
		return len(staging) > limit, nil
	})
	if err != nil {
		return types.BillPage{}, err
	}

	page := types.BillPage{}
	take := len(staging)
	if take > limit {
		take = len(staging) - 1
		page.NextCursor = staging[take-1].ID
	}
	page.Items = staging[:take]
	page.Count = take
	return page, nil
}

// ---------------------------------------------------------------------
// Archival
// ---------------------------------------------------------------------

// ArchivePaidBills compresses and archives bills settled before cutoff.
// Returns the count moved. Unpaid bills never move.
func (k Keeper) ArchivePaidBills(ctx context.Context, caller string, cutoffUnix int64) (int, error) {
	sdkCtx, now := contextNow(ctx)
	nowUnix := now.Unix()

	var eligible []uint64
	err := k.Bills.Walk(ctx, nil, func(id uint64, raw string) (bool, error) {
		var bill types.Bill
		if err := json.Unmarshal([]byte(raw), &bill); err != nil {
			return false, fmt.Errorf("decode bill: %w", err)
		}
		if bill.Paid && bill.PaidAtUnix < cutoffUnix {
			eligible = append(eligible, id)
		}
		return false, nil
	})
	if err != nil {
		return 0, err
	}

	tiers := k.billTiers()
	for _, id := range eligible {
		if err := tiers.Archive(ctx, id, compressBill(nowUnix)); err != nil {
			return 0, err
		}
	}

	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"bills_archived",
		sdk.NewAttribute("count", fmt.Sprintf("%d", len(eligible))),
		sdk.NewAttribute("archived_by", caller),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", nowUnix)),
	))

	return len(eligible), nil
}

func compressBill(nowUnix int64) func(string) (string, error) {
	return func(raw string) (string, error) {
		var bill types.Bill
		if err := json.Unmarshal([]byte(raw), &bill); err != nil {
			return "", fmt.Errorf("decode bill: %w", err)
		}
		out, err := json.Marshal(types.ArchivedBill{
			ID:             bill.ID,
			Owner:          bill.Owner,
			Name:           bill.Name,
			Amount:         bill.Amount,
			PaidAtUnix:     bill.PaidAtUnix,
			ArchivedAtUnix: nowUnix,
		})
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
}

// GetArchivedBills pages through the owner's archive entries.
func (k Keeper) GetArchivedBills(ctx context.Context, owner string, cursor uint64, limit int) (types.ArchivedBillPage, error) {
	limit = types.ClampLimit(limit)

	var staging []types.ArchivedBill
	err := k.billTiers().WalkArchived(ctx, func(id uint64, raw string) (bool, error) {
		if id <= cursor {
			return false, nil
		}
		var archived types.ArchivedBill
		if err := json.Unmarshal([]byte(raw), &archived); err != nil {
			return false, fmt.Errorf("decode archived bill: %w", err)
		}
		if archived.Owner != owner {
			return false, nil
		}
		staging = append(staging, archived)
		return len(staging) > limit, nil
	})
	if err != nil {
		return types.ArchivedBillPage{}, err
	}

	page := types.ArchivedBillPage{}
	take := len(staging)
	if take > limit {
		take = len(staging) - 1
		page.NextCursor = staging[take-1].ID
	}
	page.Items = staging[:take]
	page.Count = take
	return page, nil
}

// GetArchivedBill returns one archive entry.
func (k Keeper) GetArchivedBill(ctx context.Context, id uint64) (*types.ArchivedBill, error) {
	raw, err := k.ArchivedBills.Get(ctx, id)
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrNotFound, "archived bill %d", id)
	}
	var archived types.ArchivedBill
	if err := json.Unmarshal([]byte(raw), &archived); err != nil {
		return nil, fmt.Errorf("decode archived bill: %w", err)
	}
	return &archived, nil
}

// RestoreBill moves an archived bill back to the active index. The
// restored record stays settled: restoring is for audit access, not for
// re-billing, so it comes back non-recurring with a 30-day due window.
func (k Keeper) RestoreBill(ctx context.Context, caller string, id uint64) error {
	archived, err := k.GetArchivedBill(ctx, id)
	if err != nil {
		return err
	}
	if archived.Owner != caller {
		return errorsmod.Wrapf(types.ErrUnauthorized, "caller %s, bill owner %s", caller, archived.Owner)
	}

	sdkCtx, now := contextNow(ctx)
	nowUnix := now.Unix()
	err = k.billTiers().Restore(ctx, id, func(raw string) (string, error) {
		var a types.ArchivedBill
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return "", fmt.Errorf("decode archived bill: %w", err)
		}
		out, err := json.Marshal(types.Bill{
			ID:            a.ID,
			Owner:         a.Owner,
			Name:          a.Name,
			Amount:        a.Amount,
			DueDateUnix:   nowUnix + types.RestoredBillDueSeconds,
			Paid:          true,
			CreatedAtUnix: a.PaidAtUnix,
			PaidAtUnix:    a.PaidAtUnix,
		})
		if err != nil {
			return "", err
		}
		return string(out), nil
	})
	if err != nil {
		return err
	}

	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"bill_restored",
		sdk.NewAttribute("bill_id", fmt.Sprintf("%d", id)),
		sdk.NewAttribute("restored_by", caller),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", nowUnix)),
	))

	return nil
}

// BulkCleanupBills permanently deletes archive entries archived before
// cutoff. Returns the count removed.
func (k Keeper) BulkCleanupBills(ctx context.Context, caller string, cutoffUnix int64) (int, error) {
	removed, err := k.billTiers().CleanupArchiveBefore(ctx, cutoffUnix, func(raw string) (int64, error) {
		var archived types.ArchivedBill
		if err := json.Unmarshal([]byte(raw), &archived); err != nil {
			return 0, fmt.Errorf("decode archived bill: %w", err)
		}
		return archived.ArchivedAtUnix, nil
	})
	if err != nil {
		return 0, err
	}

	sdkCtx, now := contextNow(ctx)
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"bills_archive_cleaned",
		sdk.NewAttribute("count", fmt.Sprintf("%d", removed)),
		sdk.NewAttribute("cleaned_by", caller),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", now.Unix())),
	))

	return removed, nil
}

// GetStorageStats reports tier sizes and aggregate amounts.
func (k Keeper) GetStorageStats(ctx context.Context) (types.StorageStats, error) {
	activeCount := 0
	unpaidAmount := sdkmath.ZeroInt()
	err := k.Bills.Walk(ctx, nil, func(_ uint64, raw string) (bool, error) {
		var bill types.Bill
		if err := json.Unmarshal([]byte(raw), &bill); err != nil {
			return false, fmt.Errorf("decode bill: %w", err)
		}
		activeCount++
		if !bill.Paid {
			amount, err := bill.AmountInt()
			if err != nil {
				return false, err
			}
			unpaidAmount = unpaidAmount.Add(amount)
		}
		return false, nil
	})
	if err != nil {
		return types.StorageStats{}, err
	}

	archivedCount := 0
	archivedAmount := sdkmath.ZeroInt()
	err = k.billTiers().WalkArchived(ctx, func(_ uint64, raw string) (bool, error) {
		var archived types.ArchivedBill
		if err := json.Unmarshal([]byte(raw), &archived); err != nil {
			return false, fmt.Errorf("decode archived bill: %w", err)
		}
		amount, ok := sdkmath.NewIntFromString(archived.Amount)
		if !ok {
			return false, fmt.Errorf("invalid archived amount %q", archived.Amount)
		}
		archivedCount++
		archivedAmount = archivedAmount.Add(amount)
		return false, nil
	})
	if err != nil {
		return types.StorageStats{}, err
	}

	_, now := contextNow(ctx)
	return types.StorageStats{
		ActiveBills:         activeCount,
		ArchivedBills:       archivedCount,
		TotalUnpaidAmount:   unpaidAmount.String(),
		TotalArchivedAmount: archivedAmount.String(),
		LastUpdatedUnix:     now.Unix(),
	}, nil
}

// ---------------------------------------------------------------------
// Record codecs
// ---------------------------------------------------------------------

func (k Keeper) getBill(ctx context.Context, id uint64) (*types.Bill, error) {
	raw, err := k.Bills.Get(ctx, id)
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrNotFound, "bill %d", id)
	}
	var bill types.Bill
	if err := json.Unmarshal([]byte(raw), &bill); err != nil {
		return nil, fmt.Errorf("decode bill: %w", err)
	}
	return &bill, nil
}

func (k Keeper) setBill(ctx context.Context, bill types.Bill) error {
	raw, err := json.Marshal(bill)
	if err != nil {
		return err
	}
	return k.Bills.Set(ctx, bill.ID, string(raw))
}

func (k Keeper) nextBillID(ctx context.Context) (uint64, error) {
	seq, err := k.BillSeq.Get(ctx)
	if err != nil {
		seq = 0
	}
	seq++
	if err := k.BillSeq.Set(ctx, seq); err != nil {
		return 0, err
	}
	return seq, nil
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
