package app

import (
	"context"
	"fmt"

	"cosmossdk.io/collections"
	"cosmossdk.io/core/store"
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	wallettypes "github.com/remitwise/remitwise/x/wallet/types"
)

// LedgerStoreKey is the KV store holding internal account balances.
const LedgerStoreKey = "ledger"

// Ledger is the internal balance book backing wallet transfers. It is
// deliberately minimal: deposits credit an account, transfers move
// between accounts, balances never go negative.
type Ledger struct {
	Balances collections.Map[string, string]
}

// NewLedger creates the balance book over its own store.
func NewLedger(storeService store.KVStoreService) *Ledger {
	sb := collections.NewSchemaBuilder(storeService)
	return &Ledger{
		Balances: collections.NewMap(
			sb,
			collections.NewPrefix([]byte{0x01}),
			"balances",
			collections.StringKey,
			collections.StringValue,
		),
	}
}

// Deposit credits an account. Incoming remittances enter here.
func (l *Ledger) Deposit(ctx context.Context, account string, amount sdkmath.Int) error {
	if !amount.IsPositive() {
		return fmt.Errorf("deposit amount must be positive, got %s", amount)
	}
	balance, err := l.Balance(ctx, account)
	if err != nil {
		return err
	}
	return l.Balances.Set(ctx, account, balance.Add(amount).String())
}

// Transfer moves funds between accounts. Implements the wallet's bank
// dependency.
func (l *Ledger) Transfer(ctx context.Context, from, to string, amount sdkmath.Int) error {
	if !amount.IsPositive() {
		return fmt.Errorf("transfer amount must be positive, got %s", amount)
	}
	balance, err := l.Balance(ctx, from)
	if err != nil {
		return err
	}
	if balance.LT(amount) {
		return errorsmod.Wrapf(wallettypes.ErrInsufficientFunds, "account %s holds %s, needs %s", from, balance, amount)
	}
	if err := l.Balances.Set(ctx, from, balance.Sub(amount).String()); err != nil {
		return err
	}
	toBalance, err := l.Balance(ctx, to)
	if err != nil {
		return err
	}
	return l.Balances.Set(ctx, to, toBalance.Add(amount).String())
}

// Balance returns the account balance, zero for unknown accounts.
func (l *Ledger) Balance(ctx context.Context, account string) (sdkmath.Int, error) {
	raw, err := l.Balances.Get(ctx, account)
	if err != nil {
		return sdkmath.ZeroInt(), nil
	}
	balance, ok := sdkmath.NewIntFromString(raw)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("corrupt balance %q for account %s", raw, account)
	}
	return balance, nil
}
