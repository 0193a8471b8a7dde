package app

import (
	"fmt"
	"time"

	"cosmossdk.io/core/store"
	"cosmossdk.io/log"
	storemetrics "cosmossdk.io/store/metrics"
	"cosmossdk.io/store/rootmulti"
	storetypes "cosmossdk.io/store/types"
	tmproto "github.com/cometbft/cometbft/proto/tendermint/types"
	dbm "github.com/cosmos/cosmos-db"
	"github.com/cosmos/cosmos-sdk/codec"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	"github.com/cosmos/cosmos-sdk/runtime"
	"github.com/cosmos/cosmos-sdk/std"
	sdk "github.com/cosmos/cosmos-sdk/types"

	billskeeper "github.com/remitwise/remitwise/x/bills/keeper"
	billstypes "github.com/remitwise/remitwise/x/bills/types"
	insurancekeeper "github.com/remitwise/remitwise/x/insurance/keeper"
	insurancetypes "github.com/remitwise/remitwise/x/insurance/types"
	reportingkeeper "github.com/remitwise/remitwise/x/reporting/keeper"
	reportingtypes "github.com/remitwise/remitwise/x/reporting/types"
	savingskeeper "github.com/remitwise/remitwise/x/savings/keeper"
	savingstypes "github.com/remitwise/remitwise/x/savings/types"
	splitkeeper "github.com/remitwise/remitwise/x/split/keeper"
	splittypes "github.com/remitwise/remitwise/x/split/types"
	walletkeeper "github.com/remitwise/remitwise/x/wallet/keeper"
	wallettypes "github.com/remitwise/remitwise/x/wallet/types"
)

const (
	// Name is the name of the application.
	Name = "remitwise"

	// DefaultChainID is used when no chain id is supplied.
	DefaultChainID = "remitwise-1"
)

// App bundles the remittance module keepers over one multistore. It is
// the wiring root used by the daemon and by integration tests.
type App struct {
	cdc  codec.Codec
	cms  storetypes.CommitMultiStore
	keys map[string]*storetypes.KVStoreKey

	chainID string
	logger  log.Logger

	Ledger *Ledger

	WalletKeeper    walletkeeper.Keeper
	SplitKeeper     splitkeeper.Keeper
	SavingsKeeper   savingskeeper.Keeper
	BillsKeeper     billskeeper.Keeper
	InsuranceKeeper insurancekeeper.Keeper
	ReportingKeeper reportingkeeper.Keeper
}

// Option configures the App during construction.
type Option func(*App)

// WithChainID overrides the default chain id.
func WithChainID(chainID string) Option {
	return func(a *App) { a.chainID = chainID }
}

// WithLogger overrides the default no-op logger.
func WithLogger(logger log.Logger) Option {
	return func(a *App) { a.logger = logger }
}

// New mounts one IAVL store per module and wires every keeper. The
// reporting keeper reads the other modules through its source
// interfaces; the wallet authority also administers report archival.
func New(db dbm.DB, authority string, opts ...Option) (*App, error) {
	app := &App{
		chainID: DefaultChainID,
		logger:  log.NewNopLogger(),
		keys: map[string]*storetypes.KVStoreKey{
			wallettypes.StoreKey:    storetypes.NewKVStoreKey(wallettypes.StoreKey),
			splittypes.StoreKey:     storetypes.NewKVStoreKey(splittypes.StoreKey),
			savingstypes.StoreKey:   storetypes.NewKVStoreKey(savingstypes.StoreKey),
			billstypes.StoreKey:     storetypes.NewKVStoreKey(billstypes.StoreKey),
			insurancetypes.StoreKey: storetypes.NewKVStoreKey(insurancetypes.StoreKey),
			reportingtypes.StoreKey: storetypes.NewKVStoreKey(reportingtypes.StoreKey),
			LedgerStoreKey:          storetypes.NewKVStoreKey(LedgerStoreKey),
		},
	}
	for _, opt := range opts {
		opt(app)
	}

	cms := rootmulti.NewStore(db, app.logger, storemetrics.NoOpMetrics{})
	for _, key := range app.keys {
		cms.MountStoreWithDB(key, storetypes.StoreTypeIAVL, nil)
	}
	if err := cms.LoadLatestVersion(); err != nil {
		return nil, fmt.Errorf("load multistore: %w", err)
	}
	app.cms = cms

	reg := codectypes.NewInterfaceRegistry()
	std.RegisterInterfaces(reg)
	app.cdc = codec.NewProtoCodec(reg)

	app.Ledger = NewLedger(app.storeService(LedgerStoreKey))

	app.WalletKeeper = walletkeeper.NewKeeper(app.cdc, app.storeService(wallettypes.StoreKey))
	app.WalletKeeper.SetBankKeeper(app.Ledger)
	app.SplitKeeper = splitkeeper.NewKeeper(app.cdc, app.storeService(splittypes.StoreKey))
	app.SavingsKeeper = savingskeeper.NewKeeper(app.cdc, app.storeService(savingstypes.StoreKey))
	app.BillsKeeper = billskeeper.NewKeeper(app.cdc, app.storeService(billstypes.StoreKey))
	app.InsuranceKeeper = insurancekeeper.NewKeeper(app.cdc, app.storeService(insurancetypes.StoreKey))

	app.ReportingKeeper = reportingkeeper.NewKeeper(app.cdc, app.storeService(reportingtypes.StoreKey), authority)
	app.ReportingKeeper.ConfigureSources(
		app.SplitKeeper,
		app.SavingsKeeper,
		app.BillsKeeper,
		app.InsuranceKeeper,
	)

	return app, nil
}

func (a *App) storeService(name string) store.KVStoreService {
	return runtime.NewKVStoreService(a.keys[name])
}

// NewContext returns an SDK context over the app's multistore at the
// given block height and time.
func (a *App) NewContext(height int64, blockTimeUnix int64) sdk.Context {
	header := tmproto.Header{
		ChainID: a.chainID,
		Height:  height,
	}
	ctx := sdk.NewContext(a.cms, header, false, a.logger)
	if blockTimeUnix > 0 {
		ctx = ctx.WithBlockTime(timeFromUnix(blockTimeUnix))
	}
	return ctx
}

// Commit writes the working multistore state to disk.
func (a *App) Commit() storetypes.CommitID {
	return a.cms.Commit()
}

func timeFromUnix(unix int64) time.Time {
	return time.Unix(unix, 0).UTC()
}
