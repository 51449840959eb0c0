package testing

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/levyledger/levyd/internal/core/amount"
	"github.com/levyledger/levyd/internal/core/exchange"
	"github.com/levyledger/levyd/internal/core/ledger"
	"github.com/levyledger/levyd/internal/core/levy"
	"github.com/levyledger/levyd/internal/core/treasury"
	"github.com/levyledger/levyd/internal/events"
	"github.com/levyledger/levyd/internal/types"
)

// Asset pair used by test ledgers.
const (
	NativeAsset    types.Asset = "LVY"
	SecondaryAsset types.Asset = "USDX"
)

const (
	// DefaultSupply is minted to the owner at genesis.
	DefaultSupply amount.Amount = 1_000_000_000

	// DefaultFunding is the per-account grant used by Fund.
	DefaultFunding amount.Amount = 1_000_000
)

// Config collects the genesis and adapter knobs a test can turn before
// the environment is built. NewEnv starts from defaultConfig and applies
// the options on top.
type Config struct {
	Genesis ledger.Genesis

	// Adapter configures the fixed-rate exchange adapter. Nil builds the
	// environment without an adapter.
	Adapter *exchange.FixedRateConfig
}

// Option adjusts the environment configuration.
type Option func(*Config)

func defaultConfig() Config {
	return Config{
		Genesis: ledger.Genesis{
			NativeAsset:    NativeAsset,
			SecondaryAsset: SecondaryAsset,
			InitialSupply:  DefaultSupply,
			Rates: map[types.Category]uint32{
				types.CategoryTransfer: 200,
				types.CategoryBuy:      300,
				types.CategorySell:     300,
			},
		},
		Adapter: &exchange.FixedRateConfig{
			FromAsset: NativeAsset,
			ToAsset:   SecondaryAsset,
			RateNum:   1,
			RateDen:   1,
		},
	}
}

// WithRates replaces the genesis tax rates.
func WithRates(rates map[types.Category]uint32) Option {
	return func(c *Config) { c.Genesis.Rates = rates }
}

// WithSupply changes the supply minted to the owner at genesis.
func WithSupply(supply amount.Amount) Option {
	return func(c *Config) { c.Genesis.InitialSupply = supply }
}

// WithThreshold sets the genesis swap threshold.
func WithThreshold(threshold amount.Amount) Option {
	return func(c *Config) { c.Genesis.Threshold = threshold }
}

// WithLimits sets the genesis transfer and wallet ceilings.
func WithLimits(maxTransfer, maxWallet amount.Amount) Option {
	return func(c *Config) {
		c.Genesis.MaxTransfer = maxTransfer
		c.Genesis.MaxWallet = maxWallet
	}
}

// WithExchangeRate changes the adapter's price to num/den.
func WithExchangeRate(num, den uint64) Option {
	return func(c *Config) {
		c.Adapter.RateNum = num
		c.Adapter.RateDen = den
	}
}

// WithSlippage deducts bps from every adapter quote.
func WithSlippage(bps uint32) Option {
	return func(c *Config) { c.Adapter.SlippageBps = bps }
}

// WithLiquidity caps the total secondary asset the adapter can deliver.
func WithLiquidity(liquidity amount.Amount) Option {
	return func(c *Config) { c.Adapter.Liquidity = liquidity }
}

// WithoutAdapter builds the environment with no exchange adapter, so
// distribution cycles that need conversion end in ConversionFailed.
func WithoutAdapter() Option {
	return func(c *Config) { c.Adapter = nil }
}

// Env is a complete in-memory levyd node for tests: a memory-backed
// ledger, the levy and treasury engines wired back to back, a fixed-rate
// exchange adapter and a manual clock. Accounts derive deterministically
// from their names, so a failing test reproduces exactly.
type Env struct {
	t *testing.T

	Store    *ledger.Store
	Engine   *levy.Engine
	Treasury *treasury.Engine
	Bus      *events.Bus
	Clock    *ManualClock

	// Adapter is the fixed-rate adapter, or nil when the environment was
	// built WithoutAdapter.
	Adapter *exchange.FixedRate

	// Owner holds the genesis supply and signs administrative calls.
	Owner *Account

	// TreasuryAccount is where accrued tax lands.
	TreasuryAccount *Account

	accounts map[string]*Account
}

// NewEnv builds a test environment. The owner and treasury identities
// derive from the names "owner" and "treasury"; the owner holds the whole
// genesis supply and both accounts are tax-exempt, as at any real genesis.
func NewEnv(t *testing.T, opts ...Option) *Env {
	t.Helper()

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	owner := NewAccount("owner")
	treasuryAcct := NewAccount("treasury")
	cfg.Genesis.Owner = owner.ID
	cfg.Genesis.Treasury = treasuryAcct.ID

	store, err := ledger.Open(nil, &cfg.Genesis)
	if err != nil {
		t.Fatalf("Failed to open test ledger: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	clock := NewManualClock()
	bus := events.NewBus()

	var fixed *exchange.FixedRate
	var adapter exchange.Adapter
	if cfg.Adapter != nil {
		fixed, err = exchange.NewFixedRate(*cfg.Adapter, clock.Now)
		if err != nil {
			t.Fatalf("Failed to build fixed-rate adapter: %v", err)
		}
		adapter = fixed
	}

	// Cycle IDs count up from one instead of being random UUIDs, so event
	// payloads are assertable.
	var cycles atomic.Uint64
	tre := treasury.New(store, adapter,
		treasury.WithBus(bus),
		treasury.WithClock(clock.Now),
		treasury.WithIDGenerator(func() string {
			return fmt.Sprintf("cycle-%d", cycles.Add(1))
		}))
	eng := levy.New(store,
		levy.WithDistributor(tre),
		levy.WithBus(bus),
		levy.WithClock(clock.Now))

	return &Env{
		t:               t,
		Store:           store,
		Engine:          eng,
		Treasury:        tre,
		Bus:             bus,
		Clock:           clock,
		Adapter:         fixed,
		Owner:           owner,
		TreasuryAccount: treasuryAcct,
		accounts: map[string]*Account{
			owner.Name:        owner,
			treasuryAcct.Name: treasuryAcct,
		},
	}
}

// Account returns the named deterministic account, creating and
// registering it on first use.
func (e *Env) Account(name string) *Account {
	if acc, ok := e.accounts[name]; ok {
		return acc
	}
	acc := NewAccount(name)
	e.accounts[name] = acc
	return acc
}

// Fund grants each account DefaultFunding from the owner. The owner is
// tax-exempt, so funding transfers arrive whole.
func (e *Env) Fund(accounts ...*Account) {
	e.t.Helper()
	for _, acc := range accounts {
		e.FundAmount(acc, DefaultFunding)
	}
}

// FundAmount grants acc an exact amount from the owner.
func (e *Env) FundAmount(acc *Account, amt amount.Amount) {
	e.t.Helper()
	e.accounts[acc.Name] = acc
	rcpt, err := e.Engine.ApplyTransfer(context.Background(), e.Owner.ID, e.Owner.ID, acc.ID, amt)
	if err != nil {
		e.t.Fatalf("Failed to fund %s: %v", acc.Name, err)
	}
	if rcpt.Result != levy.Success {
		e.t.Fatalf("Failed to fund %s: %s", acc.Name, rcpt.Result)
	}
}

// Transfer moves amt from one account to another on the sender's own
// behalf and returns the engine receipt. Storage faults fail the test;
// domain rejections come back in the receipt for the caller to assert.
func (e *Env) Transfer(from, to *Account, amt amount.Amount) levy.Receipt {
	e.t.Helper()
	return e.TransferBy(from, from, to, amt)
}

// TransferBy moves amt from sender to receiver on behalf of invoker.
func (e *Env) TransferBy(invoker, from, to *Account, amt amount.Amount) levy.Receipt {
	e.t.Helper()
	rcpt, err := e.Engine.ApplyTransfer(context.Background(), invoker.ID, from.ID, to.ID, amt)
	if err != nil {
		e.t.Fatalf("Transfer %s -> %s failed: %v", from.Name, to.Name, err)
	}
	return rcpt
}

// Balance returns acc's native-asset balance.
func (e *Env) Balance(acc *Account) amount.Amount {
	return e.Store.BalanceOf(e.Store.NativeAsset(), acc.ID)
}

// SecondaryBalance returns acc's balance in the secondary asset.
func (e *Env) SecondaryBalance(acc *Account) amount.Amount {
	return e.Store.BalanceOf(e.Store.Params().SecondaryAsset, acc.ID)
}

// TreasuryBalance returns the treasury's native-asset balance.
func (e *Env) TreasuryBalance() amount.Amount {
	return e.Store.TreasuryBalance()
}

// Accrued returns the undistributed tax accrued for cat.
func (e *Env) Accrued(cat types.Category) amount.Amount {
	return e.Store.Category(cat).Accrued
}

// Seq returns the last settlement sequence number.
func (e *Env) Seq() uint64 {
	return e.Store.Params().Seq
}

// Distribute runs one distribution cycle for cat as the treasury would,
// returning the amount drained from the accrual and the cycle outcome.
func (e *Env) Distribute(cat types.Category) (amount.Amount, levy.Result) {
	e.t.Helper()
	amt, res, err := e.Treasury.Distribute(context.Background(), cat)
	if err != nil {
		e.t.Fatalf("Distribute %s failed: %v", cat, err)
	}
	return amt, res
}

// Advance moves the manual clock forward.
func (e *Env) Advance(d time.Duration) {
	e.Clock.Advance(d)
}

// Now returns the manual clock's current time.
func (e *Env) Now() time.Time {
	return e.Clock.Now()
}

// admin fails the test unless an owner-signed operation succeeded.
func (e *Env) admin(op string, res levy.Result, err error) {
	e.t.Helper()
	if err != nil {
		e.t.Fatalf("%s failed: %v", op, err)
	}
	if res != levy.Success {
		e.t.Fatalf("%s failed: %s", op, res)
	}
}

// SetRate sets cat's tax rate as the owner.
func (e *Env) SetRate(cat types.Category, rateBps uint32) {
	e.t.Helper()
	res, err := e.Engine.SetRate(e.Owner.ID, cat, rateBps)
	e.admin("set rate", res, err)
}

// Exempt adds acc to the tax exemption set.
func (e *Env) Exempt(acc *Account) {
	e.t.Helper()
	res, err := e.Engine.SetExempt(e.Owner.ID, acc.ID, true)
	e.admin("exempt "+acc.Name, res, err)
}

// Deny bars acc from taxed transfers.
func (e *Env) Deny(acc *Account) {
	e.t.Helper()
	res, err := e.Engine.SetDenied(e.Owner.ID, acc.ID, true)
	e.admin("deny "+acc.Name, res, err)
}

// Classify marks acc with a category on one side of transfers.
func (e *Env) Classify(side ledger.ClassSide, acc *Account, cat types.Category) {
	e.t.Helper()
	res, err := e.Engine.SetClass(e.Owner.ID, side, acc.ID, cat)
	e.admin("classify "+acc.Name, res, err)
}

// MarkMarket gives acc the usual market-account marks: transfers out of
// it are buys, transfers into it are sells.
func (e *Env) MarkMarket(acc *Account) {
	e.t.Helper()
	e.Classify(ledger.SideSender, acc, types.CategoryBuy)
	e.Classify(ledger.SideReceiver, acc, types.CategorySell)
}

// Freeze sets or clears the global freeze flag.
func (e *Env) Freeze(frozen bool) {
	e.t.Helper()
	res, err := e.Engine.SetFrozen(e.Owner.ID, frozen)
	e.admin("set frozen", res, err)
}

// SetLimits replaces the transfer and wallet ceilings. Zero disables a
// ceiling.
func (e *Env) SetLimits(maxTransfer, maxWallet amount.Amount) {
	e.t.Helper()
	res, err := e.Engine.SetLimits(e.Owner.ID, ledger.Limits{
		MaxTransfer: maxTransfer,
		MaxWallet:   maxWallet,
	})
	e.admin("set limits", res, err)
}

// SetThreshold sets the treasury balance at which a sale triggers a
// distribution.
func (e *Env) SetThreshold(threshold amount.Amount) {
	e.t.Helper()
	res, err := e.Treasury.SetThreshold(e.Owner.ID, threshold)
	e.admin("set threshold", res, err)
}

// PlanEntry is one payout plan line for ConfigurePlan. An empty Asset
// means the native asset.
type PlanEntry struct {
	Payee   *Account
	Asset   types.Asset
	Percent uint32
}

// ConfigurePlan replaces cat's payout plan as the owner.
func (e *Env) ConfigurePlan(cat types.Category, entries ...PlanEntry) {
	e.t.Helper()
	payees := make([]types.AccountID, len(entries))
	assets := make([]types.Asset, len(entries))
	percents := make([]uint32, len(entries))
	for i, entry := range entries {
		asset := entry.Asset
		if asset == "" {
			asset = e.Store.NativeAsset()
		}
		payees[i] = entry.Payee.ID
		assets[i] = asset
		percents[i] = entry.Percent
	}
	res, err := e.Treasury.ConfigurePlan(e.Owner.ID, cat, len(entries), payees, assets, percents)
	e.admin("configure plan", res, err)
}
