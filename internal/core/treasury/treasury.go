// Package treasury turns accrued tax into payouts. Each distribution cycle
// drains one category's accrual, pays native-asset plan entries directly,
// converts the remainder through the exchange adapter, and settles the
// proceeds to the convert entries.
package treasury

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/levyledger/levyd/internal/core/amount"
	"github.com/levyledger/levyd/internal/core/exchange"
	"github.com/levyledger/levyd/internal/core/ledger"
	"github.com/levyledger/levyd/internal/core/levy"
	"github.com/levyledger/levyd/internal/events"
	"github.com/levyledger/levyd/internal/types"
)

// Phase is the state of one category's distribution machine. Phases are
// runtime-only and reset to Idle on restart.
type Phase int32

const (
	// PhaseIdle means no cycle is running.
	PhaseIdle Phase = iota
	// PhaseConverting covers accrual drain, native payouts and the
	// adapter call.
	PhaseConverting
	// PhaseSettling covers crediting and paying out the conversion
	// proceeds.
	PhaseSettling
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseConverting:
		return "converting"
	case PhaseSettling:
		return "settling"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// Engine runs distribution cycles and owns the treasury-side configuration.
type Engine struct {
	store   *ledger.Store
	adapter exchange.Adapter
	bus     *events.Bus
	log     *zap.Logger
	now     func() time.Time
	newID   func() string

	phases [types.CategoryCount]atomic.Int32
}

// Option configures an Engine.
type Option func(*Engine)

// WithBus attaches an event bus for distribution notifications.
func WithBus(b *events.Bus) Option {
	return func(e *Engine) { e.bus = b }
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides the cycle ID source.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// New builds an Engine over store using adapter for conversions. A nil
// adapter leaves convert entries unservable: cycles needing conversion end
// in ConversionFailed.
func New(store *ledger.Store, adapter exchange.Adapter, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		adapter: adapter,
		log:     zap.NewNop(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Phase returns the current phase of cat's distribution machine.
func (e *Engine) Phase(cat types.Category) Phase {
	if !cat.Valid() {
		return PhaseIdle
	}
	return Phase(e.phases[cat].Load())
}

// Status is a point-in-time view of the treasury.
type Status struct {
	Balance          amount.Amount
	SecondaryBalance amount.Amount
	SecondaryAsset   types.Asset
	Threshold        amount.Amount
	Adapter          string
	Phases           map[types.Category]Phase
	Accrued          map[types.Category]amount.Amount
}

// Status reports the treasury balances, threshold, adapter and per-category
// machine state.
func (e *Engine) Status() Status {
	snap := e.store.Snapshot()
	st := Status{
		Balance:        snap.TreasuryBalance,
		SecondaryAsset: snap.SecondaryAsset,
		Threshold:      snap.Threshold,
		Phases:         make(map[types.Category]Phase, types.CategoryCount),
		Accrued:        make(map[types.Category]amount.Amount, types.CategoryCount),
	}
	if snap.SecondaryAsset != "" {
		st.SecondaryBalance = e.store.BalanceOf(snap.SecondaryAsset, snap.Treasury)
	}
	if e.adapter != nil {
		st.Adapter = e.adapter.Name()
	}
	for _, cat := range types.Categories() {
		st.Phases[cat] = e.Phase(cat)
		st.Accrued[cat] = e.store.Category(cat).Accrued
	}
	return st
}

// cycle carries one distribution through its phases.
type cycle struct {
	id           string
	cat          types.Category
	started      time.Time
	distributed  amount.Amount
	convertIn    amount.Amount
	secondaryOut amount.Amount
	payouts      []events.Payout
	convert      []ledger.PlanEntry
	treasury     types.AccountID
	native       types.Asset
	secondary    types.Asset
}

// Distribute runs one distribution cycle for cat. It returns the amount
// drained from the category's accrual and the cycle outcome. A cycle
// already in flight yields ReentrantDistribution with no state change; an
// empty accrual yields zero immediately.
func (e *Engine) Distribute(ctx context.Context, cat types.Category) (amount.Amount, levy.Result, error) {
	if !cat.Valid() {
		return 0, levy.UnknownCategory, nil
	}
	if !e.phases[cat].CompareAndSwap(int32(PhaseIdle), int32(PhaseConverting)) {
		return 0, levy.ReentrantDistribution, nil
	}
	defer e.phases[cat].Store(int32(PhaseIdle))

	amt, res, err := e.run(ctx, cat)

	switch {
	case err != nil:
		e.log.Error("distribution failed",
			zap.Stringer("category", cat),
			zap.Error(err))
	case res != levy.Success:
		e.log.Warn("distribution ended early",
			zap.Stringer("category", cat),
			zap.Stringer("result", res))
	case amt > 0:
		e.log.Info("distribution complete",
			zap.Stringer("category", cat),
			zap.Uint64("distributed", uint64(amt)))
	}
	return amt, res, err
}

func (e *Engine) run(ctx context.Context, cat types.Category) (amount.Amount, levy.Result, error) {
	c := &cycle{
		id:      e.newID(),
		cat:     cat,
		started: e.now(),
	}

	// Phase one: drain the accrual, settle native shares, earmark the
	// convertible part out of the ledger. All of it commits before the
	// adapter is involved, so these effects stand whatever happens next.
	if err := e.prepare(c); err != nil {
		return 0, levy.InternalFailure, err
	}
	if c.distributed == 0 {
		return 0, levy.Success, nil
	}
	if c.convertIn == 0 {
		// Nothing owed to the adapter; the cycle is already complete.
		e.publish(c, levy.Success)
		return c.distributed, levy.Success, nil
	}

	// Phase two: hand the earmark to the adapter. The earmark is already
	// consumed; a failed or empty conversion cannot be retried.
	received, convErr := e.convert(ctx, c)
	if convErr != nil || received == 0 {
		if convErr != nil {
			e.log.Warn("conversion failed",
				zap.String("cycle", c.id),
				zap.Stringer("category", cat),
				zap.Uint64("earmarked", uint64(c.convertIn)),
				zap.Error(convErr))
		}
		e.publish(c, levy.ConversionFailed)
		return c.distributed, levy.ConversionFailed, nil
	}

	// Phase three: settle the proceeds.
	e.phases[cat].Store(int32(PhaseSettling))
	if err := e.settle(c, received); err != nil {
		return c.distributed, levy.InternalFailure, err
	}

	e.publish(c, levy.Success)
	return c.distributed, levy.Success, nil
}

// prepare drains the accrual and pays the native-asset entries in one
// transaction, leaving c.convertIn earmarked for the adapter.
func (e *Engine) prepare(c *cycle) error {
	tx := e.store.Begin()

	p := tx.Params()
	c.treasury = p.Treasury
	c.native = p.NativeAsset
	c.secondary = p.SecondaryAsset

	cs := tx.CategoryState(c.cat)
	c.distributed = cs.Accrued
	if c.distributed == 0 {
		tx.Discard()
		return nil
	}
	cs.Accrued = 0
	tx.SetCategoryState(c.cat, cs)

	plan, _ := tx.Plan(c.cat)
	var convertPct uint32
	for _, entry := range plan.Entries {
		if entry.Asset == c.native {
			share := c.distributed.PercentShare(entry.Percent)
			if share > 0 {
				if err := tx.Move(c.native, c.treasury, entry.Payee, share); err != nil {
					tx.Discard()
					return err
				}
				if err := tx.AddDistributed(false, entry.Payee, share); err != nil {
					tx.Discard()
					return err
				}
			}
			c.payouts = append(c.payouts, events.Payout{
				Payee: entry.Payee,
				Asset: c.native,
				Share: share,
			})
			continue
		}
		convertPct += entry.Percent
		c.convert = append(c.convert, entry)
	}

	if convertPct > 0 {
		c.convertIn = c.distributed.PercentShare(convertPct)
	}
	if c.convertIn > 0 {
		// The earmark leaves the ledger into the adapter's custody.
		if err := tx.Burn(c.native, c.treasury, c.convertIn); err != nil {
			tx.Discard()
			return err
		}
	}
	return tx.Commit()
}

// convert hands the earmark to the exchange adapter.
func (e *Engine) convert(ctx context.Context, c *cycle) (amount.Amount, error) {
	if e.adapter == nil {
		return 0, fmt.Errorf("no exchange adapter configured")
	}
	if c.secondary == "" {
		return 0, fmt.Errorf("no secondary asset configured")
	}
	return e.adapter.Convert(ctx, exchange.Request{
		FromAsset: c.native,
		ToAsset:   c.secondary,
		AmountIn:  c.convertIn,
		Recipient: c.treasury,
	})
}

// settle credits the conversion proceeds and pays the convert entries,
// split in proportion to their plan percentages.
func (e *Engine) settle(c *cycle, received amount.Amount) error {
	var convertPct uint32
	for _, entry := range c.convert {
		convertPct += entry.Percent
	}

	tx := e.store.Begin()
	if err := tx.Mint(c.secondary, c.treasury, received); err != nil {
		tx.Discard()
		return err
	}
	for _, entry := range c.convert {
		proportional := uint64(entry.Percent) * amount.BpsDenominator / uint64(convertPct)
		share := amount.MulDiv(received, proportional, amount.BpsDenominator)
		if share > 0 {
			if err := tx.Move(c.secondary, c.treasury, entry.Payee, share); err != nil {
				tx.Discard()
				return err
			}
			if err := tx.AddDistributed(true, entry.Payee, share); err != nil {
				tx.Discard()
				return err
			}
		}
		c.payouts = append(c.payouts, events.Payout{
			Payee:     entry.Payee,
			Asset:     c.secondary,
			Share:     share,
			Secondary: true,
		})
	}
	c.secondaryOut = received
	return tx.Commit()
}

func (e *Engine) publish(c *cycle, res levy.Result) {
	e.bus.Publish(events.Distribution{
		ID:           c.id,
		Time:         c.started,
		Category:     c.cat.String(),
		Distributed:  c.distributed,
		ConvertedIn:  c.convertIn,
		SecondaryOut: c.secondaryOut,
		Result:       res.String(),
		Payouts:      c.payouts,
	})
}
