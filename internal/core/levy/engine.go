// Package levy applies taxed transfers against the ledger: it classifies
// each transfer, admits it through the guard checks, splits off the tax and
// settles the remainder, and accrues the tax for later distribution.
package levy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/levyledger/levyd/internal/core/amount"
	"github.com/levyledger/levyd/internal/core/ledger"
	"github.com/levyledger/levyd/internal/events"
	"github.com/levyledger/levyd/internal/types"
)

// Distributor runs a treasury distribution cycle for a category. The engine
// invokes it synchronously before settling a sale once the treasury balance
// reaches the configured threshold.
type Distributor interface {
	Distribute(ctx context.Context, cat types.Category) (amount.Amount, Result, error)
}

// Engine is the single writer of ledger state. All transfers and
// administrative mutations flow through it sequentially.
type Engine struct {
	mu    sync.Mutex
	store *ledger.Store
	dist  Distributor
	bus   *events.Bus
	log   *zap.Logger
	now   func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithDistributor attaches the treasury distribution engine.
func WithDistributor(d Distributor) Option {
	return func(e *Engine) { e.dist = d }
}

// WithBus attaches an event bus for settlement and admin notifications.
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

// New builds an Engine over store.
func New(store *ledger.Store, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		log:   zap.NewNop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store exposes the underlying ledger for read-only queries.
func (e *Engine) Store() *ledger.Store { return e.store }

// Receipt is the outcome of one ApplyTransfer call.
type Receipt struct {
	// Seq is the settlement sequence number; zero when the transfer was
	// rejected.
	Seq      uint64
	Result   Result
	Category types.Category
	Taxed    bool
	Amount   amount.Amount
	Tax      amount.Amount
	Net      amount.Amount
}

// ApplyTransfer moves amt of the native asset from sender to receiver on
// behalf of invoker. Taxed transfers pay the category rate into the
// treasury. A sale that finds the treasury at or above the swap threshold
// first runs a distribution cycle; the cycle's effects stand on their own
// and the transfer settles, or fails, afterwards.
//
// The returned error reports storage or adapter faults only; every domain
// outcome is in the receipt's Result.
func (e *Engine) ApplyTransfer(ctx context.Context, invoker, sender, receiver types.AccountID, amt amount.Amount) (Receipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rcpt, triggered, err := e.attempt(ctx, invoker, sender, receiver, amt, true)
	if err == nil && triggered {
		// The distribution committed its own transaction; the transfer now
		// settles against the post-distribution state.
		rcpt, _, err = e.attempt(ctx, invoker, sender, receiver, amt, false)
	}

	e.bus.Publish(events.Settlement{
		Seq:      rcpt.Seq,
		Time:     e.now(),
		Invoker:  invoker,
		Sender:   sender,
		Receiver: receiver,
		Amount:   amt,
		Category: rcpt.Category.String(),
		Taxed:    rcpt.Taxed,
		Tax:      rcpt.Tax,
		Net:      rcpt.Net,
		Result:   rcpt.Result.String(),
	})

	switch {
	case err != nil:
		e.log.Error("transfer failed",
			zap.Stringer("sender", sender),
			zap.Stringer("receiver", receiver),
			zap.Uint64("amount", uint64(amt)),
			zap.Error(err))
	case rcpt.Result != Success:
		e.log.Debug("transfer rejected",
			zap.Stringer("sender", sender),
			zap.Stringer("receiver", receiver),
			zap.Uint64("amount", uint64(amt)),
			zap.Stringer("result", rcpt.Result))
	default:
		e.log.Debug("transfer settled",
			zap.Uint64("seq", rcpt.Seq),
			zap.Stringer("sender", sender),
			zap.Stringer("receiver", receiver),
			zap.Uint64("amount", uint64(amt)),
			zap.Uint64("tax", uint64(rcpt.Tax)),
			zap.Stringer("category", rcpt.Category))
	}
	return rcpt, err
}

// attempt runs one admission-and-settlement pass. When allowTrigger is set
// and a sale finds the treasury at the threshold, it abandons the pass,
// runs the distribution, and reports triggered=true so the caller can
// retry against the committed result.
func (e *Engine) attempt(ctx context.Context, invoker, sender, receiver types.AccountID, amt amount.Amount, allowTrigger bool) (Receipt, bool, error) {
	tx := e.store.Begin()
	p := tx.Params()

	cls := classify(tx, sender, receiver)
	rcpt := Receipt{
		Result:   Success,
		Category: cls.Category,
		Taxed:    cls.Taxed,
		Amount:   amt,
	}

	if res := guard(tx, invoker, sender, receiver, amt, cls); res != Success {
		tx.Discard()
		rcpt.Result = res
		return rcpt, false, nil
	}

	var tax amount.Amount
	net := amt
	if cls.Taxed {
		tax = amt.TaxAt(tx.CategoryState(cls.Category).RateBps)
		net = amt - tax
	}
	rcpt.Tax, rcpt.Net = tax, net

	if wouldExceedWallet(tx, receiver, net, cls) {
		tx.Discard()
		rcpt.Result = ExceedsMaxWallet
		return rcpt, false, nil
	}

	if allowTrigger && cls.Taxed && cls.Category == types.CategorySell && e.dist != nil &&
		p.Threshold > 0 && tx.Balance(p.NativeAsset, p.Treasury) >= p.Threshold {
		tx.Discard()
		_, res, err := e.dist.Distribute(ctx, cls.Category)
		if err != nil {
			rcpt.Result = InternalFailure
			return rcpt, false, fmt.Errorf("distribution before sale: %w", err)
		}
		switch res {
		case Success, ReentrantDistribution:
			// A finished cycle, or one already in flight, both let the
			// sale go ahead.
			return rcpt, true, nil
		default:
			rcpt.Result = res
			return rcpt, false, nil
		}
	}

	if err := tx.Move(p.NativeAsset, sender, receiver, net); err != nil {
		tx.Discard()
		rcpt.Result = InternalFailure
		return rcpt, false, err
	}
	if tax > 0 {
		if err := tx.Move(p.NativeAsset, sender, p.Treasury, tax); err != nil {
			tx.Discard()
			rcpt.Result = InternalFailure
			return rcpt, false, err
		}
		cs := tx.CategoryState(cls.Category)
		accrued, err := cs.Accrued.Add(tax)
		if err != nil {
			tx.Discard()
			rcpt.Result = InternalFailure
			return rcpt, false, fmt.Errorf("accrue %s tax: %w", cls.Category, err)
		}
		cs.Accrued = accrued
		tx.SetCategoryState(cls.Category, cs)
	}

	rcpt.Seq = tx.NextSeq()
	if err := tx.Commit(); err != nil {
		rcpt.Result = InternalFailure
		rcpt.Seq = 0
		return rcpt, false, err
	}
	return rcpt, false, nil
}

// admin runs fn inside an owner-checked transaction and publishes the
// mutation on success.
func (e *Engine) admin(invoker types.AccountID, op, detail string, fn func(tx *ledger.Tx) Result) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tx := e.store.Begin()
	if tx.Params().Owner != invoker {
		tx.Discard()
		return NotAuthorized, nil
	}
	if res := fn(tx); res != Success {
		tx.Discard()
		return res, nil
	}
	if err := tx.Commit(); err != nil {
		return InternalFailure, fmt.Errorf("%s: %w", op, err)
	}

	e.log.Info("admin operation applied",
		zap.String("op", op),
		zap.Stringer("actor", invoker),
		zap.String("detail", detail))
	e.bus.Publish(events.Admin{Time: e.now(), Op: op, Actor: invoker, Detail: detail})
	return Success, nil
}

// SetRate sets the tax rate for cat in basis points.
func (e *Engine) SetRate(invoker types.AccountID, cat types.Category, rateBps uint32) (Result, error) {
	return e.admin(invoker, "set_rate", fmt.Sprintf("%s=%dbps", cat, rateBps), func(tx *ledger.Tx) Result {
		if !cat.Valid() {
			return UnknownCategory
		}
		if rateBps > ledger.MaxRateBps {
			return RateAboveCap
		}
		cs := tx.CategoryState(cat)
		cs.RateBps = rateBps
		tx.SetCategoryState(cat, cs)
		return Success
	})
}

// SetFrozen sets or clears the global freeze flag.
func (e *Engine) SetFrozen(invoker types.AccountID, frozen bool) (Result, error) {
	return e.admin(invoker, "set_frozen", fmt.Sprintf("%t", frozen), func(tx *ledger.Tx) Result {
		tx.SetFrozen(frozen)
		return Success
	})
}

// SetLimits replaces the transfer and wallet ceilings. Zero disables a
// ceiling.
func (e *Engine) SetLimits(invoker types.AccountID, limits ledger.Limits) (Result, error) {
	detail := fmt.Sprintf("max_transfer=%d max_wallet=%d", limits.MaxTransfer, limits.MaxWallet)
	return e.admin(invoker, "set_limits", detail, func(tx *ledger.Tx) Result {
		tx.SetLimits(limits)
		return Success
	})
}

// SetExempt adds or removes an account from the tax exemption set. An
// account in the deny set cannot be exempted.
func (e *Engine) SetExempt(invoker, account types.AccountID, present bool) (Result, error) {
	detail := fmt.Sprintf("%s present=%t", account, present)
	return e.admin(invoker, "set_exempt", detail, func(tx *ledger.Tx) Result {
		if present && tx.IsMember(ledger.SetDenied, account) {
			return RegistryConflict
		}
		tx.SetMember(ledger.SetExempt, account, present)
		return Success
	})
}

// SetDenied adds or removes an account from the deny set. An exempt account
// cannot be denied.
func (e *Engine) SetDenied(invoker, account types.AccountID, present bool) (Result, error) {
	detail := fmt.Sprintf("%s present=%t", account, present)
	return e.admin(invoker, "set_denied", detail, func(tx *ledger.Tx) Result {
		if present && tx.IsMember(ledger.SetExempt, account) {
			return RegistryConflict
		}
		tx.SetMember(ledger.SetDenied, account, present)
		return Success
	})
}

// SetClass marks an account with a category on one side of transfers.
func (e *Engine) SetClass(invoker types.AccountID, side ledger.ClassSide, account types.AccountID, cat types.Category) (Result, error) {
	detail := fmt.Sprintf("%s %s=%s", account, side, cat)
	return e.admin(invoker, "set_class", detail, func(tx *ledger.Tx) Result {
		if side != ledger.SideSender && side != ledger.SideReceiver {
			return InvalidParameter
		}
		if !cat.Valid() {
			return UnknownCategory
		}
		tx.SetClass(side, account, cat)
		return Success
	})
}

// ClearClass removes an account's mark on one side.
func (e *Engine) ClearClass(invoker types.AccountID, side ledger.ClassSide, account types.AccountID) (Result, error) {
	detail := fmt.Sprintf("%s %s", account, side)
	return e.admin(invoker, "clear_class", detail, func(tx *ledger.Tx) Result {
		if side != ledger.SideSender && side != ledger.SideReceiver {
			return InvalidParameter
		}
		tx.ClearClass(side, account)
		return Success
	})
}

// TransferOwnership hands the administrative role to newOwner.
func (e *Engine) TransferOwnership(invoker, newOwner types.AccountID) (Result, error) {
	return e.admin(invoker, "transfer_ownership", newOwner.String(), func(tx *ledger.Tx) Result {
		if newOwner.IsZero() {
			return InvalidParameter
		}
		tx.SetOwner(newOwner)
		return Success
	})
}
