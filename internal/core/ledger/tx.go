package ledger

import (
	"errors"
	"fmt"

	"github.com/levyledger/levyd/internal/core/amount"
	"github.com/levyledger/levyd/internal/storage/statestore"
	"github.com/levyledger/levyd/internal/types"
)

var (
	// ErrInsufficientFunds is returned by Debit when the balance cannot
	// cover the requested amount.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrTxFinished is returned when a finished transaction is reused.
	ErrTxFinished = errors.New("transaction already committed or discarded")
)

type balanceRef struct {
	asset   types.Asset
	account types.AccountID
}

type memberRef struct {
	set     MemberSet
	account types.AccountID
}

type classRef struct {
	side    ClassSide
	account types.AccountID
}

type distRef struct {
	kind    byte
	account types.AccountID
}

type classValue struct {
	cat     types.Category
	present bool
}

// Tx is a write transaction over a Store. It records final values in an
// overlay and provides read-your-writes access; nothing is visible to
// readers of the Store until Commit. Commit persists a single batch to the
// backing database before the in-memory image is touched, so a crash can
// lose a whole transaction but never half of one.
type Tx struct {
	s    *Store
	done bool

	params      Params
	paramsDirty bool

	balances    map[balanceRef]amount.Amount
	supply      map[types.Asset]amount.Amount
	categories  map[types.Category]CategoryState
	plans       map[types.Category]PayoutPlan
	members     map[memberRef]bool
	classes     map[classRef]classValue
	distributed map[distRef]amount.Amount
}

func newTx(s *Store) *Tx {
	return &Tx{
		s:           s,
		params:      s.Params(),
		balances:    make(map[balanceRef]amount.Amount),
		supply:      make(map[types.Asset]amount.Amount),
		categories:  make(map[types.Category]CategoryState),
		plans:       make(map[types.Category]PayoutPlan),
		members:     make(map[memberRef]bool),
		classes:     make(map[classRef]classValue),
		distributed: make(map[distRef]amount.Amount),
	}
}

// --- balances -------------------------------------------------------------

// Balance returns the account's balance as seen by this transaction.
func (tx *Tx) Balance(asset types.Asset, account types.AccountID) amount.Amount {
	if bal, ok := tx.balances[balanceRef{asset, account}]; ok {
		return bal
	}
	return tx.s.BalanceOf(asset, account)
}

// Credit adds amt to the account's balance.
func (tx *Tx) Credit(asset types.Asset, account types.AccountID, amt amount.Amount) error {
	next, err := tx.Balance(asset, account).Add(amt)
	if err != nil {
		return fmt.Errorf("credit %s to %s: %w", asset, account, err)
	}
	tx.balances[balanceRef{asset, account}] = next
	return nil
}

// Debit removes amt from the account's balance.
func (tx *Tx) Debit(asset types.Asset, account types.AccountID, amt amount.Amount) error {
	cur := tx.Balance(asset, account)
	next, err := cur.Sub(amt)
	if err != nil {
		return fmt.Errorf("debit %v from %s holding %v: %w", amt, account, cur, ErrInsufficientFunds)
	}
	tx.balances[balanceRef{asset, account}] = next
	return nil
}

// Move debits from and credits to in one step.
func (tx *Tx) Move(asset types.Asset, from, to types.AccountID, amt amount.Amount) error {
	if err := tx.Debit(asset, from, amt); err != nil {
		return err
	}
	return tx.Credit(asset, to, amt)
}

// Mint credits newly created units to account and grows the tracked supply.
func (tx *Tx) Mint(asset types.Asset, account types.AccountID, amt amount.Amount) error {
	if err := tx.Credit(asset, account, amt); err != nil {
		return err
	}
	sup := tx.supplyOf(asset)
	next, err := sup.Add(amt)
	if err != nil {
		return fmt.Errorf("mint %v of %s: %w", amt, asset, err)
	}
	tx.supply[asset] = next
	return nil
}

// Burn debits amt from the account and shrinks the tracked supply,
// recording value that leaves the ledger for external custody.
func (tx *Tx) Burn(asset types.Asset, account types.AccountID, amt amount.Amount) error {
	if err := tx.Debit(asset, account, amt); err != nil {
		return err
	}
	sup := tx.supplyOf(asset)
	next, err := sup.Sub(amt)
	if err != nil {
		return fmt.Errorf("burn %v of %s: %w", amt, asset, err)
	}
	tx.supply[asset] = next
	return nil
}

func (tx *Tx) supplyOf(asset types.Asset) amount.Amount {
	if sup, ok := tx.supply[asset]; ok {
		return sup
	}
	return tx.s.Supply(asset)
}

// --- categories and plans -------------------------------------------------

// CategoryState returns the rate and accrual record for cat as seen by this
// transaction.
func (tx *Tx) CategoryState(cat types.Category) CategoryState {
	if cs, ok := tx.categories[cat]; ok {
		return cs
	}
	return tx.s.Category(cat)
}

// SetCategoryState replaces the record for cat.
func (tx *Tx) SetCategoryState(cat types.Category, cs CategoryState) {
	tx.categories[cat] = cs
}

// Plan returns the payout plan for cat as seen by this transaction.
func (tx *Tx) Plan(cat types.Category) (PayoutPlan, bool) {
	if plan, ok := tx.plans[cat]; ok {
		return plan.Clone(), len(plan.Entries) > 0
	}
	return tx.s.Plan(cat)
}

// SetPlan replaces the payout plan for cat wholesale.
func (tx *Tx) SetPlan(cat types.Category, plan PayoutPlan) {
	tx.plans[cat] = plan.Clone()
}

// --- registries -----------------------------------------------------------

// IsMember reports set membership as seen by this transaction.
func (tx *Tx) IsMember(set MemberSet, account types.AccountID) bool {
	if present, ok := tx.members[memberRef{set, account}]; ok {
		return present
	}
	return tx.s.IsMember(set, account)
}

// SetMember adds or removes account from the given registry.
func (tx *Tx) SetMember(set MemberSet, account types.AccountID, present bool) {
	tx.members[memberRef{set, account}] = present
}

// Class returns the side classification of account as seen by this
// transaction.
func (tx *Tx) Class(side ClassSide, account types.AccountID) (types.Category, bool) {
	if cv, ok := tx.classes[classRef{side, account}]; ok {
		return cv.cat, cv.present
	}
	return tx.s.Class(side, account)
}

// SetClass binds account to cat on the given side.
func (tx *Tx) SetClass(side ClassSide, account types.AccountID, cat types.Category) {
	tx.classes[classRef{side, account}] = classValue{cat: cat, present: true}
}

// ClearClass removes the side classification of account.
func (tx *Tx) ClearClass(side ClassSide, account types.AccountID) {
	tx.classes[classRef{side, account}] = classValue{}
}

// --- params ---------------------------------------------------------------

// Params returns the parameter record as seen by this transaction.
func (tx *Tx) Params() Params { return tx.params }

// SetFrozen flips the global freeze flag.
func (tx *Tx) SetFrozen(frozen bool) {
	tx.params.Frozen = frozen
	tx.paramsDirty = true
}

// SetOwner hands the administrative role to a new account.
func (tx *Tx) SetOwner(owner types.AccountID) {
	tx.params.Owner = owner
	tx.paramsDirty = true
}

// SetLimits replaces the per-transfer and per-wallet caps.
func (tx *Tx) SetLimits(limits Limits) {
	tx.params.Limits = limits
	tx.paramsDirty = true
}

// SetThreshold replaces the distribution trigger threshold.
func (tx *Tx) SetThreshold(threshold amount.Amount) {
	tx.params.Threshold = threshold
	tx.paramsDirty = true
}

// SetSecondaryAsset replaces the conversion target asset.
func (tx *Tx) SetSecondaryAsset(asset types.Asset) {
	tx.params.SecondaryAsset = asset
	tx.paramsDirty = true
}

// NextSeq advances and returns the settlement sequence number.
func (tx *Tx) NextSeq() uint64 {
	tx.params.Seq++
	tx.paramsDirty = true
	return tx.params.Seq
}

// --- distributed ledgers --------------------------------------------------

// Distributed returns the cumulative payout total as seen by this
// transaction.
func (tx *Tx) Distributed(secondary bool, account types.AccountID) amount.Amount {
	kind := distNative
	if secondary {
		kind = distSecondary
	}
	if amt, ok := tx.distributed[distRef{kind, account}]; ok {
		return amt
	}
	return tx.s.Distributed(secondary, account)
}

// AddDistributed grows the cumulative payout total for account.
func (tx *Tx) AddDistributed(secondary bool, account types.AccountID, amt amount.Amount) error {
	kind := distNative
	if secondary {
		kind = distSecondary
	}
	next, err := tx.Distributed(secondary, account).Add(amt)
	if err != nil {
		return fmt.Errorf("distributed total for %s: %w", account, err)
	}
	tx.distributed[distRef{kind, account}] = next
	return nil
}

// --- commit ---------------------------------------------------------------

// Commit persists the overlay to the backing database and then applies it
// to the in-memory image. On persistence failure nothing is applied.
func (tx *Tx) Commit() error {
	if tx.done {
		return ErrTxFinished
	}
	tx.done = true
	defer tx.s.writerMu.Unlock()

	if tx.s.db != nil {
		ops, err := tx.batch()
		if err != nil {
			return err
		}
		if len(ops) > 0 {
			if err := tx.s.db.Commit(ops); err != nil {
				return fmt.Errorf("persist ledger batch: %w", err)
			}
		}
	}

	tx.apply()
	return nil
}

// Discard abandons the overlay.
func (tx *Tx) Discard() {
	if tx.done {
		return
	}
	tx.done = true
	tx.s.writerMu.Unlock()
}

// batch translates the overlay into state store operations.
func (tx *Tx) batch() ([]statestore.BatchOp, error) {
	var ops []statestore.BatchOp

	put := func(key []byte, v any) error {
		value, err := statestore.Marshal(v)
		if err != nil {
			return err
		}
		ops = append(ops, statestore.BatchOp{Type: statestore.BatchPut, Key: key, Value: value})
		return nil
	}
	del := func(key []byte) {
		ops = append(ops, statestore.BatchOp{Type: statestore.BatchDelete, Key: key})
	}

	if tx.paramsDirty {
		if err := put(paramsKey(), &tx.params); err != nil {
			return nil, err
		}
	}
	for ref, bal := range tx.balances {
		key := balanceKeyBytes(ref.asset, ref.account)
		if bal == 0 {
			del(key)
			continue
		}
		if err := put(key, bal); err != nil {
			return nil, err
		}
	}
	for asset, sup := range tx.supply {
		if err := put(supplyKey(asset), sup); err != nil {
			return nil, err
		}
	}
	for cat, cs := range tx.categories {
		if err := put(categoryKey(cat), &cs); err != nil {
			return nil, err
		}
	}
	for cat, plan := range tx.plans {
		if err := put(planKey(cat), &plan); err != nil {
			return nil, err
		}
	}
	for ref, present := range tx.members {
		key := memberKeyBytes(ref.set, ref.account)
		if !present {
			del(key)
			continue
		}
		if err := put(key, true); err != nil {
			return nil, err
		}
	}
	for ref, cv := range tx.classes {
		key := classKeyBytes(ref.side, ref.account)
		if !cv.present {
			del(key)
			continue
		}
		if err := put(key, cv.cat); err != nil {
			return nil, err
		}
	}
	for ref, amt := range tx.distributed {
		if err := put(distributedKeyBytes(ref.kind, ref.account), amt); err != nil {
			return nil, err
		}
	}
	return ops, nil
}

// apply folds the overlay into the in-memory image.
func (tx *Tx) apply() {
	s := tx.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.paramsDirty {
		s.params = tx.params
	}
	for ref, bal := range tx.balances {
		byAcct, ok := s.balances[ref.asset]
		if !ok {
			if bal == 0 {
				continue
			}
			byAcct = make(map[types.AccountID]amount.Amount)
			s.balances[ref.asset] = byAcct
		}
		if bal == 0 {
			delete(byAcct, ref.account)
			continue
		}
		byAcct[ref.account] = bal
	}
	for asset, sup := range tx.supply {
		s.supply[asset] = sup
	}
	for cat, cs := range tx.categories {
		s.categories[cat] = cs
	}
	for cat, plan := range tx.plans {
		s.plans[cat] = plan
	}
	for ref, present := range tx.members {
		if present {
			s.members[ref.set][ref.account] = struct{}{}
		} else {
			delete(s.members[ref.set], ref.account)
		}
	}
	for ref, cv := range tx.classes {
		if cv.present {
			s.classes[ref.side][ref.account] = cv.cat
		} else {
			delete(s.classes[ref.side], ref.account)
		}
	}
	for ref, amt := range tx.distributed {
		s.distributed[ref.kind][ref.account] = amt
	}
}
