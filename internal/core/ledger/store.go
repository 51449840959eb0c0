package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/levyledger/levyd/internal/core/amount"
	"github.com/levyledger/levyd/internal/storage/statestore"
	"github.com/levyledger/levyd/internal/types"
)

// ErrNoGenesis is returned when the state store is empty and no genesis
// configuration was supplied.
var ErrNoGenesis = errors.New("state store is empty and no genesis was provided")

// Store is the in-memory image of the ledger, optionally backed by a state
// store database. Reads are served from memory under a read lock; writes go
// through Begin/Commit transactions, which persist a batch before touching
// the in-memory image.
type Store struct {
	mu sync.RWMutex
	db *statestore.DB // nil for memory-only stores

	params      Params
	balances    map[types.Asset]map[types.AccountID]amount.Amount
	supply      map[types.Asset]amount.Amount
	categories  map[types.Category]CategoryState
	plans       map[types.Category]PayoutPlan
	members     map[MemberSet]map[types.AccountID]struct{}
	classes     map[ClassSide]map[types.AccountID]types.Category
	distributed map[byte]map[types.AccountID]amount.Amount

	// writerMu serializes Begin..Commit windows: the ledger has exactly one
	// logical writer at a time.
	writerMu sync.Mutex
}

func newStore(db *statestore.DB) *Store {
	return &Store{
		db:       db,
		balances: make(map[types.Asset]map[types.AccountID]amount.Amount),
		supply:   make(map[types.Asset]amount.Amount),
		categories: map[types.Category]CategoryState{
			types.CategoryTransfer: {},
			types.CategoryBuy:      {},
			types.CategorySell:     {},
		},
		plans: make(map[types.Category]PayoutPlan),
		members: map[MemberSet]map[types.AccountID]struct{}{
			SetExempt: make(map[types.AccountID]struct{}),
			SetDenied: make(map[types.AccountID]struct{}),
		},
		classes: map[ClassSide]map[types.AccountID]types.Category{
			SideSender:   make(map[types.AccountID]types.Category),
			SideReceiver: make(map[types.AccountID]types.Category),
		},
		distributed: map[byte]map[types.AccountID]amount.Amount{
			distNative:    make(map[types.AccountID]amount.Amount),
			distSecondary: make(map[types.AccountID]amount.Amount),
		},
	}
}

// Open builds a Store over db. An empty database is bootstrapped from gen;
// a populated one is loaded and gen is ignored. A nil db yields a
// memory-only store, which always requires gen.
func Open(db *statestore.DB, gen *Genesis) (*Store, error) {
	s := newStore(db)

	if db != nil {
		_, err := db.Get(paramsKey())
		switch {
		case err == nil:
			if loadErr := s.load(); loadErr != nil {
				return nil, fmt.Errorf("load ledger state: %w", loadErr)
			}
			return s, nil
		case !statestore.IsNotFound(err):
			return nil, fmt.Errorf("probe state store: %w", err)
		}
	}

	if gen == nil {
		return nil, ErrNoGenesis
	}
	if err := s.bootstrap(gen); err != nil {
		return nil, fmt.Errorf("bootstrap genesis: %w", err)
	}
	return s, nil
}

// load rebuilds the in-memory image from the backing database.
func (s *Store) load() error {
	raw, err := s.db.Get(paramsKey())
	if err != nil {
		return err
	}
	if err := statestore.Unmarshal(raw, &s.params); err != nil {
		return err
	}

	if err := s.db.ForEach([]byte{prefixBalance}, func(key, value []byte) error {
		asset, account, err := parseBalanceKey(key)
		if err != nil {
			return err
		}
		var bal amount.Amount
		if err := statestore.Unmarshal(value, &bal); err != nil {
			return err
		}
		byAcct, ok := s.balances[asset]
		if !ok {
			byAcct = make(map[types.AccountID]amount.Amount)
			s.balances[asset] = byAcct
		}
		byAcct[account] = bal
		return nil
	}); err != nil {
		return err
	}

	if err := s.db.ForEach([]byte{prefixSupply}, func(key, value []byte) error {
		var sup amount.Amount
		if err := statestore.Unmarshal(value, &sup); err != nil {
			return err
		}
		s.supply[types.Asset(key[1:])] = sup
		return nil
	}); err != nil {
		return err
	}

	if err := s.db.ForEach([]byte{prefixCategory}, func(key, value []byte) error {
		if len(key) != 2 {
			return fmt.Errorf("malformed category key %x", key)
		}
		var cs CategoryState
		if err := statestore.Unmarshal(value, &cs); err != nil {
			return err
		}
		s.categories[types.Category(key[1])] = cs
		return nil
	}); err != nil {
		return err
	}

	if err := s.db.ForEach([]byte{prefixPlan}, func(key, value []byte) error {
		if len(key) != 2 {
			return fmt.Errorf("malformed plan key %x", key)
		}
		var plan PayoutPlan
		if err := statestore.Unmarshal(value, &plan); err != nil {
			return err
		}
		s.plans[types.Category(key[1])] = plan
		return nil
	}); err != nil {
		return err
	}

	if err := s.db.ForEach([]byte{prefixMember}, func(key, value []byte) error {
		set, account, err := parseMemberKey(key)
		if err != nil {
			return err
		}
		members, ok := s.members[set]
		if !ok {
			return fmt.Errorf("unknown member set %d", set)
		}
		members[account] = struct{}{}
		return nil
	}); err != nil {
		return err
	}

	if err := s.db.ForEach([]byte{prefixClass}, func(key, value []byte) error {
		side, account, err := parseClassKey(key)
		if err != nil {
			return err
		}
		classes, ok := s.classes[side]
		if !ok {
			return fmt.Errorf("unknown class side %d", side)
		}
		var cat types.Category
		if err := statestore.Unmarshal(value, &cat); err != nil {
			return err
		}
		classes[account] = cat
		return nil
	}); err != nil {
		return err
	}

	return s.db.ForEach([]byte{prefixDistributed}, func(key, value []byte) error {
		kind, account, err := parseDistributedKey(key)
		if err != nil {
			return err
		}
		byAcct, ok := s.distributed[kind]
		if !ok {
			return fmt.Errorf("unknown distributed ledger kind %d", kind)
		}
		var amt amount.Amount
		if err := statestore.Unmarshal(value, &amt); err != nil {
			return err
		}
		byAcct[account] = amt
		return nil
	})
}

// Begin starts a write transaction. Exactly one transaction is open at a
// time; the caller must finish it with Commit or Discard.
func (s *Store) Begin() *Tx {
	s.writerMu.Lock()
	return newTx(s)
}

// --- read accessors -------------------------------------------------------

// BalanceOf returns the account's balance in the given asset.
func (s *Store) BalanceOf(asset types.Asset, account types.AccountID) amount.Amount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[asset][account]
}

// Supply returns the tracked total supply of the asset.
func (s *Store) Supply(asset types.Asset) amount.Amount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.supply[asset]
}

// Category returns the rate and accrual record for cat.
func (s *Store) Category(cat types.Category) CategoryState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.categories[cat]
}

// Plan returns a copy of the payout plan for cat, if one is configured.
func (s *Store) Plan(cat types.Category) (PayoutPlan, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	plan, ok := s.plans[cat]
	if !ok {
		return PayoutPlan{}, false
	}
	return plan.Clone(), true
}

// IsMember reports membership of account in the given registry.
func (s *Store) IsMember(set MemberSet, account types.AccountID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.members[set][account]
	return ok
}

// IsExempt reports whether the account is tax-exempt.
func (s *Store) IsExempt(account types.AccountID) bool {
	return s.IsMember(SetExempt, account)
}

// IsDenied reports whether the account is barred from taxed transfers.
func (s *Store) IsDenied(account types.AccountID) bool {
	return s.IsMember(SetDenied, account)
}

// Class returns the classification of account on the given side.
func (s *Store) Class(side ClassSide, account types.AccountID) (types.Category, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cat, ok := s.classes[side][account]
	return cat, ok
}

// Distributed returns the cumulative amount paid out to the account from
// the native or secondary distributed-value ledger.
func (s *Store) Distributed(secondary bool, account types.AccountID) amount.Amount {
	kind := distNative
	if secondary {
		kind = distSecondary
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.distributed[kind][account]
}

// Params returns a copy of the singleton parameter record.
func (s *Store) Params() Params {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params
}

// NativeAsset returns the ledger's own asset identity.
func (s *Store) NativeAsset() types.Asset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params.NativeAsset
}

// TreasuryBalance returns the treasury's native-asset balance.
func (s *Store) TreasuryBalance() amount.Amount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[s.params.NativeAsset][s.params.Treasury]
}

// Status is a consistent snapshot of the ledger-side treasury values.
type Status struct {
	NativeAsset     types.Asset
	SecondaryAsset  types.Asset
	Owner           types.AccountID
	Treasury        types.AccountID
	TreasuryBalance amount.Amount
	Frozen          bool
	Limits          Limits
	Threshold       amount.Amount
	Seq             uint64
}

// Snapshot returns a consistent multi-value snapshot under one read lock.
func (s *Store) Snapshot() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		NativeAsset:     s.params.NativeAsset,
		SecondaryAsset:  s.params.SecondaryAsset,
		Owner:           s.params.Owner,
		Treasury:        s.params.Treasury,
		TreasuryBalance: s.balances[s.params.NativeAsset][s.params.Treasury],
		Frozen:          s.params.Frozen,
		Limits:          s.params.Limits,
		Threshold:       s.params.Threshold,
		Seq:             s.params.Seq,
	}
}

// Stats returns backing-store counters, or zeroes for memory-only stores.
func (s *Store) Stats() statestore.Stats {
	if s.db == nil {
		return statestore.Stats{}
	}
	return s.db.Stats()
}

// Close syncs and closes the backing database, if any.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
