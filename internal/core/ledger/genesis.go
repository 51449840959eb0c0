package ledger

import (
	"errors"
	"fmt"

	"github.com/levyledger/levyd/internal/core/amount"
	"github.com/levyledger/levyd/internal/types"
)

// Genesis describes the initial state of a fresh ledger.
type Genesis struct {
	NativeAsset    types.Asset              `mapstructure:"native_asset"`
	SecondaryAsset types.Asset              `mapstructure:"secondary_asset"`
	InitialSupply  amount.Amount            `mapstructure:"initial_supply"`
	SupplyHolder   types.AccountID          `mapstructure:"-"`
	Owner          types.AccountID          `mapstructure:"-"`
	Treasury       types.AccountID          `mapstructure:"-"`
	Rates          map[types.Category]uint32 `mapstructure:"-"`
	MaxTransfer    amount.Amount            `mapstructure:"max_transfer"`
	MaxWallet      amount.Amount            `mapstructure:"max_wallet"`
	Threshold      amount.Amount            `mapstructure:"threshold"`
}

// Validate checks the genesis configuration for internal consistency.
func (g *Genesis) Validate() error {
	if err := g.NativeAsset.Validate(); err != nil {
		return fmt.Errorf("native asset: %w", err)
	}
	if g.SecondaryAsset != "" {
		if err := g.SecondaryAsset.Validate(); err != nil {
			return fmt.Errorf("secondary asset: %w", err)
		}
		if g.SecondaryAsset == g.NativeAsset {
			return errors.New("secondary asset must differ from native asset")
		}
	}
	if g.Owner.IsZero() {
		return errors.New("owner account is required")
	}
	if g.Treasury.IsZero() {
		return errors.New("treasury account is required")
	}
	for cat, rate := range g.Rates {
		if !cat.Valid() {
			return fmt.Errorf("rate for unknown category %d", cat)
		}
		if rate > MaxRateBps {
			return fmt.Errorf("rate %d bps for %s exceeds cap %d", rate, cat, MaxRateBps)
		}
	}
	return nil
}

// bootstrap writes the genesis state through a regular transaction so that
// a fresh database and a fresh in-memory image are produced by the same
// code path as any later write.
func (s *Store) bootstrap(gen *Genesis) error {
	if err := gen.Validate(); err != nil {
		return err
	}

	holder := gen.SupplyHolder
	if holder.IsZero() {
		holder = gen.Owner
	}

	tx := s.Begin()
	defer tx.Discard()

	tx.params = Params{
		NativeAsset:    gen.NativeAsset,
		SecondaryAsset: gen.SecondaryAsset,
		Owner:          gen.Owner,
		Treasury:       gen.Treasury,
		Limits: Limits{
			MaxTransfer: gen.MaxTransfer,
			MaxWallet:   gen.MaxWallet,
		},
		Threshold: gen.Threshold,
	}
	tx.paramsDirty = true

	if gen.InitialSupply > 0 {
		if err := tx.Mint(gen.NativeAsset, holder, gen.InitialSupply); err != nil {
			return err
		}
	}
	for _, cat := range types.Categories() {
		cs := CategoryState{}
		if rate, ok := gen.Rates[cat]; ok {
			cs.RateBps = rate
		}
		tx.SetCategoryState(cat, cs)
	}

	// The administrative and treasury accounts never pay tax on their own
	// movements; marking them here keeps distribution payouts untaxed.
	tx.SetMember(SetExempt, gen.Owner, true)
	tx.SetMember(SetExempt, gen.Treasury, true)

	return tx.Commit()
}
