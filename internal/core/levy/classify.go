package levy

import (
	"github.com/levyledger/levyd/internal/core/ledger"
	"github.com/levyledger/levyd/internal/types"
)

// Classification is the tax treatment resolved for one transfer.
type Classification struct {
	Category types.Category
	Taxed    bool
}

// classify resolves the category and taxability of a transfer from the
// registries visible through tx. Exemption of either party, or the treasury
// itself sending, makes the transfer untaxed. Otherwise the sender's
// sender-side mark picks the category and a receiver-side mark on the
// receiver overrides it; unmarked pairs fall back to the plain transfer
// category.
func classify(tx *ledger.Tx, sender, receiver types.AccountID) Classification {
	p := tx.Params()
	if sender == p.Treasury ||
		tx.IsMember(ledger.SetExempt, sender) ||
		tx.IsMember(ledger.SetExempt, receiver) {
		return Classification{Category: types.CategoryTransfer, Taxed: false}
	}

	cat := types.CategoryTransfer
	if c, ok := tx.Class(ledger.SideSender, sender); ok {
		cat = c
	}
	if c, ok := tx.Class(ledger.SideReceiver, receiver); ok {
		cat = c
	}
	return Classification{Category: cat, Taxed: true}
}
