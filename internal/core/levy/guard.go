package levy

import (
	"github.com/levyledger/levyd/internal/core/amount"
	"github.com/levyledger/levyd/internal/core/ledger"
	"github.com/levyledger/levyd/internal/types"
)

// guard runs the pre-settlement admission checks for a transfer. The check
// order is part of the observable contract: the first failing check decides
// the result.
func guard(tx *ledger.Tx, invoker, sender, receiver types.AccountID, amt amount.Amount, cls Classification) Result {
	p := tx.Params()

	if p.Frozen &&
		!tx.IsMember(ledger.SetExempt, invoker) &&
		!tx.IsMember(ledger.SetExempt, sender) &&
		!tx.IsMember(ledger.SetExempt, receiver) {
		return Frozen
	}
	if tx.Balance(p.NativeAsset, sender) < amt {
		return InsufficientBalance
	}
	if amt == 0 {
		return ZeroAmount
	}
	if cls.Taxed {
		if p.Limits.MaxTransfer > 0 && amt > p.Limits.MaxTransfer {
			return ExceedsMaxTransfer
		}
		if tx.IsMember(ledger.SetDenied, invoker) || tx.IsMember(ledger.SetDenied, receiver) {
			return Denied
		}
	}
	return Success
}

// wouldExceedWallet applies the receiver balance ceiling. Sales are exempt
// so that payments into marked market accounts are never capped.
func wouldExceedWallet(tx *ledger.Tx, receiver types.AccountID, net amount.Amount, cls Classification) bool {
	p := tx.Params()
	if !cls.Taxed || cls.Category == types.CategorySell || p.Limits.MaxWallet == 0 {
		return false
	}
	return tx.Balance(p.NativeAsset, receiver)+net > p.Limits.MaxWallet
}
