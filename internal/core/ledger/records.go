// Package ledger holds the authoritative state of a levyd node: multi-asset
// balances, category records, payout plans, registries and the treasury
// parameters. All mutation flows through short-lived transactions that
// commit atomically to memory and to the backing state store.
package ledger

import (
	"github.com/levyledger/levyd/internal/core/amount"
	"github.com/levyledger/levyd/internal/types"
)

// MaxRateBps is the hard ceiling on any category tax rate: 2000 basis
// points, one fifth of the transfer. No administrative operation may set a
// rate above it.
const MaxRateBps uint32 = 2000

// CategoryState is the per-category ledger record: the current tax rate and
// the tax collected but not yet distributed.
type CategoryState struct {
	RateBps uint32        `codec:"rate_bps"`
	Accrued amount.Amount `codec:"accrued"`
}

// PlanEntry is one payout in a distribution plan.
type PlanEntry struct {
	Payee   types.AccountID `codec:"payee"`
	Asset   types.Asset     `codec:"asset"`
	Percent uint32          `codec:"percent"`
}

// PayoutPlan is the ordered list of payouts for one category. A valid plan's
// percentages sum to exactly 100; validation happens at configuration time,
// the ledger stores plans as given.
type PayoutPlan struct {
	Entries []PlanEntry `codec:"entries"`
}

// SumPercent returns the sum of all entry percentages.
func (p PayoutPlan) SumPercent() uint32 {
	var sum uint32
	for _, e := range p.Entries {
		sum += e.Percent
	}
	return sum
}

// Clone returns a deep copy of the plan.
func (p PayoutPlan) Clone() PayoutPlan {
	out := PayoutPlan{Entries: make([]PlanEntry, len(p.Entries))}
	copy(out.Entries, p.Entries)
	return out
}

// Limits are the transfer ceilings. Zero disables a ceiling.
type Limits struct {
	MaxTransfer amount.Amount `codec:"max_transfer"`
	MaxWallet   amount.Amount `codec:"max_wallet"`
}

// Params is the singleton parameter record of the ledger.
type Params struct {
	NativeAsset    types.Asset     `codec:"native_asset"`
	SecondaryAsset types.Asset     `codec:"secondary_asset"`
	Owner          types.AccountID `codec:"owner"`
	Treasury       types.AccountID `codec:"treasury"`
	Frozen         bool            `codec:"frozen"`
	Limits         Limits          `codec:"limits"`
	Threshold      amount.Amount   `codec:"threshold"`
	Seq            uint64          `codec:"seq"`
}

// MemberSet names an account registry.
type MemberSet uint8

const (
	// SetExempt holds accounts whose transfers are never taxed or frozen out.
	SetExempt MemberSet = 1
	// SetDenied holds accounts barred from taxed transfers.
	SetDenied MemberSet = 2
)

func (s MemberSet) String() string {
	switch s {
	case SetExempt:
		return "exempt"
	case SetDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// ClassSide names which side of a transfer a classification rule applies to.
type ClassSide uint8

const (
	// SideSender classifies transfers originating from the account.
	SideSender ClassSide = 1
	// SideReceiver classifies transfers toward the account; it overrides
	// the sender-side classification.
	SideReceiver ClassSide = 2
)

func (s ClassSide) String() string {
	switch s {
	case SideSender:
		return "sender"
	case SideReceiver:
		return "receiver"
	default:
		return "unknown"
	}
}
