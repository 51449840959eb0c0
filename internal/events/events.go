// Package events carries the notification records emitted by the ledger
// and treasury engines and fans them out to stream subscribers.
package events

import (
	"time"

	"github.com/levyledger/levyd/internal/core/amount"
	"github.com/levyledger/levyd/internal/types"
)

// Stream names a subscribable event feed.
type Stream string

const (
	// StreamSettlements carries one event per applied or rejected transfer.
	StreamSettlements Stream = "settlements"

	// StreamDistributions carries one event per finished distribution cycle.
	StreamDistributions Stream = "distributions"

	// StreamAdmin carries configuration and registry changes.
	StreamAdmin Stream = "admin"
)

// Event is implemented by every record published on the bus.
type Event interface {
	// Stream identifies the feed the event belongs to.
	Stream() Stream
}

// Settlement reports the outcome of one transfer.
type Settlement struct {
	Seq      uint64          `json:"seq,omitempty"`
	Time     time.Time       `json:"time"`
	Invoker  types.AccountID `json:"invoker"`
	Sender   types.AccountID `json:"sender"`
	Receiver types.AccountID `json:"receiver"`
	Amount   amount.Amount   `json:"amount"`
	Category string          `json:"category,omitempty"`
	Taxed    bool            `json:"taxed"`
	Tax      amount.Amount   `json:"tax"`
	Net      amount.Amount   `json:"net"`
	Result   string          `json:"result"`
}

func (Settlement) Stream() Stream { return StreamSettlements }

// Payout is one plan entry's share within a distribution cycle.
type Payout struct {
	Payee     types.AccountID `json:"payee"`
	Asset     types.Asset     `json:"asset"`
	Share     amount.Amount   `json:"share"`
	Secondary bool            `json:"secondary"`
}

// Distribution reports one treasury distribution cycle.
type Distribution struct {
	ID           string        `json:"id"`
	Time         time.Time     `json:"time"`
	Category     string        `json:"category"`
	Distributed  amount.Amount `json:"distributed"`
	ConvertedIn  amount.Amount `json:"converted_in"`
	SecondaryOut amount.Amount `json:"secondary_out"`
	Result       string        `json:"result"`
	Payouts      []Payout      `json:"payouts,omitempty"`
}

func (Distribution) Stream() Stream { return StreamDistributions }

// Admin reports a configuration or registry mutation.
type Admin struct {
	Time   time.Time       `json:"time"`
	Op     string          `json:"op"`
	Actor  types.AccountID `json:"actor"`
	Detail string          `json:"detail,omitempty"`
}

func (Admin) Stream() Stream { return StreamAdmin }
