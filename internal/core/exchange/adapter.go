// Package exchange defines the boundary to external asset conversion.
// The treasury hands native value to an Adapter and credits whatever
// quantity of the secondary asset the adapter reports back; everything
// behind the adapter (order books, pools, bridges) is out of scope.
package exchange

import (
	"context"
	"errors"
	"time"

	"github.com/levyledger/levyd/internal/core/amount"
	"github.com/levyledger/levyd/internal/types"
)

var (
	// ErrUnsupportedPair reports an asset pair the adapter cannot trade.
	ErrUnsupportedPair = errors.New("exchange: unsupported asset pair")

	// ErrExpired reports a conversion attempted past its deadline.
	ErrExpired = errors.New("exchange: deadline exceeded")

	// ErrBelowMinimum reports an outcome under the caller's floor.
	ErrBelowMinimum = errors.New("exchange: output below acceptable minimum")

	// ErrInsufficientLiquidity reports an exhausted counter-asset pool.
	ErrInsufficientLiquidity = errors.New("exchange: insufficient liquidity")
)

// Request describes one conversion.
type Request struct {
	// FromAsset is the asset surrendered to the adapter.
	FromAsset types.Asset

	// ToAsset is the asset to be delivered.
	ToAsset types.Asset

	// AmountIn is the quantity of FromAsset handed over.
	AmountIn amount.Amount

	// MinAcceptable fails the conversion when the deliverable quantity is
	// below it. Zero disables the floor.
	MinAcceptable amount.Amount

	// Recipient is the account the proceeds are delivered for.
	Recipient types.AccountID

	// Deadline fails the conversion when it cannot complete in time.
	// The zero time disables it.
	Deadline time.Time
}

// Adapter converts between assets on behalf of the treasury.
type Adapter interface {
	// Convert executes the request and returns the quantity of ToAsset
	// delivered. A nil error with a zero quantity is treated as a failed
	// conversion by the caller.
	Convert(ctx context.Context, req Request) (amount.Amount, error)

	// Name identifies the adapter in logs and status output.
	Name() string
}
