package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/levyledger/levyd/internal/core/amount"
	"github.com/levyledger/levyd/internal/types"
)

// FixedRateConfig configures the built-in fixed-rate adapter.
type FixedRateConfig struct {
	// FromAsset and ToAsset are the only pair the adapter trades.
	FromAsset types.Asset `mapstructure:"from_asset"`
	ToAsset   types.Asset `mapstructure:"to_asset"`

	// RateNum/RateDen express the price: amountOut = amountIn × num / den,
	// before slippage.
	RateNum uint64 `mapstructure:"rate_num"`
	RateDen uint64 `mapstructure:"rate_den"`

	// SlippageBps is deducted from every quote, in basis points.
	SlippageBps uint32 `mapstructure:"slippage_bps"`

	// Liquidity caps the total ToAsset the adapter can deliver over its
	// lifetime. Zero means unlimited.
	Liquidity amount.Amount `mapstructure:"liquidity"`
}

// Validate checks the configuration.
func (c *FixedRateConfig) Validate() error {
	if err := c.FromAsset.Validate(); err != nil {
		return fmt.Errorf("from_asset: %w", err)
	}
	if err := c.ToAsset.Validate(); err != nil {
		return fmt.Errorf("to_asset: %w", err)
	}
	if c.RateNum == 0 || c.RateDen == 0 {
		return fmt.Errorf("rate %d/%d must be positive", c.RateNum, c.RateDen)
	}
	if c.SlippageBps >= amount.BpsDenominator {
		return fmt.Errorf("slippage %d bps would consume the whole quote", c.SlippageBps)
	}
	return nil
}

// FixedRate is a deterministic Adapter for development and single-node
// deployments: one asset pair, a constant price, optional slippage and a
// finite liquidity pool.
type FixedRate struct {
	cfg FixedRateConfig
	now func() time.Time

	mu        sync.Mutex
	delivered amount.Amount
}

// NewFixedRate builds the adapter. A nil clock uses time.Now.
func NewFixedRate(cfg FixedRateConfig, clock func() time.Time) (*FixedRate, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = time.Now
	}
	return &FixedRate{cfg: cfg, now: clock}, nil
}

// Name implements Adapter.
func (f *FixedRate) Name() string { return "fixedrate" }

// Remaining returns the liquidity still available, or the maximum amount
// when the pool is unlimited.
func (f *FixedRate) Remaining() amount.Amount {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cfg.Liquidity == 0 {
		return amount.MaxAmount
	}
	return f.cfg.Liquidity - f.delivered
}

// Convert implements Adapter.
func (f *FixedRate) Convert(ctx context.Context, req Request) (amount.Amount, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if req.FromAsset != f.cfg.FromAsset || req.ToAsset != f.cfg.ToAsset {
		return 0, fmt.Errorf("%w: %s/%s", ErrUnsupportedPair, req.FromAsset, req.ToAsset)
	}
	if !req.Deadline.IsZero() && f.now().After(req.Deadline) {
		return 0, ErrExpired
	}

	quote := amount.MulDiv(req.AmountIn, f.cfg.RateNum, f.cfg.RateDen)
	out := quote - quote.TaxAt(f.cfg.SlippageBps)
	if req.MinAcceptable > 0 && out < req.MinAcceptable {
		return 0, fmt.Errorf("%w: %v < %v", ErrBelowMinimum, out, req.MinAcceptable)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cfg.Liquidity > 0 && f.delivered+out > f.cfg.Liquidity {
		return 0, fmt.Errorf("%w: %v left", ErrInsufficientLiquidity, f.cfg.Liquidity-f.delivered)
	}
	f.delivered += out
	return out, nil
}
