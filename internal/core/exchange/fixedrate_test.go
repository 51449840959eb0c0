package exchange

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/levyledger/levyd/internal/core/amount"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newAdapter(t *testing.T, cfg FixedRateConfig, now time.Time) *FixedRate {
	t.Helper()
	f, err := NewFixedRate(cfg, fixedClock(now))
	require.NoError(t, err)
	return f
}

func TestFixedRateConvert(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	f := newAdapter(t, FixedRateConfig{
		FromAsset: "LVY",
		ToAsset:   "USDX",
		RateNum:   9,
		RateDen:   10,
	}, now)

	out, err := f.Convert(context.Background(), Request{
		FromAsset: "LVY",
		ToAsset:   "USDX",
		AmountIn:  100,
	})
	require.NoError(t, err)
	assert.Equal(t, amount.Amount(90), out)
}

func TestFixedRateSlippage(t *testing.T) {
	f := newAdapter(t, FixedRateConfig{
		FromAsset:   "LVY",
		ToAsset:     "USDX",
		RateNum:     1,
		RateDen:     1,
		SlippageBps: 100, // 1%
	}, time.Now())

	out, err := f.Convert(context.Background(), Request{
		FromAsset: "LVY",
		ToAsset:   "USDX",
		AmountIn:  10_000,
	})
	require.NoError(t, err)
	assert.Equal(t, amount.Amount(9_900), out)
}

func TestFixedRateRejections(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	base := FixedRateConfig{FromAsset: "LVY", ToAsset: "USDX", RateNum: 1, RateDen: 1}

	t.Run("unsupported pair", func(t *testing.T) {
		f := newAdapter(t, base, now)
		_, err := f.Convert(context.Background(), Request{FromAsset: "LVY", ToAsset: "EURX", AmountIn: 1})
		assert.ErrorIs(t, err, ErrUnsupportedPair)
	})

	t.Run("past deadline", func(t *testing.T) {
		f := newAdapter(t, base, now)
		_, err := f.Convert(context.Background(), Request{
			FromAsset: "LVY", ToAsset: "USDX", AmountIn: 1,
			Deadline: now.Add(-time.Second),
		})
		assert.ErrorIs(t, err, ErrExpired)
	})

	t.Run("below minimum", func(t *testing.T) {
		f := newAdapter(t, base, now)
		_, err := f.Convert(context.Background(), Request{
			FromAsset: "LVY", ToAsset: "USDX", AmountIn: 50, MinAcceptable: 51,
		})
		assert.ErrorIs(t, err, ErrBelowMinimum)
	})

	t.Run("cancelled context", func(t *testing.T) {
		f := newAdapter(t, base, now)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := f.Convert(ctx, Request{FromAsset: "LVY", ToAsset: "USDX", AmountIn: 1})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestFixedRateLiquidityDrains(t *testing.T) {
	cfg := FixedRateConfig{FromAsset: "LVY", ToAsset: "USDX", RateNum: 1, RateDen: 1, Liquidity: 150}
	f := newAdapter(t, cfg, time.Now())

	out, err := f.Convert(context.Background(), Request{FromAsset: "LVY", ToAsset: "USDX", AmountIn: 100})
	require.NoError(t, err)
	assert.Equal(t, amount.Amount(100), out)
	assert.Equal(t, amount.Amount(50), f.Remaining())

	_, err = f.Convert(context.Background(), Request{FromAsset: "LVY", ToAsset: "USDX", AmountIn: 100})
	assert.ErrorIs(t, err, ErrInsufficientLiquidity)
}

func TestFixedRateConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*FixedRateConfig)
	}{
		{"missing from asset", func(c *FixedRateConfig) { c.FromAsset = "" }},
		{"missing to asset", func(c *FixedRateConfig) { c.ToAsset = "" }},
		{"zero numerator", func(c *FixedRateConfig) { c.RateNum = 0 }},
		{"zero denominator", func(c *FixedRateConfig) { c.RateDen = 0 }},
		{"slippage eats quote", func(c *FixedRateConfig) { c.SlippageBps = amount.BpsDenominator }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := FixedRateConfig{FromAsset: "LVY", ToAsset: "USDX", RateNum: 1, RateDen: 1}
			tc.mutate(&cfg)
			_, err := NewFixedRate(cfg, nil)
			assert.Error(t, err)
		})
	}
}
