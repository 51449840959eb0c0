package levy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/levyledger/levyd/internal/core/amount"
	"github.com/levyledger/levyd/internal/core/ledger"
	"github.com/levyledger/levyd/internal/types"
)

type fakeDistributor struct {
	calls  []types.Category
	amt    amount.Amount
	res    Result
	err    error
	onCall func()
}

func (f *fakeDistributor) Distribute(ctx context.Context, cat types.Category) (amount.Amount, Result, error) {
	f.calls = append(f.calls, cat)
	if f.onCall != nil {
		f.onCall()
	}
	return f.amt, f.res, f.err
}

// sellEngine builds an engine with a sell-marked market account, a 1000 bps
// sell rate and a 500 threshold, then raises the treasury balance to the
// threshold through five sells.
func sellEngine(t *testing.T, dist Distributor) *Engine {
	t.Helper()
	store := newTestStore(t)
	e := New(store, WithDistributor(dist))

	setRate(t, e, types.CategorySell, 1000)
	_, err := e.SetClass(owner, ledger.SideReceiver, market, types.CategorySell)
	require.NoError(t, err)
	fund(t, e, alice, 100_000)

	tx := store.Begin()
	tx.SetThreshold(500)
	require.NoError(t, tx.Commit())

	for i := 0; i < 5; i++ {
		rcpt, err := e.ApplyTransfer(context.Background(), alice, alice, market, 1_000)
		require.NoError(t, err)
		require.Equal(t, Success, rcpt.Result)
	}
	require.Equal(t, amount.Amount(500), store.TreasuryBalance())
	return e
}

func TestSellAtThresholdTriggersDistribution(t *testing.T) {
	dist := &fakeDistributor{res: Success, amt: 500}
	e := sellEngine(t, dist)
	require.Empty(t, dist.calls, "threshold not reached during rampup")

	rcpt, err := e.ApplyTransfer(context.Background(), alice, alice, market, 1_000)
	require.NoError(t, err)

	assert.Equal(t, []types.Category{types.CategorySell}, dist.calls)
	assert.Equal(t, Success, rcpt.Result)
	assert.Equal(t, amount.Amount(600), e.Store().TreasuryBalance())
}

func TestConversionFailureFailsTheSale(t *testing.T) {
	dist := &fakeDistributor{res: ConversionFailed}
	e := sellEngine(t, dist)
	aliceBefore := e.Store().BalanceOf(native, alice)

	rcpt, err := e.ApplyTransfer(context.Background(), alice, alice, market, 1_000)
	require.NoError(t, err)

	assert.Equal(t, ConversionFailed, rcpt.Result)
	assert.Zero(t, rcpt.Seq)
	assert.Equal(t, aliceBefore, e.Store().BalanceOf(native, alice), "sale must not settle")
	assert.Len(t, dist.calls, 1)
}

func TestInFlightDistributionLetsTheSaleThrough(t *testing.T) {
	dist := &fakeDistributor{res: ReentrantDistribution}
	e := sellEngine(t, dist)

	rcpt, err := e.ApplyTransfer(context.Background(), alice, alice, market, 1_000)
	require.NoError(t, err)
	assert.Equal(t, Success, rcpt.Result)
	assert.Len(t, dist.calls, 1)
}

func TestDistributorErrorSurfaces(t *testing.T) {
	boom := errors.New("adapter wedged")
	dist := &fakeDistributor{err: boom}
	e := sellEngine(t, dist)

	rcpt, err := e.ApplyTransfer(context.Background(), alice, alice, market, 1_000)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, InternalFailure, rcpt.Result)
}

func TestSaleRevalidatedAfterDistribution(t *testing.T) {
	dist := &fakeDistributor{res: Success}
	e := sellEngine(t, dist)

	// The distribution window can change the world; here it freezes the
	// ledger, so the retried sale must be rejected.
	dist.onCall = func() {
		tx := e.Store().Begin()
		tx.SetFrozen(true)
		require.NoError(t, tx.Commit())
	}

	rcpt, err := e.ApplyTransfer(context.Background(), alice, alice, market, 1_000)
	require.NoError(t, err)
	assert.Equal(t, Frozen, rcpt.Result)
}

func TestNoTriggerCases(t *testing.T) {
	t.Run("plain transfers never trigger", func(t *testing.T) {
		dist := &fakeDistributor{res: Success}
		e := sellEngine(t, dist)
		_, err := e.ApplyTransfer(context.Background(), alice, alice, bob, 1_000)
		require.NoError(t, err)
		assert.Empty(t, dist.calls)
	})

	t.Run("zero threshold disables triggering", func(t *testing.T) {
		dist := &fakeDistributor{res: Success}
		e := sellEngine(t, dist)
		tx := e.Store().Begin()
		tx.SetThreshold(0)
		require.NoError(t, tx.Commit())

		rcpt, err := e.ApplyTransfer(context.Background(), alice, alice, market, 1_000)
		require.NoError(t, err)
		assert.Equal(t, Success, rcpt.Result)
		assert.Empty(t, dist.calls)
	})

	t.Run("no distributor wired", func(t *testing.T) {
		e := sellEngine(t, nil)
		rcpt, err := e.ApplyTransfer(context.Background(), alice, alice, market, 1_000)
		require.NoError(t, err)
		assert.Equal(t, Success, rcpt.Result)
	})
}
