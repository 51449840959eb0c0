package metrics

import (
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/levyledger/levyd/internal/core/amount"
	"github.com/levyledger/levyd/internal/core/ledger"
	"github.com/levyledger/levyd/internal/events"
	"github.com/levyledger/levyd/internal/types"
)

func acct(b byte) types.AccountID {
	var id types.AccountID
	id[0] = b
	return id
}

func gatherValue(t *testing.T, m *Metrics, name string, labels map[string]string) (float64, bool) {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
	metric:
		for _, mt := range fam.GetMetric() {
			for k, v := range labels {
				if !hasLabel(mt, k, v) {
					continue metric
				}
			}
			if mt.GetCounter() != nil {
				return mt.GetCounter().GetValue(), true
			}
			return mt.GetGauge().GetValue(), true
		}
	}
	return 0, false
}

func hasLabel(mt *dto.Metric, key, value string) bool {
	for _, lp := range mt.GetLabel() {
		if lp.GetName() == key && lp.GetValue() == value {
			return true
		}
	}
	return false
}

func TestObserveSettlement(t *testing.T) {
	m := New()

	m.ObserveSettlement(events.Settlement{
		Seq:      5,
		Category: "sell",
		Taxed:    true,
		Tax:      amount.New(100),
		Net:      amount.New(900),
		Result:   "Success",
	})

	v, ok := gatherValue(t, m, "levyd_settlements_total", map[string]string{"category": "sell", "result": "Success"})
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
	v, _ = gatherValue(t, m, "levyd_settled_value_total", map[string]string{"category": "sell"})
	assert.Equal(t, 900.0, v)
	v, _ = gatherValue(t, m, "levyd_tax_collected_total", map[string]string{"category": "sell"})
	assert.Equal(t, 100.0, v)

	// A rejection has no sequence number and moves no value.
	m.ObserveSettlement(events.Settlement{Category: "sell", Result: "Denied"})
	v, ok = gatherValue(t, m, "levyd_settlements_total", map[string]string{"category": "sell", "result": "Denied"})
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
	v, _ = gatherValue(t, m, "levyd_settled_value_total", map[string]string{"category": "sell"})
	assert.Equal(t, 900.0, v)
}

func TestUntaxedSettlementLabel(t *testing.T) {
	m := New()
	m.ObserveSettlement(events.Settlement{Seq: 1, Net: amount.New(50), Result: "Success"})
	v, ok := gatherValue(t, m, "levyd_settlements_total", map[string]string{"category": "untaxed", "result": "Success"})
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
}

func TestObserveDistribution(t *testing.T) {
	m := New()

	m.ObserveDistribution(events.Distribution{
		Category:     "sell",
		Distributed:  amount.New(200),
		ConvertedIn:  amount.New(100),
		SecondaryOut: amount.New(90),
		Result:       "Success",
		Payouts: []events.Payout{
			{Payee: acct(0x10), Asset: "LVY", Share: amount.New(100)},
			{Payee: acct(0x11), Asset: "USDX", Share: amount.New(90), Secondary: true},
		},
	})

	v, ok := gatherValue(t, m, "levyd_distributions_total", map[string]string{"category": "sell", "result": "Success"})
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
	v, _ = gatherValue(t, m, "levyd_converted_native_total", nil)
	assert.Equal(t, 100.0, v)
	v, _ = gatherValue(t, m, "levyd_converted_secondary_total", nil)
	assert.Equal(t, 90.0, v)
	v, _ = gatherValue(t, m, "levyd_payout_value_total", map[string]string{"asset": "LVY"})
	assert.Equal(t, 100.0, v)
	v, _ = gatherValue(t, m, "levyd_payout_value_total", map[string]string{"asset": "USDX"})
	assert.Equal(t, 90.0, v)
}

func TestWatchFeedsFromBus(t *testing.T) {
	m := New()
	bus := events.NewBus()
	stop := m.Watch(bus)
	defer stop()

	bus.Publish(events.Settlement{Seq: 1, Category: "buy", Net: amount.New(10), Result: "Success"})

	require.Eventually(t, func() bool {
		v, ok := gatherValue(t, m, "levyd_settlements_total", map[string]string{"category": "buy"})
		return ok && v == 1.0
	}, time.Second, 5*time.Millisecond)

	v, ok := gatherValue(t, m, "levyd_stream_dropped_events", nil)
	require.True(t, ok)
	assert.Equal(t, 0.0, v)
}

func TestLedgerCollectorGauges(t *testing.T) {
	store, err := ledger.Open(nil, &ledger.Genesis{
		NativeAsset:    "LVY",
		SecondaryAsset: "USDX",
		InitialSupply:  1_000_000,
		Owner:          acct(0x01),
		Treasury:       acct(0x02),
		Rates: map[types.Category]uint32{
			types.CategoryTransfer: 200,
			types.CategoryBuy:      300,
			types.CategorySell:     400,
		},
	})
	require.NoError(t, err)
	defer store.Close()

	m := New()
	m.WatchStore(store)

	v, ok := gatherValue(t, m, "levyd_asset_supply", map[string]string{"asset": "LVY"})
	require.True(t, ok)
	assert.Equal(t, 1_000_000.0, v)
	v, ok = gatherValue(t, m, "levyd_tax_rate_bps", map[string]string{"category": "sell"})
	require.True(t, ok)
	assert.Equal(t, 400.0, v)
	v, ok = gatherValue(t, m, "levyd_treasury_balance", nil)
	require.True(t, ok)
	assert.Equal(t, 0.0, v)
	v, ok = gatherValue(t, m, "levyd_ledger_frozen", nil)
	require.True(t, ok)
	assert.Equal(t, 0.0, v)
}
