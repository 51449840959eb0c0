package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/levyledger/levyd/internal/core/ledger"
	"github.com/levyledger/levyd/internal/types"
)

// ledgerCollector reads ledger gauges at scrape time instead of mirroring
// them on every settlement.
type ledgerCollector struct {
	store *ledger.Store

	treasury *prometheus.Desc
	seq      *prometheus.Desc
	frozen   *prometheus.Desc
	supply   *prometheus.Desc
	taxPool  *prometheus.Desc
	rate     *prometheus.Desc
}

// WatchStore registers scrape-time gauges backed by the ledger store.
func (m *Metrics) WatchStore(store *ledger.Store) {
	m.registry.MustRegister(&ledgerCollector{
		store: store,
		treasury: prometheus.NewDesc(namespace+"_treasury_balance",
			"Native balance held by the treasury account.", nil, nil),
		seq: prometheus.NewDesc(namespace+"_settlement_sequence",
			"Sequence number of the most recent settlement.", nil, nil),
		frozen: prometheus.NewDesc(namespace+"_ledger_frozen",
			"1 while transfers are frozen.", nil, nil),
		supply: prometheus.NewDesc(namespace+"_asset_supply",
			"Outstanding supply per asset.", []string{"asset"}, nil),
		taxPool: prometheus.NewDesc(namespace+"_tax_pool",
			"Accrued, undistributed tax per category.", []string{"category"}, nil),
		rate: prometheus.NewDesc(namespace+"_tax_rate_bps",
			"Configured tax rate per category in basis points.", []string{"category"}, nil),
	})
}

func (c *ledgerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.treasury
	ch <- c.seq
	ch <- c.frozen
	ch <- c.supply
	ch <- c.taxPool
	ch <- c.rate
}

func (c *ledgerCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.store.Snapshot()

	ch <- prometheus.MustNewConstMetric(c.treasury, prometheus.GaugeValue,
		float64(snap.TreasuryBalance.Uint64()))
	ch <- prometheus.MustNewConstMetric(c.seq, prometheus.CounterValue,
		float64(snap.Seq))
	frozen := 0.0
	if snap.Frozen {
		frozen = 1
	}
	ch <- prometheus.MustNewConstMetric(c.frozen, prometheus.GaugeValue, frozen)

	ch <- prometheus.MustNewConstMetric(c.supply, prometheus.GaugeValue,
		float64(c.store.Supply(snap.NativeAsset).Uint64()), string(snap.NativeAsset))
	if snap.SecondaryAsset != "" {
		ch <- prometheus.MustNewConstMetric(c.supply, prometheus.GaugeValue,
			float64(c.store.Supply(snap.SecondaryAsset).Uint64()), string(snap.SecondaryAsset))
	}

	for _, cat := range types.Categories() {
		state := c.store.Category(cat)
		ch <- prometheus.MustNewConstMetric(c.taxPool, prometheus.GaugeValue,
			float64(state.Accrued.Uint64()), cat.String())
		ch <- prometheus.MustNewConstMetric(c.rate, prometheus.GaugeValue,
			float64(state.RateBps), cat.String())
	}
}
