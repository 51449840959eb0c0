// Package metrics exposes levyd's operational counters to prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/levyledger/levyd/internal/events"
)

const namespace = "levyd"

// Metrics owns the prometheus registry and the event-fed collectors.
// Ledger-side gauges are pulled at scrape time by the collector registered
// through WatchStore; everything else is pushed from the event bus.
type Metrics struct {
	registry *prometheus.Registry

	settlements   *prometheus.CounterVec
	settledValue  *prometheus.CounterVec
	taxCollected  *prometheus.CounterVec
	distributions *prometheus.CounterVec
	payoutValue   *prometheus.CounterVec
	convertedIn   prometheus.Counter
	convertedOut  prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_total",
			Help:      "Transfer attempts by category and result code.",
		}, []string{"category", "result"}),
		settledValue: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settled_value_total",
			Help:      "Net value delivered to receivers, by category.",
		}, []string{"category"}),
		taxCollected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tax_collected_total",
			Help:      "Tax withheld into the treasury, by category.",
		}, []string{"category"}),
		distributions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "distributions_total",
			Help:      "Distribution cycles by category and result code.",
		}, []string{"category", "result"}),
		payoutValue: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payout_value_total",
			Help:      "Value paid to plan payees, by asset.",
		}, []string{"asset"}),
		convertedIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "converted_native_total",
			Help:      "Native value handed to the exchange adapter.",
		}),
		convertedOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "converted_secondary_total",
			Help:      "Secondary value received from the exchange adapter.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.settlements,
		m.settledValue,
		m.taxCollected,
		m.distributions,
		m.payoutValue,
		m.convertedIn,
		m.convertedOut,
	)
	return m
}

// Registry returns the registry backing the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveSettlement records one transfer attempt. Rejections carry no
// sequence number and contribute only to the attempt counter.
func (m *Metrics) ObserveSettlement(ev events.Settlement) {
	cat := ev.Category
	if cat == "" {
		cat = "untaxed"
	}
	m.settlements.WithLabelValues(cat, ev.Result).Inc()
	if ev.Seq == 0 {
		return
	}
	m.settledValue.WithLabelValues(cat).Add(float64(ev.Net.Uint64()))
	if ev.Taxed {
		m.taxCollected.WithLabelValues(cat).Add(float64(ev.Tax.Uint64()))
	}
}

// ObserveDistribution records one finished distribution cycle.
func (m *Metrics) ObserveDistribution(ev events.Distribution) {
	m.distributions.WithLabelValues(ev.Category, ev.Result).Inc()
	m.convertedIn.Add(float64(ev.ConvertedIn.Uint64()))
	m.convertedOut.Add(float64(ev.SecondaryOut.Uint64()))
	for _, p := range ev.Payouts {
		m.payoutValue.WithLabelValues(string(p.Asset)).Add(float64(p.Share.Uint64()))
	}
}

// Watch subscribes to the bus and feeds the event-driven collectors until
// the subscription is closed. It also surfaces the bus drop counter as a
// gauge. The returned function detaches the subscription.
func (m *Metrics) Watch(bus *events.Bus) func() {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "stream_dropped_events",
		Help:      "Events discarded because a subscriber buffer was full.",
	}, func() float64 {
		return float64(bus.Dropped())
	}))

	sub := bus.Subscribe(events.DefaultBuffer, events.StreamSettlements, events.StreamDistributions)
	go func() {
		for ev := range sub.C() {
			switch e := ev.(type) {
			case events.Settlement:
				m.ObserveSettlement(e)
			case events.Distribution:
				m.ObserveDistribution(e)
			}
		}
	}()
	return sub.Close
}
