package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/reactive/pkg/reactive"
)

// statsCollector reads Runtime.Stats on every scrape.
type statsCollector struct {
	rt       *reactive.Runtime
	live     *prometheus.Desc
	scopes   *prometheus.Desc
	inflight *prometheus.Desc
	capacity *prometheus.Desc
}

func newStatsCollector(rt *reactive.Runtime, config Config) *statsCollector {
	name := func(n string) string {
		return prometheus.BuildFQName(config.Namespace, config.Subsystem, n)
	}
	return &statsCollector{
		rt:       rt,
		live:     prometheus.NewDesc(name("resources_live"), "Live arena resources by kind", []string{"kind"}, config.ConstLabels),
		scopes:   prometheus.NewDesc(name("scopes_live"), "Live scopes", nil, config.ConstLabels),
		inflight: prometheus.NewDesc(name("effects_inflight"), "Effects whose closure is executing", nil, config.ConstLabels),
		capacity: prometheus.NewDesc(name("arena_capacity"), "Allocated arena slots, live or free", nil, config.ConstLabels),
	}
}

// Describe implements prometheus.Collector.
func (c *statsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.live
	ch <- c.scopes
	ch <- c.inflight
	ch <- c.capacity
}

// Collect implements prometheus.Collector.
func (c *statsCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.rt.Stats()

	for _, k := range []struct {
		kind reactive.Kind
		n    int
	}{
		{reactive.KindValue, st.Values},
		{reactive.KindEmitter, st.Emitters},
		{reactive.KindEffect, st.Effects},
		{reactive.KindCallback, st.Callbacks},
	} {
		ch <- prometheus.MustNewConstMetric(c.live, prometheus.GaugeValue, float64(k.n), k.kind.String())
	}
	ch <- prometheus.MustNewConstMetric(c.scopes, prometheus.GaugeValue, float64(st.Scopes))
	ch <- prometheus.MustNewConstMetric(c.inflight, prometheus.GaugeValue, float64(st.Inflight))
	ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(st.Capacity))
}
