// Package metrics exports hash table statistics to Prometheus.
package metrics

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/theflywheel/dhash"
)

// StatsSource is implemented by dhash.Table and concurrent.Table.
type StatsSource interface {
	Stats() dhash.Stats
}

// Collector reads a table's stats on every scrape. The source must be safe
// to call from the scraping goroutine.
type Collector struct {
	src StatsSource

	entries    *prometheus.Desc
	capacity   *prometheus.Desc
	tombstones *prometheus.Desc
	loadFactor *prometheus.Desc
	resizes    *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector for src. Every metric carries labels.
func NewCollector(namespace string, src StatsSource, labels prometheus.Labels) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "table", name), help, nil, labels)
	}
	return &Collector{
		src:        src,
		entries:    desc("entries", "Number of occupied slots."),
		capacity:   desc("capacity", "Number of slots."),
		tombstones: desc("tombstones", "Number of removed slots awaiting the next resize."),
		loadFactor: desc("load_factor", "Ratio of occupied slots to capacity."),
		resizes:    desc("resizes_total", "Number of completed resizes."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entries
	ch <- c.capacity
	ch <- c.tombstones
	ch <- c.loadFactor
	ch <- c.resizes
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st := c.src.Stats()
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(st.Len))
	ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(st.Capacity))
	ch <- prometheus.MustNewConstMetric(c.tombstones, prometheus.GaugeValue, float64(st.Tombstones))
	ch <- prometheus.MustNewConstMetric(c.loadFactor, prometheus.GaugeValue, st.LoadFactor)
	ch <- prometheus.MustNewConstMetric(c.resizes, prometheus.CounterValue, float64(st.Resizes))
}

// WriteText gathers g and writes the result in the Prometheus text format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	mfs, err := g.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to write metric family %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
