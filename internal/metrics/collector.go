package metrics

import (
	"time"

	"hls-vault/internal/logging"
)

// StatsProvider supplies asset statistics for the collector, typically the
// database layer.
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds asset counts by lifecycle status.
type Stats struct {
	Uploaded   int
	Processing int
	Completed  int
	Failed     int
}

// Collector periodically collects and updates asset gauges.
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector.
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop.
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection.
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	AssetsByStatus.WithLabelValues("uploaded").Set(float64(stats.Uploaded))
	AssetsByStatus.WithLabelValues("processing").Set(float64(stats.Processing))
	AssetsByStatus.WithLabelValues("completed").Set(float64(stats.Completed))
	AssetsByStatus.WithLabelValues("failed").Set(float64(stats.Failed))

	logging.Debug("Metrics collected: uploaded=%d, processing=%d, completed=%d, failed=%d",
		stats.Uploaded, stats.Processing, stats.Completed, stats.Failed)
}
