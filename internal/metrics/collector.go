package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/stylusops/stylus-cache-monitor/internal/batch"
	"github.com/stylusops/stylus-cache-monitor/internal/models"
)

// chainStats holds the rolling aggregates for one blockchain
type chainStats struct {
	totalPolls      uint64
	successfulPolls uint64
	failedPolls     uint64
	totalDuration   time.Duration
	lastPollAt      time.Time
}

// Collector aggregates polling sessions and batch runs into rolling
// in-memory metrics and mirrors them to Prometheus. It is safe for
// concurrent use; prom may be nil in tests to skip registry writes.
type Collector struct {
	prom *PrometheusMetrics

	mu       sync.Mutex
	names    map[int64]string
	perChain map[int64]*chainStats
}

// NewCollector creates a collector backed by the given Prometheus metrics
func NewCollector(prom *PrometheusMetrics) *Collector {
	return &Collector{
		prom:     prom,
		names:    make(map[int64]string),
		perChain: make(map[int64]*chainStats),
	}
}

// RegisterBlockchain maps a blockchain id to the label used in metrics
func (c *Collector) RegisterBlockchain(id int64, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names[id] = name
}

// RecordSession ingests one finished polling session
func (c *Collector) RecordSession(session *models.PollingSession) {
	if session == nil {
		return
	}
	duration := session.Duration()

	c.mu.Lock()
	stats := c.statsLocked(session.BlockchainID)
	stats.totalPolls++
	if session.Success {
		stats.successfulPolls++
	} else {
		stats.failedPolls++
	}
	stats.totalDuration += duration
	stats.lastPollAt = session.StartTime
	name := c.nameLocked(session.BlockchainID)
	c.mu.Unlock()

	if c.prom != nil {
		c.prom.RecordPollingCycle(name, session.Success, duration)
	}
}

// ObserveBatchRun ingests the outcome of one batch submission run
func (c *Collector) ObserveBatchRun(blockchainID int64, result *batch.ProcessingResult) {
	if result == nil || c.prom == nil {
		return
	}
	c.mu.Lock()
	name := c.nameLocked(blockchainID)
	c.mu.Unlock()

	for _, r := range result.Results {
		if r == nil {
			continue
		}
		c.prom.RecordBatch(name, r.Success, r.RetryCount, r.Duration)
	}
}

// Metrics returns the rolling aggregates for one blockchain
func (c *Collector) Metrics(blockchainID int64) *models.PollingMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := &models.PollingMetrics{BlockchainID: blockchainID}
	stats, ok := c.perChain[blockchainID]
	if !ok {
		return out
	}

	out.TotalPolls = stats.totalPolls
	out.SuccessfulPolls = stats.successfulPolls
	out.FailedPolls = stats.failedPolls
	if stats.totalPolls > 0 {
		out.AveragePollingTime = stats.totalDuration / time.Duration(stats.totalPolls)
		out.SuccessRate = float64(stats.successfulPolls) / float64(stats.totalPolls)
	}
	if !stats.lastPollAt.IsZero() {
		last := stats.lastPollAt
		out.LastPollAt = &last
	}
	return out
}

// AllMetrics returns aggregates for every blockchain seen so far
func (c *Collector) AllMetrics() []*models.PollingMetrics {
	c.mu.Lock()
	ids := make([]int64, 0, len(c.perChain))
	for id := range c.perChain {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	out := make([]*models.PollingMetrics, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.Metrics(id))
	}
	return out
}

func (c *Collector) statsLocked(blockchainID int64) *chainStats {
	stats, ok := c.perChain[blockchainID]
	if !ok {
		stats = &chainStats{}
		c.perChain[blockchainID] = stats
	}
	return stats
}

func (c *Collector) nameLocked(blockchainID int64) string {
	if name, ok := c.names[blockchainID]; ok {
		return name
	}
	return strconv.FormatInt(blockchainID, 10)
}
