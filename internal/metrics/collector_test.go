package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stylusops/stylus-cache-monitor/internal/models"
)

func session(blockchainID int64, start time.Time, d time.Duration, success bool) *models.PollingSession {
	end := start.Add(d)
	return &models.PollingSession{
		ID:           "s",
		BlockchainID: blockchainID,
		StartTime:    start,
		EndTime:      &end,
		Success:      success,
	}
}

func TestCollectorAggregatesSessions(t *testing.T) {
	c := NewCollector(nil)
	start := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)

	c.RecordSession(session(1, start, 100*time.Millisecond, true))
	c.RecordSession(session(1, start.Add(time.Minute), 300*time.Millisecond, true))
	c.RecordSession(session(1, start.Add(2*time.Minute), 200*time.Millisecond, false))

	m := c.Metrics(1)
	assert.Equal(t, uint64(3), m.TotalPolls)
	assert.Equal(t, uint64(2), m.SuccessfulPolls)
	assert.Equal(t, uint64(1), m.FailedPolls)
	assert.Equal(t, 200*time.Millisecond, m.AveragePollingTime)
	assert.InDelta(t, 2.0/3.0, m.SuccessRate, 1e-9)
	require.NotNil(t, m.LastPollAt)
	assert.Equal(t, start.Add(2*time.Minute), *m.LastPollAt)
}

func TestCollectorSeparatesBlockchains(t *testing.T) {
	c := NewCollector(nil)
	start := time.Now()

	c.RecordSession(session(1, start, time.Millisecond, true))
	c.RecordSession(session(2, start, time.Millisecond, false))

	assert.Equal(t, uint64(1), c.Metrics(1).SuccessfulPolls)
	assert.Equal(t, uint64(1), c.Metrics(2).FailedPolls)
	assert.Len(t, c.AllMetrics(), 2)
}

func TestCollectorUnknownBlockchainIsZero(t *testing.T) {
	c := NewCollector(nil)
	m := c.Metrics(42)
	assert.Equal(t, uint64(0), m.TotalPolls)
	assert.Zero(t, m.SuccessRate)
	assert.Nil(t, m.LastPollAt)
}
