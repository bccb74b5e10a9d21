package models

import "time"

// PollingSession records one polling cycle for a blockchain
type PollingSession struct {
	ID           string     `json:"id" db:"id"`
	BlockchainID int64      `json:"blockchain_id" db:"blockchain_id"`
	StartTime    time.Time  `json:"start_time" db:"start_time"`
	EndTime      *time.Time `json:"end_time,omitempty" db:"end_time"`
	Success      bool       `json:"success" db:"success"`
	DataPoints   int        `json:"data_points" db:"data_points"`
	Error        string     `json:"error,omitempty" db:"error"`
}

// Duration returns the session length, zero while still running
func (s *PollingSession) Duration() time.Duration {
	if s.EndTime == nil {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// PollingMetrics holds rolling aggregates across polling sessions
type PollingMetrics struct {
	BlockchainID       int64         `json:"blockchain_id"`
	TotalPolls         uint64        `json:"total_polls"`
	SuccessfulPolls    uint64        `json:"successful_polls"`
	FailedPolls        uint64        `json:"failed_polls"`
	AveragePollingTime time.Duration `json:"average_polling_time"`
	SuccessRate        float64       `json:"success_rate"`
	LastPollAt         *time.Time    `json:"last_poll_at,omitempty"`
}
