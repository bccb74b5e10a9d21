package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// BatchQueueItem is one unit of work on the batch submission queue.
// It lives until terminal success or until retries are exhausted, at which
// point it is converted to a BatchFailure record.
type BatchQueueItem struct {
	ID          string           `json:"id"`
	Contracts   []common.Address `json:"contracts"`
	BatchIndex  int              `json:"batch_index"`
	RetryCount  int              `json:"retry_count"`
	Priority    int              `json:"priority"`
	CreatedAt   time.Time        `json:"created_at"`
	ScheduledAt time.Time        `json:"scheduled_at"`
}

// BatchFailure records a batch that exhausted its retries
type BatchFailure struct {
	ID           string           `json:"id" db:"id"`
	BlockchainID int64            `json:"blockchain_id" db:"blockchain_id"`
	BatchIndex   int              `json:"batch_index" db:"batch_index"`
	Contracts    []common.Address `json:"contracts" db:"contracts"`
	RetryCount   int              `json:"retry_count" db:"retry_count"`
	LastError    string           `json:"last_error" db:"last_error"`
	FailedAt     time.Time        `json:"failed_at" db:"failed_at"`
}
