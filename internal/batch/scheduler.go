package batch

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/stylusops/stylus-cache-monitor/internal/models"
	"github.com/stylusops/stylus-cache-monitor/internal/selector"
	"github.com/stylusops/stylus-cache-monitor/pkg/utils"
)

// Default batch processing parameters
const (
	DefaultBatchSize  = 50
	DefaultMaxRetries = 3
)

// TxSubmitter submits one batch of program addresses for bid placement.
// The wire format of the resulting transaction is the submitter's concern.
type TxSubmitter interface {
	SubmitBatch(ctx context.Context, blockchainID int64, addresses []common.Address) (txHash string, err error)
}

// Config controls one batch processing run
type Config struct {
	BatchSize       int           `json:"batch_size"`
	MaxRetries      int           `json:"max_retries"`
	RetryDelay      time.Duration `json:"retry_delay"`
	ParallelBatches int           `json:"parallel_batches"`
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.ParallelBatches < 1 {
		c.ParallelBatches = 1
	}
	return c
}

// Result records the outcome of one batch
type Result struct {
	BatchIndex int              `json:"batch_index"`
	Contracts  []common.Address `json:"contracts"`
	Success    bool             `json:"success"`
	TxHash     string           `json:"tx_hash,omitempty"`
	RetryCount int              `json:"retry_count"`
	Error      string           `json:"error,omitempty"`
	Duration   time.Duration    `json:"duration"`
}

// ProcessingResult aggregates a full run across all batches
type ProcessingResult struct {
	TotalBatches       int           `json:"total_batches"`
	SuccessfulBatches  int           `json:"successful_batches"`
	FailedBatches      int           `json:"failed_batches"`
	TotalContracts     int           `json:"total_contracts"`
	ProcessedContracts int           `json:"processed_contracts"`
	Results            []*Result     `json:"results"`
	TotalDuration      time.Duration `json:"total_duration"`
	Errors             []string      `json:"errors,omitempty"`
}

// FailureSink receives batches that exhausted their retries
type FailureSink interface {
	SaveBatchFailure(ctx context.Context, failure *models.BatchFailure) error
}

// Scheduler partitions selected contracts into batches and drives their
// submission with bounded retries. One bad batch never aborts the run.
type Scheduler struct {
	submitter TxSubmitter
	failures  FailureSink
	logger    *logrus.Logger
}

// NewScheduler creates a batch scheduler. failures may be nil.
func NewScheduler(submitter TxSubmitter, failures FailureSink) *Scheduler {
	return &Scheduler{
		submitter: submitter,
		failures:  failures,
		logger:    utils.GetLogger(),
	}
}

// Run submits every selected contract
// in batches of cfg.BatchSize. With ParallelBatches > 1, up to that many
// batches are in flight concurrently; within a batch submission is
// sequential.
func (s *Scheduler) Run(ctx context.Context, blockchainID int64, selected []selector.SelectedContract, cfg Config) *ProcessingResult {
	cfg = cfg.withDefaults()
	start := time.Now()

	addresses := make([]common.Address, len(selected))
	for i, sc := range selected {
		addresses[i] = sc.Address
	}

	items := partition(addresses, cfg.BatchSize, start)

	result := &ProcessingResult{
		TotalBatches:   len(items),
		TotalContracts: len(addresses),
		Results:        make([]*Result, len(items)),
	}
	if len(items) == 0 {
		result.TotalDuration = time.Since(start)
		return result
	}

	s.logger.WithFields(logrus.Fields{
		"blockchain_id": blockchainID,
		"contracts":     len(addresses),
		"batches":       len(items),
		"parallel":      cfg.ParallelBatches,
	}).Info("Starting batch submission run")

	queue := newWorkQueue(items)

	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(cfg.ParallelBatches)

	for i := 0; i < cfg.ParallelBatches; i++ {
		group.Go(func() error {
			for {
				item := queue.claim()
				if item == nil {
					return nil
				}

				batchResult := s.processBatch(groupCtx, blockchainID, item, cfg)

				mu.Lock()
				result.Results[item.BatchIndex] = batchResult
				if batchResult.Success {
					result.SuccessfulBatches++
					result.ProcessedContracts += len(item.Contracts)
				} else {
					result.FailedBatches++
					result.Errors = append(result.Errors, batchResult.Error)
				}
				mu.Unlock()
			}
		})
	}

	// Workers never return errors; partial failures are in the results.
	_ = group.Wait()

	result.TotalDuration = time.Since(start)

	s.logger.WithFields(logrus.Fields{
		"blockchain_id": blockchainID,
		"successful":    result.SuccessfulBatches,
		"failed":        result.FailedBatches,
		"duration":      result.TotalDuration,
	}).Info("Batch submission run finished")

	return result
}

// processBatch submits one batch with bounded retries. A batch either fully
// succeeds or is retried in full.
func (s *Scheduler) processBatch(ctx context.Context, blockchainID int64, item *models.BatchQueueItem, cfg Config) *Result {
	start := time.Now()

	batchResult := &Result{
		BatchIndex: item.BatchIndex,
		Contracts:  item.Contracts,
	}

	task := RetryTask{MaxRetries: cfg.MaxRetries, Delay: cfg.RetryDelay}
	retries, err := task.Run(ctx, func(attemptCtx context.Context, attempt int) error {
		txHash, submitErr := s.submitter.SubmitBatch(attemptCtx, blockchainID, item.Contracts)
		if submitErr != nil {
			s.logger.WithFields(logrus.Fields{
				"batch_index": item.BatchIndex,
				"attempt":     attempt,
				"error":       submitErr,
			}).Warn("Batch submission attempt failed")
			return submitErr
		}
		batchResult.TxHash = txHash
		return nil
	})

	item.RetryCount = retries
	batchResult.RetryCount = retries
	batchResult.Duration = time.Since(start)

	if err != nil {
		batchResult.Error = err.Error()
		s.recordFailure(ctx, blockchainID, item, err)
		return batchResult
	}

	batchResult.Success = true
	return batchResult
}

func (s *Scheduler) recordFailure(ctx context.Context, blockchainID int64, item *models.BatchQueueItem, err error) {
	if s.failures == nil {
		return
	}
	failure := &models.BatchFailure{
		ID:           item.ID,
		BlockchainID: blockchainID,
		BatchIndex:   item.BatchIndex,
		Contracts:    item.Contracts,
		RetryCount:   item.RetryCount,
		LastError:    err.Error(),
		FailedAt:     time.Now(),
	}
	if saveErr := s.failures.SaveBatchFailure(ctx, failure); saveErr != nil {
		s.logger.WithFields(logrus.Fields{
			"batch_index": item.BatchIndex,
			"error":       saveErr,
		}).Error("Failed to record batch failure")
	}
}
