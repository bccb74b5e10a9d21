package automation

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/stylusops/stylus-cache-monitor/internal/alerting"
	"github.com/stylusops/stylus-cache-monitor/internal/batch"
	"github.com/stylusops/stylus-cache-monitor/internal/bidding"
	"github.com/stylusops/stylus-cache-monitor/internal/models"
	"github.com/stylusops/stylus-cache-monitor/internal/poller"
	"github.com/stylusops/stylus-cache-monitor/internal/selector"
	"github.com/stylusops/stylus-cache-monitor/pkg/utils"
)

const (
	// DefaultSubmitQueueSize bounds the backlog of pending batch runs.
	DefaultSubmitQueueSize = 16
	// DefaultSubmitTimeout limits one queued batch run end to end.
	DefaultSubmitTimeout = 2 * time.Minute
)

// CriteriaStore provides per-contract selection criteria for a blockchain
type CriteriaStore interface {
	GetSelectionCriteria(ctx context.Context, blockchainID int64) (map[common.Address]*models.ContractSelectionCriteria, error)
}

// BatchObserver receives the outcome of each completed batch run
type BatchObserver interface {
	ObserveBatchRun(blockchainID int64, result *batch.ProcessingResult)
}

// Config controls the automation pipeline
type Config struct {
	Batch           batch.Config
	Bounds          bidding.Bounds
	SubmitQueueSize int
	SubmitTimeout   time.Duration
}

// CycleOutcome summarizes one processed polling cycle
type CycleOutcome struct {
	BlockchainID     int64                      `json:"blockchain_id"`
	Selection        *selector.Result           `json:"selection"`
	Assessments      []*bidding.Assessment      `json:"assessments,omitempty"`
	Conditions       int                        `json:"conditions"`
	Evaluation       *alerting.EvaluationResult `json:"evaluation,omitempty"`
	SubmissionQueued bool                       `json:"submission_queued"`
}

type submissionJob struct {
	blockchainID int64
	selected     []selector.SelectedContract
}

// Service drives the per-cycle pipeline: selection, bid assessment, batch
// submission, and alert evaluation. Submission runs on a background worker
// so a slow relay never delays the next polling cycle.
type Service struct {
	selector  *selector.Selector
	scheduler *batch.Scheduler
	engine    *alerting.Engine
	criteria  CriteriaStore
	observer  BatchObserver
	cfg       Config
	logger    *logrus.Logger

	jobs chan submissionJob
	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// New creates the automation service. observer may be nil.
func New(criteria CriteriaStore, scheduler *batch.Scheduler, engine *alerting.Engine, observer BatchObserver, cfg Config) *Service {
	if cfg.SubmitQueueSize <= 0 {
		cfg.SubmitQueueSize = DefaultSubmitQueueSize
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = DefaultSubmitTimeout
	}
	if cfg.Bounds.MinBps == 0 && cfg.Bounds.MaxBps == 0 {
		cfg.Bounds = bidding.DefaultBounds()
	}

	return &Service{
		selector:  selector.New(cfg.Bounds),
		scheduler: scheduler,
		engine:    engine,
		criteria:  criteria,
		observer:  observer,
		cfg:       cfg,
		logger:    utils.GetLogger(),
		jobs:      make(chan submissionJob, cfg.SubmitQueueSize),
		stop:      make(chan struct{}),
	}
}

// Start launches the submission worker
func (s *Service) Start() {
	s.wg.Add(1)
	go s.submitLoop()
}

// Stop halts the submission worker. Queued jobs that have not started
// are dropped.
func (s *Service) Stop() {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
}

// HandleResult processes one polling cycle: classify contracts, assess
// suggested bids, queue the eligible set for batch submission, and
// evaluate alert conditions against the fresh state.
func (s *Service) HandleResult(ctx context.Context, result *poller.PollResult) (*CycleOutcome, error) {
	if result == nil || result.Blockchain == nil {
		return nil, utils.NewAppError(utils.ErrCodeValidation, "poll result is missing blockchain context")
	}
	blockchainID := result.Blockchain.ID

	criteria, err := s.criteria.GetSelectionCriteria(ctx, blockchainID)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to load selection criteria", err.Error())
	}

	selection := s.selector.Select(result.Contracts, criteria, &selector.ChainState{
		States:       result.States,
		FetchErrors:  result.FetchErrors,
		MinMarketBid: result.MinMarketBid,
	})

	outcome := &CycleOutcome{
		BlockchainID: blockchainID,
		Selection:    selection,
	}

	owners := make(map[common.Address]string, len(result.Contracts))
	for _, contract := range result.Contracts {
		owners[contract.Address] = contract.OwnerUserID
	}

	// Eviction events identify code by hash only; the fetched states map
	// those hashes back to the monitored program addresses.
	programs := make(map[common.Hash]common.Address, len(result.States))
	for addr, state := range result.States {
		if state == nil || state.Codehash == (common.Hash{}) {
			continue
		}
		programs[state.Codehash] = addr
	}

	// Assess a suggested bid for every selected contract. Only bids that
	// pass the safety window go to submission; failed assessments feed
	// the bid safety alert rule instead.
	var eligible []selector.SelectedContract
	assessmentUser := make(map[common.Address]string)
	for _, sc := range selection.Selected {
		crit := criteria[sc.Address]
		bid := bidding.SuggestBid(crit, result.MinMarketBid, s.cfg.Bounds)
		assessment := bidding.AssessWithBounds(crit, bid, result.MinMarketBid, s.cfg.Bounds)
		outcome.Assessments = append(outcome.Assessments, assessment)
		assessmentUser[sc.Address] = sc.UserID
		if assessment.IsEligible {
			eligible = append(eligible, sc)
		}
	}

	if len(eligible) > 0 {
		outcome.SubmissionQueued = s.enqueueSubmission(blockchainID, eligible)
	}

	snapshot := &alerting.Snapshot{
		BlockchainID:   blockchainID,
		Events:         result.Events,
		ContractOwners: owners,
		Programs:       programs,
		GasBalances:    result.GasBalances,
		Assessments:    outcome.Assessments,
		AssessmentUser: assessmentUser,
	}
	conditions := alerting.BuildConditions(snapshot)
	outcome.Conditions = len(conditions)

	if s.engine != nil && len(conditions) > 0 {
		evaluation, err := s.engine.Evaluate(ctx, conditions)
		if err != nil {
			return outcome, err
		}
		outcome.Evaluation = evaluation
	}

	s.logger.WithFields(logrus.Fields{
		"blockchain_id": blockchainID,
		"processed":     selection.TotalProcessed,
		"eligible":      len(eligible),
		"conditions":    outcome.Conditions,
	}).Debug("Polling cycle handled")

	return outcome, nil
}

// enqueueSubmission hands the eligible set to the background worker.
// A full queue drops the job; the next cycle re-selects the same
// contracts, so nothing is lost permanently.
func (s *Service) enqueueSubmission(blockchainID int64, selected []selector.SelectedContract) bool {
	job := submissionJob{blockchainID: blockchainID, selected: selected}
	select {
	case s.jobs <- job:
		return true
	default:
		s.logger.WithFields(logrus.Fields{
			"blockchain_id": blockchainID,
			"contracts":     len(selected),
		}).Warn("Submission queue full, dropping batch job")
		return false
	}
}

func (s *Service) submitLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		case job := <-s.jobs:
			s.runSubmission(job)
		}
	}
}

func (s *Service) runSubmission(job submissionJob) {
	if s.scheduler == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SubmitTimeout)
	defer cancel()

	result := s.scheduler.Run(ctx, job.blockchainID, job.selected, s.cfg.Batch)
	if s.observer != nil {
		s.observer.ObserveBatchRun(job.blockchainID, result)
	}

	s.logger.WithFields(logrus.Fields{
		"blockchain_id":      job.blockchainID,
		"total_batches":      result.TotalBatches,
		"successful_batches": result.SuccessfulBatches,
		"failed_batches":     result.FailedBatches,
	}).Info("Batch submission run completed")
}
