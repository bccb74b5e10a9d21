package poller

import (
	"context"
	"errors"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/stylusops/stylus-cache-monitor/internal/models"
	"github.com/stylusops/stylus-cache-monitor/pkg/utils"
)

// BlockchainLister lists the chains to poll each tick
type BlockchainLister interface {
	GetBlockchains(ctx context.Context, enabledOnly bool) ([]*models.Blockchain, error)
}

// ResultHandler consumes the result of a successful polling cycle
type ResultHandler func(ctx context.Context, result *PollResult)

// Runner drives the poller from a cron schedule. Each tick fans out one
// poll per enabled blockchain; the per-chain tasks run concurrently with
// each other while the poller serializes cycles within a chain. Scheduling
// policy lives here, polling logic in the Poller.
type Runner struct {
	poller   *Poller
	lister   BlockchainLister
	handler  ResultHandler
	schedule string
	logger   *logrus.Logger

	cron *cron.Cron
	wg   sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// NewRunner creates a runner on a standard 5-field cron schedule
func NewRunner(p *Poller, lister BlockchainLister, handler ResultHandler, schedule string) *Runner {
	return &Runner{
		poller:   p,
		lister:   lister,
		handler:  handler,
		schedule: schedule,
		logger:   utils.GetLogger(),
		cron:     cron.New(),
	}
}

// Start registers the schedule and begins ticking
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return utils.NewAppError(utils.ErrCodeInternal, "poll runner already running")
	}

	_, err := r.cron.AddFunc(r.schedule, func() { r.tick(ctx) })
	if err != nil {
		return utils.NewAppError(utils.ErrCodeConfiguration, "invalid cron schedule", err.Error())
	}

	r.cron.Start()
	r.running = true

	r.logger.WithField("schedule", r.schedule).Info("Poll runner started")
	return nil
}

// Stop halts the schedule and waits for in-flight cycles
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}

	<-r.cron.Stop().Done()
	r.wg.Wait()
	r.running = false

	r.logger.Info("Poll runner stopped")
}

// tick fans out one poll task per enabled blockchain
func (r *Runner) tick(ctx context.Context) {
	blockchains, err := r.lister.GetBlockchains(ctx, true)
	if err != nil {
		r.logger.WithField("error", err).Error("Failed to list blockchains for polling")
		return
	}

	for _, blockchain := range blockchains {
		bc := blockchain
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.pollOne(ctx, bc)
		}()
	}
}

// pollOne runs a single cycle; an in-progress cycle makes this tick a skip
func (r *Runner) pollOne(ctx context.Context, blockchain *models.Blockchain) {
	result, err := r.poller.Poll(ctx, blockchain)
	if err != nil {
		if errors.Is(err, ErrPollInProgress) {
			r.logger.WithField("blockchain", blockchain.Name).Debug("Previous cycle still running; tick skipped")
			return
		}
		r.logger.WithFields(logrus.Fields{
			"blockchain": blockchain.Name,
			"error":      err,
		}).Error("Polling cycle failed")
		return
	}

	if r.handler != nil {
		r.handler(ctx, result)
	}
}
