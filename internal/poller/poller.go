package poller

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/stylusops/stylus-cache-monitor/internal/chain"
	"github.com/stylusops/stylus-cache-monitor/internal/models"
	"github.com/stylusops/stylus-cache-monitor/pkg/utils"
)

// ErrPollInProgress is returned when a cycle is already running for the
// blockchain; the caller skips the tick rather than queueing it.
var ErrPollInProgress = errors.New("poll already in progress for blockchain")

// Store is the persistence surface the poller needs
type Store interface {
	GetContractsByBlockchain(ctx context.Context, blockchainID int64) ([]*models.MonitoredContract, error)
	GetUserWallets(ctx context.Context, blockchainID int64) ([]*models.UserWallet, error)
	SetLastSyncedBlock(ctx context.Context, blockchainID int64, block uint64) error
	SavePollingSession(ctx context.Context, session *models.PollingSession) error
}

// SessionRecorder observes polling sessions without influencing them
type SessionRecorder interface {
	RecordSession(session *models.PollingSession)
}

// Config controls polling behavior
type Config struct {
	ProcessingTimeout time.Duration
	PaginationLimit   int
}

// PollResult is everything one successful cycle learned about a blockchain
type PollResult struct {
	Blockchain   *models.Blockchain                            `json:"-"`
	FromBlock    uint64                                        `json:"from_block"`
	ToBlock      uint64                                        `json:"to_block"`
	Events       []*models.CacheEvent                          `json:"events"`
	Contracts    []*models.MonitoredContract                   `json:"-"`
	States       map[common.Address]*models.ContractCacheState `json:"-"`
	FetchErrors  map[common.Address]error                      `json:"-"`
	GasBalances  map[string]*big.Int                           `json:"-"`
	MinMarketBid *big.Int                                      `json:"min_market_bid,omitempty"`
	DataPoints   int                                           `json:"data_points"`
	Duration     time.Duration                                 `json:"duration"`
}

// Poller runs one polling cycle per blockchain. The checkpoint
// (lastSyncedBlock) is owned here: it advances only after a fully
// successful cycle and never moves backward.
type Poller struct {
	store    Store
	recorder SessionRecorder
	cfg      Config
	logger   *logrus.Logger

	mu       sync.Mutex
	clients  map[int64]chain.StateClient
	inflight map[int64]bool
}

// New creates a poller. recorder may be nil.
func New(store Store, recorder SessionRecorder, cfg Config) *Poller {
	if cfg.ProcessingTimeout <= 0 {
		cfg.ProcessingTimeout = 30 * time.Second
	}
	return &Poller{
		store:    store,
		recorder: recorder,
		cfg:      cfg,
		logger:   utils.GetLogger(),
		clients:  make(map[int64]chain.StateClient),
		inflight: make(map[int64]bool),
	}
}

// RegisterClient binds a state client to a blockchain id
func (p *Poller) RegisterClient(blockchainID int64, client chain.StateClient) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clients[blockchainID] = client
}

// Poll runs one cycle for the blockchain. At most one cycle per blockchain
// id is in flight; concurrent calls return ErrPollInProgress. The cycle is
// all-or-nothing with respect to the checkpoint: any failure, including the
// hard processing timeout, leaves lastSyncedBlock untouched so the next
// tick retries the same range.
func (p *Poller) Poll(ctx context.Context, blockchain *models.Blockchain) (*PollResult, error) {
	if !p.tryAcquire(blockchain.ID) {
		return nil, ErrPollInProgress
	}
	defer p.release(blockchain.ID)

	cycleCtx, cancel := context.WithTimeout(ctx, p.cfg.ProcessingTimeout)
	defer cancel()

	session := &models.PollingSession{
		ID:           utils.GenerateID(),
		BlockchainID: blockchain.ID,
		StartTime:    time.Now(),
	}

	result, err := p.runCycle(cycleCtx, blockchain)

	end := time.Now()
	session.EndTime = &end
	if err != nil {
		session.Error = err.Error()
		if cycleCtx.Err() != nil {
			session.Error = utils.NewAppError(utils.ErrCodeTimeout, "polling cycle timed out", err.Error()).Error()
		}
	} else {
		session.Success = true
		session.DataPoints = result.DataPoints
		result.Duration = end.Sub(session.StartTime)
	}

	if p.recorder != nil {
		p.recorder.RecordSession(session)
	}

	// Session history is best effort; a write failure never fails the
	// cycle. Saved through the caller's context so timed-out cycles still
	// leave a record.
	if saveErr := p.store.SavePollingSession(ctx, session); saveErr != nil {
		p.logger.WithFields(logrus.Fields{
			"blockchain": blockchain.Name,
			"error":      saveErr,
		}).Warn("Failed to persist polling session")
	}

	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"blockchain": blockchain.Name,
			"checkpoint": blockchain.LastSyncedBlock,
			"error":      err,
		}).Warn("Polling cycle failed; checkpoint not advanced")
		return nil, err
	}

	return result, nil
}

// runCycle performs the fetch-process-checkpoint sequence
func (p *Poller) runCycle(ctx context.Context, blockchain *models.Blockchain) (*PollResult, error) {
	client := p.clientFor(blockchain.ID)
	if client == nil {
		return nil, utils.NewAppError(utils.ErrCodeConfiguration, "no state client registered", blockchain.Name)
	}

	currentBlock, err := client.CurrentBlock(ctx)
	if err != nil {
		return nil, err
	}

	result := &PollResult{
		Blockchain:  blockchain,
		FromBlock:   blockchain.LastSyncedBlock + 1,
		ToBlock:     currentBlock,
		States:      make(map[common.Address]*models.ContractCacheState),
		FetchErrors: make(map[common.Address]error),
		GasBalances: make(map[string]*big.Int),
	}

	if currentBlock <= blockchain.LastSyncedBlock {
		// Nothing new; the checkpoint already covers the head.
		result.FromBlock = blockchain.LastSyncedBlock
		result.ToBlock = blockchain.LastSyncedBlock
		return result, nil
	}

	// Events in (lastSyncedBlock, currentBlock], ascending block order.
	events, err := p.fetchEvents(ctx, client, result.FromBlock, currentBlock)
	if err != nil {
		return nil, err
	}
	result.Events = events

	contracts, err := p.store.GetContractsByBlockchain(ctx, blockchain.ID)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to load monitored contracts", err.Error())
	}
	result.Contracts = contracts

	// Refresh per-contract cache state; failures are isolated per contract
	// and surface as selection skips, never as a cycle failure.
	for _, contract := range contracts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		state, err := client.ContractState(ctx, contract.Address)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			result.FetchErrors[contract.Address] = err
			continue
		}
		result.States[contract.Address] = state
	}

	minBid, err := client.MinMarketBid(ctx)
	if err != nil {
		return nil, err
	}
	result.MinMarketBid = minBid

	// Funding wallet balances feed the gas alert rules.
	wallets, err := p.store.GetUserWallets(ctx, blockchain.ID)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to load user wallets", err.Error())
	}
	for _, wallet := range wallets {
		balance, err := client.Balance(ctx, wallet.Address)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			p.logger.WithFields(logrus.Fields{
				"user_id": wallet.UserID,
				"error":   err,
			}).Warn("Failed to fetch wallet balance")
			continue
		}
		result.GasBalances[wallet.UserID] = balance
	}

	result.DataPoints = len(events) + len(result.States) + len(result.GasBalances)

	// Checkpoint advances strictly after successful processing.
	if err := p.store.SetLastSyncedBlock(ctx, blockchain.ID, currentBlock); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to advance checkpoint", err.Error())
	}
	blockchain.LastSyncedBlock = currentBlock

	p.logger.WithFields(logrus.Fields{
		"blockchain": blockchain.Name,
		"from":       result.FromBlock,
		"to":         result.ToBlock,
		"events":     len(events),
	}).Debug("Polling cycle completed")

	return result, nil
}

// fetchEvents pulls logs for the block range in windows of at most
// PaginationLimit blocks so a large catch-up range never exceeds the RPC
// provider's per-query span. A non-positive limit fetches in one query.
func (p *Poller) fetchEvents(ctx context.Context, client chain.StateClient, fromBlock, toBlock uint64) ([]*models.CacheEvent, error) {
	if p.cfg.PaginationLimit <= 0 {
		return client.FilterCacheEvents(ctx, fromBlock, toBlock)
	}
	limit := uint64(p.cfg.PaginationLimit)
	if toBlock-fromBlock < limit {
		return client.FilterCacheEvents(ctx, fromBlock, toBlock)
	}

	var events []*models.CacheEvent
	for start := fromBlock; start <= toBlock; start += limit {
		end := start + limit - 1
		if end > toBlock {
			end = toBlock
		}
		page, err := client.FilterCacheEvents(ctx, start, end)
		if err != nil {
			return nil, err
		}
		events = append(events, page...)
	}
	return events, nil
}

func (p *Poller) clientFor(blockchainID int64) chain.StateClient {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clients[blockchainID]
}

func (p *Poller) tryAcquire(blockchainID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inflight[blockchainID] {
		return false
	}
	p.inflight[blockchainID] = true
	return true
}

func (p *Poller) release(blockchainID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inflight, blockchainID)
}
