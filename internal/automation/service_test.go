package automation

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stylusops/stylus-cache-monitor/internal/alerting"
	"github.com/stylusops/stylus-cache-monitor/internal/batch"
	"github.com/stylusops/stylus-cache-monitor/internal/events"
	"github.com/stylusops/stylus-cache-monitor/internal/models"
	"github.com/stylusops/stylus-cache-monitor/internal/poller"
)

var (
	progA     = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	progB     = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	codehashA = common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111")
)

type fakePollerStore struct {
	mu          sync.Mutex
	contracts   []*models.MonitoredContract
	checkpoints map[int64]uint64
}

func (s *fakePollerStore) GetContractsByBlockchain(ctx context.Context, blockchainID int64) ([]*models.MonitoredContract, error) {
	return s.contracts, nil
}

func (s *fakePollerStore) GetUserWallets(ctx context.Context, blockchainID int64) ([]*models.UserWallet, error) {
	return nil, nil
}

func (s *fakePollerStore) SetLastSyncedBlock(ctx context.Context, blockchainID int64, block uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkpoints == nil {
		s.checkpoints = make(map[int64]uint64)
	}
	s.checkpoints[blockchainID] = block
	return nil
}

func (s *fakePollerStore) SavePollingSession(ctx context.Context, session *models.PollingSession) error {
	return nil
}

type fakeChainClient struct {
	head      uint64
	events    []*models.CacheEvent
	states    map[common.Address]*models.ContractCacheState
	stateErrs map[common.Address]error
	minBid    *big.Int
}

func (c *fakeChainClient) CurrentBlock(ctx context.Context) (uint64, error) { return c.head, nil }

func (c *fakeChainClient) FilterCacheEvents(ctx context.Context, fromBlock, toBlock uint64) ([]*models.CacheEvent, error) {
	var out []*models.CacheEvent
	for _, e := range c.events {
		if e.BlockNumber >= fromBlock && e.BlockNumber <= toBlock {
			out = append(out, e)
		}
	}
	return out, nil
}

func (c *fakeChainClient) ContractState(ctx context.Context, program common.Address) (*models.ContractCacheState, error) {
	if err := c.stateErrs[program]; err != nil {
		return nil, err
	}
	if state, ok := c.states[program]; ok {
		return state, nil
	}
	return &models.ContractCacheState{Address: program, FetchedAt: time.Now()}, nil
}

func (c *fakeChainClient) MinMarketBid(ctx context.Context) (*big.Int, error) { return c.minBid, nil }

func (c *fakeChainClient) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (c *fakeChainClient) Close() {}

type fakeCriteriaStore struct {
	criteria map[common.Address]*models.ContractSelectionCriteria
	err      error
}

func (s *fakeCriteriaStore) GetSelectionCriteria(ctx context.Context, blockchainID int64) (map[common.Address]*models.ContractSelectionCriteria, error) {
	return s.criteria, s.err
}

type memAlertStore struct {
	mu     sync.Mutex
	alerts map[string]*models.Alert
}

func newMemAlertStore(alerts ...*models.Alert) *memAlertStore {
	s := &memAlertStore{alerts: make(map[string]*models.Alert)}
	for _, a := range alerts {
		s.alerts[a.ID] = a
	}
	return s
}

func (s *memAlertStore) GetAlertsByUserAndType(ctx context.Context, userID string, alertType models.AlertType) ([]*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Alert
	for _, a := range s.alerts {
		if a.UserID == userID && a.Type == alertType {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memAlertStore) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.alerts[id]; ok {
		return a, nil
	}
	return nil, errors.New("alert not found")
}

func (s *memAlertStore) UpdateAlert(ctx context.Context, alert *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[alert.ID] = alert
	return nil
}

type recordingSubmitter struct {
	mu      sync.Mutex
	batches [][]common.Address
}

func (r *recordingSubmitter) SubmitBatch(ctx context.Context, blockchainID int64, addresses []common.Address) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, addresses)
	return "0xdeadbeef", nil
}

func (r *recordingSubmitter) submitted() [][]common.Address {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]common.Address, len(r.batches))
	copy(out, r.batches)
	return out
}

func enabledCriteria(addr common.Address) map[common.Address]*models.ContractSelectionCriteria {
	return map[common.Address]*models.ContractSelectionCriteria{
		addr: {ContractAddress: addr, Enabled: true},
	}
}

// Eviction at block 105 with checkpoint 100 and head 110: the cycle must
// advance the checkpoint to 110, queue the evicted contract for a new bid,
// and fire the owner's eviction alert exactly once.
func TestEvictionCycleEndToEnd(t *testing.T) {
	store := &fakePollerStore{
		contracts: []*models.MonitoredContract{
			{Address: progA, BlockchainID: 1, OwnerUserID: "u1"},
		},
	}
	client := &fakeChainClient{
		head:   110,
		minBid: big.NewInt(1000),
		// DeleteBid logs name only the evicted codehash; the program is
		// recovered from the refreshed contract states.
		events: []*models.CacheEvent{
			{Kind: models.CacheEventDeleteBid, Codehash: codehashA, BlockNumber: 105},
		},
		states: map[common.Address]*models.ContractCacheState{
			progA: {Address: progA, Codehash: codehashA, Cached: false, FetchedAt: time.Now()},
		},
	}

	p := poller.New(store, nil, poller.Config{ProcessingTimeout: 5 * time.Second})
	p.RegisterClient(1, client)

	dispatcher := events.NewDispatcher()
	var triggeredMu sync.Mutex
	var triggered []*events.Event
	dispatcher.Subscribe(events.AlertTriggered, events.HandlerFunc(func(ctx context.Context, e *events.Event) {
		triggeredMu.Lock()
		defer triggeredMu.Unlock()
		triggered = append(triggered, e)
	}))

	alertStore := newMemAlertStore(&models.Alert{
		ID:       "a1",
		UserID:   "u1",
		Type:     models.AlertTypeEviction,
		IsActive: true,
		Status:   models.AlertStatusActive,
		Channels: models.AlertChannels{Slack: true},
	})
	engine := alerting.NewEngine(alertStore, dispatcher, nil, alerting.Config{
		Cooldown:          5 * time.Minute,
		MaxTriggeredCount: 1000,
	})

	submitter := &recordingSubmitter{}
	svc := New(
		&fakeCriteriaStore{criteria: enabledCriteria(progA)},
		batch.NewScheduler(submitter, nil),
		engine,
		nil,
		Config{Batch: batch.Config{BatchSize: 50, MaxRetries: 3}},
	)
	svc.Start()
	defer svc.Stop()

	bc := &models.Blockchain{ID: 1, Name: "arbitrum-sepolia", LastSyncedBlock: 100, Enabled: true}
	result, err := p.Poll(context.Background(), bc)
	require.NoError(t, err)

	outcome, err := svc.HandleResult(context.Background(), result)
	require.NoError(t, err)

	assert.Equal(t, uint64(110), store.checkpoints[1])
	require.Len(t, outcome.Selection.Selected, 1)
	assert.Equal(t, progA, outcome.Selection.Selected[0].Address)
	assert.True(t, outcome.SubmissionQueued)

	require.NotNil(t, outcome.Evaluation)
	assert.Equal(t, 1, outcome.Evaluation.Triggered)

	triggeredMu.Lock()
	require.Len(t, triggered, 1)
	assert.Equal(t, events.AlertTriggered, triggered[0].Type)
	assert.Equal(t, "u1", triggered[0].UserID)
	triggeredMu.Unlock()

	require.Eventually(t, func() bool {
		return len(submitter.submitted()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []common.Address{progA}, submitter.submitted()[0])

	// Re-processing the same conditions inside the cooldown is suppressed.
	outcome2, err := svc.HandleResult(context.Background(), result)
	require.NoError(t, err)
	require.NotNil(t, outcome2.Evaluation)
	assert.Equal(t, 0, outcome2.Evaluation.Triggered)
	triggeredMu.Lock()
	assert.Len(t, triggered, 1)
	triggeredMu.Unlock()
}

func TestHandleResultSkipsCachedAndFailedContracts(t *testing.T) {
	criteria := map[common.Address]*models.ContractSelectionCriteria{
		progA: {ContractAddress: progA, Enabled: true},
		progB: {ContractAddress: progB, Enabled: true},
	}

	result := &poller.PollResult{
		Blockchain: &models.Blockchain{ID: 1},
		Contracts: []*models.MonitoredContract{
			{Address: progA, BlockchainID: 1, OwnerUserID: "u1"},
			{Address: progB, BlockchainID: 1, OwnerUserID: "u2"},
		},
		States: map[common.Address]*models.ContractCacheState{
			progA: {Address: progA, Cached: true, CurrentBid: big.NewInt(2000)},
		},
		FetchErrors: map[common.Address]error{
			progB: errors.New("decode failure"),
		},
		MinMarketBid: big.NewInt(1000),
	}

	svc := New(&fakeCriteriaStore{criteria: criteria}, nil, nil, nil, Config{})

	outcome, err := svc.HandleResult(context.Background(), result)
	require.NoError(t, err)

	assert.Empty(t, outcome.Selection.Selected)
	assert.False(t, outcome.SubmissionQueued)
	assert.Equal(t, 1, outcome.Selection.SkipCounts["already_cached"])
	assert.Equal(t, 1, outcome.Selection.SkipCounts["fetch_error"])
}

func TestHandleResultIneligibleBidRaisesBidSafetyCondition(t *testing.T) {
	// Max bid below the market forces the suggested bid out of the safety
	// window, so the contract must not be submitted.
	criteria := map[common.Address]*models.ContractSelectionCriteria{
		progA: {ContractAddress: progA, Enabled: true, MaxBid: big.NewInt(500)},
	}

	result := &poller.PollResult{
		Blockchain: &models.Blockchain{ID: 1},
		Contracts: []*models.MonitoredContract{
			{Address: progA, BlockchainID: 1, OwnerUserID: "u1"},
		},
		States: map[common.Address]*models.ContractCacheState{
			progA: {Address: progA, Cached: false},
		},
		MinMarketBid: big.NewInt(1000),
	}

	alertStore := newMemAlertStore(&models.Alert{
		ID:       "a2",
		UserID:   "u1",
		Type:     models.AlertTypeBidSafety,
		IsActive: true,
		Status:   models.AlertStatusActive,
	})
	engine := alerting.NewEngine(alertStore, nil, nil, alerting.Config{})

	svc := New(&fakeCriteriaStore{criteria: criteria}, nil, engine, nil, Config{})

	outcome, err := svc.HandleResult(context.Background(), result)
	require.NoError(t, err)

	require.Len(t, outcome.Assessments, 1)
	assert.False(t, outcome.Assessments[0].IsEligible)
	assert.False(t, outcome.SubmissionQueued)
	require.NotNil(t, outcome.Evaluation)
	assert.Equal(t, 1, outcome.Evaluation.Triggered)
}

func TestHandleResultCriteriaLoadFailure(t *testing.T) {
	svc := New(&fakeCriteriaStore{err: errors.New("db down")}, nil, nil, nil, Config{})

	_, err := svc.HandleResult(context.Background(), &poller.PollResult{
		Blockchain: &models.Blockchain{ID: 1},
	})
	assert.Error(t, err)
}

func TestSubmissionQueueFullDropsJob(t *testing.T) {
	svc := New(&fakeCriteriaStore{}, nil, nil, nil, Config{SubmitQueueSize: 1})
	// Worker not started, so the buffered slot fills and the second
	// enqueue must drop without blocking.
	first := svc.enqueueSubmission(1, nil)
	second := svc.enqueueSubmission(1, nil)
	assert.True(t, first)
	assert.False(t, second)
}
