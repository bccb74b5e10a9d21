package alerting

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stylusops/stylus-cache-monitor/internal/events"
	"github.com/stylusops/stylus-cache-monitor/internal/models"
)

type memAlertStore struct {
	mu     sync.Mutex
	alerts map[string]*models.Alert
}

func newMemAlertStore(alerts ...*models.Alert) *memAlertStore {
	s := &memAlertStore{alerts: make(map[string]*models.Alert)}
	for _, a := range alerts {
		copied := *a
		s.alerts[a.ID] = &copied
	}
	return s
}

func (s *memAlertStore) GetAlertsByUserAndType(ctx context.Context, userID string, alertType models.AlertType) ([]*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Alert
	for _, a := range s.alerts {
		if a.UserID == userID && a.Type == alertType {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *memAlertStore) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, assert.AnError
	}
	copied := *a
	return &copied, nil
}

func (s *memAlertStore) UpdateAlert(ctx context.Context, alert *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *alert
	s.alerts[alert.ID] = &copied
	return nil
}

func (s *memAlertStore) get(id string) *models.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alerts[id]
}

type recordingSink struct {
	mu       sync.Mutex
	messages []string
	channels []string
}

func (r *recordingSink) EnqueueAlertNotification(ctx context.Context, alert *models.Alert, channel, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	r.channels = append(r.channels, channel)
	return nil
}

func collectEvents(d *events.Dispatcher, t events.Type) *[]*events.Event {
	var collected []*events.Event
	var mu sync.Mutex
	d.Subscribe(t, events.HandlerFunc(func(ctx context.Context, e *events.Event) {
		mu.Lock()
		defer mu.Unlock()
		collected = append(collected, e)
	}))
	return &collected
}

func evictionAlert(id, user string) *models.Alert {
	return &models.Alert{
		ID:       id,
		UserID:   user,
		Type:     models.AlertTypeEviction,
		IsActive: true,
		Status:   models.AlertStatusActive,
		Channels: models.AlertChannels{Slack: true, Webhook: true},
	}
}

func evictionCondition(user string) Condition {
	return Condition{
		Type:            models.AlertTypeEviction,
		UserID:          user,
		ContractAddress: common.HexToAddress("0xaa"),
		Message:         "contract evicted",
	}
}

func TestEvaluateTriggersActiveAlert(t *testing.T) {
	store := newMemAlertStore(evictionAlert("a1", "u1"))
	dispatcher := events.NewDispatcher()
	triggered := collectEvents(dispatcher, events.AlertTriggered)
	sink := &recordingSink{}

	engine := NewEngine(store, dispatcher, sink, Config{})

	result, err := engine.Evaluate(context.Background(), []Condition{evictionCondition("u1")})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Triggered)
	assert.Equal(t, 0, result.Suppressed)

	updated := store.get("a1")
	assert.Equal(t, models.AlertStatusTriggered, updated.Status)
	assert.Equal(t, 1, updated.TriggeredCount)
	require.NotNil(t, updated.LastTriggeredAt)

	// One domain event, one notification per enabled channel.
	require.Len(t, *triggered, 1)
	assert.Equal(t, "u1", (*triggered)[0].UserID)
	assert.ElementsMatch(t, []string{"slack", "webhook"}, sink.channels)
}

func TestEvaluateCooldownDeduplication(t *testing.T) {
	store := newMemAlertStore(evictionAlert("a1", "u1"))
	dispatcher := events.NewDispatcher()
	triggered := collectEvents(dispatcher, events.AlertTriggered)

	engine := NewEngine(store, dispatcher, nil, Config{Cooldown: 5 * time.Minute})

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	now := base
	engine.now = func() time.Time { return now }

	cond := evictionCondition("u1")

	// First trigger fires.
	_, err := engine.Evaluate(context.Background(), []Condition{cond})
	require.NoError(t, err)

	// Three minutes later: inside the cooldown, suppressed.
	now = base.Add(3 * time.Minute)
	result, err := engine.Evaluate(context.Background(), []Condition{cond})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Triggered)
	assert.Equal(t, 1, result.Suppressed)
	assert.Len(t, *triggered, 1)

	// Six minutes after the first trigger: cooldown elapsed, fires again.
	now = base.Add(6 * time.Minute)
	result, err = engine.Evaluate(context.Background(), []Condition{cond})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Triggered)
	assert.Len(t, *triggered, 2)

	assert.Equal(t, 2, store.get("a1").TriggeredCount)
}

func TestEvaluatePausedAlertsAreExcluded(t *testing.T) {
	paused := evictionAlert("a1", "u1")
	paused.Status = models.AlertStatusPaused
	store := newMemAlertStore(paused)

	engine := NewEngine(store, nil, nil, Config{})

	result, err := engine.Evaluate(context.Background(), []Condition{evictionCondition("u1")})
	require.NoError(t, err)

	assert.Equal(t, 0, result.Triggered)
	assert.Equal(t, models.AlertStatusPaused, store.get("a1").Status)
	assert.Equal(t, 0, store.get("a1").TriggeredCount)
}

func TestEvaluateTriggeredCountCap(t *testing.T) {
	capped := evictionAlert("a1", "u1")
	capped.TriggeredCount = 2
	store := newMemAlertStore(capped)

	engine := NewEngine(store, nil, nil, Config{MaxTriggeredCount: 2})

	result, err := engine.Evaluate(context.Background(), []Condition{evictionCondition("u1")})
	require.NoError(t, err)

	assert.Equal(t, 0, result.Triggered)
	assert.Equal(t, 1, result.Suppressed)
	assert.Equal(t, 2, store.get("a1").TriggeredCount)
}

func TestEvaluateLowGasThreshold(t *testing.T) {
	lowGas := &models.Alert{
		ID:       "a1",
		UserID:   "u1",
		Type:     models.AlertTypeLowGas,
		Value:    big.NewInt(1000),
		IsActive: true,
		Status:   models.AlertStatusActive,
		Channels: models.AlertChannels{Email: true},
	}
	store := newMemAlertStore(lowGas)
	engine := NewEngine(store, nil, nil, Config{})

	// Balance above threshold: no trigger.
	result, err := engine.Evaluate(context.Background(), []Condition{{
		Type:          models.AlertTypeLowGas,
		UserID:        "u1",
		ObservedValue: big.NewInt(5000),
	}})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Triggered)

	// Balance below threshold: trigger.
	result, err = engine.Evaluate(context.Background(), []Condition{{
		Type:          models.AlertTypeLowGas,
		UserID:        "u1",
		ObservedValue: big.NewInt(999),
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Triggered)
}

func TestRearmSweepReactivatesAlert(t *testing.T) {
	store := newMemAlertStore(evictionAlert("a1", "u1"))
	engine := NewEngine(store, nil, nil, Config{Cooldown: 30 * time.Millisecond})
	engine.Start()
	defer engine.Stop()

	_, err := engine.Evaluate(context.Background(), []Condition{evictionCondition("u1")})
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusTriggered, store.get("a1").Status)

	assert.Eventually(t, func() bool {
		return store.get("a1").Status == models.AlertStatusActive
	}, 2*time.Second, 10*time.Millisecond, "alert should re-arm after cooldown")
}

func TestBuildConditionsOrderAndContent(t *testing.T) {
	owner := common.HexToAddress("0xaa")
	codehash := common.HexToHash("0xcc")
	snapshot := &Snapshot{
		BlockchainID: 1,
		Events: []*models.CacheEvent{
			{Kind: models.CacheEventDeleteBid, Codehash: codehash, BlockNumber: 110, Bid: big.NewInt(5)},
			{Kind: models.CacheEventInsertBid, Codehash: codehash, Program: owner, BlockNumber: 111},
		},
		ContractOwners: map[common.Address]string{owner: "u1"},
		Programs:       map[common.Hash]common.Address{codehash: owner},
		GasBalances:    map[string]*big.Int{"u1": big.NewInt(0)},
		AssessmentUser: map[common.Address]string{},
	}

	conditions := BuildConditions(snapshot)
	require.Len(t, conditions, 3)

	assert.Equal(t, models.AlertTypeEviction, conditions[0].Type)
	assert.Equal(t, models.AlertTypeNoGas, conditions[1].Type)
	assert.Equal(t, models.AlertTypeLowGas, conditions[2].Type)
	assert.Equal(t, "u1", conditions[0].UserID)
	assert.Equal(t, owner, conditions[0].ContractAddress)
}
