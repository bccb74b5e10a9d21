package storage

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stylusops/stylus-cache-monitor/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(&Config{
		Type:             "sqlite",
		ConnectionString: filepath.Join(t.TempDir(), "test.db"),
		MaxConnections:   2,
	})
	require.NoError(t, store.Connect())
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testChain(t *testing.T, store *SQLiteStore) *models.Blockchain {
	t.Helper()
	bc := &models.Blockchain{
		Name:                "arbitrum-sepolia",
		RPCURL:              "http://localhost:8547",
		BackupRPCURLs:       []string{"http://localhost:8548"},
		ChainID:             421614,
		CacheManagerAddress: common.HexToAddress("0x0c9043d042ab52cfa8d0207459260040cca54253"),
		Enabled:             true,
	}
	require.NoError(t, store.SaveBlockchain(context.Background(), bc))
	require.NotZero(t, bc.ID)
	return bc
}

func TestCheckpointIsMonotonic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	bc := testChain(t, store)

	require.NoError(t, store.SetLastSyncedBlock(ctx, bc.ID, 110))
	loaded, err := store.GetBlockchain(ctx, bc.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(110), loaded.LastSyncedBlock)

	// A stale writer must not move the checkpoint backward.
	require.NoError(t, store.SetLastSyncedBlock(ctx, bc.ID, 50))
	loaded, err = store.GetBlockchain(ctx, bc.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(110), loaded.LastSyncedBlock)

	require.NoError(t, store.SetLastSyncedBlock(ctx, bc.ID, 120))
	loaded, err = store.GetBlockchain(ctx, bc.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(120), loaded.LastSyncedBlock)
}

func TestBlockchainRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	bc := testChain(t, store)

	loaded, err := store.GetBlockchain(ctx, bc.ID)
	require.NoError(t, err)
	assert.Equal(t, bc.Name, loaded.Name)
	assert.Equal(t, bc.BackupRPCURLs, loaded.BackupRPCURLs)
	assert.Equal(t, bc.CacheManagerAddress, loaded.CacheManagerAddress)
	assert.True(t, loaded.Enabled)

	enabled, err := store.GetBlockchains(ctx, true)
	require.NoError(t, err)
	assert.Len(t, enabled, 1)

	bc.Enabled = false
	require.NoError(t, store.SaveBlockchain(ctx, bc))
	enabled, err = store.GetBlockchains(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, enabled)
}

func TestContractAndCriteriaRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	bc := testChain(t, store)
	addr := common.HexToAddress("0x00000000000000000000000000000000000000a1")

	require.NoError(t, store.SaveContract(ctx, &models.MonitoredContract{
		Address:      addr,
		BlockchainID: bc.ID,
		OwnerUserID:  "u1",
		Name:         "my program",
	}))

	require.NoError(t, store.SaveSelectionCriteria(ctx, bc.ID, &models.ContractSelectionCriteria{
		ContractAddress: addr,
		MinBid:          big.NewInt(1000),
		Enabled:         true,
	}))

	contracts, err := store.GetContractsByBlockchain(ctx, bc.ID)
	require.NoError(t, err)
	require.Len(t, contracts, 1)
	assert.Equal(t, addr, contracts[0].Address)
	assert.Equal(t, "u1", contracts[0].OwnerUserID)

	criteria, err := store.GetSelectionCriteria(ctx, bc.ID)
	require.NoError(t, err)
	require.Contains(t, criteria, addr)
	assert.Equal(t, big.NewInt(1000), criteria[addr].MinBid)
	assert.Nil(t, criteria[addr].MaxBid)
	assert.True(t, criteria[addr].Enabled)

	// Upsert flips enabled without duplicating the row.
	require.NoError(t, store.SaveSelectionCriteria(ctx, bc.ID, &models.ContractSelectionCriteria{
		ContractAddress: addr,
		Enabled:         false,
	}))
	criteria, err = store.GetSelectionCriteria(ctx, bc.ID)
	require.NoError(t, err)
	require.Len(t, criteria, 1)
	assert.False(t, criteria[addr].Enabled)

	require.NoError(t, store.DeleteContract(ctx, bc.ID, addr))
	contracts, err = store.GetContractsByBlockchain(ctx, bc.ID)
	require.NoError(t, err)
	assert.Empty(t, contracts)
	criteria, err = store.GetSelectionCriteria(ctx, bc.ID)
	require.NoError(t, err)
	assert.Empty(t, criteria)
}

func TestAlertLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	alert := &models.Alert{
		UserID:   "u1",
		Type:     models.AlertTypeLowGas,
		Value:    big.NewInt(5000000000000000),
		IsActive: true,
		Channels: models.AlertChannels{Slack: true, Email: true},
	}
	require.NoError(t, store.SaveAlert(ctx, alert))
	require.NotEmpty(t, alert.ID)
	assert.Equal(t, models.AlertStatusActive, alert.Status)

	loaded, err := store.GetAlert(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(5000000000000000), loaded.Value)
	assert.Equal(t, []string{"email", "slack"}, loaded.Channels.Enabled())
	assert.Nil(t, loaded.LastTriggeredAt)

	now := time.Now().UTC().Truncate(time.Second)
	loaded.Status = models.AlertStatusTriggered
	loaded.TriggeredCount = 1
	loaded.LastTriggeredAt = &now
	require.NoError(t, store.UpdateAlert(ctx, loaded))

	reloaded, err := store.GetAlert(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusTriggered, reloaded.Status)
	assert.Equal(t, 1, reloaded.TriggeredCount)
	require.NotNil(t, reloaded.LastTriggeredAt)
	assert.True(t, reloaded.LastTriggeredAt.Equal(now))

	byType, err := store.GetAlertsByUserAndType(ctx, "u1", models.AlertTypeLowGas)
	require.NoError(t, err)
	assert.Len(t, byType, 1)
	byType, err = store.GetAlertsByUserAndType(ctx, "u1", models.AlertTypeEviction)
	require.NoError(t, err)
	assert.Empty(t, byType)

	require.NoError(t, store.DeleteAlert(ctx, alert.ID))
	_, err = store.GetAlert(ctx, alert.ID)
	assert.Error(t, err)
}

func TestUserWalletRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	bc := testChain(t, store)
	addr := common.HexToAddress("0x00000000000000000000000000000000000000f1")

	require.NoError(t, store.SaveUserWallet(ctx, &models.UserWallet{
		UserID:       "u1",
		BlockchainID: bc.ID,
		Address:      addr,
	}))

	wallets, err := store.GetUserWallets(ctx, bc.ID)
	require.NoError(t, err)
	require.Len(t, wallets, 1)
	assert.Equal(t, addr, wallets[0].Address)
}

func TestBatchFailureRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	bc := testChain(t, store)

	contracts := []common.Address{
		common.HexToAddress("0x00000000000000000000000000000000000000a1"),
		common.HexToAddress("0x00000000000000000000000000000000000000b2"),
	}
	require.NoError(t, store.SaveBatchFailure(ctx, &models.BatchFailure{
		BlockchainID: bc.ID,
		BatchIndex:   2,
		Contracts:    contracts,
		RetryCount:   3,
		LastError:    "relay unavailable",
		FailedAt:     time.Now().UTC(),
	}))

	failures, err := store.GetBatchFailures(ctx, bc.ID, 10)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, 2, failures[0].BatchIndex)
	assert.Equal(t, contracts, failures[0].Contracts)
	assert.Equal(t, 3, failures[0].RetryCount)
}

func TestPollingSessionHistoryAndCleanup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	bc := testChain(t, store)

	old := time.Now().UTC().AddDate(0, 0, -60)
	oldEnd := old.Add(time.Second)
	require.NoError(t, store.SavePollingSession(ctx, &models.PollingSession{
		BlockchainID: bc.ID,
		StartTime:    old,
		EndTime:      &oldEnd,
		Success:      true,
	}))

	recent := time.Now().UTC()
	require.NoError(t, store.SavePollingSession(ctx, &models.PollingSession{
		BlockchainID: bc.ID,
		StartTime:    recent,
		Success:      false,
		Error:        "rpc timeout",
	}))

	sessions, err := store.GetRecentSessions(ctx, bc.ID, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "rpc timeout", sessions[0].Error)

	require.NoError(t, store.Cleanup(ctx, 30))
	sessions, err = store.GetRecentSessions(ctx, bc.ID, 10)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}
