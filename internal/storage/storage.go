package storage

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stylusops/stylus-cache-monitor/internal/models"
)

// Store is the persistence interface for the cache monitor. It backs the
// poller checkpoint, contract registry, alert state machine, and the
// batch failure dead-letter table.
type Store interface {
	// Connection management
	Connect() error
	Close() error
	Ping() error
	Migrate() error

	// Blockchain operations
	SaveBlockchain(ctx context.Context, blockchain *models.Blockchain) error
	GetBlockchain(ctx context.Context, id int64) (*models.Blockchain, error)
	GetBlockchains(ctx context.Context, enabledOnly bool) ([]*models.Blockchain, error)
	SetLastSyncedBlock(ctx context.Context, blockchainID int64, block uint64) error

	// Monitored contract operations
	SaveContract(ctx context.Context, contract *models.MonitoredContract) error
	GetContractsByBlockchain(ctx context.Context, blockchainID int64) ([]*models.MonitoredContract, error)
	DeleteContract(ctx context.Context, blockchainID int64, address common.Address) error

	// Selection criteria operations
	SaveSelectionCriteria(ctx context.Context, blockchainID int64, criteria *models.ContractSelectionCriteria) error
	GetSelectionCriteria(ctx context.Context, blockchainID int64) (map[common.Address]*models.ContractSelectionCriteria, error)

	// Alert operations
	SaveAlert(ctx context.Context, alert *models.Alert) error
	GetAlert(ctx context.Context, id string) (*models.Alert, error)
	GetAlertsByUser(ctx context.Context, userID string) ([]*models.Alert, error)
	GetAlertsByUserAndType(ctx context.Context, userID string, alertType models.AlertType) ([]*models.Alert, error)
	UpdateAlert(ctx context.Context, alert *models.Alert) error
	DeleteAlert(ctx context.Context, id string) error

	// Funding wallet operations
	SaveUserWallet(ctx context.Context, wallet *models.UserWallet) error
	GetUserWallets(ctx context.Context, blockchainID int64) ([]*models.UserWallet, error)

	// Polling session history
	SavePollingSession(ctx context.Context, session *models.PollingSession) error
	GetRecentSessions(ctx context.Context, blockchainID int64, limit int) ([]*models.PollingSession, error)

	// Batch failure dead letters
	SaveBatchFailure(ctx context.Context, failure *models.BatchFailure) error
	GetBatchFailures(ctx context.Context, blockchainID int64, limit int) ([]*models.BatchFailure, error)

	// Maintenance
	Cleanup(ctx context.Context, retentionDays int) error
	GetStats(ctx context.Context) (*Stats, error)
}

// Stats provides storage statistics
type Stats struct {
	TotalBlockchains   int64      `json:"total_blockchains"`
	TotalContracts     int64      `json:"total_contracts"`
	TotalAlerts        int64      `json:"total_alerts"`
	TotalSessions      int64      `json:"total_sessions"`
	TotalBatchFailures int64      `json:"total_batch_failures"`
	OldestSession      *time.Time `json:"oldest_session,omitempty"`
}

// Config holds storage configuration
type Config struct {
	Type             string        `json:"type"`
	ConnectionString string        `json:"connection_string"`
	MaxConnections   int           `json:"max_connections"`
	MaxIdleTime      time.Duration `json:"max_idle_time"`
}
