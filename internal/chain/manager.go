package chain

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"

	"github.com/stylusops/stylus-cache-monitor/pkg/utils"
)

// Manager maintains the RPC connection for one blockchain, failing over to
// backup nodes when the primary is unhealthy.
type Manager interface {
	GetClient(ctx context.Context) (*ethclient.Client, error)
	HealthCheck(ctx context.Context) error
	LatestBlockNumber(ctx context.Context) (uint64, error)
	IsConnected() bool
	Stats() ConnectionStats
	Close() error
}

// ConnectionStats holds connection statistics
type ConnectionStats struct {
	TotalRequests   uint64    `json:"total_requests"`
	FailedRequests  uint64    `json:"failed_requests"`
	Reconnects      uint64    `json:"reconnects"`
	CurrentURL      string    `json:"current_url"`
	LastConnectedAt time.Time `json:"last_connected_at"`
	LastHealthCheck time.Time `json:"last_health_check"`
	IsHealthy       bool      `json:"is_healthy"`
	LatestBlock     uint64    `json:"latest_block"`
}

// RPCManager implements Manager over a primary URL plus ordered backups
type RPCManager struct {
	urls           []string
	requestTimeout time.Duration
	logger         *logrus.Logger

	mu              sync.RWMutex
	client          *ethclient.Client
	currentIndex    int
	stats           ConnectionStats
	lastHealthCheck time.Time
	healthy         bool
}

// NewRPCManager creates a manager for one chain's node set
func NewRPCManager(primaryURL string, backupURLs []string, requestTimeout time.Duration) *RPCManager {
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	urls := append([]string{primaryURL}, backupURLs...)
	return &RPCManager{
		urls:           urls,
		requestTimeout: requestTimeout,
		logger:         utils.GetLogger(),
		stats:          ConnectionStats{CurrentURL: primaryURL},
	}
}

// GetClient returns a connected client, dialing on first use
func (m *RPCManager) GetClient(ctx context.Context) (*ethclient.Client, error) {
	m.mu.RLock()
	client := m.client
	stale := time.Since(m.lastHealthCheck) > time.Minute
	m.mu.RUnlock()

	if client != nil && !stale {
		return client, nil
	}
	if client != nil {
		if err := m.HealthCheck(ctx); err == nil {
			return client, nil
		}
	}
	return m.connect(ctx)
}

// connect dials each configured URL in order until one responds
func (m *RPCManager) connect(ctx context.Context) (*ethclient.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil {
		m.client.Close()
		m.client = nil
		m.stats.Reconnects++
	}

	var lastErr error
	for i := 0; i < len(m.urls); i++ {
		idx := (m.currentIndex + i) % len(m.urls)
		url := m.urls[idx]

		dialCtx, cancel := context.WithTimeout(ctx, m.requestTimeout)
		client, err := ethclient.DialContext(dialCtx, url)
		if err == nil {
			_, err = client.BlockNumber(dialCtx)
		}
		cancel()

		if err != nil {
			lastErr = err
			m.logger.WithFields(logrus.Fields{
				"url":   url,
				"error": err,
			}).Warn("Failed to connect to RPC node")
			continue
		}

		m.client = client
		m.currentIndex = idx
		m.healthy = true
		m.lastHealthCheck = time.Now()
		m.stats.CurrentURL = url
		m.stats.LastConnectedAt = time.Now()
		m.stats.IsHealthy = true

		m.logger.WithField("url", url).Info("Connected to RPC node")
		return client, nil
	}

	m.healthy = false
	m.stats.IsHealthy = false
	detail := ""
	if lastErr != nil {
		detail = lastErr.Error()
	}
	return nil, utils.NewAppError(utils.ErrCodeConnection, "all RPC nodes unreachable", detail)
}

// HealthCheck verifies the current connection responds
func (m *RPCManager) HealthCheck(ctx context.Context) error {
	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()

	if client == nil {
		return utils.NewAppError(utils.ErrCodeConnection, "not connected")
	}

	checkCtx, cancel := context.WithTimeout(ctx, m.requestTimeout)
	defer cancel()

	_, err := client.BlockNumber(checkCtx)

	m.mu.Lock()
	m.lastHealthCheck = time.Now()
	m.stats.LastHealthCheck = m.lastHealthCheck
	m.healthy = err == nil
	m.stats.IsHealthy = m.healthy
	m.mu.Unlock()

	if err != nil {
		return utils.NewAppError(utils.ErrCodeConnection, "health check failed", err.Error())
	}
	return nil
}

// LatestBlockNumber returns the chain head block number
func (m *RPCManager) LatestBlockNumber(ctx context.Context) (uint64, error) {
	client, err := m.GetClient(ctx)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	m.stats.TotalRequests++
	m.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, m.requestTimeout)
	defer cancel()

	block, err := client.BlockNumber(callCtx)
	if err != nil {
		m.recordFailure()
		return 0, utils.NewAppError(utils.ErrCodeBlockchain, "failed to get block number", err.Error())
	}

	m.mu.Lock()
	m.stats.LatestBlock = block
	m.mu.Unlock()
	return block, nil
}

// IsConnected reports whether the manager holds a healthy connection
func (m *RPCManager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client != nil && m.healthy
}

// Stats returns a snapshot of connection statistics
func (m *RPCManager) Stats() ConnectionStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

// Close releases the client connection
func (m *RPCManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		m.client.Close()
		m.client = nil
	}
	m.healthy = false
	return nil
}

func (m *RPCManager) recordFailure() {
	m.mu.Lock()
	m.stats.FailedRequests++
	m.mu.Unlock()
}
