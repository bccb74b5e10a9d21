package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/stylusops/stylus-cache-monitor/internal/models"
	"github.com/stylusops/stylus-cache-monitor/pkg/utils"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db         *sql.DB
	config     *Config
	logger     *logrus.Logger
	migrations []*Migration
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(config *Config) *SQLiteStore {
	return &SQLiteStore{
		config:     config,
		logger:     utils.GetLogger(),
		migrations: GetSQLiteMigrations(),
	}
}

// Connect establishes the database connection
func (s *SQLiteStore) Connect() error {
	dir := filepath.Dir(s.config.ConnectionString)
	if dir != "." && dir != "" && s.config.ConnectionString != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase, "failed to create database directory", err.Error())
		}
	}

	db, err := sql.Open("sqlite", s.config.ConnectionString)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to open SQLite database", err.Error())
	}

	if s.config.MaxConnections > 0 {
		db.SetMaxOpenConns(s.config.MaxConnections)
		db.SetMaxIdleConns(s.config.MaxConnections / 2)
	}
	db.SetConnMaxLifetime(s.config.MaxIdleTime)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to enable WAL mode", err.Error())
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to enable foreign keys", err.Error())
	}

	s.db = db
	s.logger.WithField("path", s.config.ConnectionString).Info("SQLite database connected")
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Ping checks database connectivity
func (s *SQLiteStore) Ping() error {
	if s.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "database not connected")
	}
	return s.db.Ping()
}

// Migrate applies all migration scripts
func (s *SQLiteStore) Migrate() error {
	if s.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "database not connected")
	}
	for _, m := range s.migrations {
		if _, err := s.db.Exec(m.SQL); err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase,
				fmt.Sprintf("migration %s failed", m.Version), err.Error())
		}
	}
	s.logger.WithField("migrations", len(s.migrations)).Info("Database migrations completed")
	return nil
}

// SaveBlockchain inserts a blockchain or updates its connection settings.
// The checkpoint column is owned by SetLastSyncedBlock and never touched here.
func (s *SQLiteStore) SaveBlockchain(ctx context.Context, blockchain *models.Blockchain) error {
	now := time.Now().UTC()
	if blockchain.ID == 0 {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO blockchains
			(name, rpc_url, backup_rpc_urls, chain_id, cache_manager_address,
			 arb_wasm_cache_address, last_synced_block, enabled, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			blockchain.Name, blockchain.RPCURL, joinURLs(blockchain.BackupRPCURLs),
			blockchain.ChainID, addressToDB(blockchain.CacheManagerAddress),
			addressToDB(blockchain.ArbWasmCacheAddress), blockchain.LastSyncedBlock,
			blockchain.Enabled, now, now)
		if err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase, "failed to insert blockchain", err.Error())
		}
		id, err := res.LastInsertId()
		if err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase, "failed to read blockchain id", err.Error())
		}
		blockchain.ID = id
		blockchain.CreatedAt = now
		blockchain.UpdatedAt = now
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE blockchains
		SET name = ?, rpc_url = ?, backup_rpc_urls = ?, chain_id = ?,
		    cache_manager_address = ?, arb_wasm_cache_address = ?, enabled = ?, updated_at = ?
		WHERE id = ?`,
		blockchain.Name, blockchain.RPCURL, joinURLs(blockchain.BackupRPCURLs),
		blockchain.ChainID, addressToDB(blockchain.CacheManagerAddress),
		addressToDB(blockchain.ArbWasmCacheAddress), blockchain.Enabled, now, blockchain.ID)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to update blockchain", err.Error())
	}
	blockchain.UpdatedAt = now
	return nil
}

// GetBlockchain loads one blockchain by id
func (s *SQLiteStore) GetBlockchain(ctx context.Context, id int64) (*models.Blockchain, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, rpc_url, backup_rpc_urls, chain_id, cache_manager_address,
		       arb_wasm_cache_address, last_synced_block, enabled, created_at, updated_at
		FROM blockchains WHERE id = ?`, id)
	return scanBlockchain(row)
}

// GetBlockchains lists blockchains, optionally only enabled ones
func (s *SQLiteStore) GetBlockchains(ctx context.Context, enabledOnly bool) ([]*models.Blockchain, error) {
	query := `
		SELECT id, name, rpc_url, backup_rpc_urls, chain_id, cache_manager_address,
		       arb_wasm_cache_address, last_synced_block, enabled, created_at, updated_at
		FROM blockchains`
	if enabledOnly {
		query += ` WHERE enabled = TRUE`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to list blockchains", err.Error())
	}
	defer rows.Close()

	var out []*models.Blockchain
	for rows.Next() {
		bc, err := scanBlockchain(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, bc)
	}
	return out, rows.Err()
}

// SetLastSyncedBlock advances the checkpoint. The guard keeps the
// checkpoint monotonic under concurrent or replayed cycles.
func (s *SQLiteStore) SetLastSyncedBlock(ctx context.Context, blockchainID int64, block uint64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE blockchains
		SET last_synced_block = ?, updated_at = ?
		WHERE id = ? AND last_synced_block <= ?`,
		block, time.Now().UTC(), blockchainID, block)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to set last synced block", err.Error())
	}
	return nil
}

// SaveContract upserts a monitored contract
func (s *SQLiteStore) SaveContract(ctx context.Context, contract *models.MonitoredContract) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO monitored_contracts (address, blockchain_id, owner_user_id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (blockchain_id, address) DO UPDATE SET name = excluded.name, updated_at = excluded.updated_at`,
		addressToDB(contract.Address), contract.BlockchainID, contract.OwnerUserID,
		contract.Name, now, now)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to save contract", err.Error())
	}
	return nil
}

// GetContractsByBlockchain lists the monitored contracts for one chain
func (s *SQLiteStore) GetContractsByBlockchain(ctx context.Context, blockchainID int64) ([]*models.MonitoredContract, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT address, blockchain_id, owner_user_id, name, created_at, updated_at
		FROM monitored_contracts WHERE blockchain_id = ? ORDER BY address`, blockchainID)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to list contracts", err.Error())
	}
	defer rows.Close()

	var out []*models.MonitoredContract
	for rows.Next() {
		var c models.MonitoredContract
		var addr string
		if err := rows.Scan(&addr, &c.BlockchainID, &c.OwnerUserID, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to scan contract", err.Error())
		}
		c.Address = common.HexToAddress(addr)
		out = append(out, &c)
	}
	return out, rows.Err()
}

// DeleteContract removes a monitored contract and its criteria
func (s *SQLiteStore) DeleteContract(ctx context.Context, blockchainID int64, address common.Address) error {
	addr := addressToDB(address)
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM monitored_contracts WHERE blockchain_id = ? AND address = ?`, blockchainID, addr); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to delete contract", err.Error())
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM selection_criteria WHERE blockchain_id = ? AND contract_address = ?`, blockchainID, addr); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to delete selection criteria", err.Error())
	}
	return nil
}

// SaveSelectionCriteria upserts bidding criteria for one contract
func (s *SQLiteStore) SaveSelectionCriteria(ctx context.Context, blockchainID int64, criteria *models.ContractSelectionCriteria) error {
	if err := criteria.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO selection_criteria (blockchain_id, contract_address, min_bid, max_bid, enabled, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (blockchain_id, contract_address) DO UPDATE SET
			min_bid = excluded.min_bid, max_bid = excluded.max_bid,
			enabled = excluded.enabled, updated_at = excluded.updated_at`,
		blockchainID, addressToDB(criteria.ContractAddress),
		weiToDB(criteria.MinBid), weiToDB(criteria.MaxBid),
		criteria.Enabled, time.Now().UTC())
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to save selection criteria", err.Error())
	}
	return nil
}

// GetSelectionCriteria loads the criteria map for one chain
func (s *SQLiteStore) GetSelectionCriteria(ctx context.Context, blockchainID int64) (map[common.Address]*models.ContractSelectionCriteria, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT contract_address, min_bid, max_bid, enabled, updated_at
		FROM selection_criteria WHERE blockchain_id = ?`, blockchainID)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to list selection criteria", err.Error())
	}
	defer rows.Close()

	out := make(map[common.Address]*models.ContractSelectionCriteria)
	for rows.Next() {
		var (
			c        models.ContractSelectionCriteria
			addr     string
			min, max sql.NullString
		)
		if err := rows.Scan(&addr, &min, &max, &c.Enabled, &c.UpdatedAt); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to scan selection criteria", err.Error())
		}
		c.ContractAddress = common.HexToAddress(addr)
		if c.MinBid, err = weiFromDB(min); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "corrupt min bid", err.Error())
		}
		if c.MaxBid, err = weiFromDB(max); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "corrupt max bid", err.Error())
		}
		out[c.ContractAddress] = &c
	}
	return out, rows.Err()
}

// SaveAlert inserts a new alert
func (s *SQLiteStore) SaveAlert(ctx context.Context, alert *models.Alert) error {
	if err := alert.Validate(); err != nil {
		return err
	}
	if alert.ID == "" {
		alert.ID = utils.GenerateID()
	}
	if alert.Status == "" {
		alert.Status = models.AlertStatusActive
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts
		(id, user_id, type, value, is_active, status, triggered_count,
		 channel_email, channel_slack, channel_telegram, channel_webhook,
		 last_triggered_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.ID, alert.UserID, string(alert.Type), weiToDB(alert.Value),
		alert.IsActive, string(alert.Status), alert.TriggeredCount,
		alert.Channels.Email, alert.Channels.Slack, alert.Channels.Telegram,
		alert.Channels.Webhook, alert.LastTriggeredAt, now, now)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to save alert", err.Error())
	}
	alert.CreatedAt = now
	alert.UpdatedAt = now
	return nil
}

// GetAlert loads one alert by id
func (s *SQLiteStore) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	row := s.db.QueryRowContext(ctx, alertSelect+` WHERE id = ?`, id)
	alert, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return nil, utils.NewAppError(utils.ErrCodeNotFound, "alert not found", id)
	}
	return alert, err
}

// GetAlertsByUser lists every alert owned by one user
func (s *SQLiteStore) GetAlertsByUser(ctx context.Context, userID string) ([]*models.Alert, error) {
	return s.queryAlerts(ctx, alertSelect+` WHERE user_id = ? ORDER BY created_at`, userID)
}

// GetAlertsByUserAndType lists one user's alerts of one type
func (s *SQLiteStore) GetAlertsByUserAndType(ctx context.Context, userID string, alertType models.AlertType) ([]*models.Alert, error) {
	return s.queryAlerts(ctx, alertSelect+` WHERE user_id = ? AND type = ? ORDER BY created_at`, userID, string(alertType))
}

// UpdateAlert persists alert state machine transitions
func (s *SQLiteStore) UpdateAlert(ctx context.Context, alert *models.Alert) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		UPDATE alerts
		SET value = ?, is_active = ?, status = ?, triggered_count = ?,
		    channel_email = ?, channel_slack = ?, channel_telegram = ?, channel_webhook = ?,
		    last_triggered_at = ?, updated_at = ?
		WHERE id = ?`,
		weiToDB(alert.Value), alert.IsActive, string(alert.Status), alert.TriggeredCount,
		alert.Channels.Email, alert.Channels.Slack, alert.Channels.Telegram, alert.Channels.Webhook,
		alert.LastTriggeredAt, now, alert.ID)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to update alert", err.Error())
	}
	alert.UpdatedAt = now
	return nil
}

// DeleteAlert removes one alert
func (s *SQLiteStore) DeleteAlert(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = ?`, id); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to delete alert", err.Error())
	}
	return nil
}

// SaveUserWallet upserts a funding wallet
func (s *SQLiteStore) SaveUserWallet(ctx context.Context, wallet *models.UserWallet) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_wallets (user_id, blockchain_id, address, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, blockchain_id) DO UPDATE SET address = excluded.address`,
		wallet.UserID, wallet.BlockchainID, addressToDB(wallet.Address), time.Now().UTC())
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to save user wallet", err.Error())
	}
	return nil
}

// GetUserWallets lists the funding wallets for one chain
func (s *SQLiteStore) GetUserWallets(ctx context.Context, blockchainID int64) ([]*models.UserWallet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, blockchain_id, address, created_at
		FROM user_wallets WHERE blockchain_id = ? ORDER BY user_id`, blockchainID)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to list user wallets", err.Error())
	}
	defer rows.Close()

	var out []*models.UserWallet
	for rows.Next() {
		var w models.UserWallet
		var addr string
		if err := rows.Scan(&w.UserID, &w.BlockchainID, &addr, &w.CreatedAt); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to scan user wallet", err.Error())
		}
		w.Address = common.HexToAddress(addr)
		out = append(out, &w)
	}
	return out, rows.Err()
}

// SavePollingSession records one finished polling cycle
func (s *SQLiteStore) SavePollingSession(ctx context.Context, session *models.PollingSession) error {
	if session.ID == "" {
		session.ID = utils.GenerateID()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO polling_sessions
		(id, blockchain_id, start_time, end_time, success, data_points, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.BlockchainID, session.StartTime, session.EndTime,
		session.Success, session.DataPoints, session.Error)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to save polling session", err.Error())
	}
	return nil
}

// GetRecentSessions lists the latest sessions for one chain, newest first
func (s *SQLiteStore) GetRecentSessions(ctx context.Context, blockchainID int64, limit int) ([]*models.PollingSession, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, blockchain_id, start_time, end_time, success, data_points, error
		FROM polling_sessions WHERE blockchain_id = ?
		ORDER BY start_time DESC LIMIT ?`, blockchainID, limit)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to list polling sessions", err.Error())
	}
	defer rows.Close()

	var out []*models.PollingSession
	for rows.Next() {
		var sess models.PollingSession
		if err := rows.Scan(&sess.ID, &sess.BlockchainID, &sess.StartTime, &sess.EndTime,
			&sess.Success, &sess.DataPoints, &sess.Error); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to scan polling session", err.Error())
		}
		out = append(out, &sess)
	}
	return out, rows.Err()
}

// SaveBatchFailure records a batch that exhausted its retries
func (s *SQLiteStore) SaveBatchFailure(ctx context.Context, failure *models.BatchFailure) error {
	if failure.ID == "" {
		failure.ID = utils.GenerateID()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO batch_failures
		(id, blockchain_id, batch_index, contracts, retry_count, last_error, failed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		failure.ID, failure.BlockchainID, failure.BatchIndex,
		joinAddresses(failure.Contracts), failure.RetryCount, failure.LastError, failure.FailedAt)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to save batch failure", err.Error())
	}
	return nil
}

// GetBatchFailures lists dead-lettered batches for one chain, newest first
func (s *SQLiteStore) GetBatchFailures(ctx context.Context, blockchainID int64, limit int) ([]*models.BatchFailure, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, blockchain_id, batch_index, contracts, retry_count, last_error, failed_at
		FROM batch_failures WHERE blockchain_id = ?
		ORDER BY failed_at DESC LIMIT ?`, blockchainID, limit)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to list batch failures", err.Error())
	}
	defer rows.Close()

	var out []*models.BatchFailure
	for rows.Next() {
		var f models.BatchFailure
		var contracts string
		if err := rows.Scan(&f.ID, &f.BlockchainID, &f.BatchIndex, &contracts,
			&f.RetryCount, &f.LastError, &f.FailedAt); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to scan batch failure", err.Error())
		}
		f.Contracts = splitAddresses(contracts)
		out = append(out, &f)
	}
	return out, rows.Err()
}

// Cleanup prunes sessions and batch failures older than the retention window
func (s *SQLiteStore) Cleanup(ctx context.Context, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM polling_sessions WHERE start_time < ?`, cutoff); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to clean polling sessions", err.Error())
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM batch_failures WHERE failed_at < ?`, cutoff); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to clean batch failures", err.Error())
	}
	return nil
}

// GetStats returns table counts
func (s *SQLiteStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	counts := []struct {
		query string
		dest  *int64
	}{
		{`SELECT COUNT(*) FROM blockchains`, &stats.TotalBlockchains},
		{`SELECT COUNT(*) FROM monitored_contracts`, &stats.TotalContracts},
		{`SELECT COUNT(*) FROM alerts`, &stats.TotalAlerts},
		{`SELECT COUNT(*) FROM polling_sessions`, &stats.TotalSessions},
		{`SELECT COUNT(*) FROM batch_failures`, &stats.TotalBatchFailures},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to read storage stats", err.Error())
		}
	}

	var oldest sql.NullTime
	if err := s.db.QueryRowContext(ctx, `SELECT MIN(start_time) FROM polling_sessions`).Scan(&oldest); err == nil && oldest.Valid {
		stats.OldestSession = &oldest.Time
	}
	return stats, nil
}

func (s *SQLiteStore) queryAlerts(ctx context.Context, query string, args ...interface{}) ([]*models.Alert, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to list alerts", err.Error())
	}
	defer rows.Close()

	var out []*models.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, alert)
	}
	return out, rows.Err()
}

const alertSelect = `
	SELECT id, user_id, type, value, is_active, status, triggered_count,
	       channel_email, channel_slack, channel_telegram, channel_webhook,
	       last_triggered_at, created_at, updated_at
	FROM alerts`

// rowScanner is satisfied by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAlert(row rowScanner) (*models.Alert, error) {
	var (
		a             models.Alert
		alertType     string
		status        string
		value         sql.NullString
		lastTriggered sql.NullTime
	)
	err := row.Scan(&a.ID, &a.UserID, &alertType, &value, &a.IsActive, &status,
		&a.TriggeredCount, &a.Channels.Email, &a.Channels.Slack,
		&a.Channels.Telegram, &a.Channels.Webhook, &lastTriggered,
		&a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to scan alert", err.Error())
	}
	a.Type = models.AlertType(alertType)
	a.Status = models.AlertStatus(status)
	if a.Value, err = weiFromDB(value); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "corrupt alert value", err.Error())
	}
	if lastTriggered.Valid {
		t := lastTriggered.Time
		a.LastTriggeredAt = &t
	}
	return &a, nil
}

func scanBlockchain(row rowScanner) (*models.Blockchain, error) {
	var (
		bc         models.Blockchain
		backupURLs string
		cacheAddr  string
		wasmAddr   string
	)
	err := row.Scan(&bc.ID, &bc.Name, &bc.RPCURL, &backupURLs, &bc.ChainID,
		&cacheAddr, &wasmAddr, &bc.LastSyncedBlock, &bc.Enabled,
		&bc.CreatedAt, &bc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, utils.NewAppError(utils.ErrCodeNotFound, "blockchain not found")
	}
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to scan blockchain", err.Error())
	}
	bc.BackupRPCURLs = splitURLs(backupURLs)
	bc.CacheManagerAddress = common.HexToAddress(cacheAddr)
	bc.ArbWasmCacheAddress = common.HexToAddress(wasmAddr)
	return &bc, nil
}
