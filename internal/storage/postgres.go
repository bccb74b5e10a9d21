package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/stylusops/stylus-cache-monitor/internal/models"
	"github.com/stylusops/stylus-cache-monitor/pkg/utils"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db         *sql.DB
	config     *Config
	logger     *logrus.Logger
	migrations []*Migration
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(config *Config) *PostgresStore {
	return &PostgresStore{
		config:     config,
		logger:     utils.GetLogger(),
		migrations: GetPostgreSQLMigrations(),
	}
}

// Connect establishes the database connection
func (p *PostgresStore) Connect() error {
	db, err := sql.Open("postgres", p.config.ConnectionString)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to open PostgreSQL database", err.Error())
	}

	if p.config.MaxConnections > 0 {
		db.SetMaxOpenConns(p.config.MaxConnections)
		db.SetMaxIdleConns(p.config.MaxConnections / 2)
	}
	db.SetConnMaxLifetime(p.config.MaxIdleTime)

	if err := db.Ping(); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to ping PostgreSQL database", err.Error())
	}

	p.db = db
	p.logger.Info("PostgreSQL database connected")
	return nil
}

// Close closes the database connection
func (p *PostgresStore) Close() error {
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}

// Ping checks database connectivity
func (p *PostgresStore) Ping() error {
	if p.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "database not connected")
	}
	return p.db.Ping()
}

// Migrate applies all migration scripts
func (p *PostgresStore) Migrate() error {
	if p.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "database not connected")
	}
	for _, m := range p.migrations {
		if _, err := p.db.Exec(m.SQL); err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase,
				fmt.Sprintf("migration %s failed", m.Version), err.Error())
		}
	}
	p.logger.WithField("migrations", len(p.migrations)).Info("Database migrations completed")
	return nil
}

// SaveBlockchain inserts a blockchain or updates its connection settings.
// The checkpoint column is owned by SetLastSyncedBlock and never touched here.
func (p *PostgresStore) SaveBlockchain(ctx context.Context, blockchain *models.Blockchain) error {
	now := time.Now().UTC()
	if blockchain.ID == 0 {
		err := p.db.QueryRowContext(ctx, `
			INSERT INTO blockchains
			(name, rpc_url, backup_rpc_urls, chain_id, cache_manager_address,
			 arb_wasm_cache_address, last_synced_block, enabled, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id`,
			blockchain.Name, blockchain.RPCURL, joinURLs(blockchain.BackupRPCURLs),
			blockchain.ChainID, addressToDB(blockchain.CacheManagerAddress),
			addressToDB(blockchain.ArbWasmCacheAddress), blockchain.LastSyncedBlock,
			blockchain.Enabled, now, now).Scan(&blockchain.ID)
		if err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase, "failed to insert blockchain", err.Error())
		}
		blockchain.CreatedAt = now
		blockchain.UpdatedAt = now
		return nil
	}

	_, err := p.db.ExecContext(ctx, `
		UPDATE blockchains
		SET name = $1, rpc_url = $2, backup_rpc_urls = $3, chain_id = $4,
		    cache_manager_address = $5, arb_wasm_cache_address = $6, enabled = $7, updated_at = $8
		WHERE id = $9`,
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
func (p *PostgresStore) GetBlockchain(ctx context.Context, id int64) (*models.Blockchain, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, name, rpc_url, backup_rpc_urls, chain_id, cache_manager_address,
		       arb_wasm_cache_address, last_synced_block, enabled, created_at, updated_at
		FROM blockchains WHERE id = $1`, id)
	return scanBlockchain(row)
}

// GetBlockchains lists blockchains, optionally only enabled ones
func (p *PostgresStore) GetBlockchains(ctx context.Context, enabledOnly bool) ([]*models.Blockchain, error) {
	query := `
		SELECT id, name, rpc_url, backup_rpc_urls, chain_id, cache_manager_address,
		       arb_wasm_cache_address, last_synced_block, enabled, created_at, updated_at
		FROM blockchains`
	if enabledOnly {
		query += ` WHERE enabled = TRUE`
	}
	query += ` ORDER BY id`

	rows, err := p.db.QueryContext(ctx, query)
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
func (p *PostgresStore) SetLastSyncedBlock(ctx context.Context, blockchainID int64, block uint64) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE blockchains
		SET last_synced_block = $1, updated_at = $2
		WHERE id = $3 AND last_synced_block <= $1`,
		block, time.Now().UTC(), blockchainID)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to set last synced block", err.Error())
	}
	return nil
}

// SaveContract upserts a monitored contract
func (p *PostgresStore) SaveContract(ctx context.Context, contract *models.MonitoredContract) error {
	now := time.Now().UTC()
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO monitored_contracts (address, blockchain_id, owner_user_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (blockchain_id, address) DO UPDATE SET name = EXCLUDED.name, updated_at = EXCLUDED.updated_at`,
		addressToDB(contract.Address), contract.BlockchainID, contract.OwnerUserID,
		contract.Name, now, now)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to save contract", err.Error())
	}
	return nil
}

// GetContractsByBlockchain lists the monitored contracts for one chain
func (p *PostgresStore) GetContractsByBlockchain(ctx context.Context, blockchainID int64) ([]*models.MonitoredContract, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT address, blockchain_id, owner_user_id, name, created_at, updated_at
		FROM monitored_contracts WHERE blockchain_id = $1 ORDER BY address`, blockchainID)
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
func (p *PostgresStore) DeleteContract(ctx context.Context, blockchainID int64, address common.Address) error {
	addr := addressToDB(address)
	if _, err := p.db.ExecContext(ctx,
		`DELETE FROM monitored_contracts WHERE blockchain_id = $1 AND address = $2`, blockchainID, addr); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to delete contract", err.Error())
	}
	if _, err := p.db.ExecContext(ctx,
		`DELETE FROM selection_criteria WHERE blockchain_id = $1 AND contract_address = $2`, blockchainID, addr); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to delete selection criteria", err.Error())
	}
	return nil
}

// SaveSelectionCriteria upserts bidding criteria for one contract
func (p *PostgresStore) SaveSelectionCriteria(ctx context.Context, blockchainID int64, criteria *models.ContractSelectionCriteria) error {
	if err := criteria.Validate(); err != nil {
		return err
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO selection_criteria (blockchain_id, contract_address, min_bid, max_bid, enabled, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (blockchain_id, contract_address) DO UPDATE SET
			min_bid = EXCLUDED.min_bid, max_bid = EXCLUDED.max_bid,
			enabled = EXCLUDED.enabled, updated_at = EXCLUDED.updated_at`,
		blockchainID, addressToDB(criteria.ContractAddress),
		weiToDB(criteria.MinBid), weiToDB(criteria.MaxBid),
		criteria.Enabled, time.Now().UTC())
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to save selection criteria", err.Error())
	}
	return nil
}

// GetSelectionCriteria loads the criteria map for one chain
func (p *PostgresStore) GetSelectionCriteria(ctx context.Context, blockchainID int64) (map[common.Address]*models.ContractSelectionCriteria, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT contract_address, min_bid, max_bid, enabled, updated_at
		FROM selection_criteria WHERE blockchain_id = $1`, blockchainID)
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
func (p *PostgresStore) SaveAlert(ctx context.Context, alert *models.Alert) error {
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
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO alerts
		(id, user_id, type, value, is_active, status, triggered_count,
		 channel_email, channel_slack, channel_telegram, channel_webhook,
		 last_triggered_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
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
func (p *PostgresStore) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	row := p.db.QueryRowContext(ctx, alertSelect+` WHERE id = $1`, id)
	alert, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return nil, utils.NewAppError(utils.ErrCodeNotFound, "alert not found", id)
	}
	return alert, err
}

// GetAlertsByUser lists every alert owned by one user
func (p *PostgresStore) GetAlertsByUser(ctx context.Context, userID string) ([]*models.Alert, error) {
	return p.queryAlerts(ctx, alertSelect+` WHERE user_id = $1 ORDER BY created_at`, userID)
}

// GetAlertsByUserAndType lists one user's alerts of one type
func (p *PostgresStore) GetAlertsByUserAndType(ctx context.Context, userID string, alertType models.AlertType) ([]*models.Alert, error) {
	return p.queryAlerts(ctx, alertSelect+` WHERE user_id = $1 AND type = $2 ORDER BY created_at`, userID, string(alertType))
}

// UpdateAlert persists alert state machine transitions
func (p *PostgresStore) UpdateAlert(ctx context.Context, alert *models.Alert) error {
	now := time.Now().UTC()
	_, err := p.db.ExecContext(ctx, `
		UPDATE alerts
		SET value = $1, is_active = $2, status = $3, triggered_count = $4,
		    channel_email = $5, channel_slack = $6, channel_telegram = $7, channel_webhook = $8,
		    last_triggered_at = $9, updated_at = $10
		WHERE id = $11`,
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
func (p *PostgresStore) DeleteAlert(ctx context.Context, id string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = $1`, id); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to delete alert", err.Error())
	}
	return nil
}

// SaveUserWallet upserts a funding wallet
func (p *PostgresStore) SaveUserWallet(ctx context.Context, wallet *models.UserWallet) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO user_wallets (user_id, blockchain_id, address, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, blockchain_id) DO UPDATE SET address = EXCLUDED.address`,
		wallet.UserID, wallet.BlockchainID, addressToDB(wallet.Address), time.Now().UTC())
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to save user wallet", err.Error())
	}
	return nil
}

// GetUserWallets lists the funding wallets for one chain
func (p *PostgresStore) GetUserWallets(ctx context.Context, blockchainID int64) ([]*models.UserWallet, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT user_id, blockchain_id, address, created_at
		FROM user_wallets WHERE blockchain_id = $1 ORDER BY user_id`, blockchainID)
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
func (p *PostgresStore) SavePollingSession(ctx context.Context, session *models.PollingSession) error {
	if session.ID == "" {
		session.ID = utils.GenerateID()
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO polling_sessions
		(id, blockchain_id, start_time, end_time, success, data_points, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			end_time = EXCLUDED.end_time, success = EXCLUDED.success,
			data_points = EXCLUDED.data_points, error = EXCLUDED.error`,
		session.ID, session.BlockchainID, session.StartTime, session.EndTime,
		session.Success, session.DataPoints, session.Error)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to save polling session", err.Error())
	}
	return nil
}

// GetRecentSessions lists the latest sessions for one chain, newest first
func (p *PostgresStore) GetRecentSessions(ctx context.Context, blockchainID int64, limit int) ([]*models.PollingSession, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, blockchain_id, start_time, end_time, success, data_points, error
		FROM polling_sessions WHERE blockchain_id = $1
		ORDER BY start_time DESC LIMIT $2`, blockchainID, limit)
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
func (p *PostgresStore) SaveBatchFailure(ctx context.Context, failure *models.BatchFailure) error {
	if failure.ID == "" {
		failure.ID = utils.GenerateID()
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO batch_failures
		(id, blockchain_id, batch_index, contracts, retry_count, last_error, failed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		failure.ID, failure.BlockchainID, failure.BatchIndex,
		joinAddresses(failure.Contracts), failure.RetryCount, failure.LastError, failure.FailedAt)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to save batch failure", err.Error())
	}
	return nil
}

// GetBatchFailures lists dead-lettered batches for one chain, newest first
func (p *PostgresStore) GetBatchFailures(ctx context.Context, blockchainID int64, limit int) ([]*models.BatchFailure, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, blockchain_id, batch_index, contracts, retry_count, last_error, failed_at
		FROM batch_failures WHERE blockchain_id = $1
		ORDER BY failed_at DESC LIMIT $2`, blockchainID, limit)
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
func (p *PostgresStore) Cleanup(ctx context.Context, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	if _, err := p.db.ExecContext(ctx,
		`DELETE FROM polling_sessions WHERE start_time < $1`, cutoff); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to clean polling sessions", err.Error())
	}
	if _, err := p.db.ExecContext(ctx,
		`DELETE FROM batch_failures WHERE failed_at < $1`, cutoff); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to clean batch failures", err.Error())
	}
	return nil
}

// GetStats returns table counts
func (p *PostgresStore) GetStats(ctx context.Context) (*Stats, error) {
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
		if err := p.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to read storage stats", err.Error())
		}
	}

	var oldest sql.NullTime
	if err := p.db.QueryRowContext(ctx, `SELECT MIN(start_time) FROM polling_sessions`).Scan(&oldest); err == nil && oldest.Valid {
		stats.OldestSession = &oldest.Time
	}
	return stats, nil
}

func (p *PostgresStore) queryAlerts(ctx context.Context, query string, args ...interface{}) ([]*models.Alert, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
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
