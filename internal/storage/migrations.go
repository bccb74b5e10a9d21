package storage

// Migration represents one database migration script
type Migration struct {
	Version     string
	Description string
	SQL         string
}

// GetSQLiteMigrations returns SQLite migration scripts
func GetSQLiteMigrations() []*Migration {
	return []*Migration{
		{
			Version:     "001",
			Description: "Create blockchains table",
			SQL: `
				CREATE TABLE IF NOT EXISTS blockchains (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL UNIQUE,
					rpc_url TEXT NOT NULL,
					backup_rpc_urls TEXT NOT NULL DEFAULT '', -- comma separated
					chain_id INTEGER NOT NULL,
					cache_manager_address TEXT NOT NULL,
					arb_wasm_cache_address TEXT NOT NULL DEFAULT '',
					last_synced_block INTEGER NOT NULL DEFAULT 0,
					enabled BOOLEAN DEFAULT TRUE,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_blockchains_enabled ON blockchains(enabled);
			`,
		},
		{
			Version:     "002",
			Description: "Create monitored_contracts table",
			SQL: `
				CREATE TABLE IF NOT EXISTS monitored_contracts (
					address TEXT NOT NULL,
					blockchain_id INTEGER NOT NULL,
					owner_user_id TEXT NOT NULL,
					name TEXT NOT NULL DEFAULT '',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (blockchain_id, address),
					FOREIGN KEY (blockchain_id) REFERENCES blockchains (id)
				);

				CREATE INDEX IF NOT EXISTS idx_contracts_owner ON monitored_contracts(owner_user_id);
			`,
		},
		{
			Version:     "003",
			Description: "Create selection_criteria table",
			SQL: `
				CREATE TABLE IF NOT EXISTS selection_criteria (
					blockchain_id INTEGER NOT NULL,
					contract_address TEXT NOT NULL,
					min_bid TEXT, -- wei, decimal string
					max_bid TEXT, -- wei, decimal string
					enabled BOOLEAN DEFAULT TRUE,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (blockchain_id, contract_address)
				);
			`,
		},
		{
			Version:     "004",
			Description: "Create alerts table",
			SQL: `
				CREATE TABLE IF NOT EXISTS alerts (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					type TEXT NOT NULL,
					value TEXT, -- wei, decimal string
					is_active BOOLEAN DEFAULT TRUE,
					status TEXT NOT NULL DEFAULT 'active',
					triggered_count INTEGER NOT NULL DEFAULT 0,
					channel_email BOOLEAN DEFAULT FALSE,
					channel_slack BOOLEAN DEFAULT FALSE,
					channel_telegram BOOLEAN DEFAULT FALSE,
					channel_webhook BOOLEAN DEFAULT FALSE,
					last_triggered_at DATETIME,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_alerts_user_type ON alerts(user_id, type);
				CREATE INDEX IF NOT EXISTS idx_alerts_status ON alerts(status);
			`,
		},
		{
			Version:     "005",
			Description: "Create user_wallets table",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_wallets (
					user_id TEXT NOT NULL,
					blockchain_id INTEGER NOT NULL,
					address TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (user_id, blockchain_id)
				);
			`,
		},
		{
			Version:     "006",
			Description: "Create polling_sessions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS polling_sessions (
					id TEXT PRIMARY KEY,
					blockchain_id INTEGER NOT NULL,
					start_time DATETIME NOT NULL,
					end_time DATETIME,
					success BOOLEAN DEFAULT FALSE,
					data_points INTEGER NOT NULL DEFAULT 0,
					error TEXT NOT NULL DEFAULT ''
				);

				CREATE INDEX IF NOT EXISTS idx_sessions_blockchain ON polling_sessions(blockchain_id, start_time);
			`,
		},
		{
			Version:     "007",
			Description: "Create batch_failures table",
			SQL: `
				CREATE TABLE IF NOT EXISTS batch_failures (
					id TEXT PRIMARY KEY,
					blockchain_id INTEGER NOT NULL,
					batch_index INTEGER NOT NULL,
					contracts TEXT NOT NULL, -- comma separated addresses
					retry_count INTEGER NOT NULL DEFAULT 0,
					last_error TEXT NOT NULL DEFAULT '',
					failed_at DATETIME NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_batch_failures_blockchain ON batch_failures(blockchain_id, failed_at);
			`,
		},
	}
}

// GetPostgreSQLMigrations returns PostgreSQL migration scripts
func GetPostgreSQLMigrations() []*Migration {
	return []*Migration{
		{
			Version:     "001",
			Description: "Create blockchains table",
			SQL: `
				CREATE TABLE IF NOT EXISTS blockchains (
					id BIGSERIAL PRIMARY KEY,
					name TEXT NOT NULL UNIQUE,
					rpc_url TEXT NOT NULL,
					backup_rpc_urls TEXT NOT NULL DEFAULT '',
					chain_id BIGINT NOT NULL,
					cache_manager_address TEXT NOT NULL,
					arb_wasm_cache_address TEXT NOT NULL DEFAULT '',
					last_synced_block BIGINT NOT NULL DEFAULT 0,
					enabled BOOLEAN DEFAULT TRUE,
					created_at TIMESTAMPTZ DEFAULT NOW(),
					updated_at TIMESTAMPTZ DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_blockchains_enabled ON blockchains(enabled);
			`,
		},
		{
			Version:     "002",
			Description: "Create monitored_contracts table",
			SQL: `
				CREATE TABLE IF NOT EXISTS monitored_contracts (
					address TEXT NOT NULL,
					blockchain_id BIGINT NOT NULL REFERENCES blockchains(id),
					owner_user_id TEXT NOT NULL,
					name TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMPTZ DEFAULT NOW(),
					updated_at TIMESTAMPTZ DEFAULT NOW(),
					PRIMARY KEY (blockchain_id, address)
				);

				CREATE INDEX IF NOT EXISTS idx_contracts_owner ON monitored_contracts(owner_user_id);
			`,
		},
		{
			Version:     "003",
			Description: "Create selection_criteria table",
			SQL: `
				CREATE TABLE IF NOT EXISTS selection_criteria (
					blockchain_id BIGINT NOT NULL,
					contract_address TEXT NOT NULL,
					min_bid NUMERIC(78, 0),
					max_bid NUMERIC(78, 0),
					enabled BOOLEAN DEFAULT TRUE,
					updated_at TIMESTAMPTZ DEFAULT NOW(),
					PRIMARY KEY (blockchain_id, contract_address)
				);
			`,
		},
		{
			Version:     "004",
			Description: "Create alerts table",
			SQL: `
				CREATE TABLE IF NOT EXISTS alerts (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					type TEXT NOT NULL,
					value NUMERIC(78, 0),
					is_active BOOLEAN DEFAULT TRUE,
					status TEXT NOT NULL DEFAULT 'active',
					triggered_count INTEGER NOT NULL DEFAULT 0,
					channel_email BOOLEAN DEFAULT FALSE,
					channel_slack BOOLEAN DEFAULT FALSE,
					channel_telegram BOOLEAN DEFAULT FALSE,
					channel_webhook BOOLEAN DEFAULT FALSE,
					last_triggered_at TIMESTAMPTZ,
					created_at TIMESTAMPTZ DEFAULT NOW(),
					updated_at TIMESTAMPTZ DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_alerts_user_type ON alerts(user_id, type);
				CREATE INDEX IF NOT EXISTS idx_alerts_status ON alerts(status);
			`,
		},
		{
			Version:     "005",
			Description: "Create user_wallets table",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_wallets (
					user_id TEXT NOT NULL,
					blockchain_id BIGINT NOT NULL,
					address TEXT NOT NULL,
					created_at TIMESTAMPTZ DEFAULT NOW(),
					PRIMARY KEY (user_id, blockchain_id)
				);
			`,
		},
		{
			Version:     "006",
			Description: "Create polling_sessions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS polling_sessions (
					id TEXT PRIMARY KEY,
					blockchain_id BIGINT NOT NULL,
					start_time TIMESTAMPTZ NOT NULL,
					end_time TIMESTAMPTZ,
					success BOOLEAN DEFAULT FALSE,
					data_points INTEGER NOT NULL DEFAULT 0,
					error TEXT NOT NULL DEFAULT ''
				);

				CREATE INDEX IF NOT EXISTS idx_sessions_blockchain ON polling_sessions(blockchain_id, start_time);
			`,
		},
		{
			Version:     "007",
			Description: "Create batch_failures table",
			SQL: `
				CREATE TABLE IF NOT EXISTS batch_failures (
					id TEXT PRIMARY KEY,
					blockchain_id BIGINT NOT NULL,
					batch_index INTEGER NOT NULL,
					contracts TEXT NOT NULL,
					retry_count INTEGER NOT NULL DEFAULT 0,
					last_error TEXT NOT NULL DEFAULT '',
					failed_at TIMESTAMPTZ NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_batch_failures_blockchain ON batch_failures(blockchain_id, failed_at);
			`,
		},
	}
}
