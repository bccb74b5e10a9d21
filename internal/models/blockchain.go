package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Blockchain represents a monitored chain and its sync checkpoint.
// LastSyncedBlock is owned by the state poller and never moves backward.
type Blockchain struct {
	ID                  int64          `json:"id" db:"id"`
	Name                string         `json:"name" db:"name"`
	RPCURL              string         `json:"rpc_url" db:"rpc_url"`
	BackupRPCURLs       []string       `json:"backup_rpc_urls,omitempty" db:"backup_rpc_urls"`
	ChainID             uint64         `json:"chain_id" db:"chain_id"`
	CacheManagerAddress common.Address `json:"cache_manager_address" db:"cache_manager_address"`
	ArbWasmCacheAddress common.Address `json:"arb_wasm_cache_address" db:"arb_wasm_cache_address"`
	LastSyncedBlock     uint64         `json:"last_synced_block" db:"last_synced_block"`
	Enabled             bool           `json:"enabled" db:"enabled"`
	CreatedAt           time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at" db:"updated_at"`
}
