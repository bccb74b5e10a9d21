package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// CacheEventKind identifies a decoded cache manager event
type CacheEventKind string

const (
	CacheEventInsertBid    CacheEventKind = "InsertBid"
	CacheEventDeleteBid    CacheEventKind = "DeleteBid"
	CacheEventSetCacheSize CacheEventKind = "SetCacheSize"
	CacheEventSetDecayRate CacheEventKind = "SetDecayRate"
	CacheEventPause        CacheEventKind = "Pause"
	CacheEventUnpause      CacheEventKind = "Unpause"
)

// CacheEvent is a decoded cache manager log entry.
// DeleteBid events are evictions of the named codehash.
type CacheEvent struct {
	ID           string         `json:"id" db:"id"`
	BlockchainID int64          `json:"blockchain_id" db:"blockchain_id"`
	Kind         CacheEventKind `json:"kind" db:"kind"`
	BlockNumber  uint64         `json:"block_number" db:"block_number"`
	BlockHash    string         `json:"block_hash" db:"block_hash"`
	TxHash       string         `json:"tx_hash" db:"tx_hash"`
	LogIndex     uint           `json:"log_index" db:"log_index"`
	Codehash     common.Hash    `json:"codehash" db:"codehash"`
	Program      common.Address `json:"program,omitempty" db:"program"`
	Bid          *big.Int       `json:"bid,omitempty" db:"bid"`
	Size         uint64         `json:"size,omitempty" db:"size"`
	Timestamp    time.Time      `json:"timestamp" db:"timestamp"`
}

// IsEviction reports whether the event removes cached code
func (e *CacheEvent) IsEviction() bool {
	return e.Kind == CacheEventDeleteBid
}

// ContractCacheState is the refreshed on-chain view of one contract.
// Codehash ties the contract back to DeleteBid events, which identify
// the evicted code by hash rather than by program address.
type ContractCacheState struct {
	Address    common.Address `json:"address"`
	Codehash   common.Hash    `json:"codehash"`
	Cached     bool           `json:"cached"`
	CurrentBid *big.Int       `json:"current_bid,omitempty"`
	CodeSize   uint64         `json:"code_size"`
	FetchedAt  time.Time      `json:"fetched_at"`
}
