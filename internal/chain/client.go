package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stylusops/stylus-cache-monitor/internal/models"
)

// StateClient provides read-only access to one blockchain's cache manager.
// The polling and selection pipeline depends on this interface only; the
// concrete RPC transport lives behind it.
type StateClient interface {
	// CurrentBlock returns the latest block number
	CurrentBlock(ctx context.Context) (uint64, error)

	// FilterCacheEvents returns decoded cache manager events in
	// [fromBlock, toBlock], ascending by block then log index
	FilterCacheEvents(ctx context.Context, fromBlock, toBlock uint64) ([]*models.CacheEvent, error)

	// ContractState fetches the refreshed cache attributes of one program
	ContractState(ctx context.Context, program common.Address) (*models.ContractCacheState, error)

	// MinMarketBid returns the smallest bid currently holding a cache slot
	MinMarketBid(ctx context.Context) (*big.Int, error)

	// Balance returns the native token balance of an address
	Balance(ctx context.Context, addr common.Address) (*big.Int, error)

	// Close releases the underlying connections
	Close()
}
