package chain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	"github.com/stylusops/stylus-cache-monitor/internal/models"
	"github.com/stylusops/stylus-cache-monitor/pkg/utils"
)

// CacheManagerClient implements StateClient against a live node through
// an RPCManager.
type CacheManagerClient struct {
	blockchain *models.Blockchain
	manager    Manager
	logger     *logrus.Logger
}

// NewCacheManagerClient creates a state client for one blockchain
func NewCacheManagerClient(blockchain *models.Blockchain, manager Manager) *CacheManagerClient {
	return &CacheManagerClient{
		blockchain: blockchain,
		manager:    manager,
		logger:     utils.GetLogger(),
	}
}

// CurrentBlock returns the latest block number
func (c *CacheManagerClient) CurrentBlock(ctx context.Context) (uint64, error) {
	return c.manager.LatestBlockNumber(ctx)
}

// FilterCacheEvents returns decoded cache manager events in [fromBlock, toBlock]
func (c *CacheManagerClient) FilterCacheEvents(ctx context.Context, fromBlock, toBlock uint64) ([]*models.CacheEvent, error) {
	client, err := c.manager.GetClient(ctx)
	if err != nil {
		return nil, err
	}

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{c.blockchain.CacheManagerAddress},
	}

	logs, err := client.FilterLogs(ctx, query)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeBlockchain, "failed to filter cache manager logs", err.Error())
	}

	events := make([]*models.CacheEvent, 0, len(logs))
	for _, log := range logs {
		event, err := decodeCacheEvent(log, c.blockchain.ID)
		if err != nil {
			c.logger.WithFields(logrus.Fields{
				"tx_hash": log.TxHash.Hex(),
				"error":   err,
			}).Warn("Skipping undecodable cache manager log")
			continue
		}
		events = append(events, event)
	}

	sortCacheEvents(events)
	return events, nil
}

// ContractState fetches cached flag, current bid and code size for a program
func (c *CacheManagerClient) ContractState(ctx context.Context, program common.Address) (*models.ContractCacheState, error) {
	client, err := c.manager.GetClient(ctx)
	if err != nil {
		return nil, err
	}

	code, err := client.CodeAt(ctx, program, nil)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeBlockchain, "failed to fetch program code", err.Error())
	}
	codehash := crypto.Keccak256Hash(code)

	state := &models.ContractCacheState{
		Address:   program,
		Codehash:  codehash,
		CodeSize:  uint64(len(code)),
		FetchedAt: time.Now(),
	}

	cached, err := c.codehashIsCached(ctx, codehash)
	if err != nil {
		return nil, err
	}
	state.Cached = cached

	if cached {
		bid, err := c.currentBid(ctx, codehash)
		if err != nil {
			return nil, err
		}
		state.CurrentBid = bid
	}

	return state, nil
}

// MinMarketBid returns the smallest bid currently holding a cache slot
func (c *CacheManagerClient) MinMarketBid(ctx context.Context) (*big.Int, error) {
	out, err := c.callCacheManager(ctx, "getMinBid", uint64(0))
	if err != nil {
		return nil, err
	}
	bid, ok := out[0].(*big.Int)
	if !ok {
		return nil, utils.NewAppError(utils.ErrCodeBlockchain, "unexpected getMinBid return type")
	}
	return bid, nil
}

// Balance returns the native token balance of an address
func (c *CacheManagerClient) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	client, err := c.manager.GetClient(ctx)
	if err != nil {
		return nil, err
	}
	balance, err := client.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeBlockchain, "failed to fetch balance", err.Error())
	}
	return balance, nil
}

// Close releases the underlying connection
func (c *CacheManagerClient) Close() {
	c.manager.Close()
}

func (c *CacheManagerClient) codehashIsCached(ctx context.Context, codehash common.Hash) (bool, error) {
	client, err := c.manager.GetClient(ctx)
	if err != nil {
		return false, err
	}

	data, err := arbWasmCacheABI.Pack("codehashIsCached", codehash)
	if err != nil {
		return false, utils.NewAppError(utils.ErrCodeInternal, "failed to pack codehashIsCached call", err.Error())
	}

	raw, err := client.CallContract(ctx, ethereum.CallMsg{
		To:   &c.blockchain.ArbWasmCacheAddress,
		Data: data,
	}, nil)
	if err != nil {
		return false, utils.NewAppError(utils.ErrCodeBlockchain, "codehashIsCached call failed", err.Error())
	}

	out, err := arbWasmCacheABI.Unpack("codehashIsCached", raw)
	if err != nil {
		return false, utils.NewAppError(utils.ErrCodeBlockchain, "failed to unpack codehashIsCached result", err.Error())
	}
	cached, ok := out[0].(bool)
	if !ok {
		return false, utils.NewAppError(utils.ErrCodeBlockchain, "unexpected codehashIsCached return type")
	}
	return cached, nil
}

func (c *CacheManagerClient) currentBid(ctx context.Context, codehash common.Hash) (*big.Int, error) {
	out, err := c.callCacheManager(ctx, "getBid", codehash)
	if err != nil {
		return nil, err
	}
	bid, ok := out[0].(*big.Int)
	if !ok {
		return nil, utils.NewAppError(utils.ErrCodeBlockchain, "unexpected getBid return type")
	}
	return bid, nil
}

func (c *CacheManagerClient) callCacheManager(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	client, err := c.manager.GetClient(ctx)
	if err != nil {
		return nil, err
	}

	data, err := cacheManagerABI.Pack(method, args...)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeInternal, "failed to pack "+method+" call", err.Error())
	}

	raw, err := client.CallContract(ctx, ethereum.CallMsg{
		To:   &c.blockchain.CacheManagerAddress,
		Data: data,
	}, nil)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeBlockchain, method+" call failed", err.Error())
	}

	out, err := cacheManagerABI.Unpack(method, raw)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeBlockchain, "failed to unpack "+method+" result", err.Error())
	}
	if len(out) == 0 {
		return nil, utils.NewAppError(utils.ErrCodeBlockchain, method+" returned no values")
	}
	return out, nil
}
