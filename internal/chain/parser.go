package chain

import (
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/stylusops/stylus-cache-monitor/internal/models"
	"github.com/stylusops/stylus-cache-monitor/pkg/utils"
)

// decodeCacheEvent decodes a raw cache manager log into a CacheEvent
func decodeCacheEvent(log types.Log, blockchainID int64) (*models.CacheEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("log has no topics")
	}

	event, err := cacheManagerABI.EventByID(log.Topics[0])
	if err != nil {
		return nil, fmt.Errorf("unknown event topic %s", log.Topics[0].Hex())
	}

	decoded := &models.CacheEvent{
		ID:           utils.GenerateID(),
		BlockchainID: blockchainID,
		Kind:         models.CacheEventKind(event.Name),
		BlockNumber:  log.BlockNumber,
		BlockHash:    log.BlockHash.Hex(),
		TxHash:       log.TxHash.Hex(),
		LogIndex:     log.Index,
		Timestamp:    time.Now(),
	}

	values, err := cacheManagerABI.Unpack(event.Name, log.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}

	switch decoded.Kind {
	case models.CacheEventInsertBid:
		if len(log.Topics) < 2 || len(values) < 3 {
			return nil, fmt.Errorf("malformed InsertBid log")
		}
		decoded.Codehash = log.Topics[1]
		decoded.Program, _ = values[0].(common.Address)
		decoded.Bid, _ = values[1].(*big.Int)
		decoded.Size = toUint64(values[2])
	case models.CacheEventDeleteBid:
		if len(log.Topics) < 2 || len(values) < 2 {
			return nil, fmt.Errorf("malformed DeleteBid log")
		}
		decoded.Codehash = log.Topics[1]
		decoded.Bid, _ = values[0].(*big.Int)
		decoded.Size = toUint64(values[1])
	case models.CacheEventSetCacheSize, models.CacheEventSetDecayRate:
		if len(values) < 1 {
			return nil, fmt.Errorf("malformed %s log", event.Name)
		}
		decoded.Size = toUint64(values[0])
	case models.CacheEventPause, models.CacheEventUnpause:
		// no arguments
	default:
		return nil, fmt.Errorf("unhandled event %s", event.Name)
	}

	return decoded, nil
}

// sortCacheEvents orders events ascending by block, then log index
func sortCacheEvents(events []*models.CacheEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].BlockNumber != events[j].BlockNumber {
			return events[i].BlockNumber < events[j].BlockNumber
		}
		return events[i].LogIndex < events[j].LogIndex
	})
}

func toUint64(v interface{}) uint64 {
	switch n := v.(type) {
	case uint64:
		return n
	case *big.Int:
		return n.Uint64()
	default:
		return 0
	}
}
