package chain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stylusops/stylus-cache-monitor/internal/alerting"
	"github.com/stylusops/stylus-cache-monitor/internal/models"
)

func packLog(t *testing.T, eventName string, topics []common.Hash, args ...interface{}) types.Log {
	t.Helper()
	event, ok := cacheManagerABI.Events[eventName]
	require.True(t, ok, "event %s not in ABI", eventName)

	data, err := event.Inputs.NonIndexed().Pack(args...)
	require.NoError(t, err)

	return types.Log{
		Topics:      append([]common.Hash{event.ID}, topics...),
		Data:        data,
		BlockNumber: 105,
		BlockHash:   common.HexToHash("0xb1"),
		TxHash:      common.HexToHash("0xt1"),
		Index:       3,
	}
}

func TestDecodeInsertBid(t *testing.T) {
	codehash := common.HexToHash("0xabcdef0000000000000000000000000000000000000000000000000000000001")
	program := common.HexToAddress("0x00000000000000000000000000000000000000a1")

	log := packLog(t, "InsertBid", []common.Hash{codehash}, program, big.NewInt(5000), uint64(2048))

	decoded, err := decodeCacheEvent(log, 1)
	require.NoError(t, err)

	assert.Equal(t, models.CacheEventInsertBid, decoded.Kind)
	assert.Equal(t, codehash, decoded.Codehash)
	assert.Equal(t, program, decoded.Program)
	assert.Equal(t, int64(5000), decoded.Bid.Int64())
	assert.Equal(t, uint64(2048), decoded.Size)
	assert.Equal(t, uint64(105), decoded.BlockNumber)
}

// DeleteBid logs carry only the evicted codehash; the decoded event has no
// program address, and eviction rules must resolve it through the codehash
// rather than silently dropping the event.
func TestDecodeDeleteBidAndResolveEviction(t *testing.T) {
	codehash := common.HexToHash("0xabcdef0000000000000000000000000000000000000000000000000000000002")
	program := common.HexToAddress("0x00000000000000000000000000000000000000b2")

	log := packLog(t, "DeleteBid", []common.Hash{codehash}, big.NewInt(7777), uint64(4096))

	decoded, err := decodeCacheEvent(log, 1)
	require.NoError(t, err)

	assert.Equal(t, models.CacheEventDeleteBid, decoded.Kind)
	assert.True(t, decoded.IsEviction())
	assert.Equal(t, codehash, decoded.Codehash)
	assert.Equal(t, common.Address{}, decoded.Program)
	assert.Equal(t, int64(7777), decoded.Bid.Int64())
	assert.Equal(t, uint64(4096), decoded.Size)

	conditions := alerting.BuildConditions(&alerting.Snapshot{
		BlockchainID:   1,
		Events:         []*models.CacheEvent{decoded},
		ContractOwners: map[common.Address]string{program: "u1"},
		Programs:       map[common.Hash]common.Address{codehash: program},
	})

	require.Len(t, conditions, 1)
	assert.Equal(t, models.AlertTypeEviction, conditions[0].Type)
	assert.Equal(t, "u1", conditions[0].UserID)
	assert.Equal(t, program, conditions[0].ContractAddress)
}

func TestDecodeRejectsUnknownTopic(t *testing.T) {
	log := types.Log{Topics: []common.Hash{common.HexToHash("0xff")}}
	_, err := decodeCacheEvent(log, 1)
	assert.Error(t, err)
}

func TestSortCacheEventsOrdersByBlockThenIndex(t *testing.T) {
	events := []*models.CacheEvent{
		{BlockNumber: 10, LogIndex: 2},
		{BlockNumber: 9, LogIndex: 5},
		{BlockNumber: 10, LogIndex: 1},
	}
	sortCacheEvents(events)

	assert.Equal(t, uint64(9), events[0].BlockNumber)
	assert.Equal(t, uint(1), events[1].LogIndex)
	assert.Equal(t, uint(2), events[2].LogIndex)
}
