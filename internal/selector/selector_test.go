package selector

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stylusops/stylus-cache-monitor/internal/bidding"
	"github.com/stylusops/stylus-cache-monitor/internal/models"
)

var (
	addrA = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	addrB = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	addrC = common.HexToAddress("0x00000000000000000000000000000000000000cc")
)

func contract(addr common.Address, user string) *models.MonitoredContract {
	return &models.MonitoredContract{
		Address:      addr,
		BlockchainID: 1,
		OwnerUserID:  user,
		Name:         "test",
	}
}

func enabledCriteria(addr common.Address) *models.ContractSelectionCriteria {
	return &models.ContractSelectionCriteria{
		ContractAddress: addr,
		MinBid:          big.NewInt(0),
		MaxBid:          big.NewInt(1e15),
		Enabled:         true,
	}
}

func cachedState(addr common.Address, bid int64) *models.ContractCacheState {
	return &models.ContractCacheState{
		Address:    addr,
		Cached:     true,
		CurrentBid: big.NewInt(bid),
		FetchedAt:  time.Now(),
	}
}

func uncachedState(addr common.Address) *models.ContractCacheState {
	return &models.ContractCacheState{Address: addr, FetchedAt: time.Now()}
}

func TestSelectDisabledContractsAreNeverSelected(t *testing.T) {
	s := New(bidding.DefaultBounds())

	disabled := enabledCriteria(addrA)
	disabled.Enabled = false

	state := &ChainState{
		States: map[common.Address]*models.ContractCacheState{
			addrA: uncachedState(addrA),
		},
		MinMarketBid: big.NewInt(1000),
	}

	result := s.Select([]*models.MonitoredContract{contract(addrA, "u1")},
		map[common.Address]*models.ContractSelectionCriteria{addrA: disabled}, state)

	assert.Equal(t, 1, result.TotalProcessed)
	assert.Equal(t, 0, result.TotalEligible)
	assert.Empty(t, result.Selected)
	assert.Equal(t, 1, result.SkipCounts[SkipDisabled])
}

func TestSelectMissingCriteriaCountsAsDisabled(t *testing.T) {
	s := New(bidding.DefaultBounds())

	result := s.Select([]*models.MonitoredContract{contract(addrA, "u1")}, nil, &ChainState{})

	assert.Equal(t, 1, result.SkipCounts[SkipDisabled])
}

func TestSelectClassificationOrder(t *testing.T) {
	s := New(bidding.DefaultBounds())

	// addrA: safely cached AND fetch error recorded; alreadyCached wins.
	// addrB: fetch error only.
	// addrC: uncached, state present; eligible.
	state := &ChainState{
		States: map[common.Address]*models.ContractCacheState{
			addrA: cachedState(addrA, 2000),
			addrC: uncachedState(addrC),
		},
		FetchErrors: map[common.Address]error{
			addrA: errors.New("rpc timeout"),
			addrB: errors.New("rpc timeout"),
		},
		MinMarketBid: big.NewInt(1000),
	}

	contracts := []*models.MonitoredContract{
		contract(addrA, "u1"),
		contract(addrB, "u1"),
		contract(addrC, "u2"),
	}
	criteria := map[common.Address]*models.ContractSelectionCriteria{
		addrA: enabledCriteria(addrA),
		addrB: enabledCriteria(addrB),
		addrC: enabledCriteria(addrC),
	}

	result := s.Select(contracts, criteria, state)

	assert.Equal(t, 3, result.TotalProcessed)
	assert.Equal(t, 1, result.TotalEligible)
	require.Len(t, result.Selected, 1)
	assert.Equal(t, addrC, result.Selected[0].Address)
	assert.Equal(t, "u2", result.Selected[0].UserID)

	assert.Equal(t, 1, result.SkipCounts[SkipAlreadyCached])
	assert.Equal(t, 1, result.SkipCounts[SkipFetchError])
	assert.Equal(t, 0, result.SkipCounts[SkipDisabled])
}

func TestSelectCachedNearEvictionIsEligible(t *testing.T) {
	s := New(bidding.DefaultBounds())

	// Cached at the market bid exactly: margin 0 bps, inside the eviction
	// danger zone, so the contract needs a re-bid.
	state := &ChainState{
		States: map[common.Address]*models.ContractCacheState{
			addrA: cachedState(addrA, 1000),
		},
		MinMarketBid: big.NewInt(1000),
	}

	result := s.Select([]*models.MonitoredContract{contract(addrA, "u1")},
		map[common.Address]*models.ContractSelectionCriteria{addrA: enabledCriteria(addrA)}, state)

	require.Len(t, result.Selected, 1)
	assert.Equal(t, addrA, result.Selected[0].Address)
}

func TestSelectContractWithoutStateIsFetchError(t *testing.T) {
	s := New(bidding.DefaultBounds())

	result := s.Select([]*models.MonitoredContract{contract(addrA, "u1")},
		map[common.Address]*models.ContractSelectionCriteria{addrA: enabledCriteria(addrA)},
		&ChainState{MinMarketBid: big.NewInt(1)})

	assert.Equal(t, 1, result.SkipCounts[SkipFetchError])
	assert.Empty(t, result.Selected)
}
