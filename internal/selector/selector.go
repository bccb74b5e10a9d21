package selector

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/stylusops/stylus-cache-monitor/internal/bidding"
	"github.com/stylusops/stylus-cache-monitor/internal/models"
	"github.com/stylusops/stylus-cache-monitor/pkg/utils"
)

// SkipReason explains why a contract was not selected for bidding
type SkipReason string

// Classification is exclusive and ordered: disabled, then alreadyCached,
// then fetchError. The order is fixed so a contract with both a stale
// fetch and a resident cache entry is reported consistently.
const (
	SkipDisabled      SkipReason = "disabled"
	SkipAlreadyCached SkipReason = "already_cached"
	SkipFetchError    SkipReason = "fetch_error"
)

// ChainState is the per-cycle view of chain data the selector consumes
type ChainState struct {
	States       map[common.Address]*models.ContractCacheState
	FetchErrors  map[common.Address]error
	MinMarketBid *big.Int
}

// SelectedContract is one contract eligible for an automated bid
type SelectedContract struct {
	UserID       string         `json:"user_id"`
	Address      common.Address `json:"address"`
	BlockchainID int64          `json:"blockchain_id"`
}

// SkippedContract records an excluded contract and the first matching reason
type SkippedContract struct {
	Address common.Address `json:"address"`
	Reason  SkipReason     `json:"reason"`
}

// Result carries the eligible set plus the per-reason breakdown needed
// for observability
type Result struct {
	Selected       []SelectedContract `json:"selected_contracts"`
	Skipped        []SkippedContract  `json:"skipped_contracts"`
	TotalProcessed int                `json:"total_processed"`
	TotalEligible  int                `json:"total_eligible"`
	SkipCounts     map[SkipReason]int `json:"skip_counts"`
}

// Selector classifies monitored contracts for automated bidding
type Selector struct {
	bounds bidding.Bounds
	logger *logrus.Logger
}

// New creates a selector with the given safety bounds
func New(bounds bidding.Bounds) *Selector {
	return &Selector{
		bounds: bounds,
		logger: utils.GetLogger(),
	}
}

// Select classifies every candidate contract. Per-contract fetch errors are
// isolated as skips; they never fail the cycle.
func (s *Selector) Select(contracts []*models.MonitoredContract, criteria map[common.Address]*models.ContractSelectionCriteria, state *ChainState) *Result {
	result := &Result{
		Selected:   []SelectedContract{},
		Skipped:    []SkippedContract{},
		SkipCounts: make(map[SkipReason]int),
	}
	if state == nil {
		state = &ChainState{}
	}

	for _, contract := range contracts {
		result.TotalProcessed++

		if reason, skipped := s.classify(contract, criteria[contract.Address], state); skipped {
			result.Skipped = append(result.Skipped, SkippedContract{
				Address: contract.Address,
				Reason:  reason,
			})
			result.SkipCounts[reason]++
			continue
		}

		result.Selected = append(result.Selected, SelectedContract{
			UserID:       contract.OwnerUserID,
			Address:      contract.Address,
			BlockchainID: contract.BlockchainID,
		})
	}

	result.TotalEligible = len(result.Selected)

	s.logger.WithFields(logrus.Fields{
		"processed": result.TotalProcessed,
		"eligible":  result.TotalEligible,
		"skipped":   len(result.Skipped),
	}).Debug("Contract selection completed")

	return result
}

// classify returns the first matching skip reason, if any
func (s *Selector) classify(contract *models.MonitoredContract, criteria *models.ContractSelectionCriteria, state *ChainState) (SkipReason, bool) {
	if criteria == nil || !criteria.Enabled {
		return SkipDisabled, true
	}

	if cacheState, ok := state.States[contract.Address]; ok && s.safelyCached(cacheState, state.MinMarketBid) {
		return SkipAlreadyCached, true
	}

	if _, failed := state.FetchErrors[contract.Address]; failed {
		return SkipFetchError, true
	}
	if _, ok := state.States[contract.Address]; !ok {
		// No refreshed state and no recorded error still means the chain
		// view is unusable for this contract in this cycle.
		return SkipFetchError, true
	}

	return "", false
}

// safelyCached reports whether the contract's code is resident and its bid
// sits at least the minimum safety margin above the market bid, i.e. it is
// not near eviction.
func (s *Selector) safelyCached(state *models.ContractCacheState, marketBid *big.Int) bool {
	if state == nil || !state.Cached {
		return false
	}
	margin := bidding.MarginBps(state.CurrentBid, marketBid)
	if margin == nil {
		// Empty market: a resident entry cannot be outbid right now.
		return true
	}
	return margin.Cmp(big.NewInt(s.bounds.MinBps)) >= 0
}
