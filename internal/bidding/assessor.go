package bidding

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stylusops/stylus-cache-monitor/internal/models"
)

// Basis-point bounds for bid safety. All margin arithmetic is integer
// big.Int math; floating point would diverge across implementations.
const (
	BasisPointsBase = 10000
	MinSafetyBps    = 100   // 1%
	MaxSafetyBps    = 10000 // 100%
)

var basisPointsBase = big.NewInt(BasisPointsBase)

// Bounds are the inclusive safety-margin limits in basis points
type Bounds struct {
	MinBps int64
	MaxBps int64
}

// DefaultBounds returns the standard [1%, 100%] safety window
func DefaultBounds() Bounds {
	return Bounds{MinBps: MinSafetyBps, MaxBps: MaxSafetyBps}
}

// Assessment is the result of checking one proposed bid
type Assessment struct {
	ContractAddress common.Address `json:"contract_address"`
	ProposedBid     *big.Int       `json:"proposed_bid"`
	MarketBid       *big.Int       `json:"market_bid"`
	SafetyMarginBps *big.Int       `json:"safety_margin_bps,omitempty"`
	IsEligible      bool           `json:"is_eligible"`
	Reason          string         `json:"reason,omitempty"`
}

// MarginBps computes (bid - market) * 10000 / market in basis points.
// Returns nil when market is zero or unknown; the margin is undefined then.
func MarginBps(bid, market *big.Int) *big.Int {
	if bid == nil || market == nil || market.Sign() == 0 {
		return nil
	}
	diff := new(big.Int).Sub(bid, market)
	diff.Mul(diff, basisPointsBase)
	return diff.Quo(diff, market)
}

// Assess checks a proposed bid against criteria bounds and the default
// safety window. Pure function: no chain or store access.
func Assess(criteria *models.ContractSelectionCriteria, proposedBid, currentMarketBid *big.Int) *Assessment {
	return AssessWithBounds(criteria, proposedBid, currentMarketBid, DefaultBounds())
}

// AssessWithBounds is Assess with configurable safety-margin bounds.
// Eligible iff minBid <= bid <= maxBid and the margin against the current
// market bid lies inside the bounds, all comparisons inclusive.
func AssessWithBounds(criteria *models.ContractSelectionCriteria, proposedBid, currentMarketBid *big.Int, bounds Bounds) *Assessment {
	a := &Assessment{
		ProposedBid: proposedBid,
		MarketBid:   currentMarketBid,
	}
	if criteria != nil {
		a.ContractAddress = criteria.ContractAddress
	}

	if proposedBid == nil || proposedBid.Sign() < 0 {
		a.Reason = "proposed bid is missing or negative"
		return a
	}

	if criteria != nil && criteria.MinBid != nil && proposedBid.Cmp(criteria.MinBid) < 0 {
		a.Reason = "bid below configured minimum"
		return a
	}
	if criteria != nil && criteria.MaxBid != nil && proposedBid.Cmp(criteria.MaxBid) > 0 {
		a.Reason = "bid above configured maximum"
		return a
	}

	margin := MarginBps(proposedBid, currentMarketBid)
	a.SafetyMarginBps = margin

	// With no market bid there is nothing to undercut; bounds alone decide.
	if margin == nil {
		a.IsEligible = true
		return a
	}

	if margin.Cmp(big.NewInt(bounds.MinBps)) < 0 {
		a.Reason = "bid below safety margin"
		return a
	}
	if margin.Cmp(big.NewInt(bounds.MaxBps)) > 0 {
		a.Reason = "bid above safety margin"
		return a
	}

	a.IsEligible = true
	return a
}

// SuggestBid proposes a bid one minimum safety margin above the current
// market bid, clamped into the criteria bounds.
func SuggestBid(criteria *models.ContractSelectionCriteria, currentMarketBid *big.Int, bounds Bounds) *big.Int {
	bid := new(big.Int)
	if currentMarketBid != nil && currentMarketBid.Sign() > 0 {
		bid.Mul(currentMarketBid, big.NewInt(BasisPointsBase+bounds.MinBps))
		bid.Quo(bid, basisPointsBase)
	}

	if criteria != nil {
		if criteria.MinBid != nil && bid.Cmp(criteria.MinBid) < 0 {
			bid.Set(criteria.MinBid)
		}
		if criteria.MaxBid != nil && bid.Cmp(criteria.MaxBid) > 0 {
			bid.Set(criteria.MaxBid)
		}
	}
	return bid
}
