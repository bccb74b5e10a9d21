package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stylusops/stylus-cache-monitor/pkg/utils"
)

// MonitoredContract represents a user-registered contract under automation.
// Immutable after registration except for Name.
type MonitoredContract struct {
	Address      common.Address `json:"address" db:"address"`
	BlockchainID int64          `json:"blockchain_id" db:"blockchain_id"`
	OwnerUserID  string         `json:"owner_user_id" db:"owner_user_id"`
	Name         string         `json:"name" db:"name"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}

// ContractSelectionCriteria configures automated bidding for one contract.
// Bid bounds are wei amounts; MinBid <= MaxBid must hold when both are set.
type ContractSelectionCriteria struct {
	ContractAddress common.Address `json:"contract_address" db:"contract_address"`
	MinBid          *big.Int       `json:"min_bid,omitempty" db:"min_bid"`
	MaxBid          *big.Int       `json:"max_bid,omitempty" db:"max_bid"`
	Enabled         bool           `json:"enabled" db:"enabled"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}

// Validate rejects malformed criteria before they enter the pipeline
func (c *ContractSelectionCriteria) Validate() error {
	if c.MinBid != nil && c.MinBid.Sign() < 0 {
		return utils.NewAppError(utils.ErrCodeValidation, "min bid must not be negative")
	}
	if c.MaxBid != nil && c.MaxBid.Sign() < 0 {
		return utils.NewAppError(utils.ErrCodeValidation, "max bid must not be negative")
	}
	if c.MinBid != nil && c.MaxBid != nil && c.MinBid.Cmp(c.MaxBid) > 0 {
		return utils.NewAppError(utils.ErrCodeValidation, "min bid exceeds max bid",
			c.MinBid.String()+" > "+c.MaxBid.String())
	}
	return nil
}
