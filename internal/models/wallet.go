package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// UserWallet is the funding wallet automated bids are paid from.
// Its balance feeds the no-gas and low-gas alert rules.
type UserWallet struct {
	UserID       string         `json:"user_id" db:"user_id"`
	BlockchainID int64          `json:"blockchain_id" db:"blockchain_id"`
	Address      common.Address `json:"address" db:"address"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
}
