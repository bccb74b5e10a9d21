package utils

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// GenerateID generates a random UUID string
func GenerateID() string {
	return uuid.NewString()
}

// IsValidAddress checks if a string is a valid EVM address
func IsValidAddress(address string) bool {
	return common.IsHexAddress(address)
}

// NormalizeAddress normalizes an address to lowercase with 0x prefix
func NormalizeAddress(address string) string {
	if !strings.HasPrefix(address, "0x") {
		address = "0x" + address
	}
	return strings.ToLower(address)
}

// WeiToString renders a wei amount, tolerating nil
func WeiToString(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return wei.String()
}

// ParseWei parses a decimal wei string into a big.Int
func ParseWei(s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid wei amount %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative wei amount %q", s)
	}
	return v, nil
}

// FormatBlockNumber formats a block number for display
func FormatBlockNumber(blockNumber uint64) string {
	return fmt.Sprintf("0x%x", blockNumber)
}
