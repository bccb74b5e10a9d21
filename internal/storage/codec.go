package storage

import (
	"database/sql"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stylusops/stylus-cache-monitor/pkg/utils"
)

// addressToDB normalizes an address for storage
func addressToDB(addr common.Address) string {
	return utils.NormalizeAddress(addr.Hex())
}

// joinAddresses renders an address list as a comma separated column value
func joinAddresses(addrs []common.Address) string {
	parts := make([]string, len(addrs))
	for i, a := range addrs {
		parts[i] = addressToDB(a)
	}
	return strings.Join(parts, ",")
}

// splitAddresses parses a comma separated address column value
func splitAddresses(s string) []common.Address {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]common.Address, 0, len(parts))
	for _, p := range parts {
		if utils.IsValidAddress(p) {
			out = append(out, common.HexToAddress(p))
		}
	}
	return out
}

// joinURLs renders a URL list as a comma separated column value
func joinURLs(urls []string) string {
	return strings.Join(urls, ",")
}

// splitURLs parses a comma separated URL column value
func splitURLs(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// weiToDB renders a nullable wei amount for storage
func weiToDB(v *big.Int) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: v.String(), Valid: true}
}

// weiFromDB parses a nullable wei column value
func weiFromDB(v sql.NullString) (*big.Int, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	return utils.ParseWei(v.String)
}
