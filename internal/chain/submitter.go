package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/stylusops/stylus-cache-monitor/pkg/utils"
)

// RelaySubmitter submits bid batches to an external transaction relay,
// which owns signing keys and broadcasts the actual transactions.
type RelaySubmitter struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     *logrus.Logger
}

type relayRequest struct {
	BlockchainID int64    `json:"blockchain_id"`
	Addresses    []string `json:"addresses"`
}

type relayResponse struct {
	TxHash string `json:"tx_hash"`
	Error  string `json:"error,omitempty"`
}

// NewRelaySubmitter creates a submitter for a relay endpoint
func NewRelaySubmitter(endpoint, apiKey string, timeout time.Duration) *RelaySubmitter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RelaySubmitter{
		endpoint: endpoint,
		apiKey:   apiKey,
		logger:   utils.GetLogger(),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     30 * time.Second,
			},
		},
	}
}

// SubmitBatch posts one batch of program addresses for bid placement
func (s *RelaySubmitter) SubmitBatch(ctx context.Context, blockchainID int64, addresses []common.Address) (string, error) {
	hexAddrs := make([]string, len(addresses))
	for i, a := range addresses {
		hexAddrs[i] = a.Hex()
	}

	body, err := json.Marshal(relayRequest{
		BlockchainID: blockchainID,
		Addresses:    hexAddrs,
	})
	if err != nil {
		return "", utils.NewAppError(utils.ErrCodeInternal, "failed to encode relay request", err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", utils.NewAppError(utils.ErrCodeInternal, "failed to build relay request", err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", utils.NewAppError(utils.ErrCodeSubmission, "relay request failed", err.Error())
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", utils.NewAppError(utils.ErrCodeSubmission,
			fmt.Sprintf("relay returned status %d", resp.StatusCode), string(raw))
	}

	var parsed relayResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", utils.NewAppError(utils.ErrCodeSubmission, "invalid relay response", err.Error())
	}
	if parsed.Error != "" {
		return "", utils.NewAppError(utils.ErrCodeSubmission, "relay rejected batch", parsed.Error)
	}

	s.logger.WithFields(logrus.Fields{
		"blockchain_id": blockchainID,
		"contracts":     len(addresses),
		"tx_hash":       parsed.TxHash,
	}).Debug("Batch submitted to relay")

	return parsed.TxHash, nil
}
