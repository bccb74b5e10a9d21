package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stylusops/stylus-cache-monitor/internal/config"
	"github.com/stylusops/stylus-cache-monitor/internal/metrics"
	"github.com/stylusops/stylus-cache-monitor/internal/models"
	"github.com/stylusops/stylus-cache-monitor/internal/storage"
)

func newTestServer(t *testing.T) *HTTPServer {
	t.Helper()

	store := storage.NewSQLiteStore(&storage.Config{
		Type:             "sqlite",
		ConnectionString: filepath.Join(t.TempDir(), "test.db"),
		MaxConnections:   2,
	})
	require.NoError(t, store.Connect())
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { _ = store.Close() })

	bc := &models.Blockchain{
		Name:    "arbitrum-sepolia",
		RPCURL:  "http://localhost:8547",
		ChainID: 421614,
		Enabled: true,
	}
	require.NoError(t, store.SaveBlockchain(context.Background(), bc))

	return NewHTTPServer(&config.ServerConfig{
		Host:         "127.0.0.1",
		Port:         0,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		EnableHealth: true,
	}, store, metrics.NewCollector(nil), nil, nil)
}

func doRequest(t *testing.T, srv *HTTPServer, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
}

func TestAddAndListContracts(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/blockchains/1/contracts", map[string]string{
		"address":       "0x00000000000000000000000000000000000000a1",
		"name":          "pricing engine",
		"owner_user_id": "u1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doRequest(t, srv, http.MethodPut,
		"/api/v1/blockchains/1/contracts/0x00000000000000000000000000000000000000a1/criteria",
		map[string]interface{}{"min_bid": "1000", "max_bid": "5000", "enabled": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/blockchains/1/contracts", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Contracts []struct {
			Address  string `json:"address"`
			Name     string `json:"name"`
			Criteria *struct {
				Enabled bool `json:"enabled"`
			} `json:"criteria"`
		} `json:"contracts"`
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "pricing engine", resp.Contracts[0].Name)
	require.NotNil(t, resp.Contracts[0].Criteria)
	assert.True(t, resp.Contracts[0].Criteria.Enabled)
}

func TestAddContractRejectsBadAddress(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/blockchains/1/contracts", map[string]string{
		"address": "not-an-address",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCriteriaRejectsInvertedBounds(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPut,
		"/api/v1/blockchains/1/contracts/0x00000000000000000000000000000000000000a1/criteria",
		map[string]interface{}{"min_bid": "5000", "max_bid": "1000", "enabled": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAlertLifecycleOverAPI(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/alerts", map[string]interface{}{
		"user_id":          "u1",
		"type":             "low_gas",
		"value":            5000000,
		"is_active":        true,
		"channels_enabled": map[string]bool{"slack": true},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	alertID, _ := created["alert_id"].(string)
	require.NotEmpty(t, alertID)

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/alerts/"+alertID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var alert models.Alert
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &alert))
	assert.Equal(t, models.AlertTypeLowGas, alert.Type)
	assert.True(t, alert.Channels.Slack)

	rec = doRequest(t, srv, http.MethodPut, "/api/v1/alerts/"+alertID, map[string]interface{}{
		"is_active": false,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/users/u1/alerts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Alerts []models.Alert `json:"alerts"`
		Total  int            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Equal(t, 1, list.Total)
	assert.False(t, list.Alerts[0].IsActive)

	rec = doRequest(t, srv, http.MethodDelete, "/api/v1/alerts/"+alertID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/alerts/"+alertID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownBlockchainReturnsNotFound(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/blockchains/99", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
