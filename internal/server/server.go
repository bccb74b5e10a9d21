package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/stylusops/stylus-cache-monitor/internal/config"
	"github.com/stylusops/stylus-cache-monitor/internal/metrics"
	"github.com/stylusops/stylus-cache-monitor/internal/models"
	"github.com/stylusops/stylus-cache-monitor/internal/notification"
	"github.com/stylusops/stylus-cache-monitor/internal/storage"
	"github.com/stylusops/stylus-cache-monitor/pkg/utils"
)

// HTTPServer exposes the monitoring and configuration API
type HTTPServer struct {
	config    *config.ServerConfig
	server    *http.Server
	router    *mux.Router
	storage   storage.Store
	collector *metrics.Collector
	prom      *metrics.PrometheusMetrics
	notifier  *notification.Manager
	logger    *logrus.Logger
	startTime time.Time
}

// NewHTTPServer creates a new HTTP server
func NewHTTPServer(
	cfg *config.ServerConfig,
	store storage.Store,
	collector *metrics.Collector,
	prom *metrics.PrometheusMetrics,
	notifier *notification.Manager,
) *HTTPServer {
	s := &HTTPServer{
		config:    cfg,
		storage:   store,
		collector: collector,
		prom:      prom,
		notifier:  notifier,
		logger:    utils.GetLogger(),
		startTime: time.Now(),
	}

	s.setupRouter()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// Handler returns the configured router, used by tests
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

// setupRouter sets up the HTTP routes
func (s *HTTPServer) setupRouter() {
	s.router = mux.NewRouter()

	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.corsMiddleware)
	if s.prom != nil {
		s.router.Use(s.metricsMiddleware)
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()

	if s.config.EnableHealth {
		api.HandleFunc("/health", s.healthHandler).Methods("GET")
	}

	if s.config.EnableMetrics {
		s.router.Handle("/metrics", promhttp.Handler())
		api.HandleFunc("/stats", s.statsHandler).Methods("GET")
	}

	// Blockchain endpoints
	api.HandleFunc("/blockchains", s.listBlockchainsHandler).Methods("GET")
	api.HandleFunc("/blockchains/{id}", s.getBlockchainHandler).Methods("GET")
	api.HandleFunc("/blockchains/{id}/metrics", s.blockchainMetricsHandler).Methods("GET")
	api.HandleFunc("/blockchains/{id}/sessions", s.listSessionsHandler).Methods("GET")
	api.HandleFunc("/blockchains/{id}/failures", s.listBatchFailuresHandler).Methods("GET")

	// Contract endpoints
	api.HandleFunc("/blockchains/{id}/contracts", s.listContractsHandler).Methods("GET")
	api.HandleFunc("/blockchains/{id}/contracts", s.addContractHandler).Methods("POST")
	api.HandleFunc("/blockchains/{id}/contracts/{address}", s.removeContractHandler).Methods("DELETE")
	api.HandleFunc("/blockchains/{id}/contracts/{address}/criteria", s.setCriteriaHandler).Methods("PUT")

	// Alert endpoints
	api.HandleFunc("/alerts", s.addAlertHandler).Methods("POST")
	api.HandleFunc("/alerts/{id}", s.getAlertHandler).Methods("GET")
	api.HandleFunc("/alerts/{id}", s.updateAlertHandler).Methods("PUT")
	api.HandleFunc("/alerts/{id}", s.removeAlertHandler).Methods("DELETE")
	api.HandleFunc("/users/{user}/alerts", s.listUserAlertsHandler).Methods("GET")
}

// Start starts the HTTP server
func (s *HTTPServer) Start() error {
	s.logger.WithFields(logrus.Fields{
		"address":         s.server.Addr,
		"metrics_enabled": s.config.EnableMetrics,
	}).Info("Starting HTTP server")

	if s.prom != nil {
		go s.uptimeUpdater()
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("HTTP server error")
			errChan <- err
		}
	}()

	// Surface immediate binding errors to the caller
	select {
	case err := <-errChan:
		return utils.NewAppError(utils.ErrCodeInternal, "failed to start HTTP server", err.Error())
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// Stop stops the HTTP server
func (s *HTTPServer) Stop() error {
	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) uptimeUpdater() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		s.prom.UpdateApplicationUptime(s.startTime)
	}
}

// Health and stats handlers

func (s *HTTPServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if err := s.storage.Ping(); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, map[string]interface{}{
		"status":         status,
		"timestamp":      time.Now().UTC().Format(time.RFC3339Nano),
		"uptime_seconds": time.Since(s.startTime).Seconds(),
	})
}

func (s *HTTPServer) statsHandler(w http.ResponseWriter, r *http.Request) {
	storageStats, err := s.storage.GetStats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to retrieve storage stats", err)
		return
	}

	stats := map[string]interface{}{
		"timestamp": time.Now().UTC(),
		"storage":   storageStats,
		"polling":   s.collector.AllMetrics(),
	}
	if s.notifier != nil {
		stats["notifications"] = s.notifier.GetStats()
	}

	s.writeJSON(w, http.StatusOK, stats)
}

// Blockchain handlers

func (s *HTTPServer) listBlockchainsHandler(w http.ResponseWriter, r *http.Request) {
	enabledOnly := r.URL.Query().Get("enabled") == "true"
	chains, err := s.storage.GetBlockchains(r.Context(), enabledOnly)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to retrieve blockchains", err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"blockchains": chains,
		"total":       len(chains),
	})
}

func (s *HTTPServer) getBlockchainHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.blockchainID(w, r)
	if !ok {
		return
	}

	chain, err := s.storage.GetBlockchain(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "Blockchain not found", err)
		return
	}

	s.writeJSON(w, http.StatusOK, chain)
}

func (s *HTTPServer) blockchainMetricsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.blockchainID(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, s.collector.Metrics(id))
}

func (s *HTTPServer) listSessionsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.blockchainID(w, r)
	if !ok {
		return
	}

	sessions, err := s.storage.GetRecentSessions(r.Context(), id, s.limitParam(r))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to retrieve sessions", err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"total":    len(sessions),
	})
}

func (s *HTTPServer) listBatchFailuresHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.blockchainID(w, r)
	if !ok {
		return
	}

	failures, err := s.storage.GetBatchFailures(r.Context(), id, s.limitParam(r))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to retrieve batch failures", err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"failures": failures,
		"total":    len(failures),
	})
}

// Contract handlers

func (s *HTTPServer) listContractsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.blockchainID(w, r)
	if !ok {
		return
	}

	contracts, err := s.storage.GetContractsByBlockchain(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to retrieve contracts", err)
		return
	}

	criteria, err := s.storage.GetSelectionCriteria(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to retrieve selection criteria", err)
		return
	}

	type entry struct {
		*models.MonitoredContract
		Criteria *models.ContractSelectionCriteria `json:"criteria,omitempty"`
	}
	out := make([]entry, 0, len(contracts))
	for _, c := range contracts {
		out = append(out, entry{MonitoredContract: c, Criteria: criteria[c.Address]})
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"contracts": out,
		"total":     len(out),
	})
}

func (s *HTTPServer) addContractHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.blockchainID(w, r)
	if !ok {
		return
	}

	var req struct {
		Address     string `json:"address"`
		Name        string `json:"name"`
		OwnerUserID string `json:"owner_user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if !utils.IsValidAddress(req.Address) {
		s.writeError(w, http.StatusBadRequest, "Valid contract address is required", nil)
		return
	}

	contract := &models.MonitoredContract{
		Address:      common.HexToAddress(req.Address),
		BlockchainID: id,
		OwnerUserID:  req.OwnerUserID,
		Name:         req.Name,
	}
	if err := s.storage.SaveContract(r.Context(), contract); err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to add contract", err)
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Contract added successfully",
		"address": contract.Address.Hex(),
	})
}

func (s *HTTPServer) removeContractHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.blockchainID(w, r)
	if !ok {
		return
	}
	address := mux.Vars(r)["address"]
	if !utils.IsValidAddress(address) {
		s.writeError(w, http.StatusBadRequest, "Valid contract address is required", nil)
		return
	}

	if err := s.storage.DeleteContract(r.Context(), id, common.HexToAddress(address)); err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to remove contract", err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Contract removed successfully",
		"address": address,
	})
}

func (s *HTTPServer) setCriteriaHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.blockchainID(w, r)
	if !ok {
		return
	}
	address := mux.Vars(r)["address"]
	if !utils.IsValidAddress(address) {
		s.writeError(w, http.StatusBadRequest, "Valid contract address is required", nil)
		return
	}

	var req struct {
		MinBid  string `json:"min_bid,omitempty"`
		MaxBid  string `json:"max_bid,omitempty"`
		Enabled bool   `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	criteria := &models.ContractSelectionCriteria{
		ContractAddress: common.HexToAddress(address),
		Enabled:         req.Enabled,
	}
	var err error
	if req.MinBid != "" {
		if criteria.MinBid, err = utils.ParseWei(req.MinBid); err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid min_bid", err)
			return
		}
	}
	if req.MaxBid != "" {
		if criteria.MaxBid, err = utils.ParseWei(req.MaxBid); err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid max_bid", err)
			return
		}
	}
	if err := criteria.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid selection criteria", err)
		return
	}

	if err := s.storage.SaveSelectionCriteria(r.Context(), id, criteria); err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to save selection criteria", err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Selection criteria saved successfully",
		"address": address,
	})
}

// Alert handlers

func (s *HTTPServer) addAlertHandler(w http.ResponseWriter, r *http.Request) {
	var alert models.Alert
	if err := json.NewDecoder(r.Body).Decode(&alert); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := alert.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid alert", err)
		return
	}

	if err := s.storage.SaveAlert(r.Context(), &alert); err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to save alert", err)
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":  "Alert created successfully",
		"alert_id": alert.ID,
	})
}

func (s *HTTPServer) getAlertHandler(w http.ResponseWriter, r *http.Request) {
	alert, err := s.storage.GetAlert(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, http.StatusNotFound, "Alert not found", err)
		return
	}
	s.writeJSON(w, http.StatusOK, alert)
}

func (s *HTTPServer) updateAlertHandler(w http.ResponseWriter, r *http.Request) {
	alertID := mux.Vars(r)["id"]

	existing, err := s.storage.GetAlert(r.Context(), alertID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "Alert not found", err)
		return
	}

	var req struct {
		Value    *string               `json:"value,omitempty"`
		IsActive *bool                 `json:"is_active,omitempty"`
		Channels *models.AlertChannels `json:"channels_enabled,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if req.Value != nil {
		if existing.Value, err = utils.ParseWei(*req.Value); err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid alert value", err)
			return
		}
	}
	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}
	if req.Channels != nil {
		existing.Channels = *req.Channels
	}
	if err := existing.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid alert", err)
		return
	}

	if err := s.storage.UpdateAlert(r.Context(), existing); err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to update alert", err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "Alert updated successfully",
		"alert_id": alertID,
	})
}

func (s *HTTPServer) removeAlertHandler(w http.ResponseWriter, r *http.Request) {
	alertID := mux.Vars(r)["id"]
	if err := s.storage.DeleteAlert(r.Context(), alertID); err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to delete alert", err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "Alert deleted successfully",
		"alert_id": alertID,
	})
}

func (s *HTTPServer) listUserAlertsHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user"]
	alerts, err := s.storage.GetAlertsByUser(r.Context(), userID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to retrieve alerts", err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"total":  len(alerts),
	})
}

// Utility methods

func (s *HTTPServer) blockchainID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid blockchain id", err)
		return 0, false
	}
	return id, true
}

func (s *HTTPServer) limitParam(r *http.Request) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 50
}

// writeJSON writes a JSON response
func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := map[string]interface{}{
		"error":     message,
		"status":    status,
		"timestamp": time.Now().UTC(),
	}
	if err != nil {
		resp["details"] = err.Error()
		s.logger.WithFields(logrus.Fields{
			"status":  status,
			"message": message,
			"error":   err,
		}).Error("HTTP error")
	}

	s.writeJSON(w, status, resp)
}
