package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stylusops/stylus-cache-monitor/internal/alerting"
	"github.com/stylusops/stylus-cache-monitor/internal/automation"
	"github.com/stylusops/stylus-cache-monitor/internal/batch"
	"github.com/stylusops/stylus-cache-monitor/internal/bidding"
	"github.com/stylusops/stylus-cache-monitor/internal/chain"
	"github.com/stylusops/stylus-cache-monitor/internal/config"
	"github.com/stylusops/stylus-cache-monitor/internal/events"
	"github.com/stylusops/stylus-cache-monitor/internal/metrics"
	"github.com/stylusops/stylus-cache-monitor/internal/models"
	"github.com/stylusops/stylus-cache-monitor/internal/notification"
	"github.com/stylusops/stylus-cache-monitor/internal/poller"
	"github.com/stylusops/stylus-cache-monitor/internal/server"
	"github.com/stylusops/stylus-cache-monitor/internal/storage"
	"github.com/stylusops/stylus-cache-monitor/pkg/utils"
)

// AppVersion contains the application version
const AppVersion = "1.0.0"

// Application wires every component together
type Application struct {
	config     *config.Config
	logger     *logrus.Logger
	storage    storage.Store
	prom       *metrics.PrometheusMetrics
	collector  *metrics.Collector
	notifier   *notification.Manager
	dispatcher *events.Dispatcher
	alertQueue *events.Queue
	engine     *alerting.Engine
	service    *automation.Service
	poller     *poller.Poller
	runner     *poller.Runner
	server     *server.HTTPServer
	managers   []*chain.RPCManager
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewApplication creates a new application instance
func NewApplication(cfg *config.Config) (*Application, error) {
	ctx, cancel := context.WithCancel(context.Background())

	app := &Application{
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
	}

	if err := app.initializeLogger(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := app.initializeComponents(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}

	return app, nil
}

// initializeLogger initializes the application logger
func (app *Application) initializeLogger() error {
	logCfg := app.config.Logging
	if err := utils.InitLogger(logCfg.Level, logCfg.Format, logCfg.Output, logCfg.File); err != nil {
		return err
	}

	app.logger = utils.GetLogger()
	app.logger.WithFields(logrus.Fields{
		"level":  logCfg.Level,
		"format": logCfg.Format,
	}).Info("Logger initialized")
	return nil
}

// initializeComponents initializes all application components
func (app *Application) initializeComponents() error {
	app.logger.Info("Initializing application components")

	if err := app.initializeStorage(); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := app.initializeMetrics(); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	app.initializeNotification()
	app.initializeAlerting()
	app.initializeAutomation()
	if err := app.initializePoller(); err != nil {
		return fmt.Errorf("failed to initialize poller: %w", err)
	}
	app.initializeServer()

	app.logger.Info("All components initialized successfully")
	return nil
}

// initializeStorage connects the store, migrates the schema, and seeds
// configured blockchains
func (app *Application) initializeStorage() error {
	app.logger.WithField("type", app.config.Storage.Type).Info("Initializing storage layer")

	store, err := storage.NewStore(&app.config.Storage)
	if err != nil {
		return err
	}
	if err := store.Connect(); err != nil {
		return err
	}
	if err := store.Migrate(); err != nil {
		return err
	}
	app.storage = store

	return app.seedBlockchains()
}

// seedBlockchains reconciles configured chains into the store. Existing
// rows are matched by name so checkpoints survive restarts.
func (app *Application) seedBlockchains() error {
	existing, err := app.storage.GetBlockchains(app.ctx, false)
	if err != nil {
		return err
	}
	byName := make(map[string]*models.Blockchain, len(existing))
	for _, bc := range existing {
		byName[bc.Name] = bc
	}

	for _, bcCfg := range app.config.Blockchains {
		bc := &models.Blockchain{
			Name:                bcCfg.Name,
			RPCURL:              bcCfg.RPCURL,
			BackupRPCURLs:       bcCfg.BackupRPCURLs,
			ChainID:             bcCfg.ChainID,
			CacheManagerAddress: common.HexToAddress(bcCfg.CacheManagerAddress),
			ArbWasmCacheAddress: common.HexToAddress(bcCfg.ArbWasmCacheAddress),
			Enabled:             bcCfg.Enabled,
		}
		if prev, ok := byName[bcCfg.Name]; ok {
			bc.ID = prev.ID
		}
		if err := app.storage.SaveBlockchain(app.ctx, bc); err != nil {
			return err
		}
		app.logger.WithFields(logrus.Fields{
			"blockchain": bc.Name,
			"chain_id":   bc.ChainID,
			"enabled":    bc.Enabled,
		}).Info("Blockchain registered")
	}
	return nil
}

// initializeMetrics sets up Prometheus metrics and the polling collector
func (app *Application) initializeMetrics() error {
	app.prom = metrics.NewPrometheusMetrics()
	app.collector = metrics.NewCollector(app.prom)

	chains, err := app.storage.GetBlockchains(app.ctx, false)
	if err != nil {
		return err
	}
	for _, bc := range chains {
		app.collector.RegisterBlockchain(bc.ID, bc.Name)
	}
	return nil
}

// initializeNotification starts the notification dispatch workers
func (app *Application) initializeNotification() {
	app.notifier = notification.NewManager(app.config.Notifications, app.prom)
	app.notifier.Start()
}

// initializeAlerting sets up the event dispatcher, the alerts queue,
// and the alert engine
func (app *Application) initializeAlerting() {
	app.dispatcher = events.NewDispatcher()
	app.alertQueue = events.NewQueue(events.TopicAlerts, 256)
	app.dispatcher.Subscribe(events.AlertTriggered, app.alertQueue)
	go app.consumeAlertEvents()

	var sink alerting.NotificationSink
	if app.config.Notifications.Enabled {
		sink = app.notifier
	}
	app.engine = alerting.NewEngine(app.storage, app.dispatcher, sink, alerting.Config{
		Cooldown:          time.Duration(app.config.Alerts.CooldownMinutes) * time.Minute,
		MaxTriggeredCount: app.config.Alerts.MaxTriggeredCount,
	})
	app.engine.Start()
}

// consumeAlertEvents drains the alerts topic until shutdown
func (app *Application) consumeAlertEvents() {
	for {
		event, err := app.alertQueue.Dequeue(app.ctx)
		if err != nil {
			return
		}
		app.logger.WithFields(logrus.Fields{
			"event_id":   event.ID,
			"user_id":    event.UserID,
			"alert_type": event.AlertType,
			"message":    event.Payload["message"],
		}).Info("Alert triggered")
		app.prom.RecordAlertTriggered(string(event.AlertType))
	}
}

// initializeAutomation sets up batch submission and the cycle pipeline
func (app *Application) initializeAutomation() {
	submitter := chain.NewRelaySubmitter(
		app.config.Batch.RelayURL,
		app.config.Batch.RelayAPIKey,
		app.config.Batch.SubmitTimeout,
	)
	scheduler := batch.NewScheduler(submitter, app.storage)

	app.service = automation.New(app.storage, scheduler, app.engine, app.collector, automation.Config{
		Batch: batch.Config{
			BatchSize:       app.config.Batch.BatchSize,
			MaxRetries:      app.config.Batch.MaxRetries,
			RetryDelay:      app.config.Batch.RetryDelay,
			ParallelBatches: app.config.Batch.ParallelBatches,
		},
		Bounds: bidding.Bounds{
			MinBps: int64(app.config.Alerts.MinBidSafetyBps),
			MaxBps: int64(app.config.Alerts.MaxBidSafetyBps),
		},
		SubmitQueueSize: app.config.Batch.QueueSize,
		SubmitTimeout:   app.config.Batch.SubmitTimeout,
	})
	app.service.Start()
}

// initializePoller registers one cache manager client per enabled chain
// and schedules the polling loop
func (app *Application) initializePoller() error {
	app.poller = poller.New(app.storage, app.collector, poller.Config{
		ProcessingTimeout: app.config.Poller.ProcessingTimeout,
		PaginationLimit:   app.config.Poller.PaginationLimit,
	})

	requestTimeouts := make(map[string]time.Duration, len(app.config.Blockchains))
	for _, bcCfg := range app.config.Blockchains {
		requestTimeouts[bcCfg.Name] = bcCfg.RequestTimeout
	}

	chains, err := app.storage.GetBlockchains(app.ctx, true)
	if err != nil {
		return err
	}
	for _, bc := range chains {
		manager := chain.NewRPCManager(bc.RPCURL, bc.BackupRPCURLs, requestTimeouts[bc.Name])
		app.managers = append(app.managers, manager)
		app.poller.RegisterClient(bc.ID, chain.NewCacheManagerClient(bc, manager))
	}

	app.runner = poller.NewRunner(app.poller, app.storage, app.handleResult, app.config.Poller.CronSchedule)
	return nil
}

// handleResult feeds each successful polling cycle into the pipeline
func (app *Application) handleResult(ctx context.Context, result *poller.PollResult) {
	outcome, err := app.service.HandleResult(ctx, result)
	if err != nil {
		app.logger.WithError(err).WithField("blockchain", result.Blockchain.Name).
			Error("Cycle processing failed")
		return
	}
	app.logger.WithFields(logrus.Fields{
		"blockchain":        result.Blockchain.Name,
		"selected":          len(outcome.Selection.Selected),
		"conditions":        outcome.Conditions,
		"submission_queued": outcome.SubmissionQueued,
	}).Debug("Cycle processed")
}

// initializeServer sets up the HTTP API
func (app *Application) initializeServer() {
	app.server = server.NewHTTPServer(&app.config.Server, app.storage, app.collector, app.prom, app.notifier)
}

// Start starts the application
func (app *Application) Start() error {
	app.logger.WithFields(logrus.Fields{
		"version":     AppVersion,
		"environment": app.config.App.Environment,
	}).Info("Starting Stylus cache monitor")

	if err := app.server.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	if err := app.runner.Start(app.ctx); err != nil {
		return fmt.Errorf("failed to start polling runner: %w", err)
	}

	app.logger.WithFields(logrus.Fields{
		"server_address": fmt.Sprintf("%s:%d", app.config.Server.Host, app.config.Server.Port),
		"cron_schedule":  app.config.Poller.CronSchedule,
		"blockchains":    len(app.config.Blockchains),
	}).Info("Stylus cache monitor started successfully")
	return nil
}

// Stop stops the application gracefully
func (app *Application) Stop() {
	app.logger.Info("Stopping Stylus cache monitor")

	app.cancel()

	app.runner.Stop()
	app.service.Stop()
	app.engine.Stop()
	app.notifier.Stop()

	if err := app.server.Stop(); err != nil {
		app.logger.WithError(err).Error("Failed to stop HTTP server")
	}
	for _, manager := range app.managers {
		if err := manager.Close(); err != nil {
			app.logger.WithError(err).Error("Failed to close RPC manager")
		}
	}
	if err := app.storage.Close(); err != nil {
		app.logger.WithError(err).Error("Failed to close storage")
	}

	app.logger.Info("Stylus cache monitor stopped successfully")
}

// CLI Commands

var rootCmd = &cobra.Command{
	Use:     "stylus-cache-monitor",
	Short:   "Stylus cache manager bid automation and monitoring",
	Long:    `Monitors Stylus cache manager contracts, automates cache bids for configured programs, and raises alerts on evictions, gas shortfalls, and unsafe bids.`,
	Version: AppVersion,
	RunE:    runMonitor,
}

// runMonitor is the main command to run the monitor
func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	app, err := NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	if err := app.Start(); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}

	<-signalChan
	fmt.Println("\nReceived shutdown signal, stopping application...")
	app.Stop()
	return nil
}

// versionCmd prints the version number
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Stylus Cache Monitor %s\n", AppVersion)
	},
}

// configCmd groups configuration management commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

// validateConfigCmd validates the configuration file
var validateConfigCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(viper.GetString("config"))
		if err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}

		fmt.Printf("Configuration is valid!\n")
		fmt.Printf("Environment: %s\n", cfg.App.Environment)
		fmt.Printf("Database: %s\n", cfg.Storage.Type)
		fmt.Printf("Blockchains: %d\n", len(cfg.Blockchains))
		fmt.Printf("Cron schedule: %s\n", cfg.Poller.CronSchedule)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")

	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(validateConfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
