package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Blockchains   []BlockchainConfig  `mapstructure:"blockchains"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Poller        PollerConfig        `mapstructure:"poller"`
	Batch         BatchConfig         `mapstructure:"batch"`
	Alerts        AlertsConfig        `mapstructure:"alerts"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Server        ServerConfig        `mapstructure:"server"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// BlockchainConfig contains per-chain connection settings. Polling and
// batching knobs live in PollerConfig and BatchConfig; RequestTimeout is
// the only per-chain override because RPC latency varies by provider.
type BlockchainConfig struct {
	Name                string        `mapstructure:"name"`
	RPCURL              string        `mapstructure:"rpc_url"`
	BackupRPCURLs       []string      `mapstructure:"backup_rpc_urls"`
	ChainID             uint64        `mapstructure:"chain_id"`
	CacheManagerAddress string        `mapstructure:"cache_manager_address"`
	ArbWasmCacheAddress string        `mapstructure:"arb_wasm_cache_address"`
	Enabled             bool          `mapstructure:"enabled"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
}

// StorageConfig contains database configuration
type StorageConfig struct {
	Type             string        `mapstructure:"type"` // sqlite, postgres
	ConnectionString string        `mapstructure:"connection_string"`
	MaxConnections   int           `mapstructure:"max_connections"`
	MaxIdleTime      time.Duration `mapstructure:"max_idle_time"`
}

// PollerConfig contains state polling configuration
type PollerConfig struct {
	CronSchedule      string        `mapstructure:"cron_schedule"`
	ProcessingTimeout time.Duration `mapstructure:"processing_timeout"`
	PaginationLimit   int           `mapstructure:"pagination_limit"`
}

// BatchConfig contains bid batch submission configuration
type BatchConfig struct {
	BatchSize       int           `mapstructure:"batch_size"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	ParallelBatches int           `mapstructure:"parallel_batches"`
	QueueSize       int           `mapstructure:"queue_size"`
	RelayURL        string        `mapstructure:"relay_url"`
	RelayAPIKey     string        `mapstructure:"relay_api_key"`
	SubmitTimeout   time.Duration `mapstructure:"submit_timeout"`
}

// AlertsConfig contains alert engine configuration
type AlertsConfig struct {
	CooldownMinutes   int `mapstructure:"cooldown_minutes"`
	MaxTriggeredCount int `mapstructure:"max_triggered_count"`
	MinBidSafetyBps   int `mapstructure:"min_bid_safety_bps"`
	MaxBidSafetyBps   int `mapstructure:"max_bid_safety_bps"`
}

// NotificationsConfig contains notification dispatch configuration
type NotificationsConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	QueueSize        int           `mapstructure:"queue_size"`
	Workers          int           `mapstructure:"workers"`
	MaxRetries       int           `mapstructure:"max_retries"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
	Timeout          time.Duration `mapstructure:"timeout"`
	WebhookURL       string        `mapstructure:"webhook_url"`
	SlackURL         string        `mapstructure:"slack_url"`
	TelegramBotToken string        `mapstructure:"telegram_bot_token"`
	TelegramChatID   string        `mapstructure:"telegram_chat_id"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port          int           `mapstructure:"port"`
	Host          string        `mapstructure:"host"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	EnableMetrics bool          `mapstructure:"enable_metrics"`
	EnableHealth  bool          `mapstructure:"enable_health"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
	Output string `mapstructure:"output"` // stdout, file
	File   string `mapstructure:"file"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./internal/config")
	}

	viper.SetEnvPrefix("CACHEMON")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Println("Config file not found, using defaults and environment variables")
		} else {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Storage.ConnectionString = dbURL
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// App defaults
	viper.SetDefault("app.name", "stylus-cache-monitor")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.debug", false)

	// Storage defaults
	viper.SetDefault("storage.type", "sqlite")
	viper.SetDefault("storage.connection_string", "./data/cachemon.db")
	viper.SetDefault("storage.max_connections", 25)
	viper.SetDefault("storage.max_idle_time", "15m")

	// Poller defaults (one cycle per minute, 30s hard timeout)
	viper.SetDefault("poller.cron_schedule", "*/1 * * * *")
	viper.SetDefault("poller.processing_timeout", "30s")
	viper.SetDefault("poller.pagination_limit", 1000)

	// Batch defaults
	viper.SetDefault("batch.batch_size", 50)
	viper.SetDefault("batch.max_retries", 3)
	viper.SetDefault("batch.retry_delay", "5s")
	viper.SetDefault("batch.parallel_batches", 1)
	viper.SetDefault("batch.queue_size", 256)
	viper.SetDefault("batch.submit_timeout", "30s")

	// Alert defaults
	viper.SetDefault("alerts.cooldown_minutes", 5)
	viper.SetDefault("alerts.max_triggered_count", 1000)
	viper.SetDefault("alerts.min_bid_safety_bps", 100)   // 1%
	viper.SetDefault("alerts.max_bid_safety_bps", 10000) // 100%

	// Notification defaults
	viper.SetDefault("notifications.enabled", true)
	viper.SetDefault("notifications.queue_size", 100)
	viper.SetDefault("notifications.workers", 2)
	viper.SetDefault("notifications.max_retries", 3)
	viper.SetDefault("notifications.retry_delay", "10s")
	viper.SetDefault("notifications.timeout", "15s")

	// Server defaults
	viper.SetDefault("server.port", 8081)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", "10s")
	viper.SetDefault("server.write_timeout", "10s")
	viper.SetDefault("server.enable_metrics", true)
	viper.SetDefault("server.enable_health", true)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
}

// Validate validates the configuration, failing fast on malformed input
func (c *Config) Validate() error {
	if c.Storage.ConnectionString == "" {
		return fmt.Errorf("storage connection string is required")
	}
	if c.Poller.CronSchedule == "" {
		return fmt.Errorf("poller cron schedule is required")
	}
	if c.Poller.ProcessingTimeout <= 0 {
		return fmt.Errorf("poller processing timeout must be positive")
	}
	if c.Batch.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.Batch.MaxRetries < 0 {
		return fmt.Errorf("batch max retries must not be negative")
	}
	if c.Batch.ParallelBatches < 1 {
		return fmt.Errorf("parallel batches must be at least 1")
	}
	if c.Alerts.CooldownMinutes <= 0 {
		return fmt.Errorf("alert cooldown must be positive")
	}
	if c.Alerts.MaxTriggeredCount <= 0 {
		return fmt.Errorf("alert max triggered count must be positive")
	}
	if c.Alerts.MinBidSafetyBps < 0 || c.Alerts.MaxBidSafetyBps <= 0 ||
		c.Alerts.MinBidSafetyBps > c.Alerts.MaxBidSafetyBps {
		return fmt.Errorf("bid safety bounds are inverted")
	}
	for i := range c.Blockchains {
		bc := &c.Blockchains[i]
		if !bc.Enabled {
			continue
		}
		if bc.RPCURL == "" {
			return fmt.Errorf("blockchain %q: rpc url is required", bc.Name)
		}
		if bc.CacheManagerAddress == "" {
			return fmt.Errorf("blockchain %q: cache manager address is required", bc.Name)
		}
	}
	return nil
}
