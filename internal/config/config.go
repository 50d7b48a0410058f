// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Price sources understood by the holdings source
const (
	PriceSourceInstant = "instant"
	PriceSourceMean    = "mean"
	PriceSourceEMA     = "ema"
)

// Config holds application configuration
type Config struct {
	DataDir  string `yaml:"data_dir"` // Directory for the liquidation ledger (always absolute after Load)
	LogLevel string `yaml:"log_level"`
	Port     int    `yaml:"port"` // Status server port, 0 disables the server
	DevMode  bool   `yaml:"dev_mode"`

	Tradernet TradernetConfig `yaml:"tradernet"`
	Stop      StopConfig      `yaml:"stop"`
	Hue       HueConfig       `yaml:"hue"`
	Backup    BackupConfig    `yaml:"backup"`

	SummaryCron     string        `yaml:"summary_cron"`     // Ledger summary job schedule (seconds field included)
	SummaryWindow   time.Duration `yaml:"summary_window"`   // How far back each summary looks
	MaintenanceCron string        `yaml:"maintenance_cron"` // Ledger integrity and WAL checkpoint schedule
}

// TradernetConfig holds broker credentials and endpoint
type TradernetConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
}

// StopConfig holds the trailing stop parameters
type StopConfig struct {
	SellThreshold           float64       `yaml:"sell_threshold"`
	MaxDelta                float64       `yaml:"max_delta"`
	Workers                 int           `yaml:"workers"`
	PollInterval            time.Duration `yaml:"poll_interval"`
	PriceSource             string        `yaml:"price_source"`
	AveragingWindow         time.Duration `yaml:"averaging_window"`
	RetainFloorOnFailedSell bool          `yaml:"retain_floor_on_failed_sell"`
}

// HueConfig holds the optional performance lights configuration
type HueConfig struct {
	BridgeIP             string   `yaml:"bridge_ip"`
	User                 string   `yaml:"user"`
	LightIDs             []string `yaml:"light_ids"`
	PerformanceThreshold float64  `yaml:"performance_threshold"`
	NumColors            int      `yaml:"num_colors"`
	DownColor            string   `yaml:"down_color"`
	UpColor              string   `yaml:"up_color"`
}

// Enabled reports whether a bridge has been configured
func (h HueConfig) Enabled() bool {
	return h.BridgeIP != "" && h.User != ""
}

// BackupConfig holds the optional S3-compatible ledger backup configuration
type BackupConfig struct {
	Cron            string `yaml:"cron"`
	Bucket          string `yaml:"bucket"`
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Prefix          string `yaml:"prefix"`
	RetentionDays   int    `yaml:"retention_days"` // 0 keeps every backup
}

// Enabled reports whether backups are scheduled
func (b BackupConfig) Enabled() bool {
	return b.Cron != "" && b.Bucket != ""
}

// Load reads configuration from defaults, an optional YAML file and environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := defaults()

	if path := getEnv("TRAILSTOP_CONFIG", ""); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	absDataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	cfg.DataDir = absDataDir

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		DataDir:  "./data",
		LogLevel: "info",
		Port:     8001,
		Tradernet: TradernetConfig{
			BaseURL: "https://freedom24.com",
		},
		Stop: StopConfig{
			SellThreshold:   0.04,
			MaxDelta:        0.08,
			Workers:         1,
			PollInterval:    60 * time.Second,
			PriceSource:     PriceSourceMean,
			AveragingWindow: time.Minute,
		},
		Hue: HueConfig{
			PerformanceThreshold: 0.02,
			NumColors:            100,
			DownColor:            "red",
			UpColor:              "green",
		},
		Backup: BackupConfig{
			Region:        "auto",
			Prefix:        "trailstop/",
			RetentionDays: 30,
		},
		SummaryCron:     "0 0 * * * *",
		SummaryWindow:   time.Hour,
		MaintenanceCron: "0 30 3 * * *",
	}
}

// loadFile overlays values from a YAML file; a missing file is not an error
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// applyEnv overrides values with environment variables
func (c *Config) applyEnv() {
	c.DataDir = getEnv("TRAILSTOP_DATA_DIR", c.DataDir)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.Port = getEnvAsInt("GO_PORT", c.Port)
	c.DevMode = getEnvAsBool("DEV_MODE", c.DevMode)

	c.Tradernet.APIKey = getEnv("TRADERNET_API_KEY", c.Tradernet.APIKey)
	c.Tradernet.APISecret = getEnv("TRADERNET_API_SECRET", c.Tradernet.APISecret)
	c.Tradernet.BaseURL = getEnv("TRADERNET_BASE_URL", c.Tradernet.BaseURL)

	c.Stop.SellThreshold = getEnvAsFloat("SELL_THRESHOLD", c.Stop.SellThreshold)
	c.Stop.MaxDelta = getEnvAsFloat("MAX_DELTA", c.Stop.MaxDelta)
	c.Stop.Workers = getEnvAsInt("WORKERS", c.Stop.Workers)
	c.Stop.PollInterval = getEnvAsDuration("POLL_INTERVAL", c.Stop.PollInterval)
	c.Stop.PriceSource = getEnv("PRICE_SOURCE", c.Stop.PriceSource)
	c.Stop.AveragingWindow = getEnvAsDuration("AVERAGING_WINDOW", c.Stop.AveragingWindow)
	c.Stop.RetainFloorOnFailedSell = getEnvAsBool("RETAIN_FLOOR_ON_FAILED_SELL", c.Stop.RetainFloorOnFailedSell)

	c.Hue.BridgeIP = getEnv("HUE_BRIDGE_IP", c.Hue.BridgeIP)
	c.Hue.User = getEnv("HUE_BRIDGE_USER", c.Hue.User)
	c.Hue.LightIDs = getEnvAsList("HUE_LIGHT_IDS", c.Hue.LightIDs)
	c.Hue.PerformanceThreshold = getEnvAsFloat("HUE_PERFORMANCE_THRESHOLD", c.Hue.PerformanceThreshold)
	c.Hue.NumColors = getEnvAsInt("HUE_NUM_COLORS", c.Hue.NumColors)
	c.Hue.DownColor = getEnv("HUE_DOWN_COLOR", c.Hue.DownColor)
	c.Hue.UpColor = getEnv("HUE_UP_COLOR", c.Hue.UpColor)

	c.Backup.Cron = getEnv("BACKUP_CRON", c.Backup.Cron)
	c.Backup.Bucket = getEnv("S3_BUCKET", c.Backup.Bucket)
	c.Backup.Endpoint = getEnv("S3_ENDPOINT", c.Backup.Endpoint)
	c.Backup.Region = getEnv("S3_REGION", c.Backup.Region)
	c.Backup.AccessKeyID = getEnv("S3_ACCESS_KEY_ID", c.Backup.AccessKeyID)
	c.Backup.SecretAccessKey = getEnv("S3_SECRET_ACCESS_KEY", c.Backup.SecretAccessKey)
	c.Backup.Prefix = getEnv("S3_PREFIX", c.Backup.Prefix)
	c.Backup.RetentionDays = getEnvAsInt("BACKUP_RETENTION_DAYS", c.Backup.RetentionDays)

	c.SummaryCron = getEnv("SUMMARY_CRON", c.SummaryCron)
	c.SummaryWindow = getEnvAsDuration("SUMMARY_WINDOW", c.SummaryWindow)
	c.MaintenanceCron = getEnv("MAINTENANCE_CRON", c.MaintenanceCron)
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Tradernet.APIKey == "" || c.Tradernet.APISecret == "" {
		return fmt.Errorf("tradernet API credentials required (TRADERNET_API_KEY, TRADERNET_API_SECRET)")
	}
	if c.Stop.SellThreshold < 0 || c.Stop.SellThreshold >= 1 {
		return fmt.Errorf("sell threshold must be in [0, 1), got %v", c.Stop.SellThreshold)
	}
	if c.Stop.MaxDelta <= 0 || c.Stop.MaxDelta >= 1 {
		return fmt.Errorf("max delta must be in (0, 1), got %v", c.Stop.MaxDelta)
	}
	if c.Stop.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Stop.Workers)
	}
	if c.Stop.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.Stop.PollInterval)
	}
	switch c.Stop.PriceSource {
	case PriceSourceInstant:
	case PriceSourceMean, PriceSourceEMA:
		if c.Stop.AveragingWindow < time.Minute {
			return fmt.Errorf("averaging window must be at least 1m for %s prices", c.Stop.PriceSource)
		}
	default:
		return fmt.Errorf("unknown price source %q", c.Stop.PriceSource)
	}
	if c.SummaryWindow <= 0 {
		return fmt.Errorf("summary window must be positive, got %s", c.SummaryWindow)
	}
	if c.Hue.Enabled() && c.Hue.PerformanceThreshold <= 0 {
		return fmt.Errorf("hue performance threshold must be positive")
	}
	if c.Backup.Enabled() && (c.Backup.AccessKeyID == "" || c.Backup.SecretAccessKey == "") {
		return fmt.Errorf("backup credentials required when BACKUP_CRON is set")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
