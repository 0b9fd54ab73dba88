package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v2"

	"github.com/samplecache/samplecache/internal/analytics"
	"github.com/samplecache/samplecache/internal/eviction"
	"github.com/samplecache/samplecache/pkg/types"
)

// Configuration represents the complete sample-cache configuration
type Configuration struct {
	Global    GlobalConfig     `yaml:"global"`
	Manager   ManagerConfig    `yaml:"manager"`
	Eviction  eviction.Config  `yaml:"eviction"`
	Analytics analytics.Config `yaml:"analytics"`
	Metrics   MetricsConfig    `yaml:"metrics"`
}

// GlobalConfig represents global application settings
type GlobalConfig struct {
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// ManagerConfig represents cache-manager settings. MaxCacheSize accepts
// human-readable sizes such as "500MB" or "2GiB".
type ManagerConfig struct {
	MaxCacheSize string `yaml:"max_cache_size"`
}

// MaxCacheSizeBytes parses the configured cache size into bytes.
func (m ManagerConfig) MaxCacheSizeBytes() (int64, error) {
	n, err := humanize.ParseBytes(m.MaxCacheSize)
	if err != nil {
		return 0, fmt.Errorf("invalid max_cache_size %q: %w", m.MaxCacheSize, err)
	}
	return int64(n), nil
}

// MetricsConfig represents Prometheus exposition settings
type MetricsConfig struct {
	Enabled         bool          `yaml:"enabled"`
	ListenAddress   string        `yaml:"listen_address"`
	Namespace       string        `yaml:"namespace"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// NewDefault returns a configuration with sensible defaults
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel: "INFO",
			LogFile:  "",
		},
		Manager: ManagerConfig{
			MaxCacheSize: "500MB",
		},
		Eviction:  eviction.DefaultConfig(),
		Analytics: analytics.DefaultConfig(),
		Metrics: MetricsConfig{
			Enabled:         true,
			ListenAddress:   ":9090",
			Namespace:       "samplecache",
			RefreshInterval: 15 * time.Second,
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv loads configuration from environment variables
func (c *Configuration) LoadFromEnv() error {
	// Global settings
	if val := os.Getenv("SAMPLECACHE_LOG_LEVEL"); val != "" {
		c.Global.LogLevel = val
	}
	if val := os.Getenv("SAMPLECACHE_LOG_FILE"); val != "" {
		c.Global.LogFile = val
	}

	// Manager settings
	if val := os.Getenv("SAMPLECACHE_MAX_CACHE_SIZE"); val != "" {
		c.Manager.MaxCacheSize = val
	}

	// Eviction settings
	if val := os.Getenv("SAMPLECACHE_EVICTION_STRATEGY"); val != "" {
		c.Eviction.Strategy = types.EvictionStrategy(val)
	}
	if val := os.Getenv("SAMPLECACHE_ADAPTIVE_WEIGHTS"); val != "" {
		c.Eviction.AdaptiveWeights = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("SAMPLECACHE_EVICTION_BATCH_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Eviction.BatchSize = n
		}
	}
	if val := os.Getenv("SAMPLECACHE_MIN_RETENTION_TIME"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Eviction.MinRetentionTime = d
		}
	}

	// Analytics settings
	if val := os.Getenv("SAMPLECACHE_MONITORING_INTERVAL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Analytics.MonitoringInterval = d
		}
	}
	if val := os.Getenv("SAMPLECACHE_PATTERN_ANALYSIS"); val != "" {
		c.Analytics.EnableUsagePatternAnalysis = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("SAMPLECACHE_REAL_TIME_MONITORING"); val != "" {
		c.Analytics.EnableRealTimeMonitoring = strings.ToLower(val) == "true"
	}

	// Metrics settings
	if val := os.Getenv("SAMPLECACHE_METRICS_ENABLED"); val != "" {
		c.Metrics.Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("SAMPLECACHE_METRICS_LISTEN"); val != "" {
		c.Metrics.ListenAddress = val
	}

	return nil
}

// SaveToFile saves the configuration to a YAML file
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Configuration) Validate() error {
	if _, err := c.Manager.MaxCacheSizeBytes(); err != nil {
		return err
	}

	switch c.Eviction.Strategy {
	case types.StrategyLRU, types.StrategyLFU, types.StrategyUsageBased, types.StrategyIntelligent:
	default:
		return fmt.Errorf("invalid eviction strategy: %s", c.Eviction.Strategy)
	}

	if c.Eviction.BatchSize <= 0 {
		return fmt.Errorf("eviction batch_size must be greater than 0")
	}
	if c.Eviction.EmergencyBatchSize < c.Eviction.BatchSize {
		return fmt.Errorf("emergency_batch_size must be at least batch_size")
	}
	if c.Eviction.MinRetentionTime < 0 {
		return fmt.Errorf("min_retention_time cannot be negative")
	}

	weights := []float64{
		c.Eviction.LRUWeight, c.Eviction.LFUWeight, c.Eviction.UsageWeight,
		c.Eviction.QualityWeight, c.Eviction.SizeWeight,
	}
	var weightSum float64
	for _, w := range weights {
		if w < 0 {
			return fmt.Errorf("eviction factor weights cannot be negative")
		}
		weightSum += w
	}
	if weightSum <= 0 {
		return fmt.Errorf("eviction factor weights must not all be zero")
	}

	if c.Analytics.MonitoringInterval <= 0 {
		return fmt.Errorf("monitoring_interval must be greater than 0")
	}
	if c.Analytics.MaxPatterns < 0 {
		return fmt.Errorf("max_patterns cannot be negative")
	}
	for layer, th := range c.Analytics.PerformanceThresholds {
		if th.MinHitRate < 0 || th.MinHitRate > 1 {
			return fmt.Errorf("min_hit_rate for layer %s must be between 0 and 1", layer)
		}
		if th.MaxLatency < 0 {
			return fmt.Errorf("max_latency for layer %s cannot be negative", layer)
		}
	}

	if c.Metrics.Enabled && c.Metrics.ListenAddress == "" {
		return fmt.Errorf("metrics listen_address is required when metrics are enabled")
	}

	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if c.Global.LogLevel == level {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return fmt.Errorf("invalid log_level: %s (must be one of: %s)",
			c.Global.LogLevel, strings.Join(validLogLevels, ", "))
	}

	return nil
}
