// Package config provides configuration loading and validation for Codescope.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidPort         = errors.New("invalid server port")
	ErrInvalidWorkers      = errors.New("pipeline worker count must be positive")
	ErrInvalidCommitBound  = errors.New("max commits scanned must be positive")
	ErrInvalidScoreWeights = errors.New("score weights must sum to 1.0 within tolerance")
)

// Default configuration values.
const (
	defaultPort            = 8080
	defaultHost            = "0.0.0.0"
	defaultPipelineWorkers = 4
	defaultMaxCommits      = 5000
	maxPort                = 65535
	weightSumTolerance     = 0.01
)

// Config holds all configuration for the Codescope service.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Pipeline    PipelineConfig    `mapstructure:"pipeline"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Repository  RepositoryConfig `mapstructure:"repository"`
	Judge       JudgeConfig       `mapstructure:"judge"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	Scoring     ScoringConfig     `mapstructure:"scoring"`
	Origin      OriginConfig      `mapstructure:"origin"`
}

// ServerConfig holds the out-of-core HTTP adapter's configuration. The
// core pipeline does not bind a port itself; this is carried so the
// adapter built on top of this package shares one config surface.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	Port         int           `mapstructure:"port"`
	Enabled      bool          `mapstructure:"enabled"`
}

// CacheConfig holds response-memoization cache configuration.
type CacheConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	MaxEntries       int           `mapstructure:"max_entries"`
	StatusTTL        time.Duration `mapstructure:"status_ttl"`
	ResultTTL        time.Duration `mapstructure:"result_ttl"`
	ListTTL          time.Duration `mapstructure:"list_ttl"`
	CleanupInterval  time.Duration `mapstructure:"cleanup_interval"`
	ReportCacheBytes int64         `mapstructure:"report_cache_bytes"`
}

// PipelineConfig holds DAG runner and worker pool configuration.
type PipelineConfig struct {
	Workers         int           `mapstructure:"workers"`
	DetectorTimeout time.Duration `mapstructure:"detector_timeout"`
	QueueCapacity   int           `mapstructure:"queue_capacity"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// RepositoryConfig holds clone and commit-scan configuration.
type RepositoryConfig struct {
	CloneTimeout     time.Duration `mapstructure:"clone_timeout"`
	MaxFileSize      string        `mapstructure:"max_file_size"`
	MaxCommitsScanned int          `mapstructure:"max_commits_scanned"`
	AllowedProtocols []string      `mapstructure:"allowed_protocols"`
	WorkDir          string        `mapstructure:"work_dir"`
}

// JudgeConfig holds external LLM-judge oracle configuration.
type JudgeConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Endpoint    string        `mapstructure:"endpoint"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	SchemaPath  string        `mapstructure:"schema_path"`
}

// OriginConfig holds credentials for the optional external AI/plagiarism
// oracles the origin ensemble detector ensembles alongside its local
// entropy heuristic. Missing credentials skip that oracle, not the scan.
type OriginConfig struct {
	CodequiryAPIKey string `mapstructure:"codequiry_api_key"`
	CopyleaksEmail  string `mapstructure:"copyleaks_email"`
	CopyleaksAPIKey string `mapstructure:"copyleaks_api_key"`
}

// PersistenceConfig holds the relational store connection string and
// report-blob compression settings.
type PersistenceConfig struct {
	DSN               string `mapstructure:"dsn"`
	CompressReportBlob bool  `mapstructure:"compress_report_blob"`
}

// ScoringConfig holds the weighted aggregation coefficients. Fields sum
// to 1.0; validated at load time.
type ScoringConfig struct {
	Originality    float64 `mapstructure:"originality"`
	Quality        float64 `mapstructure:"quality"`
	Security       float64 `mapstructure:"security"`
	Effort         float64 `mapstructure:"effort"`
	Implementation float64 `mapstructure:"implementation"`
	Engineering    float64 `mapstructure:"engineering"`
	Organization   float64 `mapstructure:"organization"`
	Documentation  float64 `mapstructure:"documentation"`
}

// Sum returns the total of all scoring weights.
func (s ScoringConfig) Sum() float64 {
	return s.Originality + s.Quality + s.Security + s.Effort +
		s.Implementation + s.Engineering + s.Organization + s.Documentation
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("config")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/codescope")
	}

	viperCfg.SetEnvPrefix("CODESCOPE")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var cfg Config

	if err := viperCfg.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("server.enabled", false)
	viperCfg.SetDefault("server.port", defaultPort)
	viperCfg.SetDefault("server.host", defaultHost)
	viperCfg.SetDefault("server.read_timeout", "30s")
	viperCfg.SetDefault("server.write_timeout", "30s")
	viperCfg.SetDefault("server.idle_timeout", "60s")

	viperCfg.SetDefault("cache.enabled", true)
	viperCfg.SetDefault("cache.max_entries", 10000)
	viperCfg.SetDefault("cache.status_ttl", "30s")
	viperCfg.SetDefault("cache.result_ttl", "5m")
	viperCfg.SetDefault("cache.list_ttl", "1m")
	viperCfg.SetDefault("cache.cleanup_interval", "1m")
	viperCfg.SetDefault("cache.report_cache_bytes", 64*1024*1024)

	viperCfg.SetDefault("pipeline.workers", defaultPipelineWorkers)
	viperCfg.SetDefault("pipeline.detector_timeout", "5m")
	viperCfg.SetDefault("pipeline.queue_capacity", 64)

	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", "json")
	viperCfg.SetDefault("logging.output", "stdout")

	viperCfg.SetDefault("repository.clone_timeout", "10m")
	viperCfg.SetDefault("repository.max_file_size", "5MB")
	viperCfg.SetDefault("repository.max_commits_scanned", defaultMaxCommits)
	viperCfg.SetDefault("repository.allowed_protocols", []string{"https", "http", "ssh", "git"})
	viperCfg.SetDefault("repository.work_dir", "/tmp/codescope-clones")

	viperCfg.SetDefault("judge.enabled", false)
	viperCfg.SetDefault("judge.timeout", "60s")
	viperCfg.SetDefault("judge.model", "")

	viperCfg.SetDefault("persistence.compress_report_blob", true)

	viperCfg.SetDefault("scoring.originality", 0.20)
	viperCfg.SetDefault("scoring.quality", 0.15)
	viperCfg.SetDefault("scoring.security", 0.10)
	viperCfg.SetDefault("scoring.effort", 0.10)
	viperCfg.SetDefault("scoring.implementation", 0.25)
	viperCfg.SetDefault("scoring.engineering", 0.10)
	viperCfg.SetDefault("scoring.organization", 0.05)
	viperCfg.SetDefault("scoring.documentation", 0.05)
}

func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > maxPort {
		return fmt.Errorf("%w: %d", ErrInvalidPort, cfg.Server.Port)
	}

	if cfg.Pipeline.Workers <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, cfg.Pipeline.Workers)
	}

	if cfg.Repository.MaxCommitsScanned <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCommitBound, cfg.Repository.MaxCommitsScanned)
	}

	if sum := cfg.Scoring.Sum(); sum < 1.0-weightSumTolerance || sum > 1.0+weightSumTolerance {
		return fmt.Errorf("%w: got %.4f", ErrInvalidScoreWeights, sum)
	}

	return nil
}
