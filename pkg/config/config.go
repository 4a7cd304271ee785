// Package config provides configuration loading and validation for salvage.
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
	ErrInvalidFetchWorkers = errors.New("fetch workers must be positive")
	ErrInvalidFetchRetries = errors.New("fetch retries must not be negative")
	ErrInvalidHorizon      = errors.New("mining horizon must not be negative")
	ErrInvalidHalflife     = errors.New("recency halflife must be positive")
	ErrNegativeWeight      = errors.New("provenance and validity weights must not be negative")
)

// Config holds all configuration for the salvage engine.
type Config struct {
	Mining  MiningConfig  `mapstructure:"mining"`
	Weights WeightConfig  `mapstructure:"weights"`
	Session SessionConfig `mapstructure:"session"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// MiningConfig controls candidate enumeration.
type MiningConfig struct {
	// Horizon bounds the ancestry walk per branch tip; 0 means unlimited.
	Horizon int `mapstructure:"horizon"`
	// FetchWorkers caps the remote fetch worker pool.
	FetchWorkers int `mapstructure:"fetch_workers"`
	// FetchRetries is the number of retries after a failed fetch.
	FetchRetries int `mapstructure:"fetch_retries"`
	// FetchBackoff is the initial backoff between fetch retries; it doubles
	// per attempt.
	FetchBackoff time.Duration `mapstructure:"fetch_backoff"`
	// FetchTimeout bounds a single fetch attempt.
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
}

// WeightConfig is the scoring weight table. Every scoring constant lives
// here under a name so operators can recalibrate without touching code.
// The shipped values are tuning choices, not invariants.
type WeightConfig struct {
	SyntaxValid       int `mapstructure:"syntax_valid"`
	SyntaxInvalid     int `mapstructure:"syntax_invalid"`
	SignatureHit      int `mapstructure:"signature_hit"`
	SignatureMiss     int `mapstructure:"signature_miss"`
	RemoteProvenance  int `mapstructure:"remote_provenance"`
	ReflogProvenance  int `mapstructure:"reflog_provenance"`
	OrphanProvenance  int `mapstructure:"orphan_provenance"`
	Completeness      int `mapstructure:"completeness"`
	RecencyMax        int `mapstructure:"recency_max"`
	RecencyHalflife   int `mapstructure:"recency_halflife_days"`
	ValidationFailure int `mapstructure:"validation_failure"`
}

// SessionConfig controls recovery session behavior.
type SessionConfig struct {
	// Dir is where per-session state (ledger, report) lives, relative to the
	// repository working directory.
	Dir string `mapstructure:"dir"`
	// BranchPrefix prefixes the emergency branch name.
	BranchPrefix string `mapstructure:"branch_prefix"`
	// CommitterName and CommitterEmail identify checkpoint commits.
	CommitterName  string `mapstructure:"committer_name"`
	CommitterEmail string `mapstructure:"committer_email"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("salvage")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("$HOME/.salvage")
	}

	viperCfg.SetEnvPrefix("SALVAGE")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validate(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// Default returns the built-in configuration without touching disk or env.
func Default() *Config {
	viperCfg := viper.New()
	setDefaults(viperCfg)

	var config Config

	// Defaults always unmarshal cleanly; the error path is untestable.
	_ = viperCfg.Unmarshal(&config)

	return &config
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("mining.horizon", DefaultMiningHorizon)
	viperCfg.SetDefault("mining.fetch_workers", DefaultFetchWorkers)
	viperCfg.SetDefault("mining.fetch_retries", DefaultFetchRetries)
	viperCfg.SetDefault("mining.fetch_backoff", DefaultFetchBackoff)
	viperCfg.SetDefault("mining.fetch_timeout", DefaultFetchTimeout)

	viperCfg.SetDefault("weights.syntax_valid", DefaultWeightSyntaxValid)
	viperCfg.SetDefault("weights.syntax_invalid", DefaultWeightSyntaxInvalid)
	viperCfg.SetDefault("weights.signature_hit", DefaultWeightSignatureHit)
	viperCfg.SetDefault("weights.signature_miss", DefaultWeightSignatureMiss)
	viperCfg.SetDefault("weights.remote_provenance", DefaultWeightRemoteProvenance)
	viperCfg.SetDefault("weights.reflog_provenance", DefaultWeightReflogProvenance)
	viperCfg.SetDefault("weights.orphan_provenance", DefaultWeightOrphanProvenance)
	viperCfg.SetDefault("weights.completeness", DefaultWeightCompleteness)
	viperCfg.SetDefault("weights.recency_max", DefaultWeightRecencyMax)
	viperCfg.SetDefault("weights.recency_halflife_days", DefaultRecencyHalflifeDays)
	viperCfg.SetDefault("weights.validation_failure", DefaultWeightValidationFailure)

	viperCfg.SetDefault("session.dir", DefaultSessionDir)
	viperCfg.SetDefault("session.branch_prefix", DefaultBranchPrefix)
	viperCfg.SetDefault("session.committer_name", DefaultCommitterName)
	viperCfg.SetDefault("session.committer_email", DefaultCommitterEmail)

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.format", DefaultLogFormat)
}

func validate(config *Config) error {
	if config.Mining.FetchWorkers <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidFetchWorkers, config.Mining.FetchWorkers)
	}

	if config.Mining.FetchRetries < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidFetchRetries, config.Mining.FetchRetries)
	}

	if config.Mining.Horizon < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidHorizon, config.Mining.Horizon)
	}

	if config.Weights.RecencyHalflife <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidHalflife, config.Weights.RecencyHalflife)
	}

	if config.Weights.SyntaxValid < 0 || config.Weights.RemoteProvenance < 0 {
		return ErrNegativeWeight
	}

	return nil
}
