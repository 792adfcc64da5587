// Package config loads the application configuration from a YAML file
// with environment overrides. The configuration is immutable after load;
// each component receives the values it needs at construction and never
// sees the file again.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/michellexbui/BirdBeaks/internal/interp"
	"github.com/michellexbui/BirdBeaks/internal/quality"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Data     DataConfig     `mapstructure:"data"`
	Interp   InterpConfig   `mapstructure:"interp"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	RateLimit       int           `mapstructure:"rate_limit"`
	RateLimitWindow time.Duration `mapstructure:"rate_limit_window"`
}

// DatabaseConfig holds sqlite configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// DataConfig holds input dataset configuration
type DataConfig struct {
	RecordsPath string `mapstructure:"records_path"`
}

// InterpConfig holds the interpolation pipeline parameters
type InterpConfig struct {
	WeightingScheme           string  `mapstructure:"weighting_scheme"`
	DecayParameter            float64 `mapstructure:"decay_parameter"`
	MaxInfluenceRadiusKm      float64 `mapstructure:"max_influence_radius_km"`
	MinContributors           int     `mapstructure:"min_contributors"`
	CoincidentEpsilonKm       float64 `mapstructure:"coincident_epsilon_km"`
	CoverageThreshold         float64 `mapstructure:"coverage_threshold"`
	OutlierMADMultiplier      float64 `mapstructure:"outlier_mad_multiplier"`
	AlignmentToleranceSeconds int     `mapstructure:"alignment_tolerance_seconds"`
	Workers                   int     `mapstructure:"workers"`
}

// Load reads configuration from file and environment variables. A
// missing file is tolerated; defaults and BIRDBEAKS_* environment
// variables still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("BIRDBEAKS")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, statErr := os.Stat(path); statErr == nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.rate_limit", 120)
	v.SetDefault("server.rate_limit_window", "1m")

	v.SetDefault("database.path", "./data/birdbeaks.db")
	v.SetDefault("data.records_path", "")

	v.SetDefault("interp.weighting_scheme", string(interp.DefaultParams.Scheme))
	v.SetDefault("interp.decay_parameter", interp.DefaultParams.DecayParameter)
	v.SetDefault("interp.max_influence_radius_km", interp.DefaultParams.MaxInfluenceRadiusKm)
	v.SetDefault("interp.min_contributors", interp.DefaultParams.MinContributors)
	v.SetDefault("interp.coincident_epsilon_km", interp.DefaultParams.CoincidentEpsilonKm)
	v.SetDefault("interp.coverage_threshold", quality.DefaultParams.CoverageThreshold)
	v.SetDefault("interp.outlier_mad_multiplier", quality.DefaultParams.OutlierMADMultiplier)
	v.SetDefault("interp.alignment_tolerance_seconds", 1800)
	v.SetDefault("interp.workers", 0) // 0 means one per CPU
}

// Validate checks that all configuration values are valid. Any failure
// here halts the application before computation starts.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if c.Server.RateLimit < 1 {
		return fmt.Errorf("server.rate_limit must be at least 1")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if err := c.EngineParams().Validate(); err != nil {
		return fmt.Errorf("interp: %w", err)
	}
	if c.Interp.CoverageThreshold < 0 || c.Interp.CoverageThreshold > 1 {
		return fmt.Errorf("interp.coverage_threshold must be between 0 and 1")
	}
	if c.Interp.OutlierMADMultiplier <= 0 {
		return fmt.Errorf("interp.outlier_mad_multiplier must be positive")
	}
	if c.Interp.AlignmentToleranceSeconds <= 0 {
		return fmt.Errorf("interp.alignment_tolerance_seconds must be positive")
	}
	return nil
}

// EngineParams returns the engine parameter block
func (c *Config) EngineParams() interp.Params {
	return interp.Params{
		Scheme:               interp.WeightingScheme(c.Interp.WeightingScheme),
		DecayParameter:       c.Interp.DecayParameter,
		MaxInfluenceRadiusKm: c.Interp.MaxInfluenceRadiusKm,
		MinContributors:      c.Interp.MinContributors,
		CoincidentEpsilonKm:  c.Interp.CoincidentEpsilonKm,
	}
}

// QualityParams returns the quality filter parameter block
func (c *Config) QualityParams() quality.Params {
	return quality.Params{
		CoverageThreshold:    c.Interp.CoverageThreshold,
		OutlierMADMultiplier: c.Interp.OutlierMADMultiplier,
	}
}

// AlignmentTolerance returns the temporal alignment tolerance
func (c *Config) AlignmentTolerance() time.Duration {
	return time.Duration(c.Interp.AlignmentToleranceSeconds) * time.Second
}
