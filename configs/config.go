// Package configs defines the application configuration and its viper
// bindings. Defaults are seeded by the CLI before loading, so a missing
// config file yields a fully usable configuration.
package configs

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/RyanBlaney/sonido-sentinel/feature"
	"github.com/RyanBlaney/sonido-sentinel/gmia"
	"github.com/RyanBlaney/sonido-sentinel/roomcomp"
)

// Config represents the application configuration
type Config struct {
	// Application settings
	Verbose      bool   `mapstructure:"verbose"`
	LogLevel     string `mapstructure:"log_level"`
	OutputFormat string `mapstructure:"output_format"`
	DataDir      string `mapstructure:"data_dir"`

	// Feature extraction parameters; changing these invalidates models
	// trained under the old values
	Extractor feature.ExtractorConfig `mapstructure:"extractor"`

	// Scoring thresholds
	Scorer gmia.ScorerConfig `mapstructure:"scorer"`

	// Room compensation stages
	RoomComp roomcomp.Settings `mapstructure:"roomcomp"`

	// Diagnosis orchestration
	Diagnosis DiagnosisConfig `mapstructure:"diagnosis"`

	// Training parameters
	Train TrainConfig `mapstructure:"train"`

	// Streaming playback
	Stream StreamConfig `mapstructure:"stream"`
}

// DiagnosisConfig contains temporal smoothing settings.
type DiagnosisConfig struct {
	// HistoryCapacity bounds the per-session score and label windows
	HistoryCapacity int `mapstructure:"history_capacity"`

	// ResultLimit caps how many stored results the history command shows
	ResultLimit int `mapstructure:"result_limit"`
}

// TrainConfig contains reference training settings.
type TrainConfig struct {
	Regularization float64 `mapstructure:"regularization"`
	TargetScore    float64 `mapstructure:"target_score"`
}

// StreamConfig contains chunked playback settings.
type StreamConfig struct {
	ChunkSize int `mapstructure:"chunk_size"`
}

// LoadConfig loads configuration from viper
func LoadConfig() (*Config, error) {
	config := &Config{}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}

	return config, nil
}

// ValidateConfig validates the configuration
func ValidateConfig(config *Config) error {
	switch config.LogLevel {
	case "debug", "info", "warn", "warning", "error", "fatal":
	default:
		return fmt.Errorf("unknown log level %q", config.LogLevel)
	}

	switch config.OutputFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown output format %q (text, json)", config.OutputFormat)
	}

	if config.Extractor.SampleRate <= 0 {
		return fmt.Errorf("extractor sample rate must be positive")
	}

	if config.Extractor.WindowSize <= 0 {
		return fmt.Errorf("extractor window size must be positive")
	}

	if config.Extractor.HopSize <= 0 || config.Extractor.HopSize > config.Extractor.WindowSize {
		return fmt.Errorf("extractor hop size must be in (0, window size]")
	}

	if config.Extractor.Bins <= 0 {
		return fmt.Errorf("extractor bins must be positive")
	}

	if config.Extractor.FreqMin < 0 || config.Extractor.FreqMax <= config.Extractor.FreqMin {
		return fmt.Errorf("extractor frequency range [%.0f, %.0f] Hz is invalid",
			config.Extractor.FreqMin, config.Extractor.FreqMax)
	}

	if config.Scorer.MinMatchScore < 0 || config.Scorer.MinMatchScore > 100 {
		return fmt.Errorf("minimum match score must be between 0 and 100")
	}

	if config.Scorer.UncertainBelow < 0 || config.Scorer.UncertainBelow > 100 {
		return fmt.Errorf("uncertain threshold must be between 0 and 100")
	}

	if config.Diagnosis.HistoryCapacity < 0 {
		return fmt.Errorf("history capacity cannot be negative")
	}

	if config.Train.TargetScore < 0 || config.Train.TargetScore >= 100 {
		return fmt.Errorf("training target score must be in [0, 100)")
	}

	if config.Stream.ChunkSize <= 0 {
		return fmt.Errorf("stream chunk size must be positive")
	}

	return nil
}

// DefaultConfig returns the configuration used when no file, flag, or
// environment variable overrides anything.
func DefaultConfig() *Config {
	return &Config{
		Verbose:      false,
		LogLevel:     "info",
		OutputFormat: "text",
		Extractor:    feature.DefaultExtractorConfig(),
		Scorer:       gmia.DefaultScorerConfig(),
		RoomComp:     roomcomp.DefaultSettings(),
		Diagnosis: DiagnosisConfig{
			HistoryCapacity: 10,
			ResultLimit:     20,
		},
		Train: TrainConfig{
			Regularization: 1.0,
			TargetScore:    95,
		},
		Stream: StreamConfig{
			ChunkSize: 4096,
		},
	}
}
