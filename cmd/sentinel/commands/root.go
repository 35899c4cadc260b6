package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/sonido-sentinel/configs"
	"github.com/RyanBlaney/sonido-sentinel/diagnosis"
	"github.com/RyanBlaney/sonido-sentinel/logging"
	"github.com/RyanBlaney/sonido-sentinel/store"
)

var (
	configFile   string
	verbose      bool
	logLevel     string
	outputFormat string
	dataDir      string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Acoustic machine-health monitor",
	Long: `Sentinel diagnoses machine health from sound. It trains compact
reference states from recordings of known operating conditions and scores
later recordings against them, compensating for the acoustics of the room
the microphone sits in.

Key features:
- Reference training from healthy and known-fault recordings
- Batch and chunked streaming diagnosis with temporal smoothing
- Room calibration via chirp probe (T60 measurement)
- Late-reverberation subtraction, bias matching, and CMN compensation
- Machine export/import for moving trained states between devices`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bindFlags(cmd, viper.GetViper()); err != nil {
			return err
		}
		configureLogging()
		return nil
	},
}

// Execute runs the CLI and returns the first command error.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (default is $HOME/.config/sentinel/sentinel.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "",
		"data directory (default is $HOME/.local/share/sentinel)")

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text",
		"output format (text, json)")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("output_format", rootCmd.PersistentFlags().Lookup("output"))
	viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}

		viper.AddConfigPath(filepath.Join(home, ".config", "sentinel"))
		viper.AddConfigPath("/etc/sentinel")
		viper.AddConfigPath("./configs")
		viper.SetConfigName("sentinel")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("SENTINEL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	}
}

// bindFlags binds each cobra flag to its associated viper configuration
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var lastErr error

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))

		if !f.Changed && v.IsSet(f.Name) {
			val := v.Get(f.Name)
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val)); err != nil {
				lastErr = err
			}
		}

		if err := v.BindPFlag(f.Name, f); err != nil {
			lastErr = err
		}

		if err := v.BindEnv(f.Name, "SENTINEL_"+envVarSuffix); err != nil {
			lastErr = err
		}
	})

	return lastErr
}

// setDefaults seeds viper with the package defaults, so a missing config
// file still produces a complete configuration.
func setDefaults() {
	def := configs.DefaultConfig()

	viper.SetDefault("verbose", def.Verbose)
	viper.SetDefault("log_level", def.LogLevel)
	viper.SetDefault("output_format", def.OutputFormat)

	home, _ := os.UserHomeDir()
	viper.SetDefault("data_dir", filepath.Join(home, ".local", "share", "sentinel"))

	viper.SetDefault("extractor.sample_rate", def.Extractor.SampleRate)
	viper.SetDefault("extractor.window_size", def.Extractor.WindowSize)
	viper.SetDefault("extractor.hop_size", def.Extractor.HopSize)
	viper.SetDefault("extractor.bins", def.Extractor.Bins)
	viper.SetDefault("extractor.freq_min", def.Extractor.FreqMin)
	viper.SetDefault("extractor.freq_max", def.Extractor.FreqMax)

	viper.SetDefault("scorer.min_match_score", def.Scorer.MinMatchScore)
	viper.SetDefault("scorer.uncertain_below", def.Scorer.UncertainBelow)
	viper.SetDefault("scorer.anomaly_hints", def.Scorer.AnomalyHints)

	viper.SetDefault("roomcomp.cmn_enabled", def.RoomComp.CMNEnabled)
	viper.SetDefault("roomcomp.bias_match_enabled", def.RoomComp.BiasMatchEnabled)
	viper.SetDefault("roomcomp.t60_subtraction_enabled", def.RoomComp.T60SubtractionEnabled)
	viper.SetDefault("roomcomp.beta", def.RoomComp.Beta)
	viper.SetDefault("roomcomp.spectral_floor", def.RoomComp.SpectralFloor)
	viper.SetDefault("roomcomp.smoothing_alpha", def.RoomComp.SmoothingAlpha)
	viper.SetDefault("roomcomp.warmup_frames", def.RoomComp.WarmupFrames)
	viper.SetDefault("roomcomp.sweep_duration", def.RoomComp.SweepDuration.String())
	viper.SetDefault("roomcomp.calibration_mode", string(def.RoomComp.CalibrationMode))

	viper.SetDefault("diagnosis.history_capacity", def.Diagnosis.HistoryCapacity)
	viper.SetDefault("diagnosis.result_limit", def.Diagnosis.ResultLimit)

	viper.SetDefault("train.regularization", def.Train.Regularization)
	viper.SetDefault("train.target_score", def.Train.TargetScore)

	viper.SetDefault("stream.chunk_size", def.Stream.ChunkSize)
}

// configureLogging applies the effective log level. Verbose wins over the
// configured level.
func configureLogging() {
	level := logging.ParseLevel(viper.GetString("log_level"))
	if viper.GetBool("verbose") {
		level = logging.DebugLevel
	}
	logging.SetLevel(level)

	if viper.GetString("output_format") == "json" {
		logging.DisableColors()
	}
}

// loadConfig decodes and validates the effective configuration.
func loadConfig() (*configs.Config, error) {
	cfg, err := configs.LoadConfig()
	if err != nil {
		return nil, err
	}
	if err := configs.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openStore opens the on-device database under the configured data
// directory.
func openStore(cfg *configs.Config) (*store.Badger, error) {
	dir := filepath.Join(cfg.DataDir, "db")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return store.NewBadger(store.BadgerOptions{Dir: dir})
}

// newOrchestrator wires the diagnosis pipeline from the configuration.
func newOrchestrator(cfg *configs.Config, st diagnosis.Store) *diagnosis.Orchestrator {
	return diagnosis.NewOrchestrator(st, diagnosis.Config{
		Extractor:       cfg.Extractor,
		Scorer:          cfg.Scorer,
		RoomComp:        cfg.RoomComp,
		HistoryCapacity: cfg.Diagnosis.HistoryCapacity,
	})
}
