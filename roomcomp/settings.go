package roomcomp

import (
	"time"
)

// CalibrationMode controls when the chirp probe runs.
type CalibrationMode string

const (
	// CalibrationManual runs the probe only on explicit request
	CalibrationManual CalibrationMode = "manual"

	// CalibrationAuto runs the probe at every session start
	CalibrationAuto CalibrationMode = "auto"
)

// Settings configures which compensation stages run and how. Every stage
// defaults to OFF because each one is destructive when applied to the wrong
// signal type; operators enable stages per deployment.
type Settings struct {
	// Stage switches
	CMNEnabled            bool `json:"cmn_enabled" mapstructure:"cmn_enabled"`
	BiasMatchEnabled      bool `json:"bias_match_enabled" mapstructure:"bias_match_enabled"`
	T60SubtractionEnabled bool `json:"t60_subtraction_enabled" mapstructure:"t60_subtraction_enabled"`

	// Late-reverberation subtraction parameters
	Beta          float64 `json:"beta" mapstructure:"beta"`
	SpectralFloor float64 `json:"spectral_floor" mapstructure:"spectral_floor"`

	// Streaming accumulator parameters
	SmoothingAlpha float64 `json:"smoothing_alpha" mapstructure:"smoothing_alpha"`
	WarmupFrames   int     `json:"warmup_frames" mapstructure:"warmup_frames"`

	// Chirp probe parameters
	SweepDuration   time.Duration   `json:"sweep_duration" mapstructure:"sweep_duration"`
	CalibrationMode CalibrationMode `json:"calibration_mode" mapstructure:"calibration_mode"`
}

// DefaultSettings returns the documented defaults: all stages off,
// over-subtraction factor 1.0, gain floor 0.1, smoothing alpha 0.02,
// 3 warm-up frames, 60 ms sweep, manual calibration.
func DefaultSettings() Settings {
	return Settings{
		Beta:            1.0,
		SpectralFloor:   0.1,
		SmoothingAlpha:  0.02,
		WarmupFrames:    3,
		SweepDuration:   60 * time.Millisecond,
		CalibrationMode: CalibrationManual,
	}
}

// Validate returns a normalized copy: out-of-range fields fall back to the
// documented defaults. CMN and bias match may both be enabled; the
// compensator applies at most one of them per pass, preferring bias match
// and keeping CMN as the fallback when reference features are missing.
func (s Settings) Validate() Settings {
	def := DefaultSettings()

	if s.Beta <= 0 || s.Beta > 4 {
		s.Beta = def.Beta
	}
	if s.SpectralFloor < 0 || s.SpectralFloor >= 1 {
		s.SpectralFloor = def.SpectralFloor
	}
	if s.SmoothingAlpha <= 0 || s.SmoothingAlpha >= 1 {
		s.SmoothingAlpha = def.SmoothingAlpha
	}
	if s.WarmupFrames < 0 {
		s.WarmupFrames = def.WarmupFrames
	}
	if s.SweepDuration <= 0 || s.SweepDuration > 2*time.Second {
		s.SweepDuration = def.SweepDuration
	}
	if s.CalibrationMode != CalibrationManual && s.CalibrationMode != CalibrationAuto {
		s.CalibrationMode = def.CalibrationMode
	}

	return s
}
