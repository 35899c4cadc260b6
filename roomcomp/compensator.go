package roomcomp

import (
	"time"

	"github.com/RyanBlaney/sonido-sentinel/feature"
	"github.com/RyanBlaney/sonido-sentinel/logging"
)

// Stage names reported on results, in the order the stages run.
const (
	StageLateReverb = "late_reverb_subtraction"
	StageBiasMatch  = "bias_match"
	StageCMN        = "cmn"
)

// Compensator sequences the enabled correction stages for one session:
// late-reverberation subtraction first (when a calibration exists), then
// either bias matching (preferred, needs a reference session) or CMN.
// Stage failures degrade to a simpler correction rather than blocking the
// diagnosis; every fallback is logged.
type Compensator struct {
	settings    Settings
	hop         time.Duration
	calibration *T60Estimate
	logger      logging.Logger
}

// NewCompensator builds a compensator from validated settings, the
// extractor's hop duration, and an optional T60 calibration from a chirp
// probe run in the current room. A nil calibration simply disables the
// subtraction stage.
func NewCompensator(settings Settings, hop time.Duration, calibration *T60Estimate) *Compensator {
	return &Compensator{
		settings:    settings.Validate(),
		hop:         hop,
		calibration: calibration,
		logger: logging.WithFields(logging.Fields{
			"component": "room_compensator",
		}),
	}
}

// Settings returns the validated settings in effect.
func (c *Compensator) Settings() Settings {
	return c.settings
}

// Active reports whether any stage can actually run under the current
// settings and calibration state.
func (c *Compensator) Active() bool {
	return c.settings.CMNEnabled ||
		c.settings.BiasMatchEnabled ||
		(c.settings.T60SubtractionEnabled && c.calibration != nil)
}

// Environment classifies the calibrated room; empty without a calibration.
func (c *Compensator) Environment() Environment {
	if c.calibration == nil {
		return ""
	}
	return ClassifyEnvironment(c.calibration.Broadband)
}

// Apply runs one batch compensation pass over a measurement session and
// reports which stages actually ran. The reference session is only
// consulted by the bias-match stage and is never modified. The result is
// always usable: on stage failure the remaining frames pass through with
// a logged fallback.
func (c *Compensator) Apply(reference, measurement []*feature.Vector) ([]*feature.Vector, []string) {
	current := measurement
	var stages []string

	if sub := c.newSubtraction(); sub != nil {
		current = sub.Apply(current)
		stages = append(stages, StageLateReverb)
		c.logger.Debug("Applied late-reverb subtraction", logging.Fields{
			"t60_s":  c.calibration.Broadband,
			"delta":  sub.Delta(),
			"frames": len(current),
		})
	}

	switch {
	case c.settings.BiasMatchEnabled && len(reference) > 0:
		corrected, err := NewBiasMatch().Apply(reference, current)
		if err != nil {
			c.logger.Warn("Bias match failed", logging.Fields{"error": err.Error()})
			return c.fallbackCMN(current, stages)
		}
		return corrected, append(stages, StageBiasMatch)

	case c.settings.BiasMatchEnabled:
		c.logger.Warn("Bias match enabled but no reference features available")
		return c.fallbackCMN(current, stages)

	case c.settings.CMNEnabled:
		return c.applyCMN(current, stages)
	}

	return current, stages
}

// fallbackCMN applies CMN when bias matching cannot run, provided CMN is
// also enabled; otherwise the frames pass through uncorrected.
func (c *Compensator) fallbackCMN(frames []*feature.Vector, stages []string) ([]*feature.Vector, []string) {
	if !c.settings.CMNEnabled {
		return frames, stages
	}
	c.logger.Warn("Falling back to CMN")
	return c.applyCMN(frames, stages)
}

func (c *Compensator) applyCMN(frames []*feature.Vector, stages []string) ([]*feature.Vector, []string) {
	corrected, err := NewCMN().Apply(frames)
	if err != nil {
		c.logger.Warn("CMN failed; frames pass through uncorrected", logging.Fields{
			"error": err.Error(),
		})
		return frames, stages
	}
	return corrected, append(stages, StageCMN)
}

// newSubtraction builds the batch subtraction stage when t60 subtraction
// is enabled and a calibration is present.
func (c *Compensator) newSubtraction() *LateReverbSubtraction {
	if !c.settings.T60SubtractionEnabled || c.calibration == nil {
		return nil
	}
	sub, err := NewLateReverbSubtraction(c.calibration.Broadband, c.hop,
		c.settings.Beta, c.settings.SpectralFloor)
	if err != nil {
		c.logger.Warn("Late-reverb subtraction unavailable", logging.Fields{
			"error": err.Error(),
		})
		return nil
	}
	return sub
}

// Processor is the streaming counterpart of a batch Apply: a chain of
// per-frame accumulator stages owned by one session.
type Processor struct {
	t60  *RealtimeT60Subtraction
	bias *RealtimeBiasMatch
	cmn  *RealtimeCMN
}

// Processor builds the streaming stage chain for a session. The reference
// session feeds the bias-match stage; when it is missing or unusable the
// chain falls back to streaming CMN if enabled.
func (c *Compensator) Processor(reference []*feature.Vector) *Processor {
	p := &Processor{}

	if c.settings.T60SubtractionEnabled && c.calibration != nil {
		sub, err := NewRealtimeT60Subtraction(c.calibration.Broadband, c.hop,
			c.settings.Beta, c.settings.SpectralFloor)
		if err != nil {
			c.logger.Warn("Streaming t60 subtraction unavailable", logging.Fields{
				"error": err.Error(),
			})
		} else {
			p.t60 = sub
		}
	}

	if c.settings.BiasMatchEnabled {
		bias, err := NewRealtimeBiasMatch(reference, c.settings.SmoothingAlpha, c.settings.WarmupFrames)
		if err != nil {
			c.logger.Warn("Streaming bias match unavailable", logging.Fields{
				"error": err.Error(),
			})
		} else {
			p.bias = bias
		}
	}

	if p.bias == nil && c.settings.CMNEnabled {
		if c.settings.BiasMatchEnabled {
			c.logger.Warn("Falling back to streaming CMN")
		}
		p.cmn = NewRealtimeCMN(c.settings.SmoothingAlpha, c.settings.WarmupFrames)
	}

	return p
}

// Stages lists the corrections wired into this chain, in running order.
func (p *Processor) Stages() []string {
	var stages []string
	if p.t60 != nil {
		stages = append(stages, StageLateReverb)
	}
	if p.bias != nil {
		stages = append(stages, StageBiasMatch)
	} else if p.cmn != nil {
		stages = append(stages, StageCMN)
	}
	return stages
}

// Process runs one frame through the enabled stages.
func (p *Processor) Process(v *feature.Vector) *feature.Vector {
	if p.t60 != nil {
		v = p.t60.Process(v)
	}
	if p.bias != nil {
		return p.bias.Process(v)
	}
	if p.cmn != nil {
		return p.cmn.Process(v)
	}
	return v
}

// Reset clears all accumulator state for a new session.
func (p *Processor) Reset() {
	if p.t60 != nil {
		p.t60.Reset()
	}
	if p.bias != nil {
		p.bias.Reset()
	}
	if p.cmn != nil {
		p.cmn.Reset()
	}
}
