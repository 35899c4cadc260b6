package gmia

import (
	"fmt"
	"math"
	"sort"

	"github.com/RyanBlaney/sonido-sentinel/feature"
	"github.com/RyanBlaney/sonido-sentinel/logging"
)

// Status is the diagnosis outcome for one candidate vector.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUncertain Status = "uncertain"
	StatusFaulty    Status = "faulty"

	// StatusNoMatch means no trained state resembles the candidate at
	// all: an untrained machine state, not a detected fault.
	StatusNoMatch Status = "no_match"
)

// ScorerConfig holds the decision thresholds on the 0-100 scale.
type ScorerConfig struct {
	// MinMatchScore is the least score that still counts as a match
	MinMatchScore float64 `json:"min_match_score" mapstructure:"min_match_score"`

	// UncertainBelow maps matched scores under this bound to uncertain
	UncertainBelow float64 `json:"uncertain_below" mapstructure:"uncertain_below"`

	// AnomalyHints is how many deviating bands to report
	AnomalyHints int `json:"anomaly_hints" mapstructure:"anomaly_hints"`
}

// DefaultScorerConfig returns the standard thresholds.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		MinMatchScore:  40,
		UncertainBelow: 60,
		AnomalyHints:   5,
	}
}

// ModelScore is one model's verdict on the candidate.
type ModelScore struct {
	ModelID string    `json:"model_id"`
	Label   string    `json:"label"`
	Type    ModelType `json:"type"`
	Score   float64   `json:"score"`
}

// AnomalyHint points at a frequency band where the candidate deviates
// most from the best-matching reference state. Positive deviation means
// excess energy relative to the reference.
type AnomalyHint struct {
	Bin       int     `json:"bin"`
	Frequency float64 `json:"frequency"`
	Deviation float64 `json:"deviation"`
}

// Evaluation is the multiclass scoring outcome for one candidate.
type Evaluation struct {
	// Best is the winning model's score; nil when Status is no_match
	Best *ModelScore `json:"best,omitempty"`

	Status Status `json:"status"`

	// Scores lists every compatible model's verdict, highest first
	Scores []ModelScore `json:"scores"`

	// Margin separates the best score from the runner-up; 0 with a
	// single compatible model
	Margin float64 `json:"margin"`

	// Skipped counts models left out for compatibility reasons
	Skipped int `json:"skipped"`

	Hints []AnomalyHint `json:"hints,omitempty"`
}

// Scorer evaluates a candidate against all trained states of one machine
// and picks the best match above the confidence threshold.
type Scorer struct {
	cfg    ScorerConfig
	logger logging.Logger
}

// NewScorer creates a scorer; zero config fields fall back to defaults.
// An UncertainBelow at or under MinMatchScore disables the uncertain band
// entirely.
func NewScorer(cfg ScorerConfig) *Scorer {
	def := DefaultScorerConfig()
	if cfg.MinMatchScore <= 0 {
		cfg.MinMatchScore = def.MinMatchScore
	}
	if cfg.UncertainBelow <= 0 {
		cfg.UncertainBelow = def.UncertainBelow
	}
	if cfg.AnomalyHints <= 0 {
		cfg.AnomalyHints = def.AnomalyHints
	}
	return &Scorer{
		cfg: cfg,
		logger: logging.WithFields(logging.Fields{
			"component": "gmia_scorer",
		}),
	}
}

// Config returns the thresholds in effect.
func (s *Scorer) Config() ScorerConfig {
	return s.cfg
}

// Evaluate scores the candidate against every model. Models from an older
// extractor configuration are skipped with a warning; if no model at all
// is compatible the precondition error surfaces to the caller.
func (s *Scorer) Evaluate(models []*Model, v *feature.Vector) (*Evaluation, error) {
	if len(models) == 0 {
		return nil, fmt.Errorf("gmia: no trained models")
	}

	eval := &Evaluation{Status: StatusNoMatch}
	var lastErr error

	for _, m := range models {
		score, err := m.Score(v)
		if err != nil {
			lastErr = err
			eval.Skipped++
			s.logger.Warn("Skipping incompatible model", logging.Fields{
				"model_id": m.ID,
				"label":    m.Label,
				"error":    err.Error(),
			})
			continue
		}
		eval.Scores = append(eval.Scores, ModelScore{
			ModelID: m.ID,
			Label:   m.Label,
			Type:    m.Type,
			Score:   score,
		})
	}

	if len(eval.Scores) == 0 {
		return nil, fmt.Errorf("gmia: no compatible models: %w", lastErr)
	}

	sort.SliceStable(eval.Scores, func(i, j int) bool {
		return eval.Scores[i].Score > eval.Scores[j].Score
	})

	best := eval.Scores[0]
	if len(eval.Scores) > 1 {
		eval.Margin = best.Score - eval.Scores[1].Score
	}

	if best.Score < s.cfg.MinMatchScore {
		// Distinct from a faulty match: nothing the machine was trained
		// on resembles what it sounds like now.
		return eval, nil
	}

	eval.Best = &best
	eval.Status = s.statusFor(best)
	eval.Hints = s.anomalyHints(models, best.ModelID, v)
	return eval, nil
}

// statusFor maps a matched score onto the diagnosis status: the
// intermediate band is uncertain, above it the winning model's type
// decides.
func (s *Scorer) statusFor(best ModelScore) Status {
	if best.Score < s.cfg.UncertainBelow {
		return StatusUncertain
	}
	if best.Type == TypeFaulty {
		return StatusFaulty
	}
	return StatusHealthy
}

// anomalyHints reports the bands where the candidate deviates most from
// the winning reference state.
func (s *Scorer) anomalyHints(models []*Model, bestID string, v *feature.Vector) []AnomalyHint {
	var best *Model
	for _, m := range models {
		if m.ID == bestID {
			best = m
			break
		}
	}
	if best == nil {
		return nil
	}

	hints := make([]AnomalyHint, 0, len(v.Relative))
	for k := range v.Relative {
		hints = append(hints, AnomalyHint{
			Bin:       k,
			Frequency: v.BinCenterFrequency(k),
			Deviation: v.Relative[k] - best.WeightVector[k],
		})
	}
	sort.SliceStable(hints, func(i, j int) bool {
		return math.Abs(hints[i].Deviation) > math.Abs(hints[j].Deviation)
	})

	n := min(s.cfg.AnomalyHints, len(hints))
	return hints[:n]
}
