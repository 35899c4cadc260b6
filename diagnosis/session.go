package diagnosis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/RyanBlaney/sonido-sentinel/feature"
	"github.com/RyanBlaney/sonido-sentinel/gmia"
	"github.com/RyanBlaney/sonido-sentinel/logging"
	"github.com/RyanBlaney/sonido-sentinel/roomcomp"
)

// SessionConfig assembles the collaborators for one streaming diagnosis
// session.
type SessionConfig struct {
	MachineID string

	// Models is the machine's trained state collection. The session works
	// on this snapshot; concurrent mutation of the stored collection does
	// not affect a running session.
	Models []*gmia.Model

	// Reference is the stored reference session for bias matching; may be
	// empty.
	Reference []*feature.Vector

	Extractor   feature.ExtractorConfig
	Scorer      gmia.ScorerConfig
	Compensator *roomcomp.Compensator

	// Store receives the final result; nil skips persistence.
	Store Store

	// HistoryCapacity bounds the smoothing windows; <= 0 falls back to 10.
	HistoryCapacity int
}

// Session is one live diagnosis run: chunks of raw audio go in, smoothed
// verdicts come out. A session owns its accumulators exclusively and must
// not be shared across goroutines.
type Session struct {
	machineID  string
	models     []*gmia.Model
	modelTypes map[string]gmia.ModelType

	extractor   *feature.Extractor
	processor   *roomcomp.Processor
	stages      []string
	environment roomcomp.Environment
	scorer      *gmia.Scorer
	store       Store

	scores *ScoreHistory
	labels *LabelHistory

	lastStatus gmia.Status
	lastMargin float64
	lastHints  []gmia.AnomalyHint
	lastScores []gmia.ModelScore
	frames     int
	chunks     int

	startedAt time.Time
	logger    logging.Logger
}

// NewSession starts a streaming session. The machine must have at least
// one trained model.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.MachineID == "" {
		return nil, fmt.Errorf("diagnosis: session needs a machine id")
	}
	if len(cfg.Models) == 0 {
		return nil, fmt.Errorf("diagnosis: machine %s has no trained models", cfg.MachineID)
	}

	comp := cfg.Compensator
	if comp == nil {
		comp = roomcomp.NewCompensator(roomcomp.DefaultSettings(), cfg.Extractor.HopDuration(), nil)
	}

	models := append([]*gmia.Model(nil), cfg.Models...)
	modelTypes := make(map[string]gmia.ModelType, len(models))
	for _, m := range models {
		modelTypes[m.Label] = m.Type
	}

	processor := comp.Processor(cfg.Reference)
	return &Session{
		machineID:   cfg.MachineID,
		models:      models,
		modelTypes:  modelTypes,
		extractor:   feature.NewExtractor(cfg.Extractor),
		processor:   processor,
		stages:      processor.Stages(),
		environment: comp.Environment(),
		scorer:      gmia.NewScorer(cfg.Scorer),
		store:       cfg.Store,
		scores:      NewScoreHistory(cfg.HistoryCapacity),
		labels:      NewLabelHistory(cfg.HistoryCapacity),
		lastStatus:  gmia.StatusNoMatch,
		startedAt:   time.Now(),
		logger: logging.WithFields(logging.Fields{
			"component":  "diagnosis_session",
			"machine_id": cfg.MachineID,
		}),
	}, nil
}

// ProcessChunk feeds one capture-callback chunk through extraction,
// compensation, and scoring, and returns the smoothed live state.
// Cancellation is honored at chunk boundaries; the work per chunk is
// short and bounded.
func (s *Session) ProcessChunk(ctx context.Context, samples []float64) (*ChunkResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.chunks++

	vectors := s.extractor.Push(samples)
	for _, v := range vectors {
		v = s.processor.Process(v)

		eval, err := s.scorer.Evaluate(s.models, v)
		if err != nil {
			return nil, fmt.Errorf("diagnosis: chunk %d: %w", s.chunks, err)
		}

		// The score window tracks the raw best score even below the
		// match threshold, so a drifting machine shows a falling curve
		// instead of a frozen one.
		s.scores.Add(eval.Scores[0].Score)
		if eval.Best != nil {
			s.labels.Add(eval.Best.Label)
			s.lastMargin = eval.Margin
			s.lastHints = eval.Hints
		} else {
			s.labels.Add("")
		}
		s.lastStatus = eval.Status
		s.lastScores = eval.Scores
	}
	s.frames += len(vectors)

	return &ChunkResult{
		Score:  s.scores.Filtered(),
		Label:  s.labels.Majority(),
		Status: s.lastStatus,
		Frames: len(vectors),
	}, nil
}

// Finish closes the session: it derives the final verdict from the
// smoothing windows, persists it when a store is attached, and resets the
// session state. The result is returned even when persisting fails.
func (s *Session) Finish(ctx context.Context) (*Result, error) {
	result := &Result{
		ID:           uuid.NewString(),
		MachineID:    s.machineID,
		Score:        s.scores.Filtered(),
		Label:        s.labels.Majority(),
		Confidence:   confidence(s.lastMargin, s.scores.StdDev(), s.frames),
		Margin:       s.lastMargin,
		Hints:        s.lastHints,
		PerModel:     s.lastScores,
		Chunks:       s.chunks,
		Frames:       s.frames,
		Compensation: s.stages,
		Environment:  s.environment,
		CompletedAt:  time.Now(),
	}
	result.Status = finalStatus(result.Score, result.Label, s.modelTypes, s.scorer.Config())

	s.logger.Info("Diagnosis session completed", logging.Fields{
		"score":      result.Score,
		"status":     string(result.Status),
		"label":      result.Label,
		"confidence": result.Confidence,
		"frames":     result.Frames,
		"chunks":     result.Chunks,
		"duration":   time.Since(s.startedAt).String(),
	})

	var saveErr error
	if s.store != nil {
		if saveErr = s.store.SaveResult(ctx, s.machineID, result); saveErr != nil {
			saveErr = fmt.Errorf("diagnosis: failed to persist result: %w", saveErr)
		}
	}

	s.Reset()
	return result, saveErr
}

// Reset clears the smoothing windows, the compensation accumulators, and
// any buffered samples.
func (s *Session) Reset() {
	s.scores.Reset()
	s.labels.Reset()
	s.processor.Reset()
	s.extractor.Reset()
	s.lastStatus = gmia.StatusNoMatch
	s.lastMargin = 0
	s.lastHints = nil
	s.lastScores = nil
	s.frames = 0
	s.chunks = 0
}

// finalStatus maps the smoothed score and majority label onto the final
// verdict: an empty majority or a score under the match threshold means
// no trained state fits; the intermediate band is uncertain; above it the
// majority label's model type decides.
func finalStatus(score float64, label string, types map[string]gmia.ModelType, cfg gmia.ScorerConfig) gmia.Status {
	if label == "" || score < cfg.MinMatchScore {
		return gmia.StatusNoMatch
	}
	if score < cfg.UncertainBelow {
		return gmia.StatusUncertain
	}
	if types[label] == gmia.TypeFaulty {
		return gmia.StatusFaulty
	}
	return gmia.StatusHealthy
}
