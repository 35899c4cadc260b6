package diagnosis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/RyanBlaney/sonido-sentinel/algorithms/synth"
	"github.com/RyanBlaney/sonido-sentinel/feature"
	"github.com/RyanBlaney/sonido-sentinel/gmia"
	"github.com/RyanBlaney/sonido-sentinel/logging"
	"github.com/RyanBlaney/sonido-sentinel/roomcomp"
)

// Chirp probe frequency range, chosen to cover the analysis bands.
const (
	probeStartHz = 200
	probeEndHz   = 8000
)

// Store is the persistence collaborator as this package needs it: trained
// models, reference sessions, and calibrations keyed by machine identity,
// plus a sink for finished results. Loaders return (nil, nil) when the
// machine has no stored record of that kind.
type Store interface {
	MachineExists(ctx context.Context, machineID string) (bool, error)

	Models(ctx context.Context, machineID string) ([]*gmia.Model, error)
	SaveModel(ctx context.Context, machineID string, m *gmia.Model) error

	Reference(ctx context.Context, machineID string) ([]*feature.Vector, error)
	SaveReference(ctx context.Context, machineID string, frames []*feature.Vector) error

	Calibration(ctx context.Context, machineID string) (*roomcomp.T60Estimate, error)
	SaveCalibration(ctx context.Context, machineID string, est *roomcomp.T60Estimate) error

	SaveResult(ctx context.Context, machineID string, r *Result) error
}

// Config carries the pipeline configuration shared by all orchestrated
// operations.
type Config struct {
	Extractor       feature.ExtractorConfig
	Scorer          gmia.ScorerConfig
	RoomComp        roomcomp.Settings
	HistoryCapacity int
}

// Orchestrator sequences compensation, scoring, and smoothing over the
// persistence boundary: training reference states from batch recordings,
// batch diagnosis, live sessions, and room calibration.
type Orchestrator struct {
	store  Store
	cfg    Config
	logger logging.Logger
}

// NewOrchestrator creates an orchestrator. Config fields are normalized
// once here: invalid extractor and room-compensation values fall back to
// their documented defaults.
func NewOrchestrator(st Store, cfg Config) *Orchestrator {
	cfg.Extractor = feature.NewExtractor(cfg.Extractor).Config()
	cfg.RoomComp = cfg.RoomComp.Validate()
	return &Orchestrator{
		store: st,
		cfg:   cfg,
		logger: logging.WithFields(logging.Fields{
			"component": "diagnosis_orchestrator",
		}),
	}
}

// Config returns the normalized configuration in effect.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// TrainReference turns a batch recording (~10 s of steady machine sound)
// into a trained reference state and persists it. The raw, uncompensated
// frames are stored as the machine's reference session so later bias
// matching can correct measurements toward these recording conditions.
func (o *Orchestrator) TrainReference(ctx context.Context, machineID string, samples []float64, opts gmia.TrainOptions) (*gmia.Model, error) {
	if err := o.requireMachine(ctx, machineID); err != nil {
		return nil, err
	}

	extractor := feature.NewExtractor(o.cfg.Extractor)
	raw, err := extractor.ExtractAll(samples)
	if err != nil {
		return nil, fmt.Errorf("failed to extract training features: %w", err)
	}

	// The training session IS the reference: bias matching corrects later
	// measurements toward it and never applies to the reference itself.
	trainSettings := o.cfg.RoomComp
	trainSettings.BiasMatchEnabled = false
	comp := roomcomp.NewCompensator(trainSettings, o.cfg.Extractor.HopDuration(), o.loadCalibration(ctx, machineID))
	frames, _ := comp.Apply(nil, raw)

	model, err := gmia.Train(frames, opts)
	if err != nil {
		return nil, err
	}

	if err := o.store.SaveModel(ctx, machineID, model); err != nil {
		return nil, fmt.Errorf("failed to persist model: %w", err)
	}
	if err := o.store.SaveReference(ctx, machineID, raw); err != nil {
		return nil, fmt.Errorf("failed to persist reference session: %w", err)
	}

	o.logger.Info("Reference state trained", logging.Fields{
		"machine_id": machineID,
		"model_id":   model.ID,
		"label":      model.Label,
		"type":       string(model.Type),
		"frames":     len(frames),
		"mean_cos":   model.Meta.MeanCosineSimilarity,
	})
	return model, nil
}

// Diagnose runs one batch diagnosis over a complete recording and
// persists the verdict.
func (o *Orchestrator) Diagnose(ctx context.Context, machineID string, samples []float64) (*Result, error) {
	if err := o.requireMachine(ctx, machineID); err != nil {
		return nil, err
	}

	models, err := o.store.Models(ctx, machineID)
	if err != nil {
		return nil, fmt.Errorf("failed to load models: %w", err)
	}
	if len(models) == 0 {
		return nil, fmt.Errorf("diagnosis: machine %s has no trained models", machineID)
	}

	extractor := feature.NewExtractor(o.cfg.Extractor)
	raw, err := extractor.ExtractAll(samples)
	if err != nil {
		return nil, fmt.Errorf("failed to extract features: %w", err)
	}

	comp := roomcomp.NewCompensator(o.cfg.RoomComp, o.cfg.Extractor.HopDuration(), o.loadCalibration(ctx, machineID))
	frames, stages := comp.Apply(o.loadReference(ctx, machineID), raw)

	scorer := gmia.NewScorer(o.cfg.Scorer)
	scores := NewScoreHistory(len(frames))
	labels := NewLabelHistory(len(frames))
	modelTypes := make(map[string]gmia.ModelType, len(models))
	for _, m := range models {
		modelTypes[m.Label] = m.Type
	}

	var lastEval *gmia.Evaluation
	var lastMargin float64
	var lastHints []gmia.AnomalyHint
	for i, v := range frames {
		eval, err := scorer.Evaluate(models, v)
		if err != nil {
			return nil, fmt.Errorf("diagnosis: frame %d: %w", i, err)
		}
		scores.Add(eval.Scores[0].Score)
		if eval.Best != nil {
			labels.Add(eval.Best.Label)
			lastMargin = eval.Margin
			lastHints = eval.Hints
		} else {
			labels.Add("")
		}
		lastEval = eval
	}

	result := &Result{
		ID:           uuid.NewString(),
		MachineID:    machineID,
		Score:        scores.Filtered(),
		Label:        labels.Majority(),
		Confidence:   confidence(lastMargin, scores.StdDev(), len(frames)),
		Margin:       lastMargin,
		Hints:        lastHints,
		PerModel:     lastEval.Scores,
		Frames:       len(frames),
		Compensation: stages,
		Environment:  comp.Environment(),
		CompletedAt:  time.Now(),
	}
	result.Status = finalStatus(result.Score, result.Label, modelTypes, scorer.Config())

	o.logger.Info("Batch diagnosis completed", logging.Fields{
		"machine_id": machineID,
		"score":      result.Score,
		"status":     string(result.Status),
		"label":      result.Label,
		"frames":     result.Frames,
	})

	if err := o.store.SaveResult(ctx, machineID, result); err != nil {
		return result, fmt.Errorf("failed to persist result: %w", err)
	}
	return result, nil
}

// StartSession opens a streaming diagnosis session against the machine's
// current model snapshot.
func (o *Orchestrator) StartSession(ctx context.Context, machineID string) (*Session, error) {
	if err := o.requireMachine(ctx, machineID); err != nil {
		return nil, err
	}

	models, err := o.store.Models(ctx, machineID)
	if err != nil {
		return nil, fmt.Errorf("failed to load models: %w", err)
	}

	calibration := o.loadCalibration(ctx, machineID)
	if o.cfg.RoomComp.T60SubtractionEnabled && calibration == nil &&
		o.cfg.RoomComp.CalibrationMode == roomcomp.CalibrationAuto {
		o.logger.Warn("T60 subtraction enabled but no calibration stored; run a calibration probe", logging.Fields{
			"machine_id": machineID,
		})
	}

	return NewSession(SessionConfig{
		MachineID:       machineID,
		Models:          models,
		Reference:       o.loadReference(ctx, machineID),
		Extractor:       o.cfg.Extractor,
		Scorer:          o.cfg.Scorer,
		Compensator:     roomcomp.NewCompensator(o.cfg.RoomComp, o.cfg.Extractor.HopDuration(), calibration),
		Store:           o.store,
		HistoryCapacity: o.cfg.HistoryCapacity,
	})
}

// Probe returns the chirp probe for the configured sweep duration and
// sample rate. The caller plays Template() and records CaptureDuration()
// of response for Calibrate.
func (o *Orchestrator) Probe() *roomcomp.ChirpProbe {
	sweep := synth.NewLogSweep(probeStartHz, probeEndHz, o.cfg.RoomComp.SweepDuration)
	return roomcomp.NewChirpProbe(sweep, o.cfg.Extractor.SampleRate)
}

// Calibrate measures the room's reverberation time from a recorded probe
// response and persists the estimate when the measurement passes its
// quality gates. A rejected measurement is returned for display, not as
// an error.
func (o *Orchestrator) Calibrate(ctx context.Context, machineID string, recorded []float64) (*roomcomp.T60Measurement, error) {
	if err := o.requireMachine(ctx, machineID); err != nil {
		return nil, err
	}

	m, err := o.Probe().Measure(recorded)
	if err != nil {
		return nil, err
	}
	if !m.OK() {
		return m, nil
	}

	if err := o.store.SaveCalibration(ctx, machineID, m.Estimate); err != nil {
		return m, fmt.Errorf("failed to persist calibration: %w", err)
	}
	o.logger.Info("Room calibration stored", logging.Fields{
		"machine_id":  machineID,
		"broadband_s": m.Estimate.Broadband,
		"environment": string(roomcomp.ClassifyEnvironment(m.Estimate.Broadband)),
	})
	return m, nil
}

func (o *Orchestrator) requireMachine(ctx context.Context, machineID string) error {
	exists, err := o.store.MachineExists(ctx, machineID)
	if err != nil {
		return fmt.Errorf("failed to look up machine: %w", err)
	}
	if !exists {
		return fmt.Errorf("diagnosis: unknown machine %s", machineID)
	}
	return nil
}

// loadReference fetches the stored reference session; load failures
// degrade to "no reference" with a warning, they never block a diagnosis.
func (o *Orchestrator) loadReference(ctx context.Context, machineID string) []*feature.Vector {
	reference, err := o.store.Reference(ctx, machineID)
	if err != nil {
		o.logger.Warn("Failed to load reference session", logging.Fields{
			"machine_id": machineID,
			"error":      err.Error(),
		})
		return nil
	}
	return reference
}

// loadCalibration fetches the stored T60 calibration under the same
// degrade-don't-block policy.
func (o *Orchestrator) loadCalibration(ctx context.Context, machineID string) *roomcomp.T60Estimate {
	calibration, err := o.store.Calibration(ctx, machineID)
	if err != nil {
		o.logger.Warn("Failed to load calibration", logging.Fields{
			"machine_id": machineID,
			"error":      err.Error(),
		})
		return nil
	}
	return calibration
}
