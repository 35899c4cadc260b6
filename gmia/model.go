// Package gmia implements similarity scoring of feature vectors against
// trained reference states. A model is a regularized mean of training
// vectors plus a scaling constant calibrated so the training data itself
// scores near a configured target; scoring maps cosine similarity through
// tanh onto a 0-100 health scale.
package gmia

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-sentinel/feature"
)

// ModelType distinguishes reference states trained on healthy operation
// from states trained on known fault conditions.
type ModelType string

const (
	TypeHealthy ModelType = "healthy"
	TypeFaulty  ModelType = "faulty"
)

// Hard scoring preconditions. A mismatch means the comparison would be
// numerically computable but physically meaningless, so it is rejected
// instead of silently scored.
var (
	// ErrDimensionMismatch covers band count and band edges
	ErrDimensionMismatch = errors.New("gmia: feature dimension mismatch")

	// ErrSampleRateMismatch means the model was trained at a different
	// recording rate than the candidate
	ErrSampleRateMismatch = errors.New("gmia: sample rate mismatch")
)

// Guard values for scaling-constant calibration.
const (
	minMeanCosine      = 0.05
	fallbackScaling    = 3.0
	defaultTargetScore = 95.0
	defaultLambda      = 1.0
)

// ModelMeta records how the scaling constant was calibrated.
type ModelMeta struct {
	MeanCosineSimilarity float64 `json:"mean_cosine_similarity"`
	TargetScore          float64 `json:"target_score"`
}

// Model is one trained reference state. Immutable after training; a
// machine owns an ordered collection of these for multiclass diagnosis.
type Model struct {
	ID    string    `json:"id"`
	Label string    `json:"label"`
	Type  ModelType `json:"type"`

	WeightVector     []float64 `json:"weight_vector"`
	Regularization   float64   `json:"regularization"`
	ScalingConstant  float64   `json:"scaling_constant"`
	FeatureDimension int       `json:"feature_dimension"`

	// Compatibility parameters of the training session
	SampleRate int     `json:"sample_rate"`
	FreqMin    float64 `json:"freq_min"`
	FreqMax    float64 `json:"freq_max"`

	Meta      ModelMeta `json:"meta"`
	TrainedAt time.Time `json:"trained_at"`
}

// TrainOptions configures one training run. Zero values fall back to the
// documented defaults (lambda 1, target score 95, type healthy).
type TrainOptions struct {
	Label          string
	Type           ModelType
	Regularization float64
	TargetScore    float64
}

// Train builds a reference state from a batch of feature vectors.
//
// The weight vector is a Dirichlet-smoothed mean over the training
// simplex: w[k] = (sum_i v_i[k] + lambda/d) / (N + lambda), which keeps w
// itself on the simplex. The scaling constant is then calibrated so the
// training batch scores near TargetScore: C = atanh(target/100) / meanCos,
// with a fixed fallback when the training data barely resembles its own
// mean (meanCos <= 0.05).
func Train(frames []*feature.Vector, opts TrainOptions) (*Model, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("gmia: cannot train on an empty batch")
	}

	dim := frames[0].Bins
	sampleRate := frames[0].SampleRate
	for i, f := range frames {
		if err := frames[0].Compatible(f); err != nil {
			return nil, fmt.Errorf("gmia: training frame %d: %w", i, err)
		}
		if f.SampleRate != sampleRate {
			return nil, fmt.Errorf("%w: training frame %d recorded at %d Hz, batch at %d Hz",
				ErrSampleRateMismatch, i, f.SampleRate, sampleRate)
		}
	}

	lambda := opts.Regularization
	if lambda <= 0 {
		lambda = defaultLambda
	}
	target := opts.TargetScore
	if target <= 0 || target >= 100 {
		target = defaultTargetScore
	}
	modelType := opts.Type
	if modelType == "" {
		modelType = TypeHealthy
	}

	weights := make([]float64, dim)
	for _, f := range frames {
		floats.Add(weights, f.Relative)
	}
	prior := lambda / float64(dim)
	denom := float64(len(frames)) + lambda
	for k := range weights {
		weights[k] = (weights[k] + prior) / denom
	}

	meanCos := 0.0
	for _, f := range frames {
		meanCos += cosineSimilarity(f.Relative, weights)
	}
	meanCos /= float64(len(frames))

	scaling := fallbackScaling
	if meanCos > minMeanCosine {
		scaling = math.Atanh(target/100) / meanCos
	}

	return &Model{
		ID:               uuid.NewString(),
		Label:            opts.Label,
		Type:             modelType,
		WeightVector:     weights,
		Regularization:   lambda,
		ScalingConstant:  scaling,
		FeatureDimension: dim,
		SampleRate:       sampleRate,
		FreqMin:          frames[0].FreqMin,
		FreqMax:          frames[0].FreqMax,
		Meta: ModelMeta{
			MeanCosineSimilarity: meanCos,
			TargetScore:          target,
		},
		TrainedAt: time.Now(),
	}, nil
}

// Compatible checks the hard scoring preconditions against a candidate.
func (m *Model) Compatible(v *feature.Vector) error {
	if v == nil {
		return fmt.Errorf("%w: nil candidate", ErrDimensionMismatch)
	}
	if len(v.Relative) != m.FeatureDimension {
		return fmt.Errorf("%w: model has %d bands, candidate %d",
			ErrDimensionMismatch, m.FeatureDimension, len(v.Relative))
	}
	if v.FreqMin != m.FreqMin || v.FreqMax != m.FreqMax {
		return fmt.Errorf("%w: model range [%.0f, %.0f] Hz, candidate [%.0f, %.0f] Hz",
			ErrDimensionMismatch, m.FreqMin, m.FreqMax, v.FreqMin, v.FreqMax)
	}
	if v.SampleRate != m.SampleRate {
		return fmt.Errorf("%w: model trained at %d Hz, candidate recorded at %d Hz",
			ErrSampleRateMismatch, m.SampleRate, v.SampleRate)
	}
	return nil
}

// Score maps the candidate's similarity to this reference state onto
// 0-100. Preconditions are checked before any arithmetic.
func (m *Model) Score(v *feature.Vector) (float64, error) {
	if err := m.Compatible(v); err != nil {
		return 0, err
	}

	cos := cosineSimilarity(v.Relative, m.WeightVector)
	score := 100 * math.Tanh(m.ScalingConstant*cos)

	if score < 0 {
		score = 0
	} else if score > 100 {
		score = 100
	}
	return score, nil
}

// cosineSimilarity with a zero-norm guard: a degenerate vector scores 0
// rather than NaN.
func cosineSimilarity(a, b []float64) float64 {
	normA := floats.Norm(a, 2)
	normB := floats.Norm(b, 2)
	if normA == 0 || normB == 0 {
		return 0
	}
	return floats.Dot(a, b) / (normA * normB)
}
