package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/sonido-sentinel/gmia"
)

// ExportVersion identifies the export file layout.
const ExportVersion = 1

// MachineExport is the portable form of one machine: identity plus
// trained models. Reference sessions and room calibrations stay behind;
// both describe the recording setup, not the machine, and must be
// recaptured on the importing device.
type MachineExport struct {
	Version    int              `yaml:"version"`
	ExportedAt time.Time        `yaml:"exported_at"`
	Machine    *exportedMachine `yaml:"machine"`
	Models     []*exportedModel `yaml:"models"`
}

// Export writes the machine and its models as YAML.
func Export(ctx context.Context, st Store, machineID string, w io.Writer) error {
	machine, err := st.Machine(ctx, machineID)
	if err != nil {
		return err
	}
	models, err := st.Models(ctx, machineID)
	if err != nil {
		return err
	}

	exp := MachineExport{
		Version:    ExportVersion,
		ExportedAt: time.Now().UTC(),
		Machine: &exportedMachine{
			ID:        machine.ID,
			Name:      machine.Name,
			Notes:     machine.Notes,
			CreatedAt: machine.CreatedAt,
		},
		Models: make([]*exportedModel, 0, len(models)),
	}
	for _, m := range models {
		exp.Models = append(exp.Models, toExported(m))
	}

	data, err := yaml.Marshal(&exp)
	if err != nil {
		return fmt.Errorf("store: encode export: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("store: write export: %w", err)
	}
	return nil
}

// Import reads a machine export and creates the machine and its models.
// Importing over an existing machine fails with ErrExists; nothing is
// merged.
func Import(ctx context.Context, st Store, r io.Reader) (*Machine, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("store: read export: %w", err)
	}

	var exp MachineExport
	if err := yaml.Unmarshal(data, &exp); err != nil {
		return nil, fmt.Errorf("store: decode export: %w", err)
	}
	if exp.Version != ExportVersion {
		return nil, fmt.Errorf("store: unsupported export version %d", exp.Version)
	}
	if exp.Machine == nil || exp.Machine.ID == "" {
		return nil, errors.New("store: export has no machine record")
	}

	machine := &Machine{
		ID:        exp.Machine.ID,
		Name:      exp.Machine.Name,
		Notes:     exp.Machine.Notes,
		CreatedAt: exp.Machine.CreatedAt,
	}
	if err := st.CreateMachine(ctx, machine); err != nil {
		return nil, err
	}
	for i, em := range exp.Models {
		m := em.toModel()
		if m.ID == "" {
			return nil, fmt.Errorf("store: export model %d has no id", i)
		}
		if err := st.SaveModel(ctx, machine.ID, m); err != nil {
			return nil, err
		}
	}
	return machine, nil
}

// exportedMachine mirrors Machine with explicit yaml keys.
type exportedMachine struct {
	ID        string    `yaml:"id"`
	Name      string    `yaml:"name"`
	Notes     string    `yaml:"notes,omitempty"`
	CreatedAt time.Time `yaml:"created_at"`
}

// exportedModel mirrors gmia.Model with explicit yaml keys, so the file
// layout stays stable even when the internal struct moves.
type exportedModel struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
	Type  string `yaml:"type"`

	WeightVector     []float64 `yaml:"weight_vector,flow"`
	Regularization   float64   `yaml:"regularization"`
	ScalingConstant  float64   `yaml:"scaling_constant"`
	FeatureDimension int       `yaml:"feature_dimension"`

	SampleRate int     `yaml:"sample_rate"`
	FreqMin    float64 `yaml:"freq_min"`
	FreqMax    float64 `yaml:"freq_max"`

	MeanCosineSimilarity float64   `yaml:"mean_cosine_similarity"`
	TargetScore          float64   `yaml:"target_score"`
	TrainedAt            time.Time `yaml:"trained_at"`
}

func toExported(m *gmia.Model) *exportedModel {
	return &exportedModel{
		ID:                   m.ID,
		Label:                m.Label,
		Type:                 string(m.Type),
		WeightVector:         m.WeightVector,
		Regularization:       m.Regularization,
		ScalingConstant:      m.ScalingConstant,
		FeatureDimension:     m.FeatureDimension,
		SampleRate:           m.SampleRate,
		FreqMin:              m.FreqMin,
		FreqMax:              m.FreqMax,
		MeanCosineSimilarity: m.Meta.MeanCosineSimilarity,
		TargetScore:          m.Meta.TargetScore,
		TrainedAt:            m.TrainedAt,
	}
}

func (em *exportedModel) toModel() *gmia.Model {
	return &gmia.Model{
		ID:               em.ID,
		Label:            em.Label,
		Type:             gmia.ModelType(em.Type),
		WeightVector:     em.WeightVector,
		Regularization:   em.Regularization,
		ScalingConstant:  em.ScalingConstant,
		FeatureDimension: em.FeatureDimension,
		SampleRate:       em.SampleRate,
		FreqMin:          em.FreqMin,
		FreqMax:          em.FreqMax,
		Meta: gmia.ModelMeta{
			MeanCosineSimilarity: em.MeanCosineSimilarity,
			TargetScore:          em.TargetScore,
		},
		TrainedAt: em.TrainedAt,
	}
}
