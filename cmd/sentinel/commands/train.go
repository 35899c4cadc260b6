package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-sentinel/gmia"
)

var (
	trainMachine  string
	trainLabel    string
	trainType     string
	trainResample bool
)

var trainCmd = &cobra.Command{
	Use:   "train <recording.wav>",
	Short: "Train a reference state from a recording",
	Long: `Train extracts spectral features from a recording of a known operating
condition and fits a reference model against the machine's pooled
reference session. The first model trained for a machine also seeds that
session; later models reuse it, so all states share one feature space.

Recordings of healthy operation train with --type healthy (the default).
Recordings of a known fault train with --type faulty and should carry a
label naming the fault.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		modelType, err := parseModelType(trainType)
		if err != nil {
			return err
		}

		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		samples, err := loadRecording(args[0], cfg.Extractor.SampleRate, trainResample)
		if err != nil {
			return err
		}

		orch := newOrchestrator(cfg, st)
		model, err := orch.TrainReference(cmd.Context(), trainMachine, samples, gmia.TrainOptions{
			Label:          trainLabel,
			Type:           modelType,
			Regularization: cfg.Train.Regularization,
			TargetScore:    cfg.Train.TargetScore,
		})
		if err != nil {
			return err
		}

		if jsonOutput() {
			return printJSON(model)
		}

		fmt.Printf("Trained model %s for machine %s\n", model.ID, trainMachine)
		tw := newTable()
		fmt.Fprintf(tw, "Label:\t%s\n", model.Label)
		fmt.Fprintf(tw, "Type:\t%s\n", model.Type)
		fmt.Fprintf(tw, "Dimension:\t%d bins\n", model.FeatureDimension)
		fmt.Fprintf(tw, "Self-similarity:\t%.4f\n", model.Meta.MeanCosineSimilarity)
		return tw.Flush()
	},
}

func parseModelType(s string) (gmia.ModelType, error) {
	switch s {
	case "healthy":
		return gmia.TypeHealthy, nil
	case "faulty":
		return gmia.TypeFaulty, nil
	default:
		return "", fmt.Errorf("unknown model type %q (valid: healthy, faulty)", s)
	}
}

func init() {
	trainCmd.Flags().StringVar(&trainMachine, "machine", "", "machine to train (required)")
	trainCmd.Flags().StringVar(&trainLabel, "label", "", "state label, e.g. 'baseline' or 'bearing wear' (required)")
	trainCmd.Flags().StringVar(&trainType, "type", "healthy", "state type (healthy, faulty)")
	trainCmd.Flags().BoolVar(&trainResample, "resample", false, "resample the recording to the session rate if needed")

	trainCmd.MarkFlagRequired("machine")
	trainCmd.MarkFlagRequired("label")

	rootCmd.AddCommand(trainCmd)
}
