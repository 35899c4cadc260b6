package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-sentinel/audioio"
	"github.com/RyanBlaney/sonido-sentinel/diagnosis"
	"github.com/RyanBlaney/sonido-sentinel/gmia"
)

var (
	diagMachine  string
	diagStream   bool
	diagResample bool
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose <recording.wav>",
	Short: "Diagnose a machine from a recording",
	Long: `Diagnose scores a recording against the machine's trained states and
prints the smoothed verdict. Batch mode processes the whole recording at
once. With --stream the recording is replayed in capture-sized chunks
through a live session, exactly as a microphone feed would be.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		samples, err := loadRecording(args[0], cfg.Extractor.SampleRate, diagResample)
		if err != nil {
			return err
		}

		orch := newOrchestrator(cfg, st)

		var result *diagnosis.Result
		if diagStream {
			result, err = streamDiagnosis(cmd, orch, cfg.Stream.ChunkSize, samples)
		} else {
			result, err = orch.Diagnose(cmd.Context(), diagMachine, samples)
		}
		if err != nil {
			return err
		}

		if jsonOutput() {
			return printJSON(result)
		}
		return printResult(result)
	},
}

// streamDiagnosis replays the recording chunk by chunk through a live
// session. Verbose mode prints the smoothed state after each chunk that
// produced frames.
func streamDiagnosis(cmd *cobra.Command, orch *diagnosis.Orchestrator, chunkSize int, samples []float64) (*diagnosis.Result, error) {
	ctx := cmd.Context()

	session, err := orch.StartSession(ctx, diagMachine)
	if err != nil {
		return nil, err
	}

	src := audioio.NewBufferSource(samples, orch.Config().Extractor.SampleRate, chunkSize)
	chunk := 0
	for {
		data, err := src.NextChunk(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		chunk++

		live, err := session.ProcessChunk(ctx, data)
		if err != nil {
			return nil, err
		}
		if verbose && live.Frames > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "chunk %d: score %.1f label %q status %s\n",
				chunk, live.Score, live.Label, live.Status)
		}
	}

	return session.Finish(ctx)
}

// printResult renders the verdict as an aligned text block.
func printResult(r *diagnosis.Result) error {
	tw := newTable()
	fmt.Fprintf(tw, "Machine:\t%s\n", r.MachineID)
	fmt.Fprintf(tw, "Status:\t%s\n", r.Status)
	fmt.Fprintf(tw, "Score:\t%.1f / 100\n", r.Score)
	if r.Label != "" {
		fmt.Fprintf(tw, "Label:\t%s\n", r.Label)
	}
	fmt.Fprintf(tw, "Confidence:\t%.2f\n", r.Confidence)
	fmt.Fprintf(tw, "Margin:\t%.1f\n", r.Margin)
	if r.Chunks > 0 {
		fmt.Fprintf(tw, "Frames:\t%d (%d chunks)\n", r.Frames, r.Chunks)
	} else {
		fmt.Fprintf(tw, "Frames:\t%d\n", r.Frames)
	}
	if r.Compensated() {
		fmt.Fprintf(tw, "Compensation:\t%s\n", strings.Join(r.Compensation, ", "))
	} else {
		fmt.Fprintf(tw, "Compensation:\tnone\n")
	}
	if r.Environment != "" {
		fmt.Fprintf(tw, "Environment:\t%s\n", r.Environment)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if (r.Status == gmia.StatusFaulty || r.Status == gmia.StatusUncertain) && len(r.Hints) > 0 {
		fmt.Println("\nMost deviant bands:")
		for _, h := range r.Hints {
			fmt.Printf("  %6.0f Hz  (bin %d, deviation %.2f)\n", h.Frequency, h.Bin, h.Deviation)
		}
	}
	return nil
}

func init() {
	diagnoseCmd.Flags().StringVar(&diagMachine, "machine", "", "machine to diagnose (required)")
	diagnoseCmd.Flags().BoolVar(&diagStream, "stream", false, "replay the recording through a live session in capture-sized chunks")
	diagnoseCmd.Flags().BoolVar(&diagResample, "resample", false, "resample the recording to the session rate if needed")

	diagnoseCmd.MarkFlagRequired("machine")

	rootCmd.AddCommand(diagnoseCmd)
}
