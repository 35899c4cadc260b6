package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-sentinel/audioio"
	"github.com/RyanBlaney/sonido-sentinel/configs"
	"github.com/RyanBlaney/sonido-sentinel/roomcomp"
)

var (
	calMachine   string
	calRecording string
	calEmitSweep string
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Measure the room's reverberation time",
	Long: `Calibrate measures the T60 reverberation time of the room a machine
sits in, from a recorded chirp probe response. The stored estimate drives
late-reverberation subtraction during diagnosis.

Run it in two steps:

  sentinel calibrate --emit-sweep sweep.wav
  sentinel calibrate --machine press-7 --recording response.wav

Play the emitted sweep through a speaker near the machine and record the
room's response with the diagnosis microphone. The recording must use the
session sample rate; resampling would smear the impulse response, so it
is not offered here.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if calEmitSweep != "" {
			return emitSweep(cfg, calEmitSweep)
		}
		if calMachine == "" || calRecording == "" {
			return fmt.Errorf("calibrate needs --machine and --recording (or --emit-sweep to produce the probe signal)")
		}

		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		recorded, err := loadRecording(calRecording, cfg.Extractor.SampleRate, false)
		if err != nil {
			return err
		}

		orch := newOrchestrator(cfg, st)
		m, err := orch.Calibrate(cmd.Context(), calMachine, recorded)
		if err != nil {
			return err
		}

		if jsonOutput() {
			if err := printJSON(m); err != nil {
				return err
			}
		} else {
			printMeasurement(calMachine, m)
		}
		if !m.OK() {
			return fmt.Errorf("calibration rejected at %s: %s", m.Rejection.Step, m.Rejection.Reason)
		}
		return nil
	},
}

// emitSweep writes the probe template to a WAV file for playback. The
// probe itself needs no persistence, hence the nil store.
func emitSweep(cfg *configs.Config, path string) error {
	probe := newOrchestrator(cfg, nil).Probe()
	template, err := probe.Template()
	if err != nil {
		return err
	}
	if err := audioio.WriteWAV(path, template, cfg.Extractor.SampleRate); err != nil {
		return err
	}

	fmt.Printf("Wrote probe sweep to %s (%d Hz, %s)\n",
		path, cfg.Extractor.SampleRate, cfg.RoomComp.SweepDuration)
	fmt.Printf("Play it through the room and record at least %s of response, starting before playback.\n",
		probe.CaptureDuration())
	return nil
}

// printMeasurement renders a measurement, estimate or rejection alike,
// with the detection diagnostics.
func printMeasurement(machineID string, m *roomcomp.T60Measurement) {
	if m.OK() {
		fmt.Printf("Room calibration stored for %s\n", machineID)
		tw := newTable()
		fmt.Fprintf(tw, "Broadband T60:\t%.2f s\n", m.Estimate.Broadband)
		fmt.Fprintf(tw, "Environment:\t%s\n", roomcomp.ClassifyEnvironment(m.Estimate.Broadband))
		fmt.Fprintf(tw, "Peak-to-median:\t%.1f\n", m.PeakToMedian)
		fmt.Fprintf(tw, "RIR window:\t%s\n", m.RIRDuration)
		tw.Flush()

		if len(m.Estimate.Subbands) > 0 {
			centers := make([]int, 0, len(m.Estimate.Subbands))
			for hz := range m.Estimate.Subbands {
				centers = append(centers, hz)
			}
			sort.Ints(centers)

			fmt.Println("Subbands:")
			for _, hz := range centers {
				fmt.Printf("  %5d Hz  %.2f s\n", hz, m.Estimate.Subbands[hz])
			}
		}
		return
	}

	tw := newTable()
	fmt.Fprintf(tw, "Peak-to-median:\t%.1f\n", m.PeakToMedian)
	fmt.Fprintf(tw, "RIR window:\t%s\n", m.RIRDuration)
	tw.Flush()
}

func init() {
	calibrateCmd.Flags().StringVar(&calMachine, "machine", "", "machine whose room to calibrate")
	calibrateCmd.Flags().StringVar(&calRecording, "recording", "", "recorded probe response (WAV, session sample rate)")
	calibrateCmd.Flags().StringVar(&calEmitSweep, "emit-sweep", "", "write the probe sweep to this WAV file and exit")

	rootCmd.AddCommand(calibrateCmd)
}
