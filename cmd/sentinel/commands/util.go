package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/viper"

	"github.com/RyanBlaney/sonido-sentinel/audioio"
)

// jsonOutput reports whether results should print as JSON.
func jsonOutput() bool {
	return viper.GetString("output_format") == "json"
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTable returns a tabwriter for aligned text output. Callers must
// Flush it.
func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
}

// loadRecording reads a WAV file and converts it to the session sample
// rate. With resample disabled a rate mismatch is an error, so nobody
// diagnoses a machine against features extracted at the wrong rate by
// accident.
func loadRecording(path string, wantRate int, allowResample bool) ([]float64, error) {
	samples, rate, err := audioio.ReadWAV(path)
	if err != nil {
		return nil, err
	}
	if rate == wantRate {
		return samples, nil
	}
	if !allowResample {
		return nil, fmt.Errorf("%s is sampled at %d Hz but the session runs at %d Hz: rerecord at the session rate or pass --resample",
			path, rate, wantRate)
	}
	return audioio.Resample(samples, rate, wantRate)
}
