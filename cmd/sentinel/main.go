// Package main provides the sentinel machine-health CLI.
//
// Usage:
//
//	sentinel [flags] <command> [args]
//
// Commands:
//
//	machines  - Register, list, and delete monitored machines
//	train     - Train a reference state from a healthy (or known-fault) recording
//	diagnose  - Score a recording against a machine's trained states
//	calibrate - Measure room reverberation from a recorded chirp probe
//	models    - Inspect, delete, export, and import trained models
//	history   - Show stored diagnosis results
//
// Configuration:
//
//	Settings load from sentinel.yaml (searched in ~/.config/sentinel,
//	/etc/sentinel, and ./configs), SENTINEL_* environment variables, and
//	flags, in rising priority.
package main

import (
	"fmt"
	"os"

	"github.com/RyanBlaney/sonido-sentinel/cmd/sentinel/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
