package diagnosis

import (
	"time"

	"github.com/RyanBlaney/sonido-sentinel/gmia"
	"github.com/RyanBlaney/sonido-sentinel/roomcomp"
)

// Result is the final verdict of one diagnosis run, batch or streaming.
// It is handed to the persistence collaborator for storage and to the
// presentation layer for rendering.
type Result struct {
	ID        string `json:"id"`
	MachineID string `json:"machine_id"`

	// Score is the smoothed 0-100 health score
	Score  float64     `json:"score"`
	Status gmia.Status `json:"status"`

	// Label is the detected state: the majority label over the session,
	// empty when nothing matched
	Label string `json:"label,omitempty"`

	// Confidence in the verdict, 0 to 1
	Confidence float64 `json:"confidence"`

	// Margin between the best and second-best model on the last frame
	Margin float64 `json:"margin"`

	// PerModel lists every model's score on the last evaluated frame
	PerModel []gmia.ModelScore `json:"per_model,omitempty"`

	// Hints point at the most deviant frequency bands of the last
	// matched frame
	Hints []gmia.AnomalyHint `json:"hints,omitempty"`

	// Processing counters
	Chunks int `json:"chunks,omitempty"`
	Frames int `json:"frames"`

	// Compensation lists the room-correction stages that ran, in order;
	// empty means the frames were scored as captured
	Compensation []string `json:"compensation,omitempty"`

	// Environment is the room class from the calibration in effect
	Environment roomcomp.Environment `json:"environment,omitempty"`

	CompletedAt time.Time `json:"completed_at"`
}

// Compensated reports whether any room-correction stage ran.
func (r *Result) Compensated() bool {
	return len(r.Compensation) > 0
}

// ChunkResult reports the live state after one streaming chunk.
type ChunkResult struct {
	// Score is the current trimmed mean over the score window
	Score float64 `json:"score"`

	// Label is the current majority label over the label window
	Label string `json:"label,omitempty"`

	// Status of the most recent evaluated frame
	Status gmia.Status `json:"status"`

	// Frames newly evaluated in this chunk; zero while samples are still
	// accumulating toward a full analysis window
	Frames int `json:"frames"`
}

// confidence estimates how much to trust a verdict: separation between
// the winning and runner-up states pushes it up, an unstable score window
// pulls it down, and very short sessions are penalized.
func confidence(margin, scoreStdDev float64, frames int) float64 {
	c := 0.5

	switch {
	case margin > 40:
		c += 0.3
	case margin > 20:
		c += 0.2
	case margin > 10:
		c += 0.1
	}

	stability := 1 - scoreStdDev/20
	if stability > 0 {
		c += 0.2 * stability
	}

	if frames < 5 {
		c -= 0.1
	}

	if c < 0 {
		c = 0
	} else if c > 1 {
		c = 1
	}
	return c
}
