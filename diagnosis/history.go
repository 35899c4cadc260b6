// Package diagnosis sequences room compensation, similarity scoring, and
// temporal smoothing into machine-health verdicts, for both batch
// reference recordings and live streaming sessions.
package diagnosis

import (
	"gonum.org/v1/gonum/stat"
)

// defaultHistoryCapacity bounds the sliding windows used for temporal
// smoothing.
const defaultHistoryCapacity = 10

// ScoreHistory is a bounded FIFO of recent per-chunk scores. The reported
// "current" score is a trimmed mean so a single outlier chunk (a bump, a
// gust of wind) cannot swing the verdict.
//
// A history belongs to exactly one session and is reset at session
// boundaries.
type ScoreHistory struct {
	capacity int
	scores   []float64
}

// NewScoreHistory creates a history; capacity <= 0 falls back to 10.
func NewScoreHistory(capacity int) *ScoreHistory {
	if capacity <= 0 {
		capacity = defaultHistoryCapacity
	}
	return &ScoreHistory{capacity: capacity}
}

// Add appends a score, evicting the oldest entry once full.
func (h *ScoreHistory) Add(score float64) {
	h.scores = append(h.scores, score)
	if len(h.scores) > h.capacity {
		h.scores = h.scores[1:]
	}
}

// Filtered returns the trimmed mean of the window: one minimum and one
// maximum are dropped before averaging. Windows too small to trim (fewer
// than three entries) fall back to the plain mean; an empty window
// reports zero.
func (h *ScoreHistory) Filtered() float64 {
	n := len(h.scores)
	switch {
	case n == 0:
		return 0
	case n < 3:
		return stat.Mean(h.scores, nil)
	}

	sum, lowest, highest := 0.0, h.scores[0], h.scores[0]
	for _, s := range h.scores {
		sum += s
		if s < lowest {
			lowest = s
		}
		if s > highest {
			highest = s
		}
	}
	return (sum - lowest - highest) / float64(n-2)
}

// StdDev returns the spread of the raw window, used as a stability signal
// in confidence estimation. Windows with fewer than two entries report 0.
func (h *ScoreHistory) StdDev() float64 {
	if len(h.scores) < 2 {
		return 0
	}
	return stat.StdDev(h.scores, nil)
}

// Len returns the number of scores currently held.
func (h *ScoreHistory) Len() int {
	return len(h.scores)
}

// Values returns a copy of the window, oldest first.
func (h *ScoreHistory) Values() []float64 {
	return append([]float64(nil), h.scores...)
}

// Reset clears the window for a new session.
func (h *ScoreHistory) Reset() {
	h.scores = nil
}

// LabelHistory is a bounded FIFO of recent detected-state labels. The
// session verdict is the majority label, not the last one, since the last
// chunk may be a transient misclassification.
type LabelHistory struct {
	capacity int
	labels   []string
}

// NewLabelHistory creates a history; capacity <= 0 falls back to 10.
func NewLabelHistory(capacity int) *LabelHistory {
	if capacity <= 0 {
		capacity = defaultHistoryCapacity
	}
	return &LabelHistory{capacity: capacity}
}

// Add appends a label, evicting the oldest entry once full.
func (h *LabelHistory) Add(label string) {
	h.labels = append(h.labels, label)
	if len(h.labels) > h.capacity {
		h.labels = h.labels[1:]
	}
}

// Majority returns the most frequent label in the window. Ties go to the
// label seen most recently. An empty window reports "".
func (h *LabelHistory) Majority() string {
	if len(h.labels) == 0 {
		return ""
	}

	counts := make(map[string]int, len(h.labels))
	lastSeen := make(map[string]int, len(h.labels))
	for i, l := range h.labels {
		counts[l]++
		lastSeen[l] = i
	}

	best := h.labels[0]
	for _, l := range h.labels {
		if counts[l] > counts[best] ||
			(counts[l] == counts[best] && lastSeen[l] > lastSeen[best]) {
			best = l
		}
	}
	return best
}

// Last returns the most recent label, or "" when empty.
func (h *LabelHistory) Last() string {
	if len(h.labels) == 0 {
		return ""
	}
	return h.labels[len(h.labels)-1]
}

// Len returns the number of labels currently held.
func (h *LabelHistory) Len() int {
	return len(h.labels)
}

// Reset clears the window for a new session.
func (h *LabelHistory) Reset() {
	h.labels = nil
}
