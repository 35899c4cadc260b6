package diagnosis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreHistoryTrimmedMean(t *testing.T) {
	h := NewScoreHistory(10)
	for _, s := range []float64{10, 50, 51, 52, 53, 90} {
		h.Add(s)
	}

	// Both extremes drop out; the mean covers the middle four.
	assert.InDelta(t, 51.5, h.Filtered(), 1e-12)
}

func TestScoreHistorySmallWindows(t *testing.T) {
	h := NewScoreHistory(10)
	assert.Equal(t, 0.0, h.Filtered())

	h.Add(80)
	assert.InDelta(t, 80.0, h.Filtered(), 1e-12)

	h.Add(60)
	assert.InDelta(t, 70.0, h.Filtered(), 1e-12, "too small to trim, plain mean")

	h.Add(70)
	assert.InDelta(t, 70.0, h.Filtered(), 1e-12, "min and max dropped")
}

func TestScoreHistoryEvictsOldest(t *testing.T) {
	h := NewScoreHistory(3)
	for _, s := range []float64{1, 2, 3, 4} {
		h.Add(s)
	}

	assert.Equal(t, 3, h.Len())
	assert.Equal(t, []float64{2, 3, 4}, h.Values())
	assert.InDelta(t, 3.0, h.Filtered(), 1e-12)
}

func TestScoreHistoryReset(t *testing.T) {
	h := NewScoreHistory(5)
	h.Add(42)
	h.Reset()
	assert.Zero(t, h.Len())
	assert.Equal(t, 0.0, h.Filtered())
}

func TestScoreHistoryDefaultCapacity(t *testing.T) {
	h := NewScoreHistory(0)
	for i := range 15 {
		h.Add(float64(i))
	}
	assert.Equal(t, 10, h.Len())
}

func TestScoreHistoryStdDev(t *testing.T) {
	h := NewScoreHistory(10)
	assert.Equal(t, 0.0, h.StdDev())
	h.Add(50)
	assert.Equal(t, 0.0, h.StdDev())

	h.Add(50)
	h.Add(50)
	assert.InDelta(t, 0.0, h.StdDev(), 1e-12)

	h.Add(60)
	assert.Greater(t, h.StdDev(), 0.0)
}

func TestLabelHistoryMajority(t *testing.T) {
	h := NewLabelHistory(10)
	for _, l := range []string{"A", "A", "B", "A", "C", "A", "A"} {
		h.Add(l)
	}

	assert.Equal(t, "A", h.Majority())
	assert.Equal(t, "A", h.Last())
}

func TestLabelHistoryMajorityTieGoesToMostRecent(t *testing.T) {
	h := NewLabelHistory(10)
	for _, l := range []string{"A", "B", "A", "B"} {
		h.Add(l)
	}
	assert.Equal(t, "B", h.Majority())

	h.Reset()
	for _, l := range []string{"B", "A", "B", "A"} {
		h.Add(l)
	}
	assert.Equal(t, "A", h.Majority())
}

func TestLabelHistoryMajorityNotMerelyLast(t *testing.T) {
	// A transient misclassification on the final chunk must not override
	// the session-long verdict.
	h := NewLabelHistory(10)
	for _, l := range []string{"idle", "idle", "idle", "bearing_wear"} {
		h.Add(l)
	}
	assert.Equal(t, "idle", h.Majority())
	assert.Equal(t, "bearing_wear", h.Last())
}

func TestLabelHistoryEvictionAndReset(t *testing.T) {
	h := NewLabelHistory(2)
	h.Add("A")
	h.Add("A")
	h.Add("B")
	h.Add("B")
	assert.Equal(t, "B", h.Majority(), "old entries evicted")

	h.Reset()
	assert.Equal(t, "", h.Majority())
	assert.Equal(t, "", h.Last())
	assert.Zero(t, h.Len())
}
