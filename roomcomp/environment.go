package roomcomp

// Environment is a coarse acoustic classification of the measurement
// space, derived from broadband T60. It is shown to operators and used to
// decide whether a stored calibration still matches the current room.
type Environment string

const (
	EnvVeryDry         Environment = "very_dry"
	EnvDry             Environment = "dry"
	EnvMedium          Environment = "medium"
	EnvReverberant     Environment = "reverberant"
	EnvVeryReverberant Environment = "very_reverberant"
)

// ClassifyEnvironment buckets a broadband T60 in seconds.
func ClassifyEnvironment(t60 float64) Environment {
	switch {
	case t60 < 0.3:
		return EnvVeryDry
	case t60 < 0.6:
		return EnvDry
	case t60 < 1.0:
		return EnvMedium
	case t60 < 2.0:
		return EnvReverberant
	default:
		return EnvVeryReverberant
	}
}

// SameEnvironment reports whether two T60 measurements fall in the same
// bucket. A calibration taken in a different environment class should be
// re-measured rather than reused.
func SameEnvironment(a, b float64) bool {
	return ClassifyEnvironment(a) == ClassifyEnvironment(b)
}
