package rng

import "math"

// Fraction64 is a probability expressed as a fixed-point fraction of 2⁶⁴,
// per the spec's ban on native floats on hot paths: comparisons against a
// Fraction64 are a single unsigned-integer comparison, bit-identical across
// every platform Go targets.
type Fraction64 uint64

// FractionAlways never compares less than a draw; use for probability 1.0.
const FractionAlways Fraction64 = math.MaxUint64

// FractionNever never compares greater than a draw; use for probability 0.0.
const FractionNever Fraction64 = 0

// FractionOf converts a float64 probability in [0, 1] to its nearest
// Fraction64 representation. This is the one place floats are allowed to
// touch probabilities: at scenario-load time, converting an author-facing
// float in a config file into the fixed-point value the hot path actually
// compares against. Clamped to [0, 1].
func FractionOf(p float64) Fraction64 {
	if p <= 0 {
		return FractionNever
	}
	if p >= 1 {
		return FractionAlways
	}
	return Fraction64(p * float64(math.MaxUint64))
}

// Float64 converts back to an approximate float, for display/telemetry only.
func (f Fraction64) Float64() float64 {
	return float64(f) / float64(math.MaxUint64)
}

// Draw draws a uniform Fraction64 from the stream and reports whether it
// fell below the given probability threshold — the single comparison every
// probabilistic fault decision in the engine reduces to.
func (s *Source) Draw(threshold Fraction64) bool {
	return Fraction64(s.Uint64()) < threshold
}
