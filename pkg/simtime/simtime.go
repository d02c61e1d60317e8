// Package simtime defines the simulator's notion of time and the strongly
// typed identifiers that flow through the engine. None of these values bear
// any relationship to wall-clock time; SimTime is a pure nanosecond count
// from simulation epoch 0.
package simtime

import "fmt"

// SimTime is an unsigned 128-bit nanosecond count from simulation epoch 0,
// represented as a (hi, lo) pair of uint64 halves since Go has no native
// 128-bit integer. Arithmetic saturates on overflow; comparison is total.
type SimTime struct {
	hi uint64
	lo uint64
}

// Zero is simulation epoch 0.
var Zero = SimTime{}

// Max is the largest representable SimTime, used as a saturating ceiling.
var Max = SimTime{hi: ^uint64(0), lo: ^uint64(0)}

// FromNanos constructs a SimTime from a nanosecond count that fits in a
// uint64. This covers every duration a scenario or test will plausibly use.
func FromNanos(ns uint64) SimTime {
	return SimTime{lo: ns}
}

// Nanos returns the low 64 bits of the nanosecond count. Safe to use unless
// a run has actually saturated into the high word, which callers can check
// with Saturated.
func (t SimTime) Nanos() uint64 {
	return t.lo
}

// Saturated reports whether this value has overflowed into the high word,
// i.e. whether Nanos alone would lose information.
func (t SimTime) Saturated() bool {
	return t.hi != 0
}

// Add returns t + d, saturating at Max instead of wrapping.
func (t SimTime) Add(d Duration) SimTime {
	lo := t.lo + d.lo
	carry := uint64(0)
	if lo < t.lo {
		carry = 1
	}
	hi := t.hi + d.hi + carry
	if hi < t.hi {
		return Max
	}
	return SimTime{hi: hi, lo: lo}
}

// Sub returns the Duration between two SimTimes. It saturates at zero
// duration if t is before u (callers needing signed deltas should compare
// first with Compare).
func (t SimTime) Sub(u SimTime) Duration {
	if t.Compare(u) <= 0 {
		return Duration{}
	}
	lo := t.lo - u.lo
	borrow := uint64(0)
	if t.lo < u.lo {
		borrow = 1
	}
	hi := t.hi - u.hi - borrow
	return Duration{hi: hi, lo: lo}
}

// Compare returns -1, 0, or 1 as t is less than, equal to, or greater than u.
func (t SimTime) Compare(u SimTime) int {
	switch {
	case t.hi != u.hi:
		if t.hi < u.hi {
			return -1
		}
		return 1
	case t.lo != u.lo:
		if t.lo < u.lo {
			return -1
		}
		return 1
	default:
		return 0
	}
}

// Before reports whether t < u.
func (t SimTime) Before(u SimTime) bool { return t.Compare(u) < 0 }

// After reports whether t > u.
func (t SimTime) After(u SimTime) bool { return t.Compare(u) > 0 }

func (t SimTime) String() string {
	if t.hi == 0 {
		return fmt.Sprintf("%dns", t.lo)
	}
	return fmt.Sprintf("0x%016x%016xns", t.hi, t.lo)
}

// Duration is a saturating nanosecond span, mirroring SimTime's width.
type Duration struct {
	hi uint64
	lo uint64
}

// DurationFromNanos builds a Duration from a plain nanosecond count.
func DurationFromNanos(ns uint64) Duration {
	return Duration{lo: ns}
}

// Nanos returns the low 64 bits of the duration.
func (d Duration) Nanos() uint64 { return d.lo }

// Add returns the saturating sum of two durations.
func (d Duration) Add(o Duration) Duration {
	lo := d.lo + o.lo
	carry := uint64(0)
	if lo < d.lo {
		carry = 1
	}
	hi := d.hi + o.hi + carry
	if hi < d.hi {
		return Duration{hi: ^uint64(0), lo: ^uint64(0)}
	}
	return Duration{hi: hi, lo: lo}
}

func (d Duration) String() string {
	return fmt.Sprintf("%dns", d.lo)
}
