// Package snapshottest provides a golden-diff helper for asserting that two
// telemetry snapshots produced on separate runs of the same (seed,
// scenario) are byte-identical, which is the whole point of the
// determinism guarantee (spec §5 "Ordering guarantees").
package snapshottest

import (
	"bytes"
	"fmt"

	"github.com/19h/ftsim/pkg/telemetry"
)

// Diff compares two snapshots byte-for-byte, returning a human-readable
// description of the first point of divergence, or "" if they match.
func Diff(want, got telemetry.Snapshot) string {
	if want.SimTime != got.SimTime {
		return fmt.Sprintf("sim_time mismatch: want %s, got %s", want.SimTime, got.SimTime)
	}
	if bytes.Equal(want.Data, got.Data) {
		return ""
	}
	n := len(want.Data)
	if len(got.Data) < n {
		n = len(got.Data)
	}
	for i := 0; i < n; i++ {
		if want.Data[i] != got.Data[i] {
			return fmt.Sprintf("data differs at byte %d: want 0x%02x, got 0x%02x", i, want.Data[i], got.Data[i])
		}
	}
	return fmt.Sprintf("data length differs: want %d bytes, got %d bytes", len(want.Data), len(got.Data))
}
