// Package yamlscenario loads a scenario authored as YAML into the typed
// in-memory shape pkg/scenario and the coordinator accept. Parsing is
// deliberately kept out of the deterministic core (spec §4.7's explicit
// Non-goal), so every float-to-Fraction64 conversion, string-to-kind
// lookup, and defaulting decision happens here, once, at load time — the
// core never sees anything but already-typed, already-validated values.
package yamlscenario

import (
	"fmt"
	"os"

	"github.com/19h/ftsim/pkg/event"
	"github.com/19h/ftsim/pkg/network"
	"github.com/19h/ftsim/pkg/rng"
	"github.com/19h/ftsim/pkg/scenario"
	"github.com/19h/ftsim/pkg/simtime"
	"gopkg.in/yaml.v3"
)

// doc mirrors the author-facing YAML shape; every numeric duration is
// nanoseconds and every probability is a float64 in [0, 1], converted to
// the core's fixed-point/SimTime types by Parse.
type doc struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Seed        uint64 `yaml:"seed"`
	HorizonNs   uint64 `yaml:"horizon_ns"`

	QuiescenceSilenceWindowNs uint64 `yaml:"quiescence_silence_window_ns"`
	SnapshotIntervalNs        uint64 `yaml:"snapshot_interval_ns"`

	Nodes      []nodeDoc      `yaml:"nodes"`
	Links      []linkDoc      `yaml:"links"`
	Directives []DirectiveDoc `yaml:"directives"`
}

type nodeDoc struct {
	ID            uint32 `yaml:"id"`
	Protocol      string `yaml:"protocol"`
	InboxCapacity int    `yaml:"inbox_capacity"`
}

type linkDoc struct {
	From                   uint32  `yaml:"from"`
	To                     uint32  `yaml:"to"`
	BaseDelayNs            uint64  `yaml:"base_delay_ns"`
	JitterMaxNs            uint64  `yaml:"jitter_max_ns"`
	DropProbability        float64 `yaml:"drop_probability"`
	DuplicationProbability float64 `yaml:"duplication_probability"`
	ReorderProbability     float64 `yaml:"reorder_probability"`
	BandwidthBytesPerNs    uint64  `yaml:"bandwidth_bytes_per_ns"`
	CorruptionProbability  float64 `yaml:"corruption_probability"`
}

// DirectiveDoc mirrors the author-facing directive shape over both YAML
// (scenario files) and JSON (cmd/simserver's live-injection control
// messages), so the two front-ends share one parsing path into
// scenario.Directive instead of drifting apart.
type DirectiveDoc struct {
	Kind    string  `yaml:"kind" json:"kind"`
	AtNs    uint64  `yaml:"at_ns" json:"at_ns"`
	UntilNs *uint64 `yaml:"until_ns" json:"until_ns,omitempty"`
	Node    uint32  `yaml:"node" json:"node"`

	GroupA []uint32 `yaml:"group_a" json:"group_a,omitempty"`
	GroupB []uint32 `yaml:"group_b" json:"group_b,omitempty"`

	Link                   uint32   `yaml:"link" json:"link"`
	BaseDelayNs            *uint64  `yaml:"base_delay_ns" json:"base_delay_ns,omitempty"`
	JitterMaxNs            *uint64  `yaml:"jitter_max_ns" json:"jitter_max_ns,omitempty"`
	DropProbability        *float64 `yaml:"drop_probability" json:"drop_probability,omitempty"`
	DuplicationProbability *float64 `yaml:"duplication_probability" json:"duplication_probability,omitempty"`
	ReorderProbability     *float64 `yaml:"reorder_probability" json:"reorder_probability,omitempty"`
	CorruptionProbability  *float64 `yaml:"corruption_probability" json:"corruption_probability,omitempty"`
	BandwidthBytesPerNs    *uint64  `yaml:"bandwidth_bytes_per_ns" json:"bandwidth_bytes_per_ns,omitempty"`
	Partitioned            *bool    `yaml:"partitioned" json:"partitioned,omitempty"`

	DropSelectorSrc *uint32 `yaml:"drop_selector_src" json:"drop_selector_src,omitempty"`
	DropSelectorDst *uint32 `yaml:"drop_selector_dst" json:"drop_selector_dst,omitempty"`

	ClockSkewNs int64 `yaml:"clock_skew_ns" json:"clock_skew_ns"`

	ByzantinePayload string  `yaml:"byzantine_payload" json:"byzantine_payload"`
	ByzantineSrc     *uint32 `yaml:"byzantine_src" json:"byzantine_src,omitempty"`

	StorageFaultKind string  `yaml:"storage_fault_kind" json:"storage_fault_kind"`
	Probability      float64 `yaml:"probability" json:"probability"`
	LatencyMinNs     uint64  `yaml:"latency_min_ns" json:"latency_min_ns"`
	LatencyMaxNs     uint64  `yaml:"latency_max_ns" json:"latency_max_ns"`
}

// Load reads and parses a YAML scenario document from path.
func Load(path string) (scenario.File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return scenario.File{}, fmt.Errorf("yamlscenario: read %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse parses a YAML scenario document already in memory.
func Parse(raw []byte) (scenario.File, error) {
	var d doc
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return scenario.File{}, fmt.Errorf("yamlscenario: decode: %w", err)
	}

	sc := scenario.Scenario{
		Seed:                    d.Seed,
		Horizon:                 simtime.FromNanos(d.HorizonNs),
		QuiescenceSilenceWindow: simtime.DurationFromNanos(d.QuiescenceSilenceWindowNs),
		SnapshotInterval:        simtime.DurationFromNanos(d.SnapshotIntervalNs),
	}

	for _, n := range d.Nodes {
		capacity := n.InboxCapacity
		if capacity <= 0 {
			capacity = 64
		}
		sc.Nodes = append(sc.Nodes, scenario.NodeSpec{
			ID:            simtime.NodeId(n.ID),
			Protocol:      n.Protocol,
			InboxCapacity: capacity,
		})
	}

	for _, l := range d.Links {
		sc.Links = append(sc.Links, scenario.LinkSpec{
			From: simtime.NodeId(l.From),
			To:   simtime.NodeId(l.To),
			Props: network.LinkProps{
				BaseDelay:              simtime.DurationFromNanos(l.BaseDelayNs),
				JitterMax:              simtime.DurationFromNanos(l.JitterMaxNs),
				DropProbability:        rng.FractionOf(l.DropProbability),
				DuplicationProbability: rng.FractionOf(l.DuplicationProbability),
				ReorderProbability:     rng.FractionOf(l.ReorderProbability),
				BandwidthBytesPerNs:    l.BandwidthBytesPerNs,
				CorruptionProbability:  rng.FractionOf(l.CorruptionProbability),
			},
		})
	}

	for i, raw := range d.Directives {
		parsed, err := ParseDirective(raw)
		if err != nil {
			return scenario.File{}, fmt.Errorf("yamlscenario: directive %d: %w", i, err)
		}
		sc.Directives = append(sc.Directives, parsed)
	}

	return scenario.File{Name: d.Name, Description: d.Description, Scenario: sc}, nil
}

// ParseDirective converts one already-decoded DirectiveDoc into a
// scenario.Directive, applying the same string-to-enum and
// float-to-Fraction64 conversions Parse uses for a whole scenario file.
func ParseDirective(raw DirectiveDoc) (scenario.Directive, error) {
	kind, ok := directiveKinds[raw.Kind]
	if !ok {
		return scenario.Directive{}, fmt.Errorf("unknown directive kind %q", raw.Kind)
	}

	out := scenario.Directive{
		Kind: kind,
		At:   simtime.FromNanos(raw.AtNs),
		Node: simtime.NodeId(raw.Node),
		Link: simtime.LinkId(raw.Link),
	}
	if raw.UntilNs != nil {
		until := simtime.FromNanos(*raw.UntilNs)
		out.Until = &until
	}
	for _, id := range raw.GroupA {
		out.GroupA = append(out.GroupA, simtime.NodeId(id))
	}
	for _, id := range raw.GroupB {
		out.GroupB = append(out.GroupB, simtime.NodeId(id))
	}

	switch kind {
	case scenario.DirectiveLinkSet:
		props := network.LinkProps{}
		if raw.BaseDelayNs != nil {
			props.BaseDelay = simtime.DurationFromNanos(*raw.BaseDelayNs)
		}
		if raw.JitterMaxNs != nil {
			props.JitterMax = simtime.DurationFromNanos(*raw.JitterMaxNs)
		}
		if raw.DropProbability != nil {
			props.DropProbability = rng.FractionOf(*raw.DropProbability)
		}
		if raw.DuplicationProbability != nil {
			props.DuplicationProbability = rng.FractionOf(*raw.DuplicationProbability)
		}
		if raw.ReorderProbability != nil {
			props.ReorderProbability = rng.FractionOf(*raw.ReorderProbability)
		}
		if raw.CorruptionProbability != nil {
			props.CorruptionProbability = rng.FractionOf(*raw.CorruptionProbability)
		}
		if raw.BandwidthBytesPerNs != nil {
			props.BandwidthBytesPerNs = *raw.BandwidthBytesPerNs
		}
		out.LinkProps = &props
		out.LinkPartitioned = raw.Partitioned

	case scenario.DirectiveDrop:
		if raw.DropProbability != nil {
			out.DropProbability = rng.FractionOf(*raw.DropProbability)
		}
		if raw.DropSelectorSrc != nil {
			src := simtime.NodeId(*raw.DropSelectorSrc)
			out.DropSelectorSrc = &src
		}
		if raw.DropSelectorDst != nil {
			dst := simtime.NodeId(*raw.DropSelectorDst)
			out.DropSelectorDst = &dst
		}

	case scenario.DirectiveClockSkew:
		out.ClockSkewOffset = simtime.DurationFromNanos(uint64(raw.ClockSkewNs))

	case scenario.DirectiveByzantineInject:
		out.ByzantinePayload = []byte(raw.ByzantinePayload)
		if raw.ByzantineSrc != nil {
			src := simtime.NodeId(*raw.ByzantineSrc)
			out.ByzantineSrc = &src
		}

	case scenario.DirectiveStorageFault:
		faultKind, ok := storageFaultKinds[raw.StorageFaultKind]
		if !ok {
			return scenario.Directive{}, fmt.Errorf("unknown storage_fault_kind %q", raw.StorageFaultKind)
		}
		out.StorageFaultKind = faultKind
		out.StorageFaultParams = event.StorageFaultParams{
			Probability: rng.FractionOf(raw.Probability),
			LatencyMin:  simtime.DurationFromNanos(raw.LatencyMinNs),
			LatencyMax:  simtime.DurationFromNanos(raw.LatencyMaxNs),
		}
	}

	return out, nil
}

var directiveKinds = map[string]scenario.DirectiveKind{
	"crash":            scenario.DirectiveCrash,
	"restart":          scenario.DirectiveRestart,
	"pause":            scenario.DirectivePause,
	"resume":           scenario.DirectiveResume,
	"partition":        scenario.DirectivePartition,
	"link_set":         scenario.DirectiveLinkSet,
	"drop":             scenario.DirectiveDrop,
	"clock_skew":       scenario.DirectiveClockSkew,
	"byzantine_inject": scenario.DirectiveByzantineInject,
	"storage_fault":    scenario.DirectiveStorageFault,
}

var storageFaultKinds = map[string]event.StorageFaultKind{
	"latency":      event.StorageLatency,
	"torn_write":   event.StorageTornWrite,
	"sync_loss":    event.StorageSyncLoss,
	"read_corrupt": event.StorageReadCorrupt,
}
