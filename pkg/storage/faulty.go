package storage

import (
	"sort"

	"github.com/19h/ftsim/pkg/rng"
	"github.com/19h/ftsim/pkg/simtime"
)

// FaultParams configures a FaultyStore's four fault layers.
type FaultParams struct {
	LatencyMin             simtime.Duration
	LatencyMax             simtime.Duration
	TornProbability        rng.Fraction64
	SyncLossProbability    rng.Fraction64
	ReadCorruptProbability rng.Fraction64
}

// pending tracks everything FaultyStore needs to resolve a crash before the
// next Sync: what the key held before this write (to roll back to), and
// whether this particular write was chosen (at Put time) to be torn or
// lost if a crash intervenes before Sync.
type pending struct {
	hadPrior   bool
	prior      []byte
	isTorn     bool
	tornOffset int
	rollback   bool
}

// FaultOverride replaces one or more FaultParams fields while a modifier
// frame pushed via FaultyStore.PushFault is active, leaving fields left nil
// at the base value (or at whatever an earlier-pushed frame set — the most
// recently pushed frame with a non-nil field wins, an override stack
// rather than Link's additive stack, since spec §4.7 does not specify
// storage-fault composition the way it does for LinkDegrade).
type FaultOverride struct {
	LatencyMin             *simtime.Duration
	LatencyMax             *simtime.Duration
	TornProbability        *rng.Fraction64
	SyncLossProbability    *rng.Fraction64
	ReadCorruptProbability *rng.Fraction64
}

type faultFrame struct {
	id       uint64
	override FaultOverride
}

// FaultyStore decorates an InMemoryStore with the fault layers of spec
// §4.4, applied in the specified order: latency injection, torn writes,
// sync loss, read corruption.
type FaultyStore struct {
	inner *InMemoryStore

	rngLatency *rng.Source
	rngTorn    *rng.Source
	rngSync    *rng.Source
	rngCorrupt *rng.Source

	params FaultParams
	frames []faultFrame
	nextFrameID uint64

	// pendingWrites holds the pre-write state of every key written since
	// the last Sync, keyed by the raw key bytes (as a string only for map
	// indexing — the fault resolution at OnCrash always walks keys in
	// sorted order, never relying on map iteration order).
	pendingWrites map[string]pending
}

// PushFault stacks a StorageFault directive's override on top of the base
// FaultParams (spec §4.7 "pushes a modifier frame on the affected Link or
// NodeRuntime"), returning a handle for PopFault.
func (fs *FaultyStore) PushFault(override FaultOverride) uint64 {
	fs.nextFrameID++
	id := fs.nextFrameID
	fs.frames = append(fs.frames, faultFrame{id: id, override: override})
	return id
}

// PopFault removes a previously pushed override frame.
func (fs *FaultyStore) PopFault(id uint64) bool {
	for i, f := range fs.frames {
		if f.id == id {
			fs.frames = append(fs.frames[:i], fs.frames[i+1:]...)
			return true
		}
	}
	return false
}

func (fs *FaultyStore) effective() FaultParams {
	p := fs.params
	for _, f := range fs.frames {
		o := f.override
		if o.LatencyMin != nil {
			p.LatencyMin = *o.LatencyMin
		}
		if o.LatencyMax != nil {
			p.LatencyMax = *o.LatencyMax
		}
		if o.TornProbability != nil {
			p.TornProbability = *o.TornProbability
		}
		if o.SyncLossProbability != nil {
			p.SyncLossProbability = *o.SyncLossProbability
		}
		if o.ReadCorruptProbability != nil {
			p.ReadCorruptProbability = *o.ReadCorruptProbability
		}
	}
	return p
}

// NewFaultyStore wraps inner with fault injection drawn from source, which
// should already be a node- and domain-scoped sub-stream (e.g.
// nodeRNG.Derive("store")); NewFaultyStore derives further named
// sub-streams from it for each fault layer so that, say, adding a read
// corruption sample never perturbs the torn-write decision for the same
// put.
func NewFaultyStore(inner *InMemoryStore, source *rng.Source, params FaultParams) *FaultyStore {
	return &FaultyStore{
		inner:         inner,
		rngLatency:    source.Derive("latency"),
		rngTorn:       source.Derive("torn"),
		rngSync:       source.Derive("sync-loss"),
		rngCorrupt:    source.Derive("corrupt"),
		params:        params,
		pendingWrites: make(map[string]pending),
	}
}

func (fs *FaultyStore) sampleLatency() simtime.Duration {
	p := fs.effective()
	if p.LatencyMax.Nanos() <= p.LatencyMin.Nanos() {
		return p.LatencyMin
	}
	span := p.LatencyMax.Nanos() - p.LatencyMin.Nanos()
	offset := fs.rngLatency.Uint64() % (span + 1)
	return simtime.DurationFromNanos(p.LatencyMin.Nanos() + offset)
}

// Get applies read corruption: with probability ReadCorruptProbability the
// returned bytes have had a position flipped (the stored value itself is
// never mutated).
func (fs *FaultyStore) Get(key []byte) ([]byte, bool, error) {
	value, ok, err := fs.inner.Get(key)
	if err != nil || !ok || len(value) == 0 {
		return value, ok, err
	}
	if fs.rngCorrupt.Draw(fs.effective().ReadCorruptProbability) {
		pos := int(fs.rngCorrupt.Uint64() % uint64(len(value)))
		bit := byte(1) << (fs.rngCorrupt.Uint64() % 8)
		value[pos] ^= bit
	}
	return value, ok, nil
}

// Put stages the full write, recording whatever prior state existed, then
// draws the torn/sync-loss decisions that will be honored only if a
// NodeLifecycle::Crash event fires before the next Sync.
func (fs *FaultyStore) Put(key, value []byte) (Ack, error) {
	latency := fs.sampleLatency()
	params := fs.effective()

	prior, hadPrior, _ := fs.inner.Get(key)
	p := pending{hadPrior: hadPrior, prior: prior}

	if fs.rngTorn.Draw(params.TornProbability) {
		p.isTorn = true
		p.tornOffset = int(fs.rngTorn.Uint64() % uint64(len(value)+1))
	} else if fs.rngSync.Draw(params.SyncLossProbability) {
		p.rollback = true
	}

	if _, err := fs.inner.Put(key, value); err != nil {
		return Ack{}, err
	}
	fs.pendingWrites[string(key)] = p
	return Ack{Latency: latency}, nil
}

// Delete behaves like Put for fault-resolution purposes, but there is no
// byte offset to tear — only the sync-loss rollback applies to deletes.
func (fs *FaultyStore) Delete(key []byte) (Ack, error) {
	latency := fs.sampleLatency()

	prior, hadPrior, _ := fs.inner.Get(key)
	p := pending{hadPrior: hadPrior, prior: prior}
	if fs.rngSync.Draw(fs.effective().SyncLossProbability) {
		p.rollback = true
	}

	if _, err := fs.inner.Delete(key); err != nil {
		return Ack{}, err
	}
	fs.pendingWrites[string(key)] = p
	return Ack{Latency: latency}, nil
}

// Sync commits every pending write: durable state now matches the store's
// current contents exactly, and no fault resolution applies to them even if
// a crash follows immediately after.
func (fs *FaultyStore) Sync() (Ack, error) {
	latency := fs.sampleLatency()
	fs.pendingWrites = make(map[string]pending)
	return Ack{Latency: latency}, nil
}

// Iter passes straight through: faults apply to individual key reads/writes,
// not range scans (the scenario taxonomy has no "torn iterator" concept).
func (fs *FaultyStore) Iter(prefix []byte) ([]KV, error) {
	return fs.inner.Iter(prefix)
}

// OnCrash resolves every write still pending since the last Sync, per spec
// §4.4/§8 property 7: torn writes truncate to their recorded offset,
// sync-loss writes roll back to the pre-write value (or are deleted if
// there was none), and writes with neither fault drawn survive untouched
// even though they were never explicitly synced. Keys are walked in sorted
// order purely so diagnostics over this method are reproducible; the final
// store contents do not depend on the walk order since each key's
// resolution is independent.
func (fs *FaultyStore) OnCrash() {
	keys := make([]string, 0, len(fs.pendingWrites))
	for k := range fs.pendingWrites {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		p := fs.pendingWrites[k]
		key := []byte(k)

		switch {
		case p.isTorn:
			cur, ok, _ := fs.inner.Get(key)
			if !ok {
				continue
			}
			if p.tornOffset >= len(cur) {
				continue // nothing lost
			}
			truncated := cur[:p.tornOffset]
			if len(truncated) == 0 && !p.hadPrior {
				fs.inner.Delete(key)
			} else {
				fs.inner.Put(key, truncated)
			}
		case p.rollback:
			if p.hadPrior {
				fs.inner.Put(key, p.prior)
			} else {
				fs.inner.Delete(key)
			}
		}
	}
	fs.pendingWrites = make(map[string]pending)
}
