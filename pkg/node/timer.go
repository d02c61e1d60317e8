package node

import "github.com/19h/ftsim/pkg/simtime"

// timerEntry records the event-queue handle for an outstanding timer, so
// CancelTimer can tombstone it (spec §4.5 "TimerId -> (fire_time, EventSeq,
// payload)").
type timerEntry struct {
	fireTime simtime.SimTime
	seq      simtime.EventSeq
	payload  []byte
}

// TimerTable maps a node's live TimerIds to their scheduling handle. A
// plain Go map is acceptable here (unlike the event queue itself) because
// TimerId iteration order never influences dispatch order — only the
// EventSeq-keyed event queue does (spec §9 "Hash-map iteration", narrow
// documented exception).
type TimerTable struct {
	entries map[simtime.TimerId]timerEntry
}

// NewTimerTable creates an empty timer table.
func NewTimerTable() *TimerTable {
	return &TimerTable{entries: make(map[simtime.TimerId]timerEntry)}
}

func (t *TimerTable) Set(id simtime.TimerId, fireTime simtime.SimTime, seq simtime.EventSeq, payload []byte) {
	t.entries[id] = timerEntry{fireTime: fireTime, seq: seq, payload: payload}
}

// Remove deletes id's entry and reports its EventSeq, for the caller to
// tombstone in the event queue.
func (t *TimerTable) Remove(id simtime.TimerId) (simtime.EventSeq, bool) {
	e, ok := t.entries[id]
	if !ok {
		return 0, false
	}
	delete(t.entries, id)
	return e.seq, true
}

func (t *TimerTable) Len() int { return len(t.entries) }

// Clear discards every entry, returning the EventSeqs the caller must
// tombstone — used when a NodeLifecycle::Crash discards volatile state
// (spec §4.5).
func (t *TimerTable) Clear() []simtime.EventSeq {
	seqs := make([]simtime.EventSeq, 0, len(t.entries))
	for _, e := range t.entries {
		seqs = append(seqs, e.seq)
	}
	t.entries = make(map[simtime.TimerId]timerEntry)
	return seqs
}
