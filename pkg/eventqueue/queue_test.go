package eventqueue_test

import (
	"testing"

	"github.com/19h/ftsim/pkg/eventqueue"
	"github.com/19h/ftsim/pkg/simtime"
	"github.com/stretchr/testify/require"
)

func TestPopOrdersByTimeThenSeq(t *testing.T) {
	q := eventqueue.New()
	q.Push(simtime.FromNanos(20), "b-at-20")
	q.Push(simtime.FromNanos(10), "a-at-10")
	q.Push(simtime.FromNanos(10), "c-at-10-second")

	e1, ok := q.Pop()
	require.True(t, ok)
	require.Equal(t, "a-at-10", e1.Value)

	e2, ok := q.Pop()
	require.True(t, ok)
	require.Equal(t, "c-at-10-second", e2.Value)

	e3, ok := q.Pop()
	require.True(t, ok)
	require.Equal(t, "b-at-20", e3.Value)

	_, ok = q.Pop()
	require.False(t, ok)
}

func TestStableTieBreakOnInsertionOrder(t *testing.T) {
	// Property 3: swapping two same-time insertions swaps their dispatch order.
	q1 := eventqueue.New()
	q1.Push(simtime.FromNanos(5), "x")
	q1.Push(simtime.FromNanos(5), "y")

	q2 := eventqueue.New()
	q2.Push(simtime.FromNanos(5), "y")
	q2.Push(simtime.FromNanos(5), "x")

	first1, _ := q1.Pop()
	first2, _ := q2.Pop()
	require.Equal(t, "x", first1.Value)
	require.Equal(t, "y", first2.Value)
}

func TestCancelSkipsOnPop(t *testing.T) {
	q := eventqueue.New()
	seq := q.Push(simtime.FromNanos(10), "cancel-me")
	q.Push(simtime.FromNanos(20), "keep-me")

	require.True(t, q.Cancel(seq))

	e, ok := q.Pop()
	require.True(t, ok)
	require.Equal(t, "keep-me", e.Value)

	_, ok = q.Pop()
	require.False(t, ok)
}

func TestCancelUnknownSeqIsNoop(t *testing.T) {
	q := eventqueue.New()
	require.False(t, q.Cancel(simtime.EventSeq(999)))
}

func TestPeekTimeSkipsTombstonesWithoutConsuming(t *testing.T) {
	q := eventqueue.New()
	seq := q.Push(simtime.FromNanos(1), "dead")
	q.Push(simtime.FromNanos(2), "alive")
	q.Cancel(seq)

	when, ok := q.PeekTime()
	require.True(t, ok)
	require.Equal(t, simtime.FromNanos(2), when)

	e, ok := q.Pop()
	require.True(t, ok)
	require.Equal(t, "alive", e.Value)
}
