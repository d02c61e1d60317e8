package mailbox_test

import (
	"testing"

	"github.com/19h/ftsim/pkg/mailbox"
	"github.com/19h/ftsim/pkg/message"
	"github.com/19h/ftsim/pkg/simtime"
	"github.com/stretchr/testify/require"
)

func TestEnqueueDequeueFIFO(t *testing.T) {
	b := mailbox.New(2)
	e1 := message.Envelope{Src: 0, Dst: 1, Msg: 1}
	e2 := message.Envelope{Src: 0, Dst: 1, Msg: 2}

	require.True(t, b.Enqueue(e1))
	require.True(t, b.Enqueue(e2))

	got1, ok := b.Dequeue()
	require.True(t, ok)
	require.Equal(t, simtime.MsgId(1), got1.Msg)

	got2, ok := b.Dequeue()
	require.True(t, ok)
	require.Equal(t, simtime.MsgId(2), got2.Msg)
}

func TestEnqueueFailsWhenFull(t *testing.T) {
	b := mailbox.New(1)
	require.True(t, b.Enqueue(message.Envelope{}))
	require.False(t, b.Enqueue(message.Envelope{}))
}

func TestDrainAllEmptiesInbox(t *testing.T) {
	b := mailbox.New(4)
	b.Enqueue(message.Envelope{Msg: 1})
	b.Enqueue(message.Envelope{Msg: 2})

	drained := b.DrainAll()
	require.Len(t, drained, 2)
	require.Equal(t, 0, b.Len())
}
