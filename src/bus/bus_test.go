package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_SendDeliversInOrder(t *testing.T) {
	b := New()
	mailbox, err := b.Register("actor", 8)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, b.Send("actor", i))
	}
	for i := 0; i < 5; i++ {
		assert.Equal(t, i, <-mailbox)
	}
}

func TestBus_UnknownAddress(t *testing.T) {
	b := New()
	err := b.Send("nowhere", "hello")
	require.ErrorIs(t, err, ErrUnknownAddress)
}

func TestBus_DuplicateRegistration(t *testing.T) {
	b := New()
	_, err := b.Register("actor", 0)
	require.NoError(t, err)

	_, err = b.Register("actor", 0)
	require.ErrorIs(t, err, ErrAddressTaken)
}

func TestBus_FullMailboxDropsMessage(t *testing.T) {
	b := New()
	mailbox, err := b.Register("slow", 1)
	require.NoError(t, err)

	require.NoError(t, b.Send("slow", "first"))
	require.ErrorIs(t, b.Send("slow", "second"), ErrMailboxFull)

	// The first message is intact; the dropped one never shows up.
	assert.Equal(t, "first", <-mailbox)
	select {
	case msg := <-mailbox:
		t.Fatalf("unexpected message %v", msg)
	default:
	}
}

func TestBus_DeregisterStopsDelivery(t *testing.T) {
	b := New()
	_, err := b.Register("gone", 0)
	require.NoError(t, err)

	b.Deregister("gone")
	require.ErrorIs(t, b.Send("gone", "hello"), ErrUnknownAddress)

	// The address is free for a newer connection to claim.
	_, err = b.Register("gone", 0)
	require.NoError(t, err)
}

func TestBus_CloseRejectsTraffic(t *testing.T) {
	b := New()
	_, err := b.Register("actor", 0)
	require.NoError(t, err)

	b.Close()
	require.ErrorIs(t, b.Send("actor", "hello"), ErrBusClosed)
	_, err = b.Register("late", 0)
	require.ErrorIs(t, err, ErrBusClosed)
}
