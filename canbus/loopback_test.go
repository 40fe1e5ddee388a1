package canbus

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopbackBus_SendReceive_MultiEndpoint(t *testing.T) {
	t.Parallel()
	bus := NewLoopbackBus()
	defer bus.Close()

	a := bus.Open()
	b := bus.Open()
	c := bus.Open()
	defer a.Close()
	defer b.Close()
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	send := MustFrame(0x321, []byte("hello"))
	require.NoError(t, a.Send(ctx, send))

	gotB, err := b.Receive(ctx)
	require.NoError(t, err)
	gotC, err := c.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, send, gotB)
	assert.Equal(t, send, gotC)
	assert.Equal(t, "321 [5] 68 65 6C 6C 6F", gotB.String())
}

func TestLoopbackBus_CloseBehavior(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	bus := NewLoopbackBus()
	a := bus.Open()
	b := bus.Open()

	require.NoError(t, a.Close())
	_, err := a.Receive(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, a.Send(ctx, MustFrame(0x1, nil)), ErrClosed)

	require.NoError(t, bus.Close())
	_, err = b.Receive(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, b.Send(ctx, MustFrame(0x1, nil)), ErrClosed)

	late := bus.Open()
	_, err = late.Receive(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestLoopbackBus_ReceiveHonoursContext(t *testing.T) {
	t.Parallel()
	bus := NewLoopbackBus()
	defer bus.Close()
	ep := bus.Open()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := ep.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOpenLoopbackDriverSharesBus(t *testing.T) {
	t.Parallel()
	a, err := Open(DriverLoopback, "open-test", OpenOptions{})
	require.NoError(t, err)
	b, err := Open(DriverLoopback, "open-test", OpenOptions{})
	require.NoError(t, err)
	defer a.Close()
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, a.Send(ctx, MustFrame(0x7FB, []byte{1, 2})))
	got, err := b.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x7FB), got.ID)

	_, err = Open("can-over-pigeon", "x", OpenOptions{})
	assert.Error(t, err)
}

func ExampleLoopbackBus() {
	bus := NewLoopbackBus()
	a := bus.Open()
	b := bus.Open()
	defer a.Close()
	defer b.Close()

	ctx := context.Background()
	_ = a.Send(ctx, MustFrame(0x123, []byte("hi")))
	f, _ := b.Receive(ctx)
	fmt.Printf("ID=%03X LEN=%d DATA=%x\n", f.ID, f.Len, f.Data[:f.Len])
	// Output: ID=123 LEN=2 DATA=6869
}

func TestLoopbackBus_AcceptanceFilter(t *testing.T) {
	t.Parallel()
	bus := NewLoopbackBus()
	defer bus.Close()

	tx := bus.Open()
	only7 := bus.OpenFiltered(ByRange(0x700, 0x7FF))
	all := bus.Open()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, tx.Send(ctx, MustFrame(0x280, []byte{1})))
	require.NoError(t, tx.Send(ctx, MustFrame(0x7FD, []byte{2, 0})))

	got, err := only7.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x7FD), got.ID)

	for _, want := range []uint32{0x280, 0x7FD} {
		got, err := all.Receive(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got.ID)
	}
}

func TestLoopbackBus_SendBlocksOnFullQueue(t *testing.T) {
	t.Parallel()
	bus := NewLoopbackBus()
	defer bus.Close()
	tx := bus.Open()
	_ = bus.Open()

	ctx := context.Background()
	for i := 0; i < loopbackDepth; i++ {
		require.NoError(t, tx.Send(ctx, MustFrame(0x100, nil)))
	}
	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tx.Send(short, MustFrame(0x100, nil)), context.DeadlineExceeded)
}
