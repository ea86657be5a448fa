package mplex

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelIdleTimeoutResets(t *testing.T) {
	a, b := net.Pipe()
	clk := clock.NewMock()
	sa := newSession(&fakeSecureConn{Conn: a}, clk, nil, nil)
	sb := newSession(&fakeSecureConn{Conn: b}, clk, nil, nil)
	defer sa.Close()
	defer sb.Close()

	ch, err := sa.OpenChannel(context.Background(), "idle")
	require.NoError(t, err)

	clk.Add(defaultIdleTimeout + time.Second)

	require.Eventually(t, func() bool {
		buf := make([]byte, 1)
		_, err := ch.Read(buf)
		return err == ErrChannelReset
	}, time.Second, 5*time.Millisecond)
}

func TestChannelCloseThenReadDrainsUntilEOF(t *testing.T) {
	sa, sb := newSessionPair(t)

	ch, err := sa.OpenChannel(context.Background(), "c")
	require.NoError(t, err)
	accepted, err := sb.AcceptChannel()
	require.NoError(t, err)

	_, err = ch.Write([]byte("hi"))
	require.NoError(t, err)
	require.NoError(t, ch.Close())

	buf := make([]byte, 2)
	n, err := accepted.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(buf[:n]))

	_, err = accepted.Read(buf)
	assert.Equal(t, io.EOF, err)
}

func TestChannelWriteAfterCloseFails(t *testing.T) {
	sa, _ := newSessionPair(t)
	ch, err := sa.OpenChannel(context.Background(), "c")
	require.NoError(t, err)
	require.NoError(t, ch.Close())

	_, err = ch.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrChannelClosed)
}

func TestChannelBufferOverrunResets(t *testing.T) {
	sa, sb := newSessionPair(t)
	ch, err := sa.OpenChannel(context.Background(), "c")
	require.NoError(t, err)
	accepted, err := sb.AcceptChannel()
	require.NoError(t, err)
	_ = ch

	raw, ok := accepted.(*channel)
	require.True(t, ok)
	raw.handleRemoteMessage(make([]byte, defaultReadBufferSize+1))

	buf := make([]byte, 1)
	_, err = accepted.Read(buf)
	assert.ErrorIs(t, err, ErrChannelReset)
}
