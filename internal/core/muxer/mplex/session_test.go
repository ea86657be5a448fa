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

	"github.com/corenet/p2pstack/pkg/types"
)

// fakeSecureConn adapts a net.Conn to pkgif.SecureConn for tests; the
// Noise identity fields are irrelevant to Mplex framing.
type fakeSecureConn struct {
	net.Conn
	local, remote types.PeerID
}

func (c *fakeSecureConn) LocalPeer() types.PeerID  { return c.local }
func (c *fakeSecureConn) RemotePeer() types.PeerID { return c.remote }

func newSessionPair(t *testing.T) (*session, *session) {
	t.Helper()
	a, b := net.Pipe()
	clk := clock.New()
	sa := newSession(&fakeSecureConn{Conn: a}, clk, nil, nil)
	sb := newSession(&fakeSecureConn{Conn: b}, clk, nil, nil)
	t.Cleanup(func() {
		_ = sa.Close()
		_ = sb.Close()
	})
	return sa, sb
}

func TestSessionOpenAcceptEcho(t *testing.T) {
	initiator, responder := newSessionPair(t)

	openErrCh := make(chan error, 1)
	var ch interface {
		io.ReadWriteCloser
	}
	go func() {
		c, err := initiator.OpenChannel(context.Background(), "greet")
		ch = c
		openErrCh <- err
	}()

	accepted, err := responder.AcceptChannel()
	require.NoError(t, err)
	require.NoError(t, <-openErrCh)

	_, err = ch.Write([]byte("hello"))
	require.NoError(t, err)

	buf := make([]byte, 5)
	n, err := accepted.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestSessionChannelIDsStrictlyIncreasing(t *testing.T) {
	initiator, _ := newSessionPair(t)

	var lastID uint64
	for i := 0; i < 5; i++ {
		ch, err := initiator.OpenChannel(context.Background(), "s")
		require.NoError(t, err)
		id := uint64(ch.ID())
		if i > 0 {
			assert.Greater(t, id, lastID)
		}
		lastID = id
	}
}

func TestSessionCloseResetsOpenChannels(t *testing.T) {
	initiator, responder := newSessionPair(t)

	ch, err := initiator.OpenChannel(context.Background(), "s")
	require.NoError(t, err)
	_, err = responder.AcceptChannel()
	require.NoError(t, err)

	require.NoError(t, initiator.Close())

	buf := make([]byte, 1)
	_, err = ch.Read(buf)
	assert.ErrorIs(t, err, ErrChannelReset)
}

func TestSessionUnknownChannelFrameIsDropped(t *testing.T) {
	initiator, responder := newSessionPair(t)

	// Craft a Msg frame for a channel id the responder never saw a New for.
	require.NoError(t, writeFrame(initiator.conn, 999, tagMsgInitiator, []byte("late")))

	// The session must keep running (no crash / no fatal close) — checked by
	// the responder session still being open afterwards.
	time.Sleep(10 * time.Millisecond)
	assert.False(t, responder.IsClosed())
}

func TestSessionDirectionViolationIsFatal(t *testing.T) {
	initiator, responder := newSessionPair(t)

	ch, err := initiator.OpenChannel(context.Background(), "s")
	require.NoError(t, err)
	_, err = responder.AcceptChannel()
	require.NoError(t, err)

	// The channel was opened by `initiator`; from responder's perspective it
	// is remote-opened, so a Receiver-tagged frame for it (implying
	// responder itself opened it) is a direction violation.
	require.NoError(t, writeFrame(initiator.conn, uint64(ch.ID()), tagMsgReceiver, []byte("bad")))

	require.Eventually(t, func() bool {
		return responder.IsClosed()
	}, time.Second, 5*time.Millisecond)
}

func TestSessionMaxMessageSizeFatal(t *testing.T) {
	initiator, responder := newSessionPair(t)

	go func() {
		_ = writeFrame(initiator.conn, 0, tagMsgInitiator, make([]byte, maxMessageSize+1))
	}()

	require.Eventually(t, func() bool {
		return responder.IsClosed()
	}, time.Second, 5*time.Millisecond)
}
