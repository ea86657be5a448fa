package switchcore_test

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/corenet/p2pstack/internal/core/muxer/mplex"
	"github.com/corenet/p2pstack/internal/core/negotiation"
	"github.com/corenet/p2pstack/internal/core/security/noise"
	"github.com/corenet/p2pstack/internal/core/switchcore"
	"github.com/corenet/p2pstack/internal/core/upgrader"
	"github.com/corenet/p2pstack/internal/util/leaktrack"
	"github.com/corenet/p2pstack/pkg/interfaces"
	"github.com/corenet/p2pstack/pkg/lib/crypto"
	"github.com/corenet/p2pstack/pkg/types"
)

// pipeTransport is an in-memory interfaces.Transport: Dial always connects
// straight to the single Listener created by Listen, via net.Pipe.
type pipeTransport struct {
	accept chan net.Conn
}

func newPipeTransport() *pipeTransport {
	return &pipeTransport{accept: make(chan net.Conn, 8)}
}

func (t *pipeTransport) Dial(ctx context.Context, addr string) (net.Conn, error) {
	a, b := net.Pipe()
	t.accept <- b
	return a, nil
}

func (t *pipeTransport) Listen(addr string) (interfaces.Listener, error) {
	return &pipeListener{accept: t.accept, closed: make(chan struct{})}, nil
}

type pipeListener struct {
	accept chan net.Conn
	closed chan struct{}
}

func (l *pipeListener) Accept() (net.Conn, error) {
	select {
	case c := <-l.accept:
		return c, nil
	case <-l.closed:
		return nil, io.ErrClosedPipe
	}
}

func (l *pipeListener) Close() error {
	select {
	case <-l.closed:
	default:
		close(l.closed)
	}
	return nil
}

func (l *pipeListener) Addr() net.Addr { return fakeAddr{} }

type fakeAddr struct{}

func (fakeAddr) Network() string { return "pipe" }
func (fakeAddr) String() string  { return "pipe" }

func newTestSwitch(t *testing.T, transport interfaces.Transport) (*switchcore.Switch, interfaces.Identity) {
	t.Helper()
	sw, id, _ := newTestSwitchWithObserver(t, transport, nil)
	return sw, id
}

// newTestSwitchWithObserver wires obs into every layer of the upgrade
// pipeline that opens a tracked resource (spec §9 "Global trackers"): the
// Noise SecureConn, the Mplex Channel, and the Switch's raw Connection.
func newTestSwitchWithObserver(t *testing.T, transport interfaces.Transport, obs leaktrack.Observer) (*switchcore.Switch, interfaces.Identity, leaktrack.Observer) {
	t.Helper()
	if obs == nil {
		obs = leaktrack.NoOp
	}
	priv, _, err := crypto.GenerateKeyPair(crypto.KeyTypeEd25519)
	require.NoError(t, err)
	id, err := interfaces.NewIdentity(priv)
	require.NoError(t, err)

	secTransport, err := noise.NewWithObserver(id, obs)
	require.NoError(t, err)

	neg := negotiation.New()
	up, err := upgrader.New(id, neg, upgrader.Config{
		SecurityTransports: []interfaces.SecureTransport{secTransport},
		Muxers:             []interfaces.Muxer{mplex.NewWithObserver(clock.New(), obs)},
		NegotiateTimeout:   5 * time.Second,
		HandshakeTimeout:   5 * time.Second,
	})
	require.NoError(t, err)

	cfg := switchcore.DefaultConfig()
	cfg.Observer = obs
	sw := switchcore.New(id.PeerID(), up, neg, transport, cfg)
	return sw, id, obs
}

type recordingNotifiee struct {
	mu                           sync.Mutex
	connected, disconnected      int
	joined, left                 int
	joinedPeer, leftPeer         types.PeerID
	done                         chan struct{}
}

func newRecordingNotifiee() *recordingNotifiee {
	return &recordingNotifiee{done: make(chan struct{}, 8)}
}

func (r *recordingNotifiee) Connected(peer types.PeerID) {
	r.mu.Lock()
	r.connected++
	r.mu.Unlock()
	r.done <- struct{}{}
}

func (r *recordingNotifiee) Disconnected(peer types.PeerID) {
	r.mu.Lock()
	r.disconnected++
	r.mu.Unlock()
	r.done <- struct{}{}
}

func (r *recordingNotifiee) Joined(peer types.PeerID) {
	r.mu.Lock()
	r.joined++
	r.joinedPeer = peer
	r.mu.Unlock()
	r.done <- struct{}{}
}

func (r *recordingNotifiee) Left(peer types.PeerID) {
	r.mu.Lock()
	r.left++
	r.leftPeer = peer
	r.mu.Unlock()
	r.done <- struct{}{}
}

func (r *recordingNotifiee) waitN(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.done:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for notifiee event %d/%d", i+1, n)
		}
	}
}

func TestSwitchDialNewStreamRoundTrip(t *testing.T) {
	transport := newPipeTransport()

	clientSw, _ := newTestSwitch(t, transport)
	serverSw, serverID := newTestSwitch(t, transport)

	const echoProto = types.ProtocolID("/test/echo/1.0.0")
	serverReceived := make(chan string, 1)
	serverSw.SetHandler(echoProto, nil, func(ch interfaces.Channel, id types.ProtocolID, remotePeer types.PeerID) {
		buf := make([]byte, 64)
		n, err := ch.Read(buf)
		require.NoError(t, err)
		serverReceived <- string(buf[:n])
	})

	require.NoError(t, serverSw.Listen("pipe://server"))

	stream, id, err := clientSw.Dial(context.Background(), serverID.PeerID(), []string{"pipe://server"}, []types.ProtocolID{echoProto})
	require.NoError(t, err)
	require.Equal(t, echoProto, id)

	_, err = stream.Write([]byte("hello"))
	require.NoError(t, err)

	select {
	case got := <-serverReceived:
		require.Equal(t, "hello", got)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for server to receive the message")
	}

	require.Equal(t, 1, clientSw.Connections(serverID.PeerID()))
}

func TestSwitchDialCoalescesConcurrentAttempts(t *testing.T) {
	transport := newPipeTransport()

	clientSw, _ := newTestSwitch(t, transport)
	serverSw, serverID := newTestSwitch(t, transport)
	require.NoError(t, serverSw.Listen("pipe://server"))

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := clientSw.Dial(context.Background(), serverID.PeerID(), []string{"pipe://server"}, nil)
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, 1, clientSw.Connections(serverID.PeerID()))
}

func TestSwitchNewStreamWithoutSessionFails(t *testing.T) {
	sw, _ := newTestSwitch(t, nil)
	_, _, err := sw.NewStream(context.Background(), types.PeerID{1, 2, 3}, nil)
	require.ErrorIs(t, err, switchcore.ErrNoSession)
}

func TestSwitchDisconnectFiresLeftAndDisconnected(t *testing.T) {
	transport := newPipeTransport()

	clientSw, _ := newTestSwitch(t, transport)
	serverSw, serverID := newTestSwitch(t, transport)
	require.NoError(t, serverSw.Listen("pipe://server"))

	notifiee := newRecordingNotifiee()
	clientSw.Notify(notifiee)

	_, _, err := clientSw.Dial(context.Background(), serverID.PeerID(), []string{"pipe://server"}, nil)
	require.NoError(t, err)
	notifiee.waitN(t, 2) // Connected + Joined

	require.NoError(t, clientSw.Disconnect(serverID.PeerID()))
	notifiee.waitN(t, 2) // Disconnected + Left

	notifiee.mu.Lock()
	defer notifiee.mu.Unlock()
	require.Equal(t, 1, notifiee.joined)
	require.Equal(t, 1, notifiee.left)
	require.Equal(t, serverID.PeerID(), notifiee.leftPeer)
	require.Equal(t, 0, clientSw.Connections(serverID.PeerID()))
}

// TestSwitchTracksResourcesBalanced exercises spec §8's invariant ("For
// every Connection created, exactly one close occurs and tracker counters
// balance") and scenario 3 ("tracker counters for Connection, Channel,
// SecureConn all balance to zero") across a full dial, echo, and disconnect
// cycle, with one leaktrack.Counting observer shared by both switches.
func TestSwitchTracksResourcesBalanced(t *testing.T) {
	transport := newPipeTransport()
	counting := leaktrack.NewCounting()

	clientSw, _, _ := newTestSwitchWithObserver(t, transport, counting)
	serverSw, serverID, _ := newTestSwitchWithObserver(t, transport, counting)

	const echoProto = types.ProtocolID("/test/echo-tracked/1.0.0")
	serverReceived := make(chan string, 1)
	serverSw.SetHandler(echoProto, nil, func(ch interfaces.Channel, id types.ProtocolID, remotePeer types.PeerID) {
		buf := make([]byte, 64)
		n, err := ch.Read(buf)
		require.NoError(t, err)
		serverReceived <- string(buf[:n])
		_ = ch.Close()
	})

	require.NoError(t, serverSw.Listen("pipe://tracked"))

	stream, id, err := clientSw.Dial(context.Background(), serverID.PeerID(), []string{"pipe://tracked"}, []types.ProtocolID{echoProto})
	require.NoError(t, err)
	require.Equal(t, echoProto, id)

	_, err = stream.Write([]byte("hello"))
	require.NoError(t, err)

	select {
	case got := <-serverReceived:
		require.Equal(t, "hello", got)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for server to receive the message")
	}
	require.NoError(t, stream.Close())

	require.NoError(t, clientSw.Disconnect(serverID.PeerID()))

	require.Eventually(t, counting.Balanced, 5*time.Second, 10*time.Millisecond, "unbalanced trackers: %v", counting.Unbalanced())
}
