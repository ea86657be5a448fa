package upgrader_test

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/corenet/p2pstack/internal/core/muxer/mplex"
	"github.com/corenet/p2pstack/internal/core/negotiation"
	"github.com/corenet/p2pstack/internal/core/security/noise"
	"github.com/corenet/p2pstack/internal/core/upgrader"
	"github.com/corenet/p2pstack/pkg/interfaces"
	"github.com/corenet/p2pstack/pkg/lib/crypto"
)

func newTestUpgrader(t *testing.T) (*upgrader.Upgrader, interfaces.Identity) {
	t.Helper()
	priv, _, err := crypto.GenerateKeyPair(crypto.KeyTypeEd25519)
	require.NoError(t, err)
	id, err := interfaces.NewIdentity(priv)
	require.NoError(t, err)

	secTransport, err := noise.New(id)
	require.NoError(t, err)

	u, err := upgrader.New(id, negotiation.New(), upgrader.Config{
		SecurityTransports: []interfaces.SecureTransport{secTransport},
		Muxers:             []interfaces.Muxer{mplex.New()},
		NegotiateTimeout:   5 * time.Second,
		HandshakeTimeout:   5 * time.Second,
	})
	require.NoError(t, err)
	return u, id
}

func TestUpgradeFullPipeline(t *testing.T) {
	clientUpgrader, _ := newTestUpgrader(t)
	serverUpgrader, serverID := newTestUpgrader(t)

	a, b := net.Pipe()

	var wg sync.WaitGroup
	wg.Add(2)

	var clientResult, serverResult *upgrader.UpgradedConn
	var clientErr, serverErr error

	go func() {
		defer wg.Done()
		clientResult, clientErr = clientUpgrader.Upgrade(context.Background(), a, interfaces.DirOutbound, serverID.PeerID(), nil)
	}()
	go func() {
		defer wg.Done()
		serverResult, serverErr = serverUpgrader.Upgrade(context.Background(), b, interfaces.DirInbound, serverID.PeerID(), nil)
	}()
	wg.Wait()

	require.NoError(t, clientErr)
	require.NoError(t, serverErr)
	require.Equal(t, serverID.PeerID(), clientResult.RemotePeer)
	require.Equal(t, noise.ProtocolID, clientResult.Security)
	require.Equal(t, mplex.ProtocolID, clientResult.MuxerID)

	// Exercise the resulting Mplex session end to end.
	go func() {
		ch, err := clientResult.Session.OpenChannel(context.Background(), "ping")
		require.NoError(t, err)
		_, err = ch.Write([]byte("ping"))
		require.NoError(t, err)
	}()

	accepted, err := serverResult.Session.AcceptChannel()
	require.NoError(t, err)
	buf := make([]byte, 4)
	n, err := accepted.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "ping", string(buf[:n]))
}
