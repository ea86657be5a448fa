package noise

import (
	"context"
	"fmt"
	"net"

	"github.com/corenet/p2pstack/internal/util/leaktrack"
	pkgif "github.com/corenet/p2pstack/pkg/interfaces"
	"github.com/corenet/p2pstack/pkg/lib/log"
	"github.com/corenet/p2pstack/pkg/types"
)

var logger = log.Logger("core/security/noise")

// ProtocolID is the multistream-select identifier advertised for this
// security transport (spec §6 "Protocol identifiers").
const ProtocolID = types.ProtocolID("/noise")

// Transport is the Noise XX SecureTransport (spec §4.1).
type Transport struct {
	identity pkgif.Identity
	observer leaktrack.Observer
}

var _ pkgif.SecureTransport = (*Transport)(nil)

// New builds a Noise transport bound to a local identity's static key,
// with leak tracking disabled (spec §9 "Global trackers": a no-op
// observer in production builds).
func New(identity pkgif.Identity) (*Transport, error) {
	return NewWithObserver(identity, leaktrack.NoOp)
}

// NewWithObserver builds a Noise transport that reports every SecureConn
// it establishes to obs. Tests inject a leaktrack.Counting observer here
// to assert spec §8's balanced-tracker-counters invariant.
func NewWithObserver(identity pkgif.Identity, obs leaktrack.Observer) (*Transport, error) {
	if identity == nil {
		return nil, fmt.Errorf("noise: identity is nil")
	}
	if obs == nil {
		obs = leaktrack.NoOp
	}
	return &Transport{identity: identity, observer: obs}, nil
}

func (t *Transport) ID() types.ProtocolID { return ProtocolID }

// SecureInbound runs the responder side of the handshake. The remote peer
// identity is not known in advance; it is established by the handshake.
func (t *Transport) SecureInbound(_ context.Context, conn net.Conn) (pkgif.SecureConn, error) {
	secConn, err := performHandshake(conn, t.identity.PrivateKey(), types.EmptyPeerID, false, t.observer)
	if err != nil {
		logger.Warn("inbound noise handshake failed", "error", err)
		return nil, err
	}
	logger.Debug("inbound noise handshake ok", "remotePeer", secConn.remotePeer.ShortString())
	return secConn, nil
}

// SecureOutbound runs the initiator side, verifying the responder's identity
// against remote when remote is non-empty.
func (t *Transport) SecureOutbound(_ context.Context, conn net.Conn, remote types.PeerID) (pkgif.SecureConn, error) {
	secConn, err := performHandshake(conn, t.identity.PrivateKey(), remote, true, t.observer)
	if err != nil {
		logger.Warn("outbound noise handshake failed", "remotePeer", remote.ShortString(), "error", err)
		return nil, err
	}
	logger.Debug("outbound noise handshake ok", "remotePeer", secConn.remotePeer.ShortString())
	return secConn, nil
}
