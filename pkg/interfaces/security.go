package interfaces

import (
	"context"
	"net"

	"github.com/corenet/p2pstack/pkg/types"
)

// SecureConn is a Connection whose Read/Write pass through an authenticated
// encryption record layer. See spec §3 "SecureConnection".
type SecureConn interface {
	net.Conn

	LocalPeer() types.PeerID
	RemotePeer() types.PeerID
}

// SecureTransport upgrades a raw net.Conn into a SecureConn, authenticating
// both ends and, on the outbound side, optionally verifying the remote peer
// identity against an expected PeerID.
type SecureTransport interface {
	ID() types.ProtocolID

	SecureInbound(ctx context.Context, conn net.Conn) (SecureConn, error)
	SecureOutbound(ctx context.Context, conn net.Conn, remote types.PeerID) (SecureConn, error)
}
