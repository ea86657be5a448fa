package interfaces

import (
	"context"
	"io"

	"github.com/corenet/p2pstack/pkg/types"
)

// Direction records which side of a Connection initiated it.
type Direction int

const (
	// DirUnknown is the zero value; never a valid Connection direction.
	DirUnknown Direction = iota
	DirInbound
	DirOutbound
)

func (d Direction) String() string {
	switch d {
	case DirInbound:
		return "inbound"
	case DirOutbound:
		return "outbound"
	default:
		return "unknown"
	}
}

// PeerInfo is the spec §3 data model entry: identity plus reachability and
// protocol support. The local peer's PeerInfo additionally carries the
// private key (held only by the caller, never serialized).
type PeerInfo struct {
	ID        types.PeerID
	Addrs     []string
	Protocols []types.ProtocolID
}

// ConnNotifiee receives connection- and peer-level lifecycle events
// (spec §4.4 "Events"). Both fire async, fan-out; hooks may re-enter
// Disconnect and must tolerate that.
type ConnNotifiee interface {
	Connected(peer types.PeerID)
	Disconnected(peer types.PeerID)
	Joined(peer types.PeerID)
	Left(peer types.PeerID)
}

// Switch is the single dial/listen/dispatch entry point (spec §4.4).
type Switch interface {
	LocalPeer() types.PeerID

	// Dial opens (or reuses) a session to peer and, if protocols is
	// non-empty, negotiates one of them and returns the resulting byte
	// stream. With no protocols it just ensures a session exists.
	Dial(ctx context.Context, peer types.PeerID, addrs []string, protocols []types.ProtocolID) (io.ReadWriteCloser, types.ProtocolID, error)

	// NewStream opens a fresh channel on an existing session to peer and
	// negotiates one of protocols.
	NewStream(ctx context.Context, peer types.PeerID, protocols []types.ProtocolID) (io.ReadWriteCloser, types.ProtocolID, error)

	// SetHandler registers an application protocol for inbound channels.
	// The handler receives the remote peer the channel belongs to, since a
	// Channel alone doesn't carry its owning session's identity.
	SetHandler(id types.ProtocolID, matcher ProtocolMatcher, handler func(ch Channel, id types.ProtocolID, remotePeer types.PeerID))

	Disconnect(peer types.PeerID) error
	Notify(n ConnNotifiee)
	Connections(peer types.PeerID) int
	Close() error
}
