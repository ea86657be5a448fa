package interfaces

import (
	"io"

	"github.com/corenet/p2pstack/pkg/types"
)

// ProtocolMatcher optionally accepts a protocol id by predicate instead of
// exact string match (spec §6 "Application surface").
type ProtocolMatcher func(id types.ProtocolID) bool

// Registration is one entry in a responder's protocol table: an exact id
// plus an optional matcher for custom negotiation rules.
type Registration struct {
	ID      types.ProtocolID
	Matcher ProtocolMatcher
}

// Negotiator implements multistream-select (spec §4.3) against an
// io.ReadWriter — a raw net.Conn, a SecureConn or a Channel all qualify.
type Negotiator interface {
	// SelectOne runs the initiator side: offer protocols in order, return
	// the first one the responder accepts.
	SelectOne(rw io.ReadWriter, protocols []types.ProtocolID) (types.ProtocolID, error)

	// Negotiate runs the responder side: reads the requested id, echoes it
	// back if a registration matches (exact or via Matcher), replies "na"
	// and loops otherwise. Returns the requested id as sent by the peer.
	Negotiate(rw io.ReadWriter, registrations []Registration) (types.ProtocolID, error)
}
