package negotiation

import "errors"

var (
	// ErrProtocolNotSupported is returned to the initiator when every
	// candidate protocol was answered with "na".
	ErrProtocolNotSupported = errors.New("negotiation: protocol not supported")

	// ErrNegotiationFailed covers malformed messages, short reads, or a
	// header mismatch from the peer.
	ErrNegotiationFailed = errors.New("negotiation: failed")
)
