package switchcore

import (
	"errors"
	"fmt"
)

var (
	// ErrSwitchClosed is returned by any operation attempted after Close.
	ErrSwitchClosed = errors.New("switchcore: closed")

	// ErrNoAddresses is returned when Dial is given no addresses and no
	// session to the peer already exists.
	ErrNoAddresses = errors.New("switchcore: no addresses to dial")

	// ErrNoSession is returned by NewStream when no session to the peer
	// exists yet — unlike Dial, NewStream never dials.
	ErrNoSession = errors.New("switchcore: no session to peer")

	// ErrNoTransport is returned when Listen/Dial is used before a
	// Transport has been attached.
	ErrNoTransport = errors.New("switchcore: no transport configured")

	// ErrDialToSelf guards against dialing the local peer id.
	ErrDialToSelf = errors.New("switchcore: dial to self")

	// ErrNegotiationFailed is returned when no registered protocol
	// matches what the remote side requested on a new channel.
	ErrNegotiationFailed = errors.New("switchcore: protocol negotiation failed")
)

// DialError aggregates the per-address failures of a failed Dial, mirroring
// the taxonomy's DialFailed (spec §7).
type DialError struct {
	Peer   string
	Errors []error
}

func (e *DialError) Error() string {
	switch len(e.Errors) {
	case 0:
		return fmt.Sprintf("switchcore: dial %s: all addresses failed", e.Peer)
	case 1:
		return fmt.Sprintf("switchcore: dial %s: %v", e.Peer, e.Errors[0])
	default:
		return fmt.Sprintf("switchcore: dial %s: %d addresses failed: %v", e.Peer, len(e.Errors), e.Errors)
	}
}

func (e *DialError) Unwrap() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[0]
}
