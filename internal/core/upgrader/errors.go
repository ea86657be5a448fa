package upgrader

import "errors"

var (
	ErrNilIdentity         = errors.New("upgrader: identity is nil")
	ErrNoPeerID            = errors.New("upgrader: outbound connection requires a remote peer id")
	ErrNoSecurityTransport = errors.New("upgrader: no security transport configured")
	ErrNoMuxer             = errors.New("upgrader: no stream muxer configured")
	ErrSecurityNegotiation = errors.New("upgrader: security protocol negotiation failed")
	ErrMuxerNegotiation    = errors.New("upgrader: muxer negotiation failed")
)
