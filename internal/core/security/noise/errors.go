package noise

import "errors"

var (
	// ErrHandshakeFailed covers any failure of the XX handshake itself
	// (transcript mismatch, bad remote static key, transport EOF mid-handshake).
	ErrHandshakeFailed = errors.New("noise: handshake failed")

	// ErrDecryptFailed is returned when a record fails to authenticate.
	ErrDecryptFailed = errors.New("noise: decrypt failed")

	// ErrPeerIDMismatch is returned when the identity key bound in the
	// handshake payload does not derive the PeerID the dialer expected.
	ErrPeerIDMismatch = errors.New("noise: peer id mismatch")

	// ErrNonceExhausted is returned once a direction's nonce counter would
	// wrap past 2⁶⁴-1; the connection must be closed (spec §3 invariant).
	ErrNonceExhausted = errors.New("noise: nonce exhausted")
)
