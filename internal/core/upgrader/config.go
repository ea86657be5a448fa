package upgrader

import (
	"time"

	pkgif "github.com/corenet/p2pstack/pkg/interfaces"
)

// Config configures an Upgrader's candidate transports and timeouts.
type Config struct {
	// SecurityTransports lists security transports in priority order
	// (spec §4.1 — in practice this core only ever wires Noise).
	SecurityTransports []pkgif.SecureTransport

	// Muxers lists stream muxers in priority order (spec §4.2 — Mplex).
	Muxers []pkgif.Muxer

	// NegotiateTimeout bounds multistream-select (spec §6 "60 s hard
	// deadline" covers the handshake; negotiation shares the same budget).
	NegotiateTimeout time.Duration

	// HandshakeTimeout bounds the security handshake (spec §6 "Noise
	// handshake: 60 s hard deadline").
	HandshakeTimeout time.Duration
}

// NewConfig returns a Config with spec-mandated default timeouts.
func NewConfig() Config {
	return Config{
		NegotiateTimeout: 60 * time.Second,
		HandshakeTimeout: 60 * time.Second,
	}
}
