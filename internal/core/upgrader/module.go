package upgrader

import (
	"go.uber.org/fx"

	pkgif "github.com/corenet/p2pstack/pkg/interfaces"
)

// Params are the Fx dependencies needed to build an Upgrader.
type Params struct {
	fx.In

	Identity   pkgif.Identity
	Negotiator pkgif.Negotiator
	Security   pkgif.SecureTransport
	Muxer      pkgif.Muxer
}

// Module is the upgrader's Fx module.
var Module = fx.Module("upgrader",
	fx.Provide(NewFromParams),
)

// NewFromParams builds an Upgrader wired to a single security transport and
// muxer — this core only ever offers Noise and Mplex, but Upgrader itself
// accepts lists to keep multistream-select genuinely negotiated rather than
// hardcoded.
func NewFromParams(p Params) (*Upgrader, error) {
	cfg := NewConfig()
	cfg.SecurityTransports = []pkgif.SecureTransport{p.Security}
	cfg.Muxers = []pkgif.Muxer{p.Muxer}
	return New(p.Identity, p.Negotiator, cfg)
}
