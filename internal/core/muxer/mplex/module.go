package mplex

import (
	"go.uber.org/fx"

	pkgif "github.com/corenet/p2pstack/pkg/interfaces"
)

// Module is the Mplex muxer's Fx module (spec §4.2).
var Module = fx.Module("muxer/mplex",
	fx.Provide(
		fx.Annotate(
			func() *Muxer { return New() },
			fx.As(new(pkgif.Muxer)),
		),
	),
)
