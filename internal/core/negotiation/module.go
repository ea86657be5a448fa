package negotiation

import (
	"go.uber.org/fx"

	pkgif "github.com/corenet/p2pstack/pkg/interfaces"
)

// Module provides the stateless multistream-select Negotiator.
var Module = fx.Module("negotiation",
	fx.Provide(
		fx.Annotate(
			func() *Negotiator { return New() },
			fx.As(new(pkgif.Negotiator)),
		),
	),
)
