package pubsub

import (
	"context"

	"go.uber.org/fx"

	pkgif "github.com/corenet/p2pstack/pkg/interfaces"
)

// Params are the Fx dependencies needed to construct a Service.
type Params struct {
	fx.In

	Switch   pkgif.Switch
	Identity pkgif.Identity
}

// Module is the pubsub Service's Fx module (spec §4.5). It wires the
// FloodSub variant by default; a caller wanting GossipSub should build its
// own Service via New with DefaultGossipSubConfig() instead of using this
// module.
var Module = fx.Module("pubsub",
	fx.Provide(
		fx.Annotate(
			NewFromParams,
			fx.As(new(pkgif.PubSub)),
		),
	),
	fx.Invoke(registerLifecycle),
)

// NewFromParams builds a FloodSub Service wired to the Switch and Identity.
func NewFromParams(p Params) *Service {
	return New(p.Switch, p.Identity.PrivateKey(), DefaultConfig())
}

// registerLifecycle hooks the Service's Close into the Fx app lifecycle.
func registerLifecycle(lc fx.Lifecycle, svc *Service) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return svc.Close()
		},
	})
}
