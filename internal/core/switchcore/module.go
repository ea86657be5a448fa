package switchcore

import (
	"context"

	"go.uber.org/fx"

	"github.com/corenet/p2pstack/internal/core/upgrader"
	pkgif "github.com/corenet/p2pstack/pkg/interfaces"
)

// Params 是构造 Switch 所需的 Fx 依赖。Transport 可选：测试或仅发起出站流量
// 的进程可以不提供监听/拨号的传输层实现。
type Params struct {
	fx.In

	Identity   pkgif.Identity
	Negotiator pkgif.Negotiator
	Upgrader   *upgrader.Upgrader
	Transport  pkgif.Transport `optional:"true"`
}

// Module is the Switch's Fx module (spec §4.4).
var Module = fx.Module("switchcore",
	fx.Provide(
		fx.Annotate(
			NewFromParams,
			fx.As(new(pkgif.Switch)),
		),
	),
	fx.Invoke(registerLifecycle),
)

// NewFromParams builds a Switch wired to its Upgrader and Negotiator.
func NewFromParams(p Params) (*Switch, error) {
	return New(p.Identity.PeerID(), p.Upgrader, p.Negotiator, p.Transport, DefaultConfig()), nil
}

// registerLifecycle hooks the Switch's Close into the Fx app lifecycle,
// mirroring the teacher's swarm module lifecycle wiring.
func registerLifecycle(lc fx.Lifecycle, sw *Switch) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return sw.Close()
		},
	})
}
