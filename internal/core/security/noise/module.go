package noise

import (
	"go.uber.org/fx"

	pkgif "github.com/corenet/p2pstack/pkg/interfaces"
)

// Params 是构造 Noise Transport 所需的 Fx 依赖。
type Params struct {
	fx.In

	Identity pkgif.Identity
}

// Module 是 Noise 安全传输的 Fx 模块（spec §4.1）。
var Module = fx.Module("security/noise",
	fx.Provide(
		fx.Annotate(
			NewFromParams,
			fx.As(new(pkgif.SecureTransport)),
		),
	),
)

// NewFromParams 从 Fx 依赖构造 Transport。
func NewFromParams(p Params) (*Transport, error) {
	return New(p.Identity)
}
