package mplex

import (
	"github.com/benbjohnson/clock"

	"github.com/corenet/p2pstack/internal/util/leaktrack"
	pkgif "github.com/corenet/p2pstack/pkg/interfaces"
	"github.com/corenet/p2pstack/pkg/types"
)

// ProtocolID is the multistream-select identifier for this muxer (spec §6).
const ProtocolID = types.ProtocolID("/mplex/6.7.0")

// Muxer builds Mplex Sessions over SecureConnections (spec §4.2).
type Muxer struct {
	clock    clock.Clock
	observer leaktrack.Observer
}

var _ pkgif.Muxer = (*Muxer)(nil)

// New returns a Muxer using the real wall clock for idle timers and no
// leak tracking (spec §9 "Global trackers": a no-op observer in
// production builds).
func New() *Muxer { return &Muxer{clock: clock.New(), observer: leaktrack.NoOp} }

// NewWithClock returns a Muxer driven by an injected clock (tests use a
// clock.Mock to deterministically trigger idle-timeout resets).
func NewWithClock(clk clock.Clock) *Muxer {
	return &Muxer{clock: clk, observer: leaktrack.NoOp}
}

// NewWithObserver returns a Muxer driven by clk that reports every
// Channel it opens or accepts to obs. Tests inject a leaktrack.Counting
// observer here to assert spec §8's balanced-tracker-counters invariant.
func NewWithObserver(clk clock.Clock, obs leaktrack.Observer) *Muxer {
	if obs == nil {
		obs = leaktrack.NoOp
	}
	return &Muxer{clock: clk, observer: obs}
}

func (m *Muxer) ID() types.ProtocolID { return ProtocolID }

// NewSession wraps conn in a Session and starts its read loop. isServer has
// no effect on Mplex itself (channel ids are independent per direction) but
// is accepted for symmetry with Transport-style muxer constructors.
func (m *Muxer) NewSession(conn pkgif.SecureConn, _ bool, handler pkgif.StreamHandler) (pkgif.Session, error) {
	return newSession(conn, m.clock, m.observer, handler), nil
}
