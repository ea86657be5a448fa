package pubsub

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/corenet/p2pstack/pkg/types"
)

// newTestService builds a bare Service sufficient for peer-level unit tests
// that never touch the Switch (no send/ensureConn exercised).
func newTestService(clk clock.Clock) *Service {
	cfg := DefaultConfig()
	return &Service{
		cfg:        cfg,
		clock:      clk,
		topics:     make(map[string]*topic),
		peers:      make(map[types.PeerID]*peer),
		validators: newValidatorSet(),
		seen:       newIDCache(cfg.SeenCacheSize, cfg.SeenCacheTTL),
	}
}

func TestPeerBackoffAfterRepeatedFailures(t *testing.T) {
	clk := clock.NewMock()
	svc := newTestService(clk)
	svc.cfg.MaxSendFailures = 2
	svc.cfg.FailureBackoff = time.Minute

	p := newPeer(svc, types.PeerID{1})
	require.False(t, p.inBackoff())

	p.recordFailure()
	require.False(t, p.inBackoff())
	p.recordFailure()
	require.True(t, p.inBackoff())

	clk.Add(2 * time.Minute)
	require.False(t, p.inBackoff())
}

func TestPeerRecordSuccessResetsFailures(t *testing.T) {
	clk := clock.NewMock()
	svc := newTestService(clk)
	svc.cfg.MaxSendFailures = 1
	svc.cfg.FailureBackoff = time.Minute

	p := newPeer(svc, types.PeerID{1})
	p.recordFailure()
	require.True(t, p.inBackoff())

	p.recordSuccess()
	require.False(t, p.inBackoff())
}

func TestPeerSubscribedTopics(t *testing.T) {
	clk := clock.NewMock()
	svc := newTestService(clk)
	p := newPeer(svc, types.PeerID{1})

	p.topics["chat"] = struct{}{}
	require.True(t, p.subscribedTo("chat"))
	require.False(t, p.subscribedTo("other"))
	require.ElementsMatch(t, []string{"chat"}, p.subscribedTopics())
}
