package switchcore

import (
	"fmt"
	"sync"

	"github.com/corenet/p2pstack/internal/core/upgrader"
	"github.com/corenet/p2pstack/internal/util/leaktrack"
	pkgif "github.com/corenet/p2pstack/pkg/interfaces"
	"github.com/corenet/p2pstack/pkg/types"
)

// peerConn is one upgraded session to a peer, plus the raw socket it rides
// on (closing the session alone would leave the socket dangling if the
// muxer implementation ever forgot to do so itself; closing both here is
// belt and braces).
type peerConn struct {
	*upgrader.UpgradedConn
	raw      interface{ Close() error }
	observer leaktrack.Observer
	trackID  string

	closeOnce sync.Once
}

// newPeerConn wraps an upgraded session and its raw socket, reporting the
// raw Connection's opening to obs (spec §9 "Global trackers").
func newPeerConn(up *upgrader.UpgradedConn, raw interface{ Close() error }, obs leaktrack.Observer) *peerConn {
	if obs == nil {
		obs = leaktrack.NoOp
	}
	pc := &peerConn{UpgradedConn: up, raw: raw, observer: obs}
	pc.trackID = fmt.Sprintf("%s/%p", up.RemotePeer.ShortString(), pc)
	pc.observer.OnOpen(leaktrack.KindConnection, pc.trackID)
	return pc
}

func (c *peerConn) Close() error {
	err := c.Session.Close()
	if c.raw != nil {
		_ = c.raw.Close()
	}
	c.closeOnce.Do(func() {
		c.observer.OnClose(leaktrack.KindConnection, c.trackID)
	})
	return err
}

// peerState is the per-peer connection set the teacher's Swarm keeps as
// conns map[string][]pkgif.Connection, trimmed to what the Switch needs:
// the live sessions plus enough bookkeeping to synthesize Joined/Left from
// the session count crossing zero.
type peerState struct {
	mu    sync.Mutex
	conns []*peerConn
}

func (p *peerState) add(c *peerConn) (becameFirst bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	becameFirst = len(p.conns) == 0
	p.conns = append(p.conns, c)
	return becameFirst
}

// remove drops c from the set and reports whether the set is now empty.
func (p *peerState) remove(c *peerConn) (becameEmpty bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, existing := range p.conns {
		if existing == c {
			p.conns = append(p.conns[:i], p.conns[i+1:]...)
			break
		}
	}
	return len(p.conns) == 0
}

func (p *peerState) snapshot() []*peerConn {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*peerConn, len(p.conns))
	copy(out, p.conns)
	return out
}

func (p *peerState) any() *peerConn {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.conns) == 0 {
		return nil
	}
	return p.conns[0]
}

func (p *peerState) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// getOrCreatePeerState returns the peerState for peer, creating it under
// the Switch's map lock if it doesn't yet exist.
func (s *Switch) getOrCreatePeerState(peer types.PeerID) *peerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps, ok := s.peers[peer]
	if !ok {
		ps = &peerState{}
		s.peers[peer] = ps
	}
	return ps
}

func (s *Switch) getPeerState(peer types.PeerID) *peerState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peers[peer]
}

// addConn registers an upgraded session under its remote peer, firing
// Connected always and Joined the moment the peer's connection count
// crosses zero -> one (spec §4.4 "Events").
func (s *Switch) addConn(peer types.PeerID, c *peerConn) {
	ps := s.getOrCreatePeerState(peer)
	first := ps.add(c)

	s.notifyAsync(func(n pkgif.ConnNotifiee) { n.Connected(peer) })
	if first {
		s.notifyAsync(func(n pkgif.ConnNotifiee) { n.Joined(peer) })
	}
}

// removeConn unregisters c, firing Disconnected always and Left the moment
// the peer's connection count drops back to zero.
func (s *Switch) removeConn(peer types.PeerID, c *peerConn) {
	ps := s.getPeerState(peer)
	if ps == nil {
		return
	}
	last := ps.remove(c)

	s.notifyAsync(func(n pkgif.ConnNotifiee) { n.Disconnected(peer) })
	if last {
		s.notifyAsync(func(n pkgif.ConnNotifiee) { n.Left(peer) })
	}
}

func (s *Switch) notifyAsync(fn func(pkgif.ConnNotifiee)) {
	s.notifieesMu.RLock()
	notifiees := make([]pkgif.ConnNotifiee, len(s.notifiees))
	copy(notifiees, s.notifiees)
	s.notifieesMu.RUnlock()

	for _, n := range notifiees {
		go fn(n)
	}
}
