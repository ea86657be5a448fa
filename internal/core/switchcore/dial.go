package switchcore

import (
	"context"
	"io"

	"github.com/google/uuid"

	pkgif "github.com/corenet/p2pstack/pkg/interfaces"
	"github.com/corenet/p2pstack/pkg/types"
)

// Dial implements pkgif.Switch.Dial (spec §4.4 "Dial contract"): reuse an
// existing session to peer if one exists, otherwise dial one of addrs and
// upgrade it. If protocols is non-empty the resulting channel is
// negotiated and returned; otherwise Dial only ensures a session exists
// and returns a nil stream.
func (s *Switch) Dial(ctx context.Context, peer types.PeerID, addrs []string, protocols []types.ProtocolID) (io.ReadWriteCloser, types.ProtocolID, error) {
	if s.closed.Load() {
		return nil, "", ErrSwitchClosed
	}
	if peer.Equal(s.localPeer) {
		return nil, "", ErrDialToSelf
	}

	if _, err := s.dialSession(ctx, peer, addrs); err != nil {
		return nil, "", err
	}

	if len(protocols) == 0 {
		return nil, "", nil
	}
	return s.NewStream(ctx, peer, protocols)
}

// dialSession returns an existing session to peer, or coalesces concurrent
// dials into one attempt against addrs (spec §4.4 "Concurrent dial
// coalescing").
func (s *Switch) dialSession(ctx context.Context, peer types.PeerID, addrs []string) (*peerConn, error) {
	if ps := s.getPeerState(peer); ps != nil {
		if c := ps.any(); c != nil {
			return c, nil
		}
	}
	if len(addrs) == 0 {
		return nil, ErrNoAddresses
	}
	if s.transport == nil {
		return nil, ErrNoTransport
	}

	// singleflight collapses every concurrent dial to this peer into the
	// single in-flight attempt; losers simply receive its result rather
	// than opening (and then discarding) their own connections.
	v, err, _ := s.dialGroup.Do(string(peer[:]), func() (interface{}, error) {
		return s.dialOneOf(ctx, peer, addrs)
	})
	if err != nil {
		return nil, err
	}
	return v.(*peerConn), nil
}

func (s *Switch) dialOneOf(ctx context.Context, peer types.PeerID, addrs []string) (*peerConn, error) {
	if err := s.acquireDialSlot(ctx); err != nil {
		return nil, err
	}
	defer s.releaseDialSlot()

	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.DialTimeout)
	defer cancel()

	attemptID := uuid.NewString()
	var derr DialError
	derr.Peer = peer.ShortString()

	for _, addr := range addrs {
		logger.Debug("dialing", "attempt", attemptID, "peer", peer.ShortString(), "addr", addr)

		raw, err := s.transport.Dial(dialCtx, addr)
		if err != nil {
			derr.Errors = append(derr.Errors, err)
			continue
		}

		upgraded, err := s.upgrader.Upgrade(dialCtx, raw, pkgif.DirOutbound, peer, func(ch pkgif.Channel, remotePeer types.PeerID) { s.dispatchChannel(remotePeer, ch) })
		if err != nil {
			_ = raw.Close()
			derr.Errors = append(derr.Errors, err)
			continue
		}

		pc := newPeerConn(upgraded, raw, s.cfg.Observer)
		s.addConn(peer, pc)
		logger.Info("dial succeeded", "attempt", attemptID, "peer", peer.ShortString(), "addr", addr)
		return pc, nil
	}

	return nil, &derr
}

// NewStream implements pkgif.Switch.NewStream: open a fresh channel on an
// already-established session and negotiate one of protocols. Unlike Dial
// it never establishes a new session.
func (s *Switch) NewStream(ctx context.Context, peer types.PeerID, protocols []types.ProtocolID) (io.ReadWriteCloser, types.ProtocolID, error) {
	if s.closed.Load() {
		return nil, "", ErrSwitchClosed
	}

	ps := s.getPeerState(peer)
	if ps == nil {
		return nil, "", ErrNoSession
	}
	c := ps.any()
	if c == nil {
		return nil, "", ErrNoSession
	}

	streamCtx, cancel := context.WithTimeout(ctx, s.cfg.NewStreamTimeout)
	defer cancel()

	ch, err := c.Session.OpenChannel(streamCtx, "")
	if err != nil {
		return nil, "", err
	}

	id, err := s.negotiator.SelectOne(ch, protocols)
	if err != nil {
		_ = ch.Reset()
		return nil, "", err
	}
	return ch, id, nil
}
