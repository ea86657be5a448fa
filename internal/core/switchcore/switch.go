package switchcore

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"

	"github.com/corenet/p2pstack/internal/core/upgrader"
	pkgif "github.com/corenet/p2pstack/pkg/interfaces"
	"github.com/corenet/p2pstack/pkg/lib/log"
	"github.com/corenet/p2pstack/pkg/types"
)

var logger = log.Logger("core/switchcore")

type registration struct {
	id      types.ProtocolID
	matcher pkgif.ProtocolMatcher
	handler func(ch pkgif.Channel, id types.ProtocolID, remotePeer types.PeerID)
}

// Switch is the concrete pkgif.Switch implementation (spec §4.4). It owns
// no transport of its own — Dial and Listen delegate raw byte-stream setup
// to an injected pkgif.Transport and run every accepted or dialed
// connection through an Upgrader before it becomes a usable session.
type Switch struct {
	localPeer  types.PeerID
	upgrader   *upgrader.Upgrader
	negotiator pkgif.Negotiator
	transport  pkgif.Transport
	cfg        Config

	mu    sync.RWMutex
	peers map[types.PeerID]*peerState

	handlersMu sync.RWMutex
	handlers   []registration

	notifieesMu sync.RWMutex
	notifiees   []pkgif.ConnNotifiee

	dialGroup singleflight.Group
	dialSem   chan struct{}

	listenersMu sync.Mutex
	listeners   []pkgif.Listener

	closed atomic.Bool
}

var _ pkgif.Switch = (*Switch)(nil)

// New builds a Switch. transport may be nil if the caller only intends to
// use an already-established set of sessions (e.g. tests) — Dial/Listen
// then fail with ErrNoTransport.
func New(localPeer types.PeerID, up *upgrader.Upgrader, negotiator pkgif.Negotiator, transport pkgif.Transport, cfg Config) *Switch {
	cfg = cfg.withDefaults()
	return &Switch{
		localPeer:  localPeer,
		upgrader:   up,
		negotiator: negotiator,
		transport:  transport,
		cfg:        cfg,
		peers:      make(map[types.PeerID]*peerState),
		dialSem:    make(chan struct{}, cfg.MaxConcurrentDials),
	}
}

func (s *Switch) LocalPeer() types.PeerID {
	return s.localPeer
}

// SetHandler registers an application protocol for inbound channels (spec
// §6 "Application surface").
func (s *Switch) SetHandler(id types.ProtocolID, matcher pkgif.ProtocolMatcher, handler func(ch pkgif.Channel, id types.ProtocolID, remotePeer types.PeerID)) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.handlers = append(s.handlers, registration{id: id, matcher: matcher, handler: handler})
}

func (s *Switch) registrations() []pkgif.Registration {
	s.handlersMu.RLock()
	defer s.handlersMu.RUnlock()
	regs := make([]pkgif.Registration, len(s.handlers))
	for i, r := range s.handlers {
		regs[i] = pkgif.Registration{ID: r.id, Matcher: r.matcher}
	}
	return regs
}

func (s *Switch) findHandler(id types.ProtocolID) func(pkgif.Channel, types.ProtocolID, types.PeerID) {
	s.handlersMu.RLock()
	defer s.handlersMu.RUnlock()
	for _, r := range s.handlers {
		if r.id == id || (r.matcher != nil && r.matcher(id)) {
			return r.handler
		}
	}
	return nil
}

func (s *Switch) Notify(n pkgif.ConnNotifiee) {
	s.notifieesMu.Lock()
	defer s.notifieesMu.Unlock()
	s.notifiees = append(s.notifiees, n)
}

// Connections reports the number of live sessions to peer.
func (s *Switch) Connections(peer types.PeerID) int {
	ps := s.getPeerState(peer)
	if ps == nil {
		return 0
	}
	return ps.len()
}

// Disconnect closes every session to peer (spec §4.4 "Disconnect"), which
// in turn resets every open channel on them.
func (s *Switch) Disconnect(peer types.PeerID) error {
	ps := s.getPeerState(peer)
	if ps == nil {
		return nil
	}
	var err error
	for _, c := range ps.snapshot() {
		err = multierr.Append(err, c.Close())
		s.removeConn(peer, c)
	}
	return err
}

// dispatchChannel is installed as the muxer's StreamHandler on every
// upgraded session: it runs multistream-select as the responder over the
// new channel and hands it off to whichever registered protocol matched
// (spec §4.4 "Per-channel dispatch").
func (s *Switch) dispatchChannel(remotePeer types.PeerID, ch pkgif.Channel) {
	id, err := s.negotiator.Negotiate(ch, s.registrations())
	if err != nil {
		logger.Debug("channel negotiation failed, closing", "error", err)
		_ = ch.Reset()
		return
	}
	handler := s.findHandler(id)
	if handler == nil {
		logger.Warn("negotiated protocol has no handler", "protocol", id)
		_ = ch.Reset()
		return
	}
	handler(ch, id, remotePeer)
}

// Close tears the Switch down: stops accepting, closes every listener and
// every session. Idempotent.
func (s *Switch) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.listenersMu.Lock()
	listeners := s.listeners
	s.listeners = nil
	s.listenersMu.Unlock()

	s.mu.Lock()
	peerStates := make(map[types.PeerID]*peerState, len(s.peers))
	for k, v := range s.peers {
		peerStates[k] = v
	}
	s.mu.Unlock()

	var err error
	for _, l := range listeners {
		err = multierr.Append(err, l.Close())
	}
	for peer, ps := range peerStates {
		for _, c := range ps.snapshot() {
			err = multierr.Append(err, c.Close())
			s.removeConn(peer, c)
		}
	}
	return err
}

func (s *Switch) acquireDialSlot(ctx context.Context) error {
	select {
	case s.dialSem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Switch) releaseDialSlot() {
	<-s.dialSem
}
