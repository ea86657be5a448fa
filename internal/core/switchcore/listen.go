package switchcore

import (
	"context"
	"net"

	temperrcatcher "github.com/jbenet/go-temp-err-catcher"
	"github.com/jbenet/goprocess"

	pkgif "github.com/corenet/p2pstack/pkg/interfaces"
	"github.com/corenet/p2pstack/pkg/types"
)

var emptyPeer types.PeerID

// Listen opens addr on the configured transport and starts accepting
// inbound connections; each is run through the same upgrade pipeline as a
// dialed connection. Listen is not part of pkgif.Switch — it's bootstrap
// surface a caller (or the fx module) invokes once at startup.
func (s *Switch) Listen(addr string) error {
	if s.closed.Load() {
		return ErrSwitchClosed
	}
	if s.transport == nil {
		return ErrNoTransport
	}

	l, err := s.transport.Listen(addr)
	if err != nil {
		return err
	}

	s.listenersMu.Lock()
	s.listeners = append(s.listeners, l)
	s.listenersMu.Unlock()

	goprocess.Go(func(proc goprocess.Process) {
		s.acceptLoop(l)
	})

	logger.Info("listening", "addr", addr)
	return nil
}

// acceptLoop runs until the listener is closed (either because the Switch
// is shutting down or the transport gave up). Temporary accept errors are
// swallowed and retried rather than tearing the loop down.
func (s *Switch) acceptLoop(l pkgif.Listener) {
	catcher := temperrcatcher.TempErrCatcher{}
	for {
		raw, err := l.Accept()
		if err != nil {
			if s.closed.Load() {
				return
			}
			if catcher.IsTemporary(err) {
				continue
			}
			logger.Debug("listener accept failed, stopping loop", "error", err)
			return
		}

		go s.acceptOne(raw)
	}
}

// acceptOne runs the upgrade pipeline on an inbound connection. The remote
// peer id is unknown until the Noise handshake completes, so it's passed
// empty; the resulting session is registered under whatever peer id the
// handshake actually verified.
func (s *Switch) acceptOne(raw net.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.DialTimeout)
	defer cancel()

	upgraded, err := s.upgrader.Upgrade(ctx, raw, pkgif.DirInbound, emptyPeer, func(ch pkgif.Channel, remotePeer types.PeerID) { s.dispatchChannel(remotePeer, ch) })
	if err != nil {
		logger.Debug("inbound upgrade failed", "error", err)
		_ = raw.Close()
		return
	}

	pc := newPeerConn(upgraded, raw, s.cfg.Observer)
	s.addConn(upgraded.RemotePeer, pc)
	logger.Info("accepted connection", "peer", upgraded.RemotePeer.ShortString())
}
