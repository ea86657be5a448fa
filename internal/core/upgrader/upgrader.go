// Package upgrader runs the connection upgrade pipeline (spec §4.4
// "Upgrade pipeline"): raw byte stream -> Noise-secured -> Mplex-muxed.
package upgrader

import (
	"context"
	"fmt"
	"net"
	"time"

	pkgif "github.com/corenet/p2pstack/pkg/interfaces"
	"github.com/corenet/p2pstack/pkg/lib/log"
	"github.com/corenet/p2pstack/pkg/types"
)

var logger = log.Logger("core/upgrader")

// UpgradedConn is the result of a successful upgrade: a live Mplex Session
// plus which protocols and peers were negotiated.
type UpgradedConn struct {
	Session    pkgif.Session
	Security   types.ProtocolID
	MuxerID    types.ProtocolID
	LocalPeer  types.PeerID
	RemotePeer types.PeerID
}

// Upgrader turns a raw net.Conn into an UpgradedConn.
type Upgrader struct {
	identity   pkgif.Identity
	negotiator pkgif.Negotiator

	securityTransports []pkgif.SecureTransport
	muxers             []pkgif.Muxer

	negotiateTimeout time.Duration
	handshakeTimeout time.Duration
}

// New builds an Upgrader from a Config; identity is only used for logging
// context (the transports themselves already hold whatever identity they
// need).
func New(id pkgif.Identity, negotiator pkgif.Negotiator, cfg Config) (*Upgrader, error) {
	if id == nil {
		return nil, ErrNilIdentity
	}
	if len(cfg.SecurityTransports) == 0 {
		return nil, ErrNoSecurityTransport
	}
	if len(cfg.Muxers) == 0 {
		return nil, ErrNoMuxer
	}

	negotiateTimeout := cfg.NegotiateTimeout
	if negotiateTimeout <= 0 {
		negotiateTimeout = 60 * time.Second
	}
	handshakeTimeout := cfg.HandshakeTimeout
	if handshakeTimeout <= 0 {
		handshakeTimeout = 60 * time.Second
	}

	return &Upgrader{
		identity:           id,
		negotiator:         negotiator,
		securityTransports: cfg.SecurityTransports,
		muxers:             cfg.Muxers,
		negotiateTimeout:   negotiateTimeout,
		handshakeTimeout:   handshakeTimeout,
	}, nil
}

// Upgrade runs the full pipeline (spec §4.4):
//  1. multistream-select a security protocol
//  2. run its handshake, yielding a SecureConn with a verified remote PeerId
//  3. multistream-select a muxer
//  4. instantiate its Session
// Handler is invoked for every remotely-initiated channel on the resulting
// session, already told which peer the session belongs to — unlike
// pkgif.StreamHandler, which only sees the Channel. Upgrade can supply this
// because it knows the verified remote peer (from the Noise handshake)
// before the muxer session — and therefore its read loop — ever starts.
type Handler func(ch pkgif.Channel, remotePeer types.PeerID)

func (u *Upgrader) Upgrade(ctx context.Context, conn net.Conn, dir pkgif.Direction, remotePeer types.PeerID, handler Handler) (*UpgradedConn, error) {
	if dir == pkgif.DirOutbound && remotePeer.IsEmpty() {
		return nil, ErrNoPeerID
	}
	isServer := dir == pkgif.DirInbound

	if err := u.withDeadline(ctx, conn, u.negotiateTimeout); err != nil {
		conn.Close()
		return nil, err
	}
	secTransport, err := u.negotiateSecurity(conn, isServer)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %v", ErrSecurityNegotiation, err)
	}

	if err := u.withDeadline(ctx, conn, u.handshakeTimeout); err != nil {
		conn.Close()
		return nil, err
	}
	var secConn pkgif.SecureConn
	if isServer {
		secConn, err = secTransport.SecureInbound(ctx, conn)
	} else {
		secConn, err = secTransport.SecureOutbound(ctx, conn, remotePeer)
	}
	if err != nil {
		conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})
	logger.Debug("security handshake ok", "remotePeer", secConn.RemotePeer().ShortString())

	if err := u.withDeadline(ctx, secConn, u.negotiateTimeout); err != nil {
		secConn.Close()
		return nil, err
	}
	muxer, err := u.negotiateMuxer(secConn, isServer)
	if err != nil {
		secConn.Close()
		return nil, fmt.Errorf("%w: %v", ErrMuxerNegotiation, err)
	}
	_ = secConn.SetDeadline(time.Time{})

	var streamHandler pkgif.StreamHandler
	if handler != nil {
		streamHandler = func(ch pkgif.Channel) { handler(ch, secConn.RemotePeer()) }
	}
	sess, err := muxer.NewSession(secConn, isServer, streamHandler)
	if err != nil {
		secConn.Close()
		return nil, err
	}

	logger.Info("connection upgraded", "remotePeer", secConn.RemotePeer().ShortString(),
		"security", secTransport.ID(), "muxer", muxer.ID())

	return &UpgradedConn{
		Session:    sess,
		Security:   secTransport.ID(),
		MuxerID:    muxer.ID(),
		LocalPeer:  secConn.LocalPeer(),
		RemotePeer: secConn.RemotePeer(),
	}, nil
}

func (u *Upgrader) withDeadline(ctx context.Context, conn interface{ SetDeadline(time.Time) error }, d time.Duration) error {
	deadline := time.Now().Add(d)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	return conn.SetDeadline(deadline)
}

// negotiateSecurity picks a security transport via multistream-select (spec
// §4.4 step 2) and returns the matching SecureTransport.
func (u *Upgrader) negotiateSecurity(conn net.Conn, isServer bool) (pkgif.SecureTransport, error) {
	if isServer {
		regs := make([]pkgif.Registration, len(u.securityTransports))
		for i, st := range u.securityTransports {
			regs[i] = pkgif.Registration{ID: st.ID()}
		}
		id, err := u.negotiator.Negotiate(conn, regs)
		if err != nil {
			return nil, err
		}
		return u.findSecurity(id)
	}

	ids := make([]types.ProtocolID, len(u.securityTransports))
	for i, st := range u.securityTransports {
		ids[i] = st.ID()
	}
	id, err := u.negotiator.SelectOne(conn, ids)
	if err != nil {
		return nil, err
	}
	return u.findSecurity(id)
}

func (u *Upgrader) findSecurity(id types.ProtocolID) (pkgif.SecureTransport, error) {
	for _, st := range u.securityTransports {
		if st.ID() == id {
			return st, nil
		}
	}
	return nil, fmt.Errorf("negotiated security protocol %s not configured", id)
}

// negotiateMuxer picks a stream muxer via multistream-select over the
// already-secured connection (spec §4.4 step 4).
func (u *Upgrader) negotiateMuxer(conn pkgif.SecureConn, isServer bool) (pkgif.Muxer, error) {
	if isServer {
		regs := make([]pkgif.Registration, len(u.muxers))
		for i, m := range u.muxers {
			regs[i] = pkgif.Registration{ID: m.ID()}
		}
		id, err := u.negotiator.Negotiate(conn, regs)
		if err != nil {
			return nil, err
		}
		return u.findMuxer(id)
	}

	ids := make([]types.ProtocolID, len(u.muxers))
	for i, m := range u.muxers {
		ids[i] = m.ID()
	}
	id, err := u.negotiator.SelectOne(conn, ids)
	if err != nil {
		return nil, err
	}
	return u.findMuxer(id)
}

func (u *Upgrader) findMuxer(id types.ProtocolID) (pkgif.Muxer, error) {
	for _, m := range u.muxers {
		if m.ID() == id {
			return m, nil
		}
	}
	return nil, fmt.Errorf("negotiated muxer %s not configured", id)
}
