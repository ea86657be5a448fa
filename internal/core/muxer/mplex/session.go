package mplex

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	temperrcatcher "github.com/jbenet/go-temp-err-catcher"

	"github.com/corenet/p2pstack/internal/util/leaktrack"
	pkgif "github.com/corenet/p2pstack/pkg/interfaces"
	"github.com/corenet/p2pstack/pkg/types"
)

var _ pkgif.Session = (*session)(nil)

// session demultiplexes one SecureConnection into many channels. Writes are
// serialized with writeMu; a single goroutine runs the read loop (spec §4.2
// "Session read loop").
type session struct {
	conn     pkgif.SecureConn
	r        *bufio.Reader
	clock    clock.Clock
	observer leaktrack.Observer

	writeMu sync.Mutex

	mu           sync.Mutex
	localChans   map[types.ChannelID]*channel // channels we opened
	remoteChans  map[types.ChannelID]*channel // channels the remote opened
	nextLocalID  uint64
	closed       bool

	handler  pkgif.StreamHandler
	accepted chan *channel

	closeOnce sync.Once
	closeErr  atomic.Value
	done      chan struct{}
}

// newSession wraps conn and starts its read loop. handler, if non-nil, is
// invoked for every remotely-opened channel instead of going through
// AcceptChannel. obs is notified of every channel this session opens or
// accepts (spec §9 "Global trackers" — injected observer, no-op by
// default).
func newSession(conn pkgif.SecureConn, clk clock.Clock, obs leaktrack.Observer, handler pkgif.StreamHandler) *session {
	if clk == nil {
		clk = clock.New()
	}
	if obs == nil {
		obs = leaktrack.NoOp
	}
	s := &session{
		conn:        conn,
		r:           bufio.NewReader(conn),
		clock:       clk,
		observer:    obs,
		localChans:  make(map[types.ChannelID]*channel),
		remoteChans: make(map[types.ChannelID]*channel),
		handler:     handler,
		accepted:    make(chan *channel, 32),
		done:        make(chan struct{}),
	}
	go s.readLoop()
	return s
}

// writeFrameLocked serializes one frame onto the wire. Never called while a
// channel's own read path is blocked (spec §4.2 "Backpressure").
func (s *session) writeFrameLocked(id uint64, t tag, payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.isClosed() {
		return ErrSessionClosed
	}
	return writeFrame(s.conn, id, t, payload)
}

func (s *session) OpenChannel(ctx context.Context, name string) (pkgif.Channel, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	id := types.ChannelID(s.nextLocalID)
	s.nextLocalID++
	ch := newChannel(s, id, true, name)
	s.localChans[id] = ch
	s.mu.Unlock()

	if err := s.writeFrameLocked(uint64(id), tagNewStream, []byte(name)); err != nil {
		s.mu.Lock()
		delete(s.localChans, id)
		s.mu.Unlock()
		return nil, err
	}
	return ch, nil
}

func (s *session) AcceptChannel() (pkgif.Channel, error) {
	select {
	case ch, ok := <-s.accepted:
		if !ok {
			return nil, ErrSessionClosed
		}
		return ch, nil
	case <-s.done:
		return nil, ErrSessionClosed
	}
}

func (s *session) IsClosed() bool { return s.isClosed() }

func (s *session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *session) NumChannels() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.localChans) + len(s.remoteChans)
}

func (s *session) removeChannel(id types.ChannelID, isInitiator bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if isInitiator {
		delete(s.localChans, id)
	} else {
		delete(s.remoteChans, id)
	}
}

// Close shuts the session down, resetting every open channel (spec §4.2
// "Session close resets all open channels").
func (s *session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		locals := make([]*channel, 0, len(s.localChans))
		for _, c := range s.localChans {
			locals = append(locals, c)
		}
		remotes := make([]*channel, 0, len(s.remoteChans))
		for _, c := range s.remoteChans {
			remotes = append(remotes, c)
		}
		s.mu.Unlock()

		for _, c := range locals {
			_ = c.Reset()
		}
		for _, c := range remotes {
			_ = c.Reset()
		}

		close(s.done)
		err = s.conn.Close()
	})
	return err
}

// readLoop is the session's single reader task (spec §4.2 "Session read loop").
func (s *session) readLoop() {
	var catcher temperrcatcher.TempErrCatcher
	for {
		f, err := readFrame(s.r)
		if err != nil {
			if catcher.IsTemporary(err) {
				continue
			}
			s.fatal(err)
			return
		}
		if err := s.dispatch(f); err != nil {
			s.fatal(err)
			return
		}
	}
}

func (s *session) fatal(err error) {
	s.closeErr.Store(err)
	_ = s.Close()
}

// dispatch routes one decoded frame to its channel, validating that the
// tag's implied direction matches who actually opened the channel — a
// mismatch is treated as fatal for the session (spec §9 REDESIGN FLAGS).
func (s *session) dispatch(f frame) error {
	id := types.ChannelID(f.id)

	if f.tag == tagNewStream {
		s.mu.Lock()
		if _, exists := s.remoteChans[id]; exists {
			s.mu.Unlock()
			return fmt.Errorf("mplex: duplicate New for channel %s", id)
		}
		ch := newChannel(s, id, false, string(f.payload))
		s.remoteChans[id] = ch
		s.mu.Unlock()

		if s.handler != nil {
			go s.handler(ch)
		} else {
			select {
			case s.accepted <- ch:
			default:
				// Backlog full: accept queue overrun resets the new
				// channel rather than blocking the single read loop.
				_ = ch.Reset()
			}
		}
		return nil
	}

	// tagMsgReceiver/CloseReceiver/ResetReceiver (odd) were written by a
	// receiver, i.e. they only make sense for channels WE opened.
	// tagMsgInitiator/CloseInitiator/ResetInitiator (even, non-zero) were
	// written by an initiator, i.e. they only make sense for channels the
	// REMOTE opened.
	receiverTag := f.tag == tagMsgReceiver || f.tag == tagCloseReceiver || f.tag == tagResetReceiver

	s.mu.Lock()
	local, haveLocal := s.localChans[id]
	remote, haveRemote := s.remoteChans[id]
	s.mu.Unlock()

	if !haveLocal && !haveRemote {
		// Unknown channel id for a non-New frame: silently drop (spec
		// §4.2 — late traffic after reset).
		return nil
	}

	// The tag's implied side must agree with who actually opened the
	// channel; a mismatch is fatal for the session (spec §9 REDESIGN
	// FLAGS), not something to silently route around.
	var ch *channel
	switch {
	case receiverTag && haveLocal:
		ch = local
	case !receiverTag && haveRemote:
		ch = remote
	default:
		return fmt.Errorf("%w: channel %s", errDirectionViolation, id)
	}

	switch f.tag {
	case tagMsgReceiver, tagMsgInitiator:
		ch.handleRemoteMessage(f.payload)
	case tagCloseReceiver, tagCloseInitiator:
		ch.handleRemoteClose()
	case tagResetReceiver, tagResetInitiator:
		ch.handleRemoteReset()
		s.removeChannel(id, ch.isInitiator)
	default:
		return ErrInvalidMessageType
	}
	return nil
}

var _ io.Closer = (*session)(nil)
