package mplex

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/corenet/p2pstack/internal/util/leaktrack"
	pkgif "github.com/corenet/p2pstack/pkg/interfaces"
	"github.com/corenet/p2pstack/pkg/types"
)

var _ pkgif.Channel = (*channel)(nil)

// defaultIdleTimeout is the inactivity window after which a channel resets
// itself (spec §4.2 "Per-channel idle timer").
const defaultIdleTimeout = 5 * time.Minute

// defaultReadBufferSize bounds buffered-but-undelivered remote data; a
// channel whose buffer would overrun it is reset (spec §4.2 "Backpressure").
const defaultReadBufferSize = 4 << 20

// channel is one logical bidirectional stream multiplexed over a Session.
type channel struct {
	id          types.ChannelID
	isInitiator bool
	name        string

	session  *session
	clock    clock.Clock
	observer leaktrack.Observer
	trackID  string

	mu         sync.Mutex
	cond       *sync.Cond
	buf        bytes.Buffer
	closedLocal bool // local write side closed (sent Close or Reset)
	eofRemote   bool // remote side closed (received Close or Reset)
	didReset    bool

	idleTimer *clock.Timer
	idleTO    time.Duration

	deadline       time.Time
	readDeadline   time.Time
	writeDeadline  time.Time
}

func newChannel(s *session, id types.ChannelID, isInitiator bool, name string) *channel {
	c := &channel{
		id:          id,
		isInitiator: isInitiator,
		name:        name,
		session:     s,
		clock:       s.clock,
		observer:    s.observer,
		idleTO:      defaultIdleTimeout,
	}
	c.trackID = fmt.Sprintf("%s/%v/%p", id, isInitiator, c)
	c.cond = sync.NewCond(&c.mu)
	c.idleTimer = c.clock.Timer(c.idleTO)
	c.observer.OnOpen(leaktrack.KindChannel, c.trackID)
	go c.watchIdle()
	return c
}

func (c *channel) watchIdle() {
	for range c.idleTimer.C {
		c.mu.Lock()
		done := c.closedLocal && c.eofRemote
		c.mu.Unlock()
		if done {
			return
		}
		_ = c.Reset()
		return
	}
}

func (c *channel) resetIdle() {
	c.idleTimer.Reset(c.idleTO)
}

func (c *channel) ID() types.ChannelID { return c.id }

// writeTags picks the tag triplet this side must use when
// writing, based on which side opened the channel (spec §4.2 "Directional
// tags").
func (c *channel) writeTags() (msg, closeTag, resetTag tag) {
	if c.isInitiator {
		return tagMsgInitiator, tagCloseInitiator, tagResetInitiator
	}
	return tagMsgReceiver, tagCloseReceiver, tagResetReceiver
}

func (c *channel) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for c.buf.Len() == 0 {
		if c.didReset {
			return 0, ErrChannelReset
		}
		if c.eofRemote {
			return 0, io.EOF
		}
		c.cond.Wait()
	}
	n, err := c.buf.Read(p)
	if err == nil {
		c.resetIdle()
	}
	return n, err
}

func (c *channel) Write(p []byte) (int, error) {
	c.mu.Lock()
	if c.didReset {
		c.mu.Unlock()
		return 0, ErrChannelReset
	}
	if c.closedLocal {
		c.mu.Unlock()
		return 0, ErrChannelClosed
	}
	c.mu.Unlock()

	msgTag, _, _ := c.writeTags()
	written := 0
	for len(p) > 0 {
		chunk := p
		if len(chunk) > maxMessageSize {
			chunk = chunk[:maxMessageSize]
		}
		if err := c.session.writeFrameLocked(uint64(c.id), msgTag, chunk); err != nil {
			return written, err
		}
		written += len(chunk)
		p = p[len(chunk):]
	}
	c.resetIdle()
	return written, nil
}

// CloseWrite half-closes the local write side (spec: local close()).
func (c *channel) CloseWrite() error {
	c.mu.Lock()
	if c.closedLocal {
		c.mu.Unlock()
		return nil
	}
	c.closedLocal = true
	c.mu.Unlock()

	_, closeTag, _ := c.writeTags()
	return c.session.writeFrameLocked(uint64(c.id), closeTag, nil)
}

// Close is the io.Closer contract: it half-closes locally and waits for no
// further action — draining happens via Read until io.EOF.
func (c *channel) Close() error {
	return c.CloseWrite()
}

// Reset tears the channel down in both directions immediately (spec: Local
// reset()).
func (c *channel) Reset() error {
	c.mu.Lock()
	if c.didReset {
		c.mu.Unlock()
		return nil
	}
	c.didReset = true
	c.closedLocal = true
	c.eofRemote = true
	c.buf.Reset()
	c.mu.Unlock()
	c.cond.Broadcast()
	c.idleTimer.Stop()
	c.observer.OnClose(leaktrack.KindChannel, c.trackID)

	_, _, resetTag := c.writeTags()
	// Best-effort: the session may already be gone.
	_ = c.session.writeFrameLocked(uint64(c.id), resetTag, nil)
	c.session.removeChannel(c.id, c.isInitiator)
	return nil
}

// handleRemoteMessage pushes remotely-sent bytes into the read buffer.
func (c *channel) handleRemoteMessage(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.didReset || c.eofRemote {
		return
	}
	if c.buf.Len()+len(data) > defaultReadBufferSize {
		// Buffer overrun: reset rather than deadlock the read loop.
		c.didReset = true
		c.closedLocal = true
		c.eofRemote = true
		c.buf.Reset()
		c.cond.Broadcast()
		c.observer.OnClose(leaktrack.KindChannel, c.trackID)
		return
	}
	c.buf.Write(data)
	c.cond.Broadcast()
	c.resetIdle()
}

// handleRemoteClose marks the remote side closed; buffered data survives.
func (c *channel) handleRemoteClose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.didReset {
		return
	}
	c.eofRemote = true
	c.cond.Broadcast()
}

// handleRemoteReset tears down both directions and discards the buffer.
func (c *channel) handleRemoteReset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.didReset {
		return
	}
	c.didReset = true
	c.closedLocal = true
	c.eofRemote = true
	c.buf.Reset()
	c.cond.Broadcast()
	c.idleTimer.Stop()
	c.observer.OnClose(leaktrack.KindChannel, c.trackID)
}

// isFullyClosed reports whether the channel may be dropped from the
// session's tables (spec: closedLocal ∧ eofRemote ∧ buffer drained).
func (c *channel) isFullyClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closedLocal && c.eofRemote && c.buf.Len() == 0
}

func (c *channel) SetDeadline(t time.Time) error {
	c.mu.Lock()
	c.deadline = t
	c.mu.Unlock()
	return nil
}

func (c *channel) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	c.readDeadline = t
	c.mu.Unlock()
	return nil
}

func (c *channel) SetWriteDeadline(t time.Time) error {
	c.mu.Lock()
	c.writeDeadline = t
	c.mu.Unlock()
	return nil
}
