package pubsub

import (
	"bufio"
	"context"
	"io"
	"sync"
	"time"

	pb "github.com/corenet/p2pstack/pkg/lib/proto/pubsub"
	"github.com/corenet/p2pstack/pkg/types"
)

// peer is the per-peer state described in spec §4.5: a lazily-opened send
// channel, a read loop over whichever channel carries traffic from this
// peer, two deduplication caches, and the set of topics this peer has told
// us it's subscribed to.
type peer struct {
	svc *Service
	id  types.PeerID

	mu     sync.Mutex
	ch     io.ReadWriteCloser
	closed bool

	sent     *fingerprintCache
	received *fingerprintCache

	topicsMu sync.RWMutex
	topics   map[string]struct{}

	failuresMu   sync.Mutex
	failures     int
	backoffUntil time.Time
}

func newPeer(svc *Service, id types.PeerID) *peer {
	return &peer{
		svc:      svc,
		id:       id,
		sent:     newFingerprintCache(svc.cfg.PeerCacheSize, svc.cfg.PeerCacheTTL),
		received: newFingerprintCache(svc.cfg.PeerCacheSize, svc.cfg.PeerCacheTTL),
		topics:   make(map[string]struct{}),
	}
}

func (p *peer) inBackoff() bool {
	p.failuresMu.Lock()
	defer p.failuresMu.Unlock()
	return !p.backoffUntil.IsZero() && p.svc.clock.Now().Before(p.backoffUntil)
}

func (p *peer) recordSuccess() {
	p.failuresMu.Lock()
	p.failures = 0
	p.backoffUntil = time.Time{}
	p.failuresMu.Unlock()
}

// recordFailure closes the send connection so the next send reopens it
// (spec §4.5 "Errors": send failures close the offending send connection
// but never propagate to the publisher). Past MaxSendFailures consecutive
// failures it also backs the peer off for a while, the supplemented
// "per-peer send backoff on repeated write failure".
func (p *peer) recordFailure() {
	p.mu.Lock()
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	p.mu.Unlock()

	p.failuresMu.Lock()
	p.failures++
	if p.failures >= p.svc.cfg.MaxSendFailures {
		p.backoffUntil = p.svc.clock.Now().Add(p.svc.cfg.FailureBackoff)
	}
	p.failuresMu.Unlock()
}

// attach installs ch as this peer's active channel (inbound accept, or the
// result of a fresh outbound NewStream) and starts its read loop. If a
// channel is already attached the older one is closed first.
func (p *peer) attach(ch io.ReadWriteCloser) {
	p.mu.Lock()
	old := p.ch
	p.ch = ch
	p.closed = false
	p.mu.Unlock()

	if old != nil && old != ch {
		_ = old.Close()
	}

	p.svc.wg.Add(1)
	go p.readLoop(ch)
	go p.svc.announceSubscriptions(p)
}

// ensureConn returns the peer's send channel, lazily opening one over the
// Switch if none is currently open.
func (p *peer) ensureConn(ctx context.Context) (io.ReadWriteCloser, error) {
	p.mu.Lock()
	if p.ch != nil && !p.closed {
		ch := p.ch
		p.mu.Unlock()
		return ch, nil
	}
	p.mu.Unlock()

	ch, _, err := p.svc.sw.NewStream(ctx, p.id, []types.ProtocolID{types.ProtocolID(p.svc.cfg.ProtocolID)})
	if err != nil {
		return nil, err
	}

	p.attach(ch)
	return ch, nil
}

// send best-effort writes rpc to the peer, skipping it (and reporting ok)
// while the peer is in send backoff or if its raw bytes were already sent
// to this peer (spec §4.5 Publish step 3: "skipping peers whose send
// fingerprint cache already contains the encoded bytes").
func (p *peer) send(ctx context.Context, rpc *pb.RPC) (sent bool, err error) {
	if p.inBackoff() {
		return false, nil
	}

	ch, err := p.ensureConn(ctx)
	if err != nil {
		return false, err
	}

	if dl, ok := ctx.Deadline(); ok {
		_ = setWriteDeadline(ch, dl)
	}

	raw, err := marshalRPC(rpc)
	if err != nil {
		return false, err
	}
	fp := fingerprint(raw)
	if p.sent.Has(fp) {
		return false, nil
	}

	if err := writeRawRPC(ch, raw); err != nil {
		p.recordFailure()
		return false, err
	}
	p.sent.Add(fp)
	p.recordSuccess()
	return true, nil
}

// setWriteDeadline applies a deadline if ch exposes SetWriteDeadline (every
// muxer Channel does; a bare net.Conn used in tests may too).
func setWriteDeadline(ch io.Writer, deadline time.Time) error {
	type deadliner interface{ SetWriteDeadline(time.Time) error }
	if d, ok := ch.(deadliner); ok {
		return d.SetWriteDeadline(deadline)
	}
	return nil
}

// readLoop implements spec §4.5's "Receive loop (per peer)".
func (p *peer) readLoop(ch io.ReadWriteCloser) {
	defer p.svc.wg.Done()
	defer func() {
		p.mu.Lock()
		if p.ch == ch {
			p.closed = true
		}
		p.mu.Unlock()
	}()

	br := bufio.NewReader(ch)
	for {
		rpc, raw, err := readRPC(br, p.svc.cfg.MaxFrameSize)
		if err != nil {
			return
		}

		fp := fingerprint(raw)
		if p.received.Has(fp) {
			continue
		}

		for _, sub := range rpc.Subscriptions {
			p.topicsMu.Lock()
			if sub.Subscribe {
				p.topics[sub.Topicid] = struct{}{}
			} else {
				delete(p.topics, sub.Topicid)
			}
			p.topicsMu.Unlock()
			p.svc.onPeerSubscription(p, sub.Topicid, sub.Subscribe)
		}

		for _, msg := range rpc.Publish {
			p.svc.handleMessage(p, msg)
		}

		if rpc.Control != nil {
			p.svc.handleControl(p, rpc.Control)
		}

		p.received.Add(fp)
	}
}

// subscribedTo reports whether this peer has told us it's subscribed to
// topic.
func (p *peer) subscribedTo(topic string) bool {
	p.topicsMu.RLock()
	defer p.topicsMu.RUnlock()
	_, ok := p.topics[topic]
	return ok
}

func (p *peer) subscribedTopics() []string {
	p.topicsMu.RLock()
	defer p.topicsMu.RUnlock()
	out := make([]string, 0, len(p.topics))
	for t := range p.topics {
		out = append(out, t)
	}
	return out
}

func (p *peer) close() {
	p.mu.Lock()
	ch := p.ch
	p.ch = nil
	p.closed = true
	p.mu.Unlock()
	if ch != nil {
		_ = ch.Close()
	}
}
