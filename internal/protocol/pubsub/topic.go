package pubsub

import (
	"context"
	"sync"

	pkgif "github.com/corenet/p2pstack/pkg/interfaces"
	pb "github.com/corenet/p2pstack/pkg/lib/proto/pubsub"
	"github.com/corenet/p2pstack/pkg/types"
)

// topic implements pkgif.Topic: a handler list plus the subset of Service
// behavior that's topic-scoped (publish, local delivery, close).
type topic struct {
	svc  *Service
	name string

	mu       sync.RWMutex
	handlers map[int]pkgif.MessageHandler
	nextID   int
	closed   bool
}

var _ pkgif.Topic = (*topic)(nil)

func newTopic(svc *Service, name string) *topic {
	return &topic{svc: svc, name: name, handlers: make(map[int]pkgif.MessageHandler)}
}

func (t *topic) Name() string { return t.name }

// Publish implements spec §4.5 "Publish".
func (t *topic) Publish(data []byte) (int, error) {
	t.mu.RLock()
	closed := t.closed
	t.mu.RUnlock()
	if closed {
		return 0, ErrTopicClosed
	}
	if len(data) > t.svc.cfg.MaxFrameSize {
		return 0, ErrMessageTooLarge
	}

	msg := &pb.Message{
		From:     t.svc.self.Bytes(),
		Data:     data,
		Seqno:    t.svc.nextSeqno(),
		TopicIDs: []string{t.name},
	}
	if t.svc.cfg.SignMessages {
		if err := signMessage(t.svc.priv, msg); err != nil {
			return 0, err
		}
	}

	id := messageID(msg.From, msg.Seqno)
	t.svc.seen.Add(id)
	if t.svc.msgCache != nil {
		t.svc.msgCache.Add(id, msg)
	}

	if t.svc.cfg.TriggerSelf {
		t.deliverLocal(t.svc.self, data)
	}

	rpc := &pb.RPC{Publish: []*pb.Message{msg}}
	ctx, cancel := context.WithTimeout(context.Background(), t.svc.cfg.SendTimeout)
	defer cancel()

	count := 0
	for _, p := range t.svc.forwardTargets(t.name) {
		sent, err := p.send(ctx, rpc)
		if err != nil {
			logger.Debug("publish send failed", "peer", p.id.ShortString(), "topic", t.name, "error", err)
			continue
		}
		if sent {
			count++
		}
	}
	return count, nil
}

// deliverLocal invokes every locally-registered handler for this topic.
func (t *topic) deliverLocal(from types.PeerID, data []byte) {
	t.mu.RLock()
	handlers := make([]pkgif.MessageHandler, 0, len(t.handlers))
	for _, h := range t.handlers {
		handlers = append(handlers, h)
	}
	t.mu.RUnlock()

	for _, h := range handlers {
		h(from, t.name, data)
	}
}

// Subscribe implements pkgif.Topic.Subscribe.
func (t *topic) Subscribe(h pkgif.MessageHandler) (cancel func()) {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.handlers[id] = h
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.handlers, id)
		t.mu.Unlock()
	}
}

// Peers implements pkgif.Topic.Peers.
func (t *topic) Peers() []types.PeerID {
	return t.svc.ListPeers(t.name)
}

// Close implements pkgif.Topic.Close.
func (t *topic) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.handlers = nil
	t.mu.Unlock()

	t.svc.leave(t.name)
	return nil
}
