package pubsub

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"

	pkgif "github.com/corenet/p2pstack/pkg/interfaces"
	"github.com/corenet/p2pstack/pkg/lib/crypto"
	"github.com/corenet/p2pstack/pkg/lib/log"
	pb "github.com/corenet/p2pstack/pkg/lib/proto/pubsub"
	"github.com/corenet/p2pstack/pkg/types"
)

var logger = log.Logger("protocol/pubsub")

// Service implements pkgif.PubSub on top of a switchcore.Switch (spec
// §4.5). It owns the per-peer connection table, the joined-topic set and,
// for the GossipSub variant, the mesh and heartbeat.
type Service struct {
	sw   pkgif.Switch
	priv crypto.PrivateKey
	self types.PeerID
	cfg  *Config

	clock clock.Clock

	mu     sync.RWMutex
	topics map[string]*topic
	peers  map[types.PeerID]*peer
	closed bool

	validators *validatorSet
	seen       *idCache

	mesh      *meshPeers
	heartbeat *heartbeat
	msgCache  *messageCache

	seqnoMu sync.Mutex
	seqno   uint64

	wg sync.WaitGroup
}

var _ pkgif.PubSub = (*Service)(nil)

// New builds a Service wired to sw, using priv to sign published messages
// when cfg.SignMessages is set.
func New(sw pkgif.Switch, priv crypto.PrivateKey, cfg *Config) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	svc := &Service{
		sw:         sw,
		priv:       priv,
		self:       sw.LocalPeer(),
		cfg:        cfg,
		clock:      clock.New(),
		topics:     make(map[string]*topic),
		peers:      make(map[types.PeerID]*peer),
		validators: newValidatorSet(),
		seen:       newIDCache(cfg.SeenCacheSize, cfg.SeenCacheTTL),
	}
	if cfg.Variant == GossipSub {
		svc.mesh = newMeshPeers(cfg.D, cfg.Dlo, cfg.Dhi)
		svc.msgCache = newMessageCache(cfg.SeenCacheSize, cfg.SeenCacheTTL)
		svc.heartbeat = newHeartbeat(svc, cfg.HeartbeatInterval, svc.clock)
	}

	sw.SetHandler(types.ProtocolID(cfg.ProtocolID), nil, svc.handleInboundChannel)
	sw.Notify(svc)

	if svc.heartbeat != nil {
		svc.heartbeat.Start()
	}
	return svc
}

// handleInboundChannel attaches a freshly-accepted channel to the sending
// peer's state, starting its read loop.
func (s *Service) handleInboundChannel(ch pkgif.Channel, _ types.ProtocolID, remotePeer types.PeerID) {
	s.getOrCreatePeer(remotePeer).attach(ch)
}

func (s *Service) getOrCreatePeer(id types.PeerID) *peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.peers[id]
	if !ok {
		p = newPeer(s, id)
		s.peers[id] = p
	}
	return p
}

func (s *Service) getPeer(id types.PeerID) *peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peers[id]
}

func (s *Service) allPeers() []*peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*peer, 0, len(s.peers))
	for _, p := range s.peers {
		out = append(out, p)
	}
	return out
}

// Connected implements pkgif.ConnNotifiee: eagerly open this peer's pubsub
// channel so subscription state can be exchanged before either side has
// anything to publish, mirroring how the rest of the pubsub ecosystem
// bootstraps a freshly connected peer.
func (s *Service) Connected(id types.PeerID) {
	p := s.getOrCreatePeer(id)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SendTimeout)
		defer cancel()
		if _, err := p.ensureConn(ctx); err != nil {
			logger.Debug("failed to open pubsub channel to newly connected peer", "peer", id.ShortString(), "error", err)
		}
	}()
}

// Joined implements pkgif.ConnNotifiee: no-op, Connected already opens the
// peer's pubsub channel.
func (s *Service) Joined(types.PeerID) {}

// Disconnected implements pkgif.ConnNotifiee: no-op, the peer's send
// channel outlives any one underlying connection and will be reopened on
// next use if the Switch dials again.
func (s *Service) Disconnected(types.PeerID) {}

// Left implements pkgif.ConnNotifiee: drop all per-peer pubsub state once
// the Switch has no more connections to this peer at all.
func (s *Service) Left(id types.PeerID) {
	s.mu.Lock()
	p, ok := s.peers[id]
	if ok {
		delete(s.peers, id)
	}
	s.mu.Unlock()
	if ok {
		p.close()
	}
	if s.mesh != nil {
		s.mu.RLock()
		names := make([]string, 0, len(s.topics))
		for name := range s.topics {
			names = append(names, name)
		}
		s.mu.RUnlock()
		for _, name := range names {
			s.mesh.Remove(name, id)
		}
	}
}

// Join implements pkgif.PubSub.Join (spec §4.5).
func (s *Service) Join(name string) (pkgif.Topic, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrServiceClosed
	}
	if _, ok := s.topics[name]; ok {
		s.mu.Unlock()
		return nil, ErrTopicAlreadyJoined
	}

	t := newTopic(s, name)
	s.topics[name] = t
	peers := s.peersLocked()
	s.mu.Unlock()

	for _, p := range peers {
		go s.sendSubscription(p, name, true)
	}
	return t, nil
}

func (s *Service) peersLocked() []*peer {
	out := make([]*peer, 0, len(s.peers))
	for _, p := range s.peers {
		out = append(out, p)
	}
	return out
}

func (s *Service) leave(name string) {
	s.mu.Lock()
	delete(s.topics, name)
	peers := s.peersLocked()
	s.mu.Unlock()

	if s.mesh != nil {
		s.mesh.Clear(name)
	}
	for _, p := range peers {
		go s.sendSubscription(p, name, false)
	}
}

// Topics implements the supplemented "topic listing" introspection.
func (s *Service) Topics() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.topics))
	for name := range s.topics {
		out = append(out, name)
	}
	return out
}

func (s *Service) getTopic(name string) *topic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.topics[name]
}

// RegisterValidator implements pkgif.PubSub.RegisterValidator.
func (s *Service) RegisterValidator(topic string, v pkgif.ValidatorFunc) {
	s.validators.register(topic, v)
}

// UnregisterValidator implements pkgif.PubSub.UnregisterValidator.
func (s *Service) UnregisterValidator(topic string) {
	s.validators.unregister(topic)
}

// ListPeers returns the peers known to be subscribed to topicName (the
// supplemented "peer listing" introspection).
func (s *Service) ListPeers(topicName string) []types.PeerID {
	var out []types.PeerID
	for _, p := range s.allPeers() {
		if p.subscribedTo(topicName) {
			out = append(out, p.id)
		}
	}
	return out
}

// Close implements pkgif.PubSub.Close: stops the heartbeat, closes every
// joined topic and every peer connection.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	peers := s.peersLocked()
	s.topics = make(map[string]*topic)
	s.mu.Unlock()

	if s.heartbeat != nil {
		s.heartbeat.Stop()
	}
	for _, p := range peers {
		p.close()
	}
	s.wg.Wait()
	return nil
}

// onPeerSubscription is called from a peer's read loop whenever it tells us
// about a subscription change, updating the GossipSub mesh's graft
// opportunities.
func (s *Service) onPeerSubscription(p *peer, topicName string, subscribed bool) {
	if subscribed {
		logger.Debug("peer subscribed", "peer", p.id.ShortString(), "topic", topicName)
		if s.mesh != nil && s.getTopic(topicName) != nil {
			s.graftTopic(topicName)
		}
	} else {
		logger.Debug("peer unsubscribed", "peer", p.id.ShortString(), "topic", topicName)
		if s.mesh != nil {
			s.mesh.Remove(topicName, p.id)
		}
	}
}

// nextSeqno returns this Service's next per-peer 64-bit sequence number
// (spec §4.5 Publish step 1: "a fresh per-peer 64-bit seqno").
func (s *Service) nextSeqno() []byte {
	s.seqnoMu.Lock()
	defer s.seqnoMu.Unlock()
	return nextSeqno(&s.seqno)
}

// forwardTargets returns the peers a message on topicName should be sent
// to: the GossipSub mesh if one is configured, otherwise every peer known
// to be subscribed (spec §4.5 Publish step 3 / "Variants").
func (s *Service) forwardTargets(topicName string) []*peer {
	if s.mesh != nil {
		ids := s.mesh.List(topicName)
		out := make([]*peer, 0, len(ids))
		for _, id := range ids {
			if p := s.getPeer(id); p != nil {
				out = append(out, p)
			}
		}
		return out
	}

	var out []*peer
	for _, p := range s.allPeers() {
		if p.subscribedTo(topicName) {
			out = append(out, p)
		}
	}
	return out
}

// announceSubscriptions tells p about every topic currently joined, run
// once a channel to it is first established (attach) so both sides agree
// on subscription state without waiting for a Join/leave to happen after
// the fact.
func (s *Service) announceSubscriptions(p *peer) {
	for _, name := range s.Topics() {
		s.sendSubscription(p, name, true)
	}
}

func (s *Service) sendSubscription(p *peer, topicName string, subscribe bool) {
	rpc := &pb.RPC{Subscriptions: []*pb.SubOpts{{Subscribe: subscribe, Topicid: topicName}}}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SendTimeout)
	defer cancel()
	if _, err := p.send(ctx, rpc); err != nil {
		logger.Debug("failed to send subscription", "peer", p.id.ShortString(), "topic", topicName, "error", err)
	}
}
