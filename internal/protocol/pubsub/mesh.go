package pubsub

import (
	"math/rand"
	"sync"

	"github.com/corenet/p2pstack/pkg/types"
)

// meshPeers tracks, per topic, the bounded set of peers a GossipSub Service
// forwards full messages to (spec's supplemented mesh maintenance loop).
type meshPeers struct {
	mu    sync.RWMutex
	peers map[string]map[types.PeerID]struct{}
	d     int
	dlo   int
	dhi   int
}

func newMeshPeers(d, dlo, dhi int) *meshPeers {
	return &meshPeers{
		peers: make(map[string]map[types.PeerID]struct{}),
		d:     d,
		dlo:   dlo,
		dhi:   dhi,
	}
}

// Add grafts peer into topic's mesh; returns false if the mesh is already
// at its high-water mark.
func (mp *meshPeers) Add(topic string, peer types.PeerID) bool {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.peers[topic] == nil {
		mp.peers[topic] = make(map[types.PeerID]struct{})
	}
	if len(mp.peers[topic]) >= mp.dhi {
		return false
	}
	mp.peers[topic][peer] = struct{}{}
	return true
}

func (mp *meshPeers) Remove(topic string, peer types.PeerID) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	delete(mp.peers[topic], peer)
}

func (mp *meshPeers) Has(topic string, peer types.PeerID) bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	_, ok := mp.peers[topic][peer]
	return ok
}

func (mp *meshPeers) List(topic string) []types.PeerID {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	peers := make([]types.PeerID, 0, len(mp.peers[topic]))
	for p := range mp.peers[topic] {
		peers = append(peers, p)
	}
	return peers
}

func (mp *meshPeers) Count(topic string) int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return len(mp.peers[topic])
}

func (mp *meshPeers) NeedMorePeers(topic string) bool { return mp.Count(topic) < mp.d }
func (mp *meshPeers) TooManyPeers(topic string) bool  { return mp.Count(topic) >= mp.dhi }
func (mp *meshPeers) TooFewPeers(topic string) bool   { return mp.Count(topic) < mp.dlo }

// SelectPeersToGraft picks up to count candidates not already in topic's
// mesh, in random order.
func (mp *meshPeers) SelectPeersToGraft(topic string, candidates []types.PeerID, count int) []types.PeerID {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	available := make([]types.PeerID, 0, len(candidates))
	for _, p := range candidates {
		if _, ok := mp.peers[topic][p]; !ok {
			available = append(available, p)
		}
	}
	rand.Shuffle(len(available), func(i, j int) { available[i], available[j] = available[j], available[i] })
	if len(available) <= count {
		return available
	}
	return available[:count]
}

// SelectPeersToPrune picks up to count current mesh members, in random
// order, to drop back out of topic's mesh.
func (mp *meshPeers) SelectPeersToPrune(topic string, count int) []types.PeerID {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	peers := make([]types.PeerID, 0, len(mp.peers[topic]))
	for p := range mp.peers[topic] {
		peers = append(peers, p)
	}
	rand.Shuffle(len(peers), func(i, j int) { peers[i], peers[j] = peers[j], peers[i] })
	if len(peers) <= count {
		return peers
	}
	return peers[:count]
}

func (mp *meshPeers) Clear(topic string) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	delete(mp.peers, topic)
}
