package pubsub

import (
	"context"

	pb "github.com/corenet/p2pstack/pkg/lib/proto/pubsub"
	"github.com/corenet/p2pstack/pkg/types"
)

// maintainMesh grafts or prunes topicName's mesh toward D, the supplemented
// heartbeat-driven mesh maintenance.
func (s *Service) maintainMesh(topicName string) {
	if s.mesh.NeedMorePeers(topicName) {
		s.graftTopic(topicName)
	}
	if s.mesh.TooManyPeers(topicName) {
		s.pruneTopic(topicName)
	}
}

// graftTopic adds peers known to be subscribed to topicName into its mesh
// and notifies each with a GRAFT control message.
func (s *Service) graftTopic(topicName string) {
	needed := s.cfg.D - s.mesh.Count(topicName)
	if needed <= 0 {
		return
	}

	var candidates []types.PeerID
	for _, p := range s.allPeers() {
		if p.subscribedTo(topicName) {
			candidates = append(candidates, p.id)
		}
	}

	toGraft := s.mesh.SelectPeersToGraft(topicName, candidates, needed)
	if len(toGraft) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SendTimeout)
	defer cancel()
	for _, id := range toGraft {
		s.mesh.Add(topicName, id)
		p := s.getPeer(id)
		if p == nil {
			continue
		}
		rpc := &pb.RPC{Control: &pb.ControlMessage{Graft: []*pb.ControlGraft{{TopicID: topicName}}}}
		if _, err := p.send(ctx, rpc); err != nil {
			logger.Debug("graft send failed", "peer", id.ShortString(), "topic", topicName, "error", err)
		}
	}
}

// pruneTopic drops the mesh back toward D and notifies each dropped peer
// with a PRUNE control message.
func (s *Service) pruneTopic(topicName string) {
	toRemove := s.mesh.Count(topicName) - s.cfg.D
	if toRemove <= 0 {
		return
	}
	toPrune := s.mesh.SelectPeersToPrune(topicName, toRemove)

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SendTimeout)
	defer cancel()
	for _, id := range toPrune {
		s.mesh.Remove(topicName, id)
		p := s.getPeer(id)
		if p == nil {
			continue
		}
		rpc := &pb.RPC{Control: &pb.ControlMessage{Prune: []*pb.ControlPrune{{TopicID: topicName, Backoff: uint64(s.cfg.FailureBackoff.Seconds())}}}}
		if _, err := p.send(ctx, rpc); err != nil {
			logger.Debug("prune send failed", "peer", id.ShortString(), "topic", topicName, "error", err)
		}
	}
}

// gossipIHave announces recently-seen message ids to up to Dlazy topic
// peers outside the mesh, the lazy-gossip half of GossipSub (spec's
// supplemented "IHave/IWant lazy gossip").
func (s *Service) gossipIHave() {
	ids := s.seen.RecentIDs(64)
	if len(ids) == 0 {
		return
	}
	byteIDs := make([][]byte, len(ids))
	for i, id := range ids {
		byteIDs[i] = []byte(id)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SendTimeout)
	defer cancel()

	for _, name := range s.Topics() {
		var targets []*peer
		for _, p := range s.allPeers() {
			if p.subscribedTo(name) && !s.mesh.Has(name, p.id) {
				targets = append(targets, p)
			}
		}
		if len(targets) > s.cfg.Dlazy {
			targets = targets[:s.cfg.Dlazy]
		}
		if len(targets) == 0 {
			continue
		}

		rpc := &pb.RPC{Control: &pb.ControlMessage{Ihave: []*pb.ControlIHave{{TopicID: name, MessageIDs: byteIDs}}}}
		for _, p := range targets {
			if _, err := p.send(ctx, rpc); err != nil {
				logger.Debug("ihave send failed", "peer", p.id.ShortString(), "topic", name, "error", err)
			}
		}
	}
}

// handleControl processes an inbound ControlMessage: graft/prune update the
// mesh directly, IHave/IWant drive the lazy-gossip message recovery path.
func (s *Service) handleControl(p *peer, control *pb.ControlMessage) {
	if s.mesh == nil {
		return
	}
	for _, g := range control.Graft {
		s.mesh.Add(g.TopicID, p.id)
	}
	for _, pr := range control.Prune {
		s.mesh.Remove(pr.TopicID, p.id)
	}
	for _, ih := range control.Ihave {
		s.handleIHave(p, ih)
	}
	for _, iw := range control.Iwant {
		s.handleIWant(p, iw)
	}
}

// handleIHave requests (via IWant) every announced id we haven't seen yet.
func (s *Service) handleIHave(p *peer, ih *pb.ControlIHave) {
	var want [][]byte
	for _, raw := range ih.MessageIDs {
		if !s.seen.Has(string(raw)) {
			want = append(want, raw)
		}
	}
	if len(want) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SendTimeout)
	defer cancel()
	rpc := &pb.RPC{Control: &pb.ControlMessage{Iwant: []*pb.ControlIWant{{MessageIDs: want}}}}
	if _, err := p.send(ctx, rpc); err != nil {
		logger.Debug("iwant send failed", "peer", p.id.ShortString(), "error", err)
	}
}

// handleIWant re-sends any requested message still held in the message
// cache (spec's supplemented "owner re-sends from message cache").
func (s *Service) handleIWant(p *peer, iw *pb.ControlIWant) {
	if s.msgCache == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SendTimeout)
	defer cancel()
	for _, raw := range iw.MessageIDs {
		msg, ok := s.msgCache.Get(string(raw))
		if !ok {
			continue
		}
		rpc := &pb.RPC{Publish: []*pb.Message{msg}}
		if _, err := p.send(ctx, rpc); err != nil {
			logger.Debug("iwant reply failed", "peer", p.id.ShortString(), "error", err)
		}
	}
}
