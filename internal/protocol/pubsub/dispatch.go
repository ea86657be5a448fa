package pubsub

import (
	"context"

	pb "github.com/corenet/p2pstack/pkg/lib/proto/pubsub"
	"github.com/corenet/p2pstack/pkg/types"
)

// handleMessage processes one application Message out of an inbound RPC
// (spec §4.5 "Receive loop (per peer)", the "For each embedded application
// Message" clause). from is the peer whose read loop received it.
func (s *Service) handleMessage(from *peer, msg *pb.Message) {
	if len(msg.TopicIDs) == 0 || len(msg.From) == 0 {
		return
	}

	id := messageID(msg.From, msg.Seqno)
	if s.seen.Has(id) {
		return
	}

	if s.cfg.VerifySignatures {
		if len(msg.Key) == 0 || !verifyMessage(msg) {
			logger.Debug("dropping message with missing or invalid signature", "peer", from.id.ShortString())
			return
		}
	}

	fromPeer, err := types.PeerIDFromBytes(msg.From)
	if err != nil {
		logger.Debug("dropping message with malformed from field", "peer", from.id.ShortString())
		return
	}

	if !s.validators.validate(fromPeer, msg.TopicIDs, msg.Data) {
		logger.Debug("message rejected by validators", "peer", from.id.ShortString(), "topics", msg.TopicIDs)
		return
	}

	s.seen.Add(id)
	if s.msgCache != nil {
		s.msgCache.Add(id, msg)
	}

	for _, name := range msg.TopicIDs {
		if t := s.getTopic(name); t != nil {
			t.deliverLocal(fromPeer, msg.Data)
		}
	}

	s.forwardMessage(from, msg)
}

// forwardMessage re-sends msg to every other peer that should receive it
// for at least one of its topics (spec §4.5 "Variants": FloodSub forwards
// to every subscribed peer; GossipSub forwards within the mesh only).
func (s *Service) forwardMessage(from *peer, msg *pb.Message) {
	rpc := &pb.RPC{Publish: []*pb.Message{msg}}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SendTimeout)
	defer cancel()

	sentTo := make(map[types.PeerID]struct{})
	for _, name := range msg.TopicIDs {
		for _, p := range s.forwardTargets(name) {
			if p.id == from.id {
				continue
			}
			if _, already := sentTo[p.id]; already {
				continue
			}
			sentTo[p.id] = struct{}{}
			if _, err := p.send(ctx, rpc); err != nil {
				logger.Debug("forward failed", "peer", p.id.ShortString(), "error", err)
			}
		}
	}
}
