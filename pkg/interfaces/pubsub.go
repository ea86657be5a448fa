package interfaces

import "github.com/corenet/p2pstack/pkg/types"

// MessageHandler is invoked once per (topic, peer, message-fingerprint)
// delivery (spec §3 invariant, §4.5 receive loop).
type MessageHandler func(from types.PeerID, topic string, data []byte)

// ValidatorFunc is a boolean async predicate run against every inbound
// message for a topic it carries; all validators across all of a message's
// topics must return true for it to be accepted (spec §4.5 "Validation").
type ValidatorFunc func(from types.PeerID, topic string, data []byte) bool

// Topic is a joined pubsub topic (spec §3 "Topic").
type Topic interface {
	Name() string
	Publish(data []byte) (int, error)
	Subscribe(h MessageHandler) (cancel func())
	Peers() []types.PeerID
	Close() error
}

// PubSub is the router surface (spec §4.5).
type PubSub interface {
	Join(topic string) (Topic, error)
	Topics() []string
	RegisterValidator(topic string, v ValidatorFunc)
	UnregisterValidator(topic string)
	Close() error
}
