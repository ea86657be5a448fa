// Package pubsub implements the FloodSub/GossipSub message router (spec
// §4.5): per-topic fan-out to subscribed peers, message deduplication,
// optional signing and validation, and (for the GossipSub variant) a
// heartbeat-driven mesh with lazy IHave/IWant gossip.
//
// A Service owns zero or more joined Topics and a table of per-peer
// connections layered on top of a switchcore.Switch: each peer gets one
// lazily-opened outbound channel plus a read loop over that channel (or
// over whichever channel it dialed in on), independent of how many topics
// the two sides share.
package pubsub
