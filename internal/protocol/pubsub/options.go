package pubsub

import "time"

// Variant selects which of spec §4.5's two router behaviors a Service runs.
type Variant int

const (
	// FloodSub forwards every published message to every peer known to be
	// subscribed to its topic.
	FloodSub Variant = iota
	// GossipSub additionally maintains a bounded mesh per topic
	// (graft/prune over a heartbeat) and lazily gossips message ids
	// (IHave/IWant) to topic peers outside the mesh.
	GossipSub
)

func (v Variant) String() string {
	if v == GossipSub {
		return "gossipsub"
	}
	return "floodsub"
}

// Config controls one Service's wire limits, cache sizes and (for
// GossipSub) mesh shape.
type Config struct {
	Variant Variant

	// ProtocolID is negotiated for both dialed and accepted peer channels.
	ProtocolID string

	// MaxFrameSize bounds one length-prefixed RPC on the wire (spec §4.5:
	// "max 65536 bytes").
	MaxFrameSize int

	// SignMessages attaches the local public key and a signature to every
	// published Message; VerifySignatures requires and checks it on
	// receipt, dropping messages that carry no key or fail verification.
	SignMessages     bool
	VerifySignatures bool

	// TriggerSelf delivers a locally-published message to local handlers
	// synchronously, as if received from the network.
	TriggerSelf bool

	// PeerCacheSize/PeerCacheTTL bound the per-peer sent/received
	// deduplication caches (spec §4.5 "two deduplication caches").
	PeerCacheSize int
	PeerCacheTTL  time.Duration

	// SeenCacheSize/SeenCacheTTL bound the Service-wide seen-message-id
	// cache that stops a forwarded message from looping through the mesh.
	SeenCacheSize int
	SeenCacheTTL  time.Duration

	// D/Dlo/Dhi are the GossipSub mesh's target/low/high peer counts per
	// topic; Dlazy is how many non-mesh peers get an IHave per heartbeat.
	D, Dlo, Dhi, Dlazy int

	// HeartbeatInterval drives mesh maintenance and gossip; ignored for
	// FloodSub.
	HeartbeatInterval time.Duration

	// SendTimeout bounds one send to a peer, including opening its channel
	// when none is open.
	SendTimeout time.Duration

	// After MaxSendFailures consecutive write failures, sends to that peer
	// are skipped for FailureBackoff (spec's supplemented "per-peer send
	// backoff").
	MaxSendFailures int
	FailureBackoff  time.Duration
}

// DefaultConfig returns a FloodSub configuration with conservative limits.
func DefaultConfig() *Config {
	return &Config{
		Variant:           FloodSub,
		ProtocolID:        "/floodsub/1.0.0",
		MaxFrameSize:      1 << 16,
		VerifySignatures:  true,
		SignMessages:      true,
		TriggerSelf:       true,
		PeerCacheSize:     1024,
		PeerCacheTTL:      2 * time.Minute,
		SeenCacheSize:     4096,
		SeenCacheTTL:      2 * time.Minute,
		D:                 6,
		Dlo:               4,
		Dhi:               12,
		Dlazy:             6,
		HeartbeatInterval: time.Second,
		SendTimeout:       5 * time.Second,
		MaxSendFailures:   3,
		FailureBackoff:    30 * time.Second,
	}
}

// DefaultGossipSubConfig is DefaultConfig with the GossipSub variant and its
// mesh protocol id selected.
func DefaultGossipSubConfig() *Config {
	c := DefaultConfig()
	c.Variant = GossipSub
	c.ProtocolID = "/meshsub/1.1.0"
	return c
}

// Option mutates a Config at construction time.
type Option func(*Config)

func WithHeartbeatInterval(interval time.Duration) Option {
	return func(c *Config) { c.HeartbeatInterval = interval }
}

func WithMeshDegree(d, dlo, dhi int) Option {
	return func(c *Config) { c.D, c.Dlo, c.Dhi = d, dlo, dhi }
}

func WithMaxFrameSize(size int) Option {
	return func(c *Config) { c.MaxFrameSize = size }
}

func WithSigning(sign, verify bool) Option {
	return func(c *Config) { c.SignMessages, c.VerifySignatures = sign, verify }
}

func WithTriggerSelf(trigger bool) Option {
	return func(c *Config) { c.TriggerSelf = trigger }
}
