package pubsub

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	pb "github.com/corenet/p2pstack/pkg/lib/proto/pubsub"
)

// fingerprintCache is a TTL-bounded set of raw-byte fingerprints, backing
// both the per-peer sent/received caches and the Service-wide seen-message
// cache (spec §4.5 "two deduplication caches").
type fingerprintCache struct {
	lru *expirable.LRU[[32]byte, struct{}]
}

func newFingerprintCache(size int, ttl time.Duration) *fingerprintCache {
	return &fingerprintCache{lru: expirable.NewLRU[[32]byte, struct{}](size, nil, ttl)}
}

func (c *fingerprintCache) Has(fp [32]byte) bool {
	_, ok := c.lru.Get(fp)
	return ok
}

func (c *fingerprintCache) Add(fp [32]byte) {
	c.lru.Add(fp, struct{}{})
}

// idCache is the same TTL-bounded set keyed by a string message id, used
// for the Service-wide "have I already forwarded this message" check that
// keeps GossipSub/FloodSub forwarding from looping.
type idCache struct {
	lru *expirable.LRU[string, struct{}]
}

func newIDCache(size int, ttl time.Duration) *idCache {
	return &idCache{lru: expirable.NewLRU[string, struct{}](size, nil, ttl)}
}

func (c *idCache) Has(id string) bool {
	_, ok := c.lru.Get(id)
	return ok
}

func (c *idCache) Add(id string) {
	c.lru.Add(id, struct{}{})
}

// RecentIDs returns up to n ids currently held, for IHave gossip.
func (c *idCache) RecentIDs(n int) []string {
	keys := c.lru.Keys()
	if len(keys) > n {
		keys = keys[len(keys)-n:]
	}
	return keys
}

// messageCache retains recently published/forwarded messages by id so a
// GossipSub Service can answer IWant requests (spec's supplemented
// IHave/IWant lazy gossip: "the owner re-sends from message cache").
type messageCache struct {
	lru *expirable.LRU[string, *pb.Message]
}

func newMessageCache(size int, ttl time.Duration) *messageCache {
	return &messageCache{lru: expirable.NewLRU[string, *pb.Message](size, nil, ttl)}
}

func (c *messageCache) Get(id string) (*pb.Message, bool) {
	return c.lru.Get(id)
}

func (c *messageCache) Add(id string, msg *pb.Message) {
	c.lru.Add(id, msg)
}
