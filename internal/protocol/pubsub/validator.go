package pubsub

import (
	"sync"

	pkgif "github.com/corenet/p2pstack/pkg/interfaces"
	"github.com/corenet/p2pstack/pkg/types"
)

// validatorSet holds, per topic, the set of validators registered via
// Service.RegisterValidator.
type validatorSet struct {
	mu   sync.RWMutex
	byID map[string][]pkgif.ValidatorFunc
}

func newValidatorSet() *validatorSet {
	return &validatorSet{byID: make(map[string][]pkgif.ValidatorFunc)}
}

func (v *validatorSet) register(topic string, fn pkgif.ValidatorFunc) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.byID[topic] = append(v.byID[topic], fn)
}

func (v *validatorSet) unregister(topic string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.byID, topic)
}

type boundValidator struct {
	topic string
	fn    pkgif.ValidatorFunc
}

// validate runs every validator registered across topics concurrently and
// requires all of them to accept (spec §4.5 "Validation": logical-and,
// concurrent).
func (v *validatorSet) validate(from types.PeerID, topics []string, data []byte) bool {
	v.mu.RLock()
	var bound []boundValidator
	for _, topic := range topics {
		for _, fn := range v.byID[topic] {
			bound = append(bound, boundValidator{topic: topic, fn: fn})
		}
	}
	v.mu.RUnlock()

	if len(bound) == 0 {
		return true
	}

	results := make(chan bool, len(bound))
	for _, bv := range bound {
		go func(bv boundValidator) {
			results <- runValidator(bv.fn, from, bv.topic, data)
		}(bv)
	}

	ok := true
	for range bound {
		if !<-results {
			ok = false
		}
	}
	return ok
}

// runValidator recovers a validator panic as a rejection, since spec §4.5
// says "returns false or raises" both drop the message.
func runValidator(fn pkgif.ValidatorFunc, from types.PeerID, topic string, data []byte) (accepted bool) {
	defer func() {
		if recover() != nil {
			accepted = false
		}
	}()
	return fn(from, topic, data)
}
