package switchcore

import (
	"time"

	"github.com/corenet/p2pstack/internal/util/leaktrack"
)

// Config holds the Switch's tunables. Values at or below zero fall back to
// DefaultConfig's.
type Config struct {
	// DialTimeout bounds one full dial-and-upgrade attempt to a single
	// address.
	DialTimeout time.Duration

	// NewStreamTimeout bounds opening and negotiating a fresh channel on
	// an existing session.
	NewStreamTimeout time.Duration

	// MaxConcurrentDials bounds the number of dial-and-upgrade attempts
	// in flight across all peers at once.
	MaxConcurrentDials int

	// Observer receives OnOpen/OnClose for every raw Connection the
	// Switch dials or accepts (spec §9 "Global trackers"). Defaults to
	// leaktrack.NoOp; tests inject a leaktrack.Counting observer to
	// assert spec §8's balanced-tracker-counters invariant.
	Observer leaktrack.Observer
}

// DefaultConfig returns the Switch's default tunables.
func DefaultConfig() Config {
	return Config{
		DialTimeout:        30 * time.Second,
		NewStreamTimeout:   15 * time.Second,
		MaxConcurrentDials: 64,
		Observer:           leaktrack.NoOp,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DialTimeout <= 0 {
		c.DialTimeout = d.DialTimeout
	}
	if c.NewStreamTimeout <= 0 {
		c.NewStreamTimeout = d.NewStreamTimeout
	}
	if c.MaxConcurrentDials <= 0 {
		c.MaxConcurrentDials = d.MaxConcurrentDials
	}
	if c.Observer == nil {
		c.Observer = d.Observer
	}
	return c
}
