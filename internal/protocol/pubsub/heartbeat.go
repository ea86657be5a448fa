package pubsub

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// heartbeat drives GossipSub's mesh maintenance and lazy gossip on a fixed
// interval, the supplemented heartbeat loop referenced by spec §4.5's
// "Variants" clause.
type heartbeat struct {
	svc      *Service
	interval time.Duration
	clock    clock.Clock

	ticker *clock.Ticker
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newHeartbeat(svc *Service, interval time.Duration, clk clock.Clock) *heartbeat {
	return &heartbeat{svc: svc, interval: interval, clock: clk}
}

func (hb *heartbeat) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	hb.cancel = cancel
	hb.ticker = hb.clock.Ticker(hb.interval)

	hb.wg.Add(1)
	go hb.run(ctx)
}

func (hb *heartbeat) Stop() {
	if hb.cancel != nil {
		hb.cancel()
	}
	if hb.ticker != nil {
		hb.ticker.Stop()
	}
	hb.wg.Wait()
}

func (hb *heartbeat) run(ctx context.Context) {
	defer hb.wg.Done()
	for {
		select {
		case <-hb.ticker.C:
			hb.tick()
		case <-ctx.Done():
			return
		}
	}
}

func (hb *heartbeat) tick() {
	for _, name := range hb.svc.Topics() {
		hb.svc.maintainMesh(name)
	}
	hb.svc.gossipIHave()
}
