package pubsub_test

import (
	"context"
	"io"
	"net"
	"sync"

	pkgif "github.com/corenet/p2pstack/pkg/interfaces"
	"github.com/corenet/p2pstack/pkg/types"
)

// fakeChannel adapts a net.Conn (from net.Pipe) to pkgif.Channel for tests,
// since a real Channel comes from a muxer session we don't want to stand up
// here.
type fakeChannel struct {
	net.Conn
}

func (fakeChannel) ID() types.ChannelID   { return 0 }
func (f fakeChannel) CloseWrite() error   { return nil }
func (f fakeChannel) Reset() error        { return f.Close() }

// fakeSwitch is a minimal pkgif.Switch double: NewStream against a peer
// switch synchronously opens a net.Pipe and delivers one end to whatever
// handler the peer switch has registered, mimicking an inbound channel.
type fakeSwitch struct {
	local types.PeerID

	mu        sync.Mutex
	peer      *fakeSwitch
	handler   func(ch pkgif.Channel, id types.ProtocolID, remotePeer types.PeerID)
	notifiees []pkgif.ConnNotifiee
}

var _ pkgif.Switch = (*fakeSwitch)(nil)

func newFakeSwitch(local types.PeerID) *fakeSwitch {
	return &fakeSwitch{local: local}
}

// linkFakeSwitches makes each switch's NewStream calls deliver to the
// other's registered handler.
func linkFakeSwitches(a, b *fakeSwitch) {
	a.mu.Lock()
	a.peer = b
	a.mu.Unlock()
	b.mu.Lock()
	b.peer = a
	b.mu.Unlock()
}

func (f *fakeSwitch) LocalPeer() types.PeerID { return f.local }

func (f *fakeSwitch) SetHandler(_ types.ProtocolID, _ pkgif.ProtocolMatcher, h func(pkgif.Channel, types.ProtocolID, types.PeerID)) {
	f.mu.Lock()
	f.handler = h
	f.mu.Unlock()
}

func (f *fakeSwitch) Dial(ctx context.Context, peer types.PeerID, addrs []string, protocols []types.ProtocolID) (io.ReadWriteCloser, types.ProtocolID, error) {
	return f.NewStream(ctx, peer, protocols)
}

func (f *fakeSwitch) NewStream(ctx context.Context, peer types.PeerID, protocols []types.ProtocolID) (io.ReadWriteCloser, types.ProtocolID, error) {
	f.mu.Lock()
	target := f.peer
	f.mu.Unlock()
	if target == nil {
		return nil, "", io.ErrClosedPipe
	}
	target.mu.Lock()
	h := target.handler
	target.mu.Unlock()

	proto := types.ProtocolID("")
	if len(protocols) > 0 {
		proto = protocols[0]
	}

	a, b := net.Pipe()
	if h != nil {
		go h(fakeChannel{b}, proto, f.local)
	}
	return fakeChannel{a}, proto, nil
}

func (f *fakeSwitch) Disconnect(types.PeerID) error { return nil }

func (f *fakeSwitch) Notify(n pkgif.ConnNotifiee) {
	f.mu.Lock()
	f.notifiees = append(f.notifiees, n)
	f.mu.Unlock()
}

func (f *fakeSwitch) Connections(types.PeerID) int { return 1 }

func (f *fakeSwitch) Close() error { return nil }
