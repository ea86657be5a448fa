package negotiation

import (
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgif "github.com/corenet/p2pstack/pkg/interfaces"
	"github.com/corenet/p2pstack/pkg/types"
)

func TestNegotiateSelectsFirstSupportedProtocol(t *testing.T) {
	a, b := net.Pipe()
	n := New()

	var wg sync.WaitGroup
	wg.Add(2)

	var initErr, respErr error
	var selected, responded types.ProtocolID

	go func() {
		defer wg.Done()
		selected, initErr = n.SelectOne(a, []types.ProtocolID{"/foo/1.0.0", "/bar/1.0.0"})
	}()
	go func() {
		defer wg.Done()
		responded, respErr = n.Negotiate(b, []pkgif.Registration{{ID: "/bar/1.0.0"}})
	}()
	wg.Wait()

	require.NoError(t, initErr)
	require.NoError(t, respErr)
	assert.Equal(t, types.ProtocolID("/bar/1.0.0"), selected)
	assert.Equal(t, types.ProtocolID("/bar/1.0.0"), responded)
}

func TestNegotiateNoSupportedProtocol(t *testing.T) {
	a, b := net.Pipe()
	n := New()

	respDone := make(chan struct{})
	go func() {
		defer close(respDone)
		_, _ = n.Negotiate(b, []pkgif.Registration{{ID: "/bar/1.0.0"}})
	}()

	_, initErr := n.SelectOne(a, []types.ProtocolID{"/foo/1.0.0"})
	assert.ErrorIs(t, initErr, ErrProtocolNotSupported)

	// Unblock the responder's pending read on the now-abandoned exchange.
	_ = a.Close()
	<-respDone
}

func TestNegotiateMatcherPredicate(t *testing.T) {
	a, b := net.Pipe()
	n := New()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		_, _ = n.SelectOne(a, []types.ProtocolID{"/app/v7"})
	}()
	go func() {
		defer wg.Done()
		id, err := n.Negotiate(b, []pkgif.Registration{{
			ID: "/app/*",
			Matcher: func(id types.ProtocolID) bool {
				return len(id) > 5 && id[:5] == "/app/"
			},
		}})
		require.NoError(t, err)
		assert.Equal(t, types.ProtocolID("/app/v7"), id)
	}()
	wg.Wait()
}
