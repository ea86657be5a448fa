package pubsub

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corenet/p2pstack/pkg/types"
)

func meshTestPeer(b byte) types.PeerID {
	var id types.PeerID
	id[0] = b
	return id
}

func TestMeshPeersAddRespectsHighWaterMark(t *testing.T) {
	mp := newMeshPeers(2, 1, 2)
	require.True(t, mp.Add("t", meshTestPeer(1)))
	require.True(t, mp.Add("t", meshTestPeer(2)))
	require.False(t, mp.Add("t", meshTestPeer(3)))
	require.Equal(t, 2, mp.Count("t"))
}

func TestMeshPeersNeedAndTooMany(t *testing.T) {
	mp := newMeshPeers(3, 1, 4)
	require.True(t, mp.NeedMorePeers("t"))

	mp.Add("t", meshTestPeer(1))
	mp.Add("t", meshTestPeer(2))
	mp.Add("t", meshTestPeer(3))
	require.False(t, mp.NeedMorePeers("t"))

	mp.Add("t", meshTestPeer(4))
	require.True(t, mp.TooManyPeers("t"))
}

func TestMeshPeersSelectPeersToGraftExcludesExisting(t *testing.T) {
	mp := newMeshPeers(5, 1, 10)
	existing := meshTestPeer(1)
	mp.Add("t", existing)

	candidates := []types.PeerID{existing, meshTestPeer(2), meshTestPeer(3)}
	selected := mp.SelectPeersToGraft("t", candidates, 5)

	for _, p := range selected {
		require.NotEqual(t, existing, p)
	}
	require.Len(t, selected, 2)
}

func TestMeshPeersSelectPeersToPruneCaps(t *testing.T) {
	mp := newMeshPeers(5, 1, 10)
	mp.Add("t", meshTestPeer(1))
	mp.Add("t", meshTestPeer(2))
	mp.Add("t", meshTestPeer(3))

	pruned := mp.SelectPeersToPrune("t", 2)
	require.Len(t, pruned, 2)
}

func TestMeshPeersClear(t *testing.T) {
	mp := newMeshPeers(5, 1, 10)
	mp.Add("t", meshTestPeer(1))
	mp.Clear("t")
	require.Equal(t, 0, mp.Count("t"))
}
