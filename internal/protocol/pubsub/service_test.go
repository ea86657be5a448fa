package pubsub_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/corenet/p2pstack/internal/protocol/pubsub"
	"github.com/corenet/p2pstack/pkg/lib/crypto"
	"github.com/corenet/p2pstack/pkg/types"
)

func newTestIdentity(t *testing.T) (crypto.PrivateKey, types.PeerID) {
	t.Helper()
	priv, pub, err := crypto.GenerateKeyPair(crypto.KeyTypeEd25519)
	require.NoError(t, err)
	id, err := crypto.PeerIDFromPublicKey(pub)
	require.NoError(t, err)
	return priv, id
}

// twoLinkedServices builds a pair of Services wired to cross-linked fake
// switches, so publishing from one is observable on the other.
func twoLinkedServices(t *testing.T, cfg *pubsub.Config) (svcA, svcB *pubsub.Service, idA, idB types.PeerID) {
	t.Helper()

	privA, idA := newTestIdentity(t)
	privB, idB := newTestIdentity(t)

	swA := newFakeSwitch(idA)
	swB := newFakeSwitch(idB)
	linkFakeSwitches(swA, swB)

	svcA = pubsub.New(swA, privA, cfg)
	svcB = pubsub.New(swB, privB, cfg)
	return svcA, svcB, idA, idB
}

// connectPeers simulates the Switch telling svcA about a newly connected
// peer, which opens a pubsub channel to it and exchanges current
// subscriptions in both directions over that one channel.
func connectPeers(svcA *pubsub.Service, idB types.PeerID) {
	svcA.Connected(idB)
}

func TestServiceJoinPublishSubscribeRoundTrip(t *testing.T) {
	cfg := pubsub.DefaultConfig()
	svcA, svcB, _, idB := twoLinkedServices(t, cfg)
	defer svcA.Close()
	defer svcB.Close()

	topicA, err := svcA.Join("chat")
	require.NoError(t, err)
	topicB, err := svcB.Join("chat")
	require.NoError(t, err)

	received := make(chan string, 1)
	cancel := topicB.Subscribe(func(from types.PeerID, topic string, data []byte) {
		received <- string(data)
	})
	defer cancel()

	connectPeers(svcA, idB)
	// give the subscription exchange time to reach A over the pipe.
	time.Sleep(50 * time.Millisecond)

	n, err := topicA.Publish([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	select {
	case msg := <-received:
		require.Equal(t, "hello", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestServiceTriggerSelfDeliversLocally(t *testing.T) {
	cfg := pubsub.DefaultConfig()
	cfg.TriggerSelf = true
	svcA, svcB, _, _ := twoLinkedServices(t, cfg)
	defer svcA.Close()
	defer svcB.Close()

	topicA, err := svcA.Join("chat")
	require.NoError(t, err)

	received := make(chan string, 1)
	cancel := topicA.Subscribe(func(from types.PeerID, topic string, data []byte) {
		received <- string(data)
	})
	defer cancel()

	_, err = topicA.Publish([]byte("hi"))
	require.NoError(t, err)

	select {
	case msg := <-received:
		require.Equal(t, "hi", msg)
	case <-time.After(time.Second):
		t.Fatal("triggerSelf did not deliver locally")
	}
}

func TestServiceJoinRejectsDuplicateTopic(t *testing.T) {
	cfg := pubsub.DefaultConfig()
	svcA, svcB, _, _ := twoLinkedServices(t, cfg)
	defer svcA.Close()
	defer svcB.Close()

	_, err := svcA.Join("dup")
	require.NoError(t, err)

	_, err = svcA.Join("dup")
	require.ErrorIs(t, err, pubsub.ErrTopicAlreadyJoined)
}

func TestServiceCloseRejectsFurtherJoins(t *testing.T) {
	cfg := pubsub.DefaultConfig()
	svcA, svcB, _, _ := twoLinkedServices(t, cfg)
	defer svcB.Close()

	require.NoError(t, svcA.Close())

	_, err := svcA.Join("late")
	require.ErrorIs(t, err, pubsub.ErrServiceClosed)
}

func TestServiceValidatorRejectsMessage(t *testing.T) {
	cfg := pubsub.DefaultConfig()
	svcA, svcB, _, idB := twoLinkedServices(t, cfg)
	defer svcA.Close()
	defer svcB.Close()

	topicA, err := svcA.Join("modded")
	require.NoError(t, err)
	topicB, err := svcB.Join("modded")
	require.NoError(t, err)

	svcB.RegisterValidator("modded", func(from types.PeerID, topic string, data []byte) bool {
		return string(data) != "spam"
	})

	received := make(chan string, 1)
	cancel := topicB.Subscribe(func(from types.PeerID, topic string, data []byte) {
		received <- string(data)
	})
	defer cancel()

	connectPeers(svcA, idB)
	time.Sleep(50 * time.Millisecond)
	_, err = topicA.Publish([]byte("spam"))
	require.NoError(t, err)

	select {
	case <-received:
		t.Fatal("validator should have rejected the message")
	case <-time.After(300 * time.Millisecond):
	}
}
