package pubsub

import (
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/corenet/p2pstack/pkg/types"
)

func TestTopicPublishRejectsOversizedData(t *testing.T) {
	svc := newTestService(clock.NewMock())
	svc.cfg.MaxFrameSize = 4
	tp := newTopic(svc, "chat")

	_, err := tp.Publish([]byte("too long"))
	require.ErrorIs(t, err, ErrMessageTooLarge)
}

func TestTopicPublishWithNoPeersSucceedsWithZeroCount(t *testing.T) {
	svc := newTestService(clock.NewMock())
	svc.self = types.PeerID{9}
	svc.cfg.SignMessages = false
	tp := newTopic(svc, "chat")

	n, err := tp.Publish([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestTopicDeliverLocalFansOutToAllSubscribers(t *testing.T) {
	svc := newTestService(clock.NewMock())
	tp := newTopic(svc, "chat")

	var gotA, gotB string
	tp.Subscribe(func(_ types.PeerID, _ string, data []byte) { gotA = string(data) })
	tp.Subscribe(func(_ types.PeerID, _ string, data []byte) { gotB = string(data) })

	tp.deliverLocal(types.PeerID{1}, []byte("hi"))
	require.Equal(t, "hi", gotA)
	require.Equal(t, "hi", gotB)
}

func TestTopicSubscribeCancelStopsDelivery(t *testing.T) {
	svc := newTestService(clock.NewMock())
	tp := newTopic(svc, "chat")

	called := false
	cancel := tp.Subscribe(func(types.PeerID, string, []byte) { called = true })
	cancel()

	tp.deliverLocal(types.PeerID{1}, []byte("hi"))
	require.False(t, called)
}

func TestTopicPublishAfterCloseFails(t *testing.T) {
	svc := newTestService(clock.NewMock())
	svc.topics["chat"] = newTopic(svc, "chat")
	tp := svc.topics["chat"]

	require.NoError(t, tp.Close())
	require.NoError(t, tp.Close())

	_, err := tp.Publish([]byte("hi"))
	require.ErrorIs(t, err, ErrTopicClosed)
}

func TestTopicName(t *testing.T) {
	svc := newTestService(clock.NewMock())
	tp := newTopic(svc, "chat")
	require.Equal(t, "chat", tp.Name())
}
