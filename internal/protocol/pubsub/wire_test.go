package pubsub

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	pb "github.com/corenet/p2pstack/pkg/lib/proto/pubsub"
)

func TestWriteReadRPCRoundTrip(t *testing.T) {
	rpc := &pb.RPC{
		Subscriptions: []*pb.SubOpts{{Subscribe: true, Topicid: "chat"}},
		Publish:       []*pb.Message{{From: []byte("peer"), Data: []byte("hi"), Seqno: []byte{1}, TopicIDs: []string{"chat"}}},
	}

	var buf bytes.Buffer
	raw, err := writeRPC(&buf, rpc)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	got, gotRaw, err := readRPC(bufio.NewReader(&buf), 1<<16)
	require.NoError(t, err)
	require.Equal(t, raw, gotRaw)
	require.Len(t, got.Subscriptions, 1)
	require.Equal(t, "chat", got.Subscriptions[0].Topicid)
	require.Len(t, got.Publish, 1)
	require.Equal(t, "hi", string(got.Publish[0].Data))
}

func TestReadRPCRejectsOversizedFrame(t *testing.T) {
	rpc := &pb.RPC{Publish: []*pb.Message{{Data: make([]byte, 100)}}}
	var buf bytes.Buffer
	_, err := writeRPC(&buf, rpc)
	require.NoError(t, err)

	_, _, err = readRPC(bufio.NewReader(&buf), 10)
	require.ErrorIs(t, err, ErrMessageTooLarge)
}

func TestReadRPCPropagatesShortRead(t *testing.T) {
	var buf bytes.Buffer
	_, err := writeRPC(&buf, &pb.RPC{Publish: []*pb.Message{{Data: []byte("hello world")}}})
	require.NoError(t, err)

	truncated := bytes.NewReader(buf.Bytes()[:buf.Len()-3])
	_, _, err = readRPC(bufio.NewReader(truncated), 1<<16)
	require.Error(t, err)
}
