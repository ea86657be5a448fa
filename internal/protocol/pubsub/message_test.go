package pubsub

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corenet/p2pstack/pkg/lib/crypto"
	pb "github.com/corenet/p2pstack/pkg/lib/proto/pubsub"
)

func TestSignAndVerifyMessage(t *testing.T) {
	priv, _, err := crypto.GenerateKeyPair(crypto.KeyTypeEd25519)
	require.NoError(t, err)

	msg := &pb.Message{From: []byte("peer"), Data: []byte("payload"), Seqno: []byte{0, 1}, TopicIDs: []string{"chat"}}
	require.NoError(t, signMessage(priv, msg))
	require.NotEmpty(t, msg.Signature)
	require.NotEmpty(t, msg.Key)
	require.True(t, verifyMessage(msg))
}

func TestVerifyMessageRejectsTamperedData(t *testing.T) {
	priv, _, err := crypto.GenerateKeyPair(crypto.KeyTypeEd25519)
	require.NoError(t, err)

	msg := &pb.Message{From: []byte("peer"), Data: []byte("payload"), Seqno: []byte{0, 1}, TopicIDs: []string{"chat"}}
	require.NoError(t, signMessage(priv, msg))

	msg.Data = []byte("tampered")
	require.False(t, verifyMessage(msg))
}

func TestVerifyMessageRejectsMissingKeyOrSignature(t *testing.T) {
	require.False(t, verifyMessage(&pb.Message{Signature: []byte("sig")}))
	require.False(t, verifyMessage(&pb.Message{Key: []byte("key")}))
}

func TestVerifyMessageRejectsMalformedKey(t *testing.T) {
	msg := &pb.Message{Data: []byte("payload"), Key: []byte("not-a-key"), Signature: []byte("sig")}
	require.False(t, verifyMessage(msg))
}

func TestNextSeqnoIncrements(t *testing.T) {
	var counter uint64
	a := nextSeqno(&counter)
	b := nextSeqno(&counter)
	require.NotEqual(t, a, b)
	require.Equal(t, uint64(2), counter)
}

func TestFingerprintIsDeterministic(t *testing.T) {
	data := []byte("hello world")
	require.Equal(t, fingerprint(data), fingerprint(data))
	require.NotEqual(t, fingerprint(data), fingerprint([]byte("different")))
}

func TestMessageIDFormat(t *testing.T) {
	id := messageID([]byte{0xAB}, []byte{0x01})
	require.Equal(t, "ab:01", id)
}
