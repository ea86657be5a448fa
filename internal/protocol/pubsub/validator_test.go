package pubsub

import (
	"testing"

	"github.com/stretchr/testify/require"

	pkgif "github.com/corenet/p2pstack/pkg/interfaces"
	"github.com/corenet/p2pstack/pkg/types"
)

func TestValidatorSetAllMustAccept(t *testing.T) {
	vs := newValidatorSet()
	vs.register("t", func(types.PeerID, string, []byte) bool { return true })
	vs.register("t", func(types.PeerID, string, []byte) bool { return false })

	require.False(t, vs.validate(types.PeerID{}, []string{"t"}, nil))
}

func TestValidatorSetNoValidatorsAccepts(t *testing.T) {
	vs := newValidatorSet()
	require.True(t, vs.validate(types.PeerID{}, []string{"unregistered"}, nil))
}

func TestValidatorSetOnlyCallsRegisteredTopic(t *testing.T) {
	vs := newValidatorSet()
	var sawTopic string
	vs.register("a", func(_ types.PeerID, topic string, _ []byte) bool {
		sawTopic = topic
		return true
	})

	require.True(t, vs.validate(types.PeerID{}, []string{"a", "b"}, nil))
	require.Equal(t, "a", sawTopic)
}

func TestValidatorPanicIsRejection(t *testing.T) {
	fn := pkgif.ValidatorFunc(func(types.PeerID, string, []byte) bool {
		panic("boom")
	})
	require.False(t, runValidator(fn, types.PeerID{}, "t", nil))
}

func TestValidatorUnregisterRemovesValidators(t *testing.T) {
	vs := newValidatorSet()
	vs.register("t", func(types.PeerID, string, []byte) bool { return false })
	vs.unregister("t")
	require.True(t, vs.validate(types.PeerID{}, []string{"t"}, nil))
}
