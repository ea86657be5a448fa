package mplex

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFrameNewStreamChannelZero(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, 0, tagNewStream, []byte("stream 1")))
	assert.Equal(t,
		[]byte{0x00, 0x08, 0x73, 0x74, 0x72, 0x65, 0x61, 0x6d, 0x20, 0x31},
		buf.Bytes(),
	)
}

func TestWriteFrameNewStreamChannel17(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, 17, tagNewStream, []byte("stream 1")))
	assert.Equal(t,
		[]byte{0x88, 0x01, 0x08, 0x73, 0x74, 0x72, 0x65, 0x61, 0x6d, 0x20, 0x31},
		buf.Bytes(),
	)
}

func TestWriteFrameMsgOutChannel17(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, 17, tagMsgInitiator, []byte("stream 1")))
	assert.Equal(t,
		[]byte{0x8a, 0x01, 0x08, 0x73, 0x74, 0x72, 0x65, 0x61, 0x6d, 0x20, 0x31},
		buf.Bytes(),
	)
}

func TestReadFrameRoundTripChannelZero(t *testing.T) {
	raw := []byte{0x00, 0x08, 0x73, 0x74, 0x72, 0x65, 0x61, 0x6d, 0x20, 0x31}
	f, err := readFrame(bufio.NewReader(bytes.NewReader(raw)))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), f.id)
	assert.Equal(t, tagNewStream, f.tag)
	assert.Equal(t, "stream 1", string(f.payload))
}

func TestReadFrameRejectsOversizedPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, 0, tagMsgInitiator, make([]byte, maxMessageSize+1)))
	_, err := readFrame(bufio.NewReader(&buf))
	assert.ErrorIs(t, err, ErrMaxSizeExceeded)
}

func TestReadFrameRejectsInvalidTag(t *testing.T) {
	var hdr bytes.Buffer
	// header = (0 << 3) | 7, an undefined tag
	hdr.Write([]byte{0x07, 0x00})
	_, err := readFrame(bufio.NewReader(&hdr))
	assert.ErrorIs(t, err, ErrInvalidMessageType)
}
