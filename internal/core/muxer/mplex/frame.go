package mplex

import (
	"bufio"
	"io"

	"github.com/multiformats/go-varint"
)

// tag identifies a frame's purpose and, for non-New tags, which side of the
// channel's creation it was sent by (spec §4.2 "Frame format").
type tag uint64

const (
	tagNewStream tag = iota
	tagMsgReceiver
	tagMsgInitiator
	tagCloseReceiver
	tagCloseInitiator
	tagResetReceiver
	tagResetInitiator
)

func (t tag) valid() bool {
	return t <= tagResetInitiator
}

// maxMessageSize bounds a single frame's payload (spec §4.2 "Maximum payload
// per frame: 1 MiB").
const maxMessageSize = 1 << 20

// frame is one decoded/encoded mplex wire unit.
type frame struct {
	id      uint64
	tag     tag
	payload []byte
}

// writeFrame encodes and writes one frame: varint(header) || varint(len) || payload.
func writeFrame(w io.Writer, id uint64, t tag, payload []byte) error {
	header := (id << 3) | uint64(t)

	buf := make([]byte, varint.UvarintSize(header)+varint.UvarintSize(uint64(len(payload))))
	n := varint.PutUvarint(buf, header)
	n += varint.PutUvarint(buf[n:], uint64(len(payload)))
	if _, err := w.Write(buf[:n]); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := w.Write(payload)
	return err
}

// readFrame decodes one frame from a buffered reader. The caller owns the
// returned payload slice.
func readFrame(r *bufio.Reader) (frame, error) {
	header, err := varint.ReadUvarint(r)
	if err != nil {
		return frame{}, err
	}

	length, err := varint.ReadUvarint(r)
	if err != nil {
		return frame{}, err
	}
	if length > maxMessageSize {
		return frame{}, ErrMaxSizeExceeded
	}

	t := tag(header & 0x07)
	if !t.valid() {
		return frame{}, ErrInvalidMessageType
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return frame{}, err
		}
	}

	return frame{id: header >> 3, tag: t, payload: payload}, nil
}
