package pubsub

import (
	"bufio"
	"io"

	"github.com/multiformats/go-varint"

	pb "github.com/corenet/p2pstack/pkg/lib/proto/pubsub"
)

// marshalRPC encodes rpc to its raw protobuf bytes without writing
// anything, so callers can fingerprint it against the sent cache before
// deciding whether to put it on the wire (spec §4.5 Publish step 3).
func marshalRPC(rpc *pb.RPC) ([]byte, error) {
	return rpc.Marshal()
}

// writeRawRPC writes already-encoded RPC bytes as one length-prefixed
// frame: varint(len) || protobuf bytes (spec §4.5 "a length-prefixed
// protobuf RPC").
func writeRawRPC(w io.Writer, raw []byte) error {
	buf := make([]byte, varint.UvarintSize(uint64(len(raw))))
	n := varint.PutUvarint(buf, uint64(len(raw)))
	if _, err := w.Write(buf[:n]); err != nil {
		return err
	}
	_, err := w.Write(raw)
	return err
}

// writeRPC marshals and writes rpc in one step, returning the raw encoded
// bytes. Used by callers that don't need to consult a dedup cache first.
func writeRPC(w io.Writer, rpc *pb.RPC) ([]byte, error) {
	raw, err := marshalRPC(rpc)
	if err != nil {
		return nil, err
	}
	if err := writeRawRPC(w, raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// readRPC decodes one length-prefixed RPC frame, rejecting anything over
// maxSize (spec §4.5 "max 65536 bytes"). It returns the raw encoded bytes
// alongside the decoded RPC for fingerprinting.
func readRPC(r *bufio.Reader, maxSize int) (*pb.RPC, []byte, error) {
	length, err := varint.ReadUvarint(r)
	if err != nil {
		return nil, nil, err
	}
	if length > uint64(maxSize) {
		return nil, nil, ErrMessageTooLarge
	}

	raw := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, nil, err
		}
	}

	rpc := &pb.RPC{}
	if err := rpc.Unmarshal(raw); err != nil {
		return nil, nil, err
	}
	return rpc, raw, nil
}
