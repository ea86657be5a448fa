package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/multiformats/go-varint"

	pkgif "github.com/corenet/p2pstack/pkg/interfaces"
	"github.com/corenet/p2pstack/pkg/types"
)

// echoProtocol is the application protocol negotiated in spec §8 test
// scenario 3.
const echoProtocol = types.ProtocolID("/test/proto/1.0.0")

// writeFramed writes one length-prefixed frame: varint(len(payload)) || payload.
func writeFramed(w io.Writer, payload []byte) error {
	buf := make([]byte, varint.UvarintSize(uint64(len(payload)))+len(payload))
	n := varint.PutUvarint(buf, uint64(len(payload)))
	copy(buf[n:], payload)
	_, err := w.Write(buf)
	return err
}

// readFramed reads one length-prefixed frame written by writeFramed.
func readFramed(r *bufio.Reader) ([]byte, error) {
	length, err := varint.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// registerEchoHandler wires the responder side of scenario 3: read one
// framed message, write it back, then close the channel.
func registerEchoHandler(sw pkgif.Switch) {
	sw.SetHandler(echoProtocol, nil, func(ch pkgif.Channel, _ types.ProtocolID, remotePeer types.PeerID) {
		defer ch.Close()
		msg, err := readFramed(bufio.NewReader(ch))
		if err != nil {
			logger.Error("echo handler read failed", "peer", remotePeer.ShortString(), "error", err)
			return
		}
		logger.Info("echo handler received", "peer", remotePeer.ShortString(), "message", string(msg))
		if err := writeFramed(ch, msg); err != nil {
			logger.Error("echo handler write failed", "peer", remotePeer.ShortString(), "error", err)
		}
	})
}

// dialAndEcho is the initiator side of scenario 3: negotiate echoProtocol
// with peer at addr, write "Hello!", and expect it back verbatim.
func dialAndEcho(sw pkgif.Switch, peer types.PeerID, addr string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ch, proto, err := sw.Dial(ctx, peer, []string{addr}, []types.ProtocolID{echoProtocol})
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer ch.Close()
	logger.Info("negotiated protocol", "protocol", proto)

	const payload = "Hello!"
	if err := writeFramed(ch, []byte(payload)); err != nil {
		return fmt.Errorf("write: %w", err)
	}

	br := bufio.NewReader(ch)
	reply, err := readFramed(br)
	if err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	if string(reply) != payload {
		return fmt.Errorf("echo mismatch: sent %q, got %q", payload, reply)
	}

	logger.Info("echo round trip succeeded", "message", string(reply))
	return nil
}
