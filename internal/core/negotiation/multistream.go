package negotiation

import (
	"bufio"
	"fmt"
	"io"

	"github.com/multiformats/go-varint"

	pkgif "github.com/corenet/p2pstack/pkg/interfaces"
	"github.com/corenet/p2pstack/pkg/types"
)

// headerProtocolID is sent by both sides immediately on every multistream
// handshake (spec §4.3 "Wire format").
const headerProtocolID = "/multistream/1.0.0"

const (
	naMessage = "na"
	lsMessage = "ls"
)

// Negotiator implements pkgif.Negotiator.
type Negotiator struct{}

var _ pkgif.Negotiator = (*Negotiator)(nil)

// New returns the stateless multistream-select negotiator.
func New() *Negotiator { return &Negotiator{} }

// writeRaw writes one length-prefixed frame verbatim: varint(len(payload)) || payload.
func writeRaw(w io.Writer, payload []byte) error {
	buf := make([]byte, varint.UvarintSize(uint64(len(payload)))+len(payload))
	n := varint.PutUvarint(buf, uint64(len(payload)))
	copy(buf[n:], payload)
	_, err := w.Write(buf)
	return err
}

// writeMessage sends content as a newline-terminated message (spec §4.3).
func writeMessage(w io.Writer, content string) error {
	return writeRaw(w, []byte(content+"\n"))
}

// readMessage reads one length-prefixed message and strips its trailing
// newline.
func readMessage(r *bufio.Reader) (string, error) {
	length, err := varint.ReadUvarint(r)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNegotiationFailed, err)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("%w: %v", ErrNegotiationFailed, err)
	}
	if length == 0 || buf[length-1] != '\n' {
		return "", fmt.Errorf("%w: message not newline-terminated", ErrNegotiationFailed)
	}
	return string(buf[:length-1]), nil
}

func bufReader(rw io.ReadWriter) *bufio.Reader {
	return bufio.NewReader(rw)
}

// SelectOne runs the initiator side of multistream-select (spec §4.3
// "Algorithm (initiator)").
func (n *Negotiator) SelectOne(rw io.ReadWriter, protocols []types.ProtocolID) (types.ProtocolID, error) {
	r := bufReader(rw)

	if err := writeMessage(rw, headerProtocolID); err != nil {
		return "", err
	}
	reply, err := readMessage(r)
	if err != nil {
		return "", err
	}
	if reply != headerProtocolID {
		return "", fmt.Errorf("%w: unexpected header %q", ErrNegotiationFailed, reply)
	}

	for _, id := range protocols {
		if err := writeMessage(rw, string(id)); err != nil {
			return "", err
		}
		reply, err := readMessage(r)
		if err != nil {
			return "", err
		}
		if reply == string(id) {
			return id, nil
		}
		if reply != naMessage {
			return "", fmt.Errorf("%w: unexpected reply %q", ErrNegotiationFailed, reply)
		}
	}
	return "", ErrProtocolNotSupported
}

// Negotiate runs the responder side (spec §4.3 "Algorithm (responder)").
func (n *Negotiator) Negotiate(rw io.ReadWriter, registrations []pkgif.Registration) (types.ProtocolID, error) {
	r := bufReader(rw)

	header, err := readMessage(r)
	if err != nil {
		return "", err
	}
	if header != headerProtocolID {
		return "", fmt.Errorf("%w: unexpected header %q", ErrNegotiationFailed, header)
	}
	if err := writeMessage(rw, headerProtocolID); err != nil {
		return "", err
	}

	for {
		requested, err := readMessage(r)
		if err != nil {
			return "", err
		}

		if requested == lsMessage {
			if err := n.replyListing(rw, registrations); err != nil {
				return "", err
			}
			continue
		}

		id := types.ProtocolID(requested)
		if n.matches(id, registrations) {
			if err := writeMessage(rw, requested); err != nil {
				return "", err
			}
			return id, nil
		}
		if err := writeMessage(rw, naMessage); err != nil {
			return "", err
		}
	}
}

func (n *Negotiator) matches(id types.ProtocolID, registrations []pkgif.Registration) bool {
	for _, reg := range registrations {
		if reg.ID == id {
			return true
		}
		if reg.Matcher != nil && reg.Matcher(id) {
			return true
		}
	}
	return false
}

// replyListing answers "ls" with one message: the concatenation of every
// registered protocol id, each newline-terminated (spec §4.3 "Wire format").
func (n *Negotiator) replyListing(w io.Writer, registrations []pkgif.Registration) error {
	var content []byte
	for _, reg := range registrations {
		content = append(content, []byte(string(reg.ID)+"\n")...)
	}
	return writeRaw(w, content)
}
