package interfaces

import (
	"context"
	"io"
	"time"

	"github.com/corenet/p2pstack/pkg/types"
)

// Channel is a logical bidirectional byte stream inside a muxed Session.
// See spec §3 "MplexChannel".
type Channel interface {
	io.Reader
	io.Writer
	io.Closer

	ID() types.ChannelID

	// CloseWrite half-closes the local write side (spec: local close()).
	CloseWrite() error
	// Reset tears the channel down immediately in both directions.
	Reset() error

	SetDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// StreamHandler is invoked for every remotely-initiated channel.
type StreamHandler func(ch Channel)

// Session wraps one SecureConn and demultiplexes it into Channels.
// See spec §3 "MplexSession", §4.2.
type Session interface {
	OpenChannel(ctx context.Context, name string) (Channel, error)
	AcceptChannel() (Channel, error)

	Close() error
	IsClosed() bool
	NumChannels() int
}

// Muxer negotiates and instantiates a Session over a SecureConn.
type Muxer interface {
	ID() types.ProtocolID
	NewSession(conn SecureConn, isServer bool, handler StreamHandler) (Session, error)
}
