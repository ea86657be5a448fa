package main

import (
	"context"
	"net"

	pkgif "github.com/corenet/p2pstack/pkg/interfaces"
)

// tcpTransport is the minimal pkgif.Transport the demo supplies itself:
// the module deliberately leaves address/transport glue out of its core
// scope (spec §1/§6), so a caller that actually wants to open sockets has
// to bring its own.
type tcpTransport struct {
	dialer net.Dialer
}

var _ pkgif.Transport = (*tcpTransport)(nil)

func (t *tcpTransport) Dial(ctx context.Context, addr string) (net.Conn, error) {
	return t.dialer.DialContext(ctx, "tcp", addr)
}

func (t *tcpTransport) Listen(addr string) (pkgif.Listener, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return l, nil
}
