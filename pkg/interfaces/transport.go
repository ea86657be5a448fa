package interfaces

import (
	"context"
	"net"
)

// Transport is the external collaborator that turns network addresses into
// raw byte streams. Per spec §1/§6 this is deliberately out of the module's
// core scope (TCP accept/dial glue, multiaddress parsing) — the Switch only
// consumes this narrow contract.
type Transport interface {
	Dial(ctx context.Context, addr string) (net.Conn, error)
	Listen(addr string) (Listener, error)
}

// Listener produces inbound raw connections.
type Listener interface {
	Accept() (net.Conn, error)
	Close() error
	Addr() net.Addr
}
