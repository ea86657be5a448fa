// Package noise 实现 Noise XX 安全传输（spec §4.1）。
package noise

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/flynn/noise"

	"github.com/corenet/p2pstack/internal/util/leaktrack"
	pkgif "github.com/corenet/p2pstack/pkg/interfaces"
	"github.com/corenet/p2pstack/pkg/types"
)

// maxPlaintextChunk 是单条 record 允许携带的最大明文长度；更大的写入会被拆分
// 成多条 record（spec §3 SecureConnection invariant）。
const maxPlaintextChunk = 65519

var _ pkgif.SecureConn = (*secureConn)(nil)

// secureConn 是 Noise 记录层：net.Conn 之上叠加一对 CipherState。
type secureConn struct {
	net.Conn

	sendCS *noise.CipherState
	recvCS *noise.CipherState

	// sendNonce tracks how many records have been sent on sendCS, mirroring
	// the nonce flynn/noise increments internally (spec §3: nonce is
	// monotonic per direction, reaching 2⁶⁴-1 is fatal).
	sendNonce uint64

	localPeer  types.PeerID
	remotePeer types.PeerID

	readMu  sync.Mutex
	writeMu sync.Mutex

	readBuf []byte

	id         string
	observer   leaktrack.Observer
	closeOnce  sync.Once
}

// Close reports the SecureConn's closure to the injected leak-tracking
// observer exactly once (spec §9 "Global trackers") before releasing the
// underlying transport connection.
func (c *secureConn) Close() error {
	c.closeOnce.Do(func() {
		c.observer.OnClose(leaktrack.KindSecureConn, c.id)
	})
	return c.Conn.Close()
}

func (c *secureConn) Read(p []byte) (int, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	for len(c.readBuf) == 0 {
		plaintext, err := c.readRecord()
		if err != nil {
			return 0, err
		}
		// 跳过零长度明文（spec §4.1 record layer）。
		if len(plaintext) == 0 {
			continue
		}
		c.readBuf = plaintext
	}

	n := copy(p, c.readBuf)
	c.readBuf = c.readBuf[n:]
	return n, nil
}

// readRecord 读取一条完整 record 并解密。
func (c *secureConn) readRecord() ([]byte, error) {
	lenBuf := make([]byte, 2)
	if _, err := io.ReadFull(c.Conn, lenBuf); err != nil {
		return nil, err
	}

	msgLen := binary.BigEndian.Uint16(lenBuf)
	if msgLen == 0 {
		return nil, nil
	}

	encMsg := make([]byte, msgLen)
	if _, err := io.ReadFull(c.Conn, encMsg); err != nil {
		return nil, err
	}

	plaintext, err := c.recvCS.Decrypt(nil, nil, encMsg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptFailed, err)
	}
	return plaintext, nil
}

func (c *secureConn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	written := 0
	for len(p) > 0 {
		chunk := p
		if len(chunk) > maxPlaintextChunk {
			chunk = chunk[:maxPlaintextChunk]
		}

		if c.sendNonce == ^uint64(0) {
			return written, ErrNonceExhausted
		}

		ciphertext, err := c.sendCS.Encrypt(nil, nil, chunk)
		if err != nil {
			return written, fmt.Errorf("noise: encrypt: %w", err)
		}
		c.sendNonce++

		lenBuf := make([]byte, 2)
		binary.BigEndian.PutUint16(lenBuf, uint16(len(ciphertext)))
		if _, err := c.Conn.Write(lenBuf); err != nil {
			return written, err
		}
		if _, err := c.Conn.Write(ciphertext); err != nil {
			return written, err
		}

		written += len(chunk)
		p = p[len(chunk):]
	}
	return written, nil
}

func (c *secureConn) LocalPeer() types.PeerID  { return c.localPeer }
func (c *secureConn) RemotePeer() types.PeerID { return c.remotePeer }
