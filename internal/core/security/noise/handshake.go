// Noise XX 握手流程（spec §4.1）：
//
//	-> e
//	<- e, ee, s, es, payload
//	-> s, se, payload
//
// payload 内容：
//   - identity_key: Ed25519 身份公钥（序列化）
//   - identity_sig: Sign("noise-libp2p-static-key:" + curve25519_static_pubkey)
package noise

import (
	"crypto/ed25519"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"filippo.io/edwards25519"
	"github.com/flynn/noise"

	"github.com/corenet/p2pstack/internal/util/leaktrack"
	"github.com/corenet/p2pstack/pkg/lib/crypto"
	noisepb "github.com/corenet/p2pstack/pkg/lib/proto/noise"
	"github.com/corenet/p2pstack/pkg/types"
)

// payloadSigPrefix 绑定 Noise 静态公钥与节点身份签名。
const payloadSigPrefix = "noise-libp2p-static-key:"

// performHandshake 执行一次 Noise XX 握手并返回建立好的 secureConn。
// remotePeer 非空时在握手完成后校验对端身份。 obs is notified once the
// SecureConn is established (spec §9 "Global trackers" — injected observer).
func performHandshake(conn net.Conn, privKey crypto.PrivateKey, remotePeer types.PeerID, isInitiator bool, obs leaktrack.Observer) (*secureConn, error) {
	privKeyBytes, err := privKey.Raw()
	if err != nil {
		return nil, fmt.Errorf("get private key bytes: %w", err)
	}
	pubKeyBytes, err := privKey.GetPublic().Raw()
	if err != nil {
		return nil, fmt.Errorf("get public key bytes: %w", err)
	}

	curve25519Priv := ed25519ToCurve25519Private(privKeyBytes)
	curve25519Pub := ed25519ToCurve25519Public(pubKeyBytes)

	cs := noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashSHA256)
	staticKeypair := noise.DHKey{Private: curve25519Priv, Public: curve25519Pub}

	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   cs,
		Pattern:       noise.HandshakeXX,
		Initiator:     isInitiator,
		StaticKeypair: staticKeypair,
	})
	if err != nil {
		return nil, fmt.Errorf("create handshake state: %w", err)
	}

	localPayload, err := generateHandshakePayload(privKey, curve25519Pub)
	if err != nil {
		return nil, fmt.Errorf("generate handshake payload: %w", err)
	}

	var sendCS, recvCS *noise.CipherState
	var remotePayload []byte
	if isInitiator {
		sendCS, recvCS, remotePayload, err = clientHandshake(conn, hs, localPayload)
	} else {
		sendCS, recvCS, remotePayload, err = serverHandshake(conn, hs, localPayload)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}

	remoteStatic := hs.PeerStatic()
	if len(remoteStatic) != 32 {
		return nil, fmt.Errorf("%w: invalid remote static key length %d", ErrHandshakeFailed, len(remoteStatic))
	}

	actualRemotePeer, err := handleRemotePayload(remotePayload, remoteStatic)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}

	if !remotePeer.IsEmpty() && !actualRemotePeer.Equal(remotePeer) {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrPeerIDMismatch, remotePeer.ShortString(), actualRemotePeer.ShortString())
	}

	localPeer, err := derivePeerIDFromEd25519(pubKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("derive local peer id: %w", err)
	}

	sc := &secureConn{
		Conn:       conn,
		sendCS:     sendCS,
		recvCS:     recvCS,
		localPeer:  localPeer,
		remotePeer: actualRemotePeer,
		observer:   obs,
	}
	sc.id = fmt.Sprintf("%s->%s/%p", localPeer.ShortString(), actualRemotePeer.ShortString(), sc)
	sc.observer.OnOpen(leaktrack.KindSecureConn, sc.id)
	return sc, nil
}

// generateHandshakePayload 构造 Noise 握手 payload：身份公钥 + 绑定签名。
func generateHandshakePayload(privKey crypto.PrivateKey, curve25519Pub []byte) ([]byte, error) {
	pubKeyBytes, err := crypto.MarshalPublicKey(privKey.GetPublic())
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}

	toSign := append([]byte(payloadSigPrefix), curve25519Pub...)
	signature, err := privKey.Sign(toSign)
	if err != nil {
		return nil, fmt.Errorf("sign payload: %w", err)
	}

	payload := &noisepb.NoiseHandshakePayload{
		IdentityKey: pubKeyBytes,
		IdentitySig: signature,
	}
	return payload.Marshal()
}

// handleRemotePayload 验证远端 payload 的签名绑定并派生其 PeerID。
func handleRemotePayload(payloadBytes []byte, remoteStatic []byte) (types.PeerID, error) {
	payload := &noisepb.NoiseHandshakePayload{}
	if err := payload.Unmarshal(payloadBytes); err != nil {
		return types.EmptyPeerID, fmt.Errorf("unmarshal payload: %w", err)
	}

	remotePubKey, err := crypto.UnmarshalPublicKeyBytes(payload.IdentityKey)
	if err != nil {
		return types.EmptyPeerID, fmt.Errorf("unmarshal remote public key: %w", err)
	}

	toVerify := append([]byte(payloadSigPrefix), remoteStatic...)
	valid, err := remotePubKey.Verify(toVerify, payload.IdentitySig)
	if err != nil {
		return types.EmptyPeerID, fmt.Errorf("verify signature: %w", err)
	}
	if !valid {
		return types.EmptyPeerID, fmt.Errorf("remote static key not bound to identity key")
	}

	return crypto.PeerIDFromPublicKey(remotePubKey)
}

// clientHandshake 发起者侧：-> e, <- e,ee,s,es,payload, -> s,se,payload。
func clientHandshake(conn net.Conn, hs *noise.HandshakeState, localPayload []byte) (*noise.CipherState, *noise.CipherState, []byte, error) {
	msg1, _, _, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("write message 1: %w", err)
	}
	if err := writeFrame(conn, msg1); err != nil {
		return nil, nil, nil, fmt.Errorf("send message 1: %w", err)
	}

	msg2, err := readFrame(conn)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("receive message 2: %w", err)
	}
	remotePayload, _, _, err := hs.ReadMessage(nil, msg2)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read message 2: %w", err)
	}

	msg3, cs1, cs2, err := hs.WriteMessage(nil, localPayload)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("write message 3: %w", err)
	}
	if err := writeFrame(conn, msg3); err != nil {
		return nil, nil, nil, fmt.Errorf("send message 3: %w", err)
	}

	// initiator 用 cs1 发送、cs2 接收。
	return cs1, cs2, remotePayload, nil
}

// serverHandshake 响应者侧：<- e, -> e,ee,s,es,payload, <- s,se,payload。
func serverHandshake(conn net.Conn, hs *noise.HandshakeState, localPayload []byte) (*noise.CipherState, *noise.CipherState, []byte, error) {
	msg1, err := readFrame(conn)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("receive message 1: %w", err)
	}
	if _, _, _, err = hs.ReadMessage(nil, msg1); err != nil {
		return nil, nil, nil, fmt.Errorf("read message 1: %w", err)
	}

	msg2, _, _, err := hs.WriteMessage(nil, localPayload)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("write message 2: %w", err)
	}
	if err := writeFrame(conn, msg2); err != nil {
		return nil, nil, nil, fmt.Errorf("send message 2: %w", err)
	}

	msg3, err := readFrame(conn)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("receive message 3: %w", err)
	}
	remotePayload, cs1, cs2, err := hs.ReadMessage(nil, msg3)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read message 3: %w", err)
	}

	// responder 相反：cs2 发送、cs1 接收。
	return cs2, cs1, remotePayload, nil
}

// ed25519ToCurve25519Private 转换 Ed25519 私钥种子到 Curve25519（RFC 7748/8032）。
func ed25519ToCurve25519Private(edPriv []byte) []byte {
	var seed []byte
	switch len(edPriv) {
	case ed25519.PrivateKeySize:
		seed = edPriv[:32]
	case 32:
		seed = edPriv
	default:
		return make([]byte, 32)
	}

	h := sha512.Sum512(seed)
	h[0] &= 248
	h[31] &= 127
	h[31] |= 64
	return h[:32]
}

// ed25519ToCurve25519Public 用 Edwards->Montgomery 转换公式：u = (1+y)/(1-y)。
func ed25519ToCurve25519Public(edPub []byte) []byte {
	if len(edPub) != ed25519.PublicKeySize {
		return make([]byte, 32)
	}
	point, err := new(edwards25519.Point).SetBytes(edPub)
	if err != nil {
		return make([]byte, 32)
	}
	return point.BytesMontgomery()
}

// writeFrame/readFrame 是握手阶段专用的 2 字节长度前缀帧（与记录层独立，
// 握手消息不走 CipherState）。
func writeFrame(w io.Writer, data []byte) error {
	lenBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(lenBuf, uint16(len(data)))
	if _, err := w.Write(lenBuf); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	lenBuf := make([]byte, 2)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint16(lenBuf)
	if length == 0 {
		return nil, nil
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}

func derivePeerIDFromEd25519(pubKeyBytes []byte) (types.PeerID, error) {
	if len(pubKeyBytes) != ed25519.PublicKeySize {
		return types.EmptyPeerID, fmt.Errorf("invalid ed25519 public key length: %d", len(pubKeyBytes))
	}
	pubKey, err := crypto.UnmarshalEd25519PublicKey(pubKeyBytes)
	if err != nil {
		return types.EmptyPeerID, fmt.Errorf("unmarshal ed25519 public key: %w", err)
	}
	return crypto.PeerIDFromPublicKey(pubKey)
}
