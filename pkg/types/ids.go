package types

import (
	"encoding/hex"
	"errors"
)

// ============================================================================
//                              PeerID - 节点标识
// ============================================================================

// PeerID 是节点的稳定标识符，由其长期公钥派生（SHA-256 摘要）。
// 比较与哈希均按字节表示进行，一旦生成即不可变。
//
// 完整的自描述 multihash 前缀（code + length）被视为多地址解析的一部分，
// 不在本包职责范围内——这里只保留裸摘要，调用方如需与 multiaddr 生态
// 互操作，自行加上 multihash 前缀。
type PeerID [32]byte

// EmptyPeerID 空节点 ID
var EmptyPeerID PeerID

// ErrInvalidPeerID 无效的 PeerID 错误
var ErrInvalidPeerID = errors.New("invalid peer id: must be base58-encoded 32 bytes")

// String 返回 PeerID 的 Base58 字符串表示
func (id PeerID) String() string {
	if id.IsEmpty() {
		return ""
	}
	return Base58Encode(id[:])
}

// ShortString 返回 PeerID 的短字符串表示（前 8 个字符），用于日志
func (id PeerID) ShortString() string {
	s := id.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// Bytes 返回 PeerID 的字节切片
func (id PeerID) Bytes() []byte {
	return id[:]
}

// Equal 比较两个 PeerID 是否相等
func (id PeerID) Equal(other PeerID) bool {
	return id == other
}

// IsEmpty 检查 PeerID 是否为空
func (id PeerID) IsEmpty() bool {
	return id == EmptyPeerID
}

// PeerIDFromBytes 从 32 字节切片构造 PeerID
func PeerIDFromBytes(b []byte) (PeerID, error) {
	if len(b) != 32 {
		return EmptyPeerID, ErrInvalidPeerID
	}
	var id PeerID
	copy(id[:], b)
	return id, nil
}

// ParsePeerID 从 Base58 字符串解析 PeerID
func ParsePeerID(s string) (PeerID, error) {
	if s == "" {
		return EmptyPeerID, ErrInvalidPeerID
	}
	b, err := Base58Decode(s)
	if err != nil || len(b) != 32 {
		return EmptyPeerID, ErrInvalidPeerID
	}
	return PeerIDFromBytes(b)
}

// ============================================================================
//                              ChannelID / StreamID - 流标识
// ============================================================================

// ChannelID 是 mplex 会话内一个双向流的编号，由发起方分配并在双方共享。
type ChannelID uint64

// String 返回 ChannelID 的十六进制表示
func (id ChannelID) String() string {
	return hex.EncodeToString([]byte{
		byte(id >> 56), byte(id >> 48), byte(id >> 40), byte(id >> 32),
		byte(id >> 24), byte(id >> 16), byte(id >> 8), byte(id),
	})
}

// ============================================================================
//                              ProtocolID - 协议标识
// ============================================================================

// ProtocolID 是 multistream-select 协商的协议名，格式约定为 /name/version
type ProtocolID string

// String 返回协议 ID 字符串
func (p ProtocolID) String() string {
	return string(p)
}
