// Package crypto 提供节点身份密钥的最小密码学支持
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"io"
)

// ============================================================================
//                              密钥类型定义
// ============================================================================

// KeyType 密钥类型
//
// 目前只支持 Ed25519：它同时覆盖了节点身份签名和 Noise 静态密钥
// （通过 Ed25519→Curve25519 转换）两个用途，不需要额外的曲线。
type KeyType int

const (
	// KeyTypeUnspecified 未指定密钥类型
	KeyTypeUnspecified KeyType = 0
	// KeyTypeEd25519 Ed25519 密钥（唯一支持的类型）
	KeyTypeEd25519 KeyType = 2
)

// String 返回密钥类型名称
func (kt KeyType) String() string {
	switch kt {
	case KeyTypeEd25519:
		return "Ed25519"
	default:
		return "Unspecified"
	}
}

// ============================================================================
//                              密钥接口定义
// ============================================================================

// Key 基础密钥接口
type Key interface {
	// Raw 返回原始密钥字节
	Raw() ([]byte, error)

	// Type 返回密钥类型
	Type() KeyType

	// Equals 比较两个密钥是否相等
	Equals(Key) bool
}

// PublicKey 公钥接口
type PublicKey interface {
	Key

	// Verify 使用此公钥验证签名
	Verify(data, sig []byte) (bool, error)
}

// PrivateKey 私钥接口
type PrivateKey interface {
	Key

	// Sign 使用此私钥签名数据
	Sign(data []byte) ([]byte, error)

	// GetPublic 返回对应的公钥
	GetPublic() PublicKey
}

// ============================================================================
//                              密钥工厂函数
// ============================================================================

// GenerateKeyPair 使用系统随机源生成 Ed25519 密钥对
func GenerateKeyPair(keyType KeyType) (PrivateKey, PublicKey, error) {
	return GenerateKeyPairWithReader(keyType, rand.Reader)
}

// GenerateKeyPairWithReader 使用指定的随机源生成密钥对（测试中用于确定性生成）
func GenerateKeyPairWithReader(keyType KeyType, reader io.Reader) (PrivateKey, PublicKey, error) {
	switch keyType {
	case KeyTypeEd25519:
		return GenerateEd25519Key(reader)
	default:
		return nil, nil, ErrBadKeyType
	}
}

// ============================================================================
//                              反序列化函数
// ============================================================================

// UnmarshalPublicKey 从字节反序列化公钥
func UnmarshalPublicKey(keyType KeyType, data []byte) (PublicKey, error) {
	if keyType != KeyTypeEd25519 {
		return nil, ErrBadKeyType
	}
	return UnmarshalEd25519PublicKey(data)
}

// UnmarshalPrivateKey 从字节反序列化私钥
func UnmarshalPrivateKey(keyType KeyType, data []byte) (PrivateKey, error) {
	if keyType != KeyTypeEd25519 {
		return nil, ErrBadKeyType
	}
	return UnmarshalEd25519PrivateKey(data)
}

// ============================================================================
//                              辅助函数
// ============================================================================

// KeyEqual 使用常量时间比较两个密钥是否相等，防止时序攻击
func KeyEqual(k1, k2 Key) bool {
	if k1.Type() != k2.Type() {
		return false
	}

	b1, err1 := k1.Raw()
	b2, err2 := k2.Raw()

	if err1 != nil || err2 != nil {
		return false
	}

	return subtle.ConstantTimeCompare(b1, b2) == 1
}

// RandomBytes 生成指定长度的加密安全随机字节
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := io.ReadFull(rand.Reader, b)
	return b, err
}
