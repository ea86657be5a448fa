// Package crypto 提供节点身份所需的最小密码学工具
//
// 密钥生成、签名、序列化和 PeerID 派生，仅覆盖 Ed25519 —— 它同时承担
// 节点身份签名与 Noise XX 静态密钥（经 Ed25519→Curve25519 转换）两个角色，
// 没有必要引入额外的曲线。密钥对的生成本身被视为调用方职责：本包只消费
// 已生成的密钥，不提供密钥库持久化。
//
// # 快速开始
//
// 生成密钥对：
//
//	priv, pub, err := crypto.GenerateKeyPair(crypto.KeyTypeEd25519)
//
// 签名和验证：
//
//	sig, err := crypto.Sign(priv, data)
//	valid, err := crypto.Verify(pub, data, sig)
//
// 从公钥派生 PeerID：
//
//	peerID, err := crypto.PeerIDFromPublicKey(pub)
//
// # 安全特性
//
//   - 常量时间比较防止时序攻击
package crypto
