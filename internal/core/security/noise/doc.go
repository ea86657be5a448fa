// Package noise 实现 Noise_XX_25519_ChaChaPoly_SHA256 安全信道（spec §4.1）。
//
// # 握手
//
//	-> e
//	<- e, ee, s, es, payload
//	-> s, se, payload
//
// payload 携带 Ed25519 身份公钥与对 Noise 静态公钥的签名，
// 用于把 DH 身份绑定回节点的长期身份。
//
// # 记录层
//
// 握手完成后 Split 产生一对 CipherState；每条记录是
// 2 字节大端长度前缀 + 密文 + 16 字节认证 tag，明文分片不超过
// 65519 字节，nonce 按方向单调递增，耗尽即视为致命错误。
package noise
