// Package types 定义网络栈的基础值类型
//
// 这是最底层的包，不依赖其他内部包，供 pkg/lib、internal/core、
// internal/protocol 共同引用。
package types

import "github.com/mr-tron/base58"

// Base58Encode 将字节切片编码为 Base58 字符串（Bitcoin 字母表）
func Base58Encode(input []byte) string {
	if len(input) == 0 {
		return ""
	}
	return base58.Encode(input)
}

// Base58Decode 将 Base58 字符串解码为字节切片
func Base58Decode(input string) ([]byte, error) {
	if input == "" {
		return nil, nil
	}
	return base58.Decode(input)
}
