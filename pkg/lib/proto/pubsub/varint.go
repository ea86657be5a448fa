package pubsub

import "errors"

// ErrInvalidWire 表示解码过程中遇到了格式错误的 protobuf 字节流
var ErrInvalidWire = errors.New("invalid pubsub wire data")

func appendVarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

// consumeVarint 返回解码后的值与消费的字节数；n < 0 表示数据不足或溢出
func consumeVarint(data []byte) (uint64, int) {
	var v uint64
	for i := 0; i < len(data) && i < 10; i++ {
		b := data[i]
		if i == 9 && b > 1 {
			return 0, -1 // 超过 64 位
		}
		v |= uint64(b&0x7f) << (7 * i)
		if b < 0x80 {
			return v, i + 1
		}
	}
	return 0, -1
}

func appendTag(buf []byte, field int, wireType byte) []byte {
	return appendVarint(buf, uint64(field)<<3|uint64(wireType))
}

func appendLenDelim(buf []byte, field int, data []byte) []byte {
	buf = appendTag(buf, field, 2)
	buf = appendVarint(buf, uint64(len(data)))
	return append(buf, data...)
}

func appendString(buf []byte, field int, s string) []byte {
	return appendLenDelim(buf, field, []byte(s))
}

func appendBool(buf []byte, field int, v bool) []byte {
	buf = appendTag(buf, field, 0)
	if v {
		return appendVarint(buf, 1)
	}
	return appendVarint(buf, 0)
}

func appendUint64(buf []byte, field int, v uint64) []byte {
	buf = appendTag(buf, field, 0)
	return appendVarint(buf, v)
}

// readLenDelim 消费一个 length-delimited 字段的值，返回其内容与总消费字节数
func readLenDelim(data []byte) ([]byte, int, error) {
	length, n := consumeVarint(data)
	if n < 0 || uint64(len(data)-n) < length {
		return nil, 0, ErrInvalidWire
	}
	return data[n : n+int(length)], n + int(length), nil
}
