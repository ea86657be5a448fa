// Package negotiation 实现 multistream-select 协议协商（spec §4.3）。
//
// 每条消息是 varint(len) || utf8 || '\n'；len 计入末尾的换行符。
// 头部协议 id 固定为 /multistream/1.0.0，双方连接建立后立即互发。
// "na\n" 表示不支持；"ls\n" 请求已注册协议的清单。
package negotiation
