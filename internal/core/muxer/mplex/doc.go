// Package mplex 实现 Mplex 流多路复用器（spec §4.2）。
//
// 一个 Session 在单条 SecureConnection 上承载多条独立、带流控的
// Channel；每帧格式为 varint(header) || varint(length) || payload，
// header = (channel_id << 3) | tag，会话读循环单线程运行，
// 写路径由单把锁串行化。
package mplex
