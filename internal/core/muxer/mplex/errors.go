package mplex

import "errors"

var (
	// ErrInvalidMessageType 表示帧携带了未知的 tag。
	ErrInvalidMessageType = errors.New("mplex: invalid message type")

	// ErrMaxSizeExceeded 表示帧 payload 超过 maxMessageSize。
	ErrMaxSizeExceeded = errors.New("mplex: message size exceeds limit")

	// ErrChannelReset 表示本地或远端已经重置了该 channel。
	ErrChannelReset = errors.New("mplex: channel reset")

	// ErrChannelClosed 表示向一个已经本地关闭的 channel 写入。
	ErrChannelClosed = errors.New("mplex: channel closed")

	// ErrSessionClosed 表示会话已经关闭，不能再打开/接受新 channel。
	ErrSessionClosed = errors.New("mplex: session closed")

	// errDirectionViolation 表示帧携带的 tag 暗示的发起方与会话记录的
	// channel 发起方不一致（spec §9 REDESIGN FLAGS：必须视为会话致命错误）。
	errDirectionViolation = errors.New("mplex: tag/direction mismatch for channel")
)
