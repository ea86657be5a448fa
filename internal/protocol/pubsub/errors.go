package pubsub

import "errors"

var (
	// ErrTopicAlreadyJoined is returned by Join for a topic already joined.
	ErrTopicAlreadyJoined = errors.New("pubsub: topic already joined")

	// ErrTopicClosed is returned by Topic.Publish after Close.
	ErrTopicClosed = errors.New("pubsub: topic closed")

	// ErrMessageTooLarge is returned when an incoming RPC exceeds the wire
	// frame size cap (spec §4.5 "max 65536 bytes").
	ErrMessageTooLarge = errors.New("pubsub: rpc exceeds maximum frame size")

	// ErrInvalidSignature names a message whose signature does not check out
	// against its key. The receive path drops such messages without
	// returning this error.
	ErrInvalidSignature = errors.New("pubsub: invalid message signature")

	// ErrServiceClosed is returned by Join after Close.
	ErrServiceClosed = errors.New("pubsub: service closed")
)
