package core

import "errors"

// Frame is one encoded message for the wire.
type Frame []byte

var (
	ErrBackpressure     = errors.New("backpressure")
	ErrConnectionClosed = errors.New("connection closed")
)

// SignalConnection abstracts the push transport of one client.
// Owned by the adapter; the adapter must Close() it.
// TrySend never blocks: a full buffer returns ErrBackpressure.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
