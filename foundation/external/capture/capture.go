// Package capture provides microphone devices that deliver raw audio
// fragments to a recorder.
package capture

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by Open when access is denied or no capture
// capability exists.
var ErrUnavailable = errors.New("capture unavailable")

// Stream is an open capture stream.
type Stream interface {
	// Fragments delivers raw fragments in arrival order. The channel is
	// closed once the stream has finalized.
	Fragments() <-chan []byte

	// Stop asks the stream to finalize. Fragments already captured are
	// still delivered before the channel closes.
	Stop() error

	// Close releases the stream at once, dropping anything not yet
	// delivered, and closes the fragment channel.
	Close() error
}

// Device opens capture streams. Open may block while the user or the OS
// decides on permission.
type Device interface {
	Open(ctx context.Context) (Stream, error)
}

// Unavailable is a Device for hosts without any capture capability.
type Unavailable struct{}

func (Unavailable) Open(context.Context) (Stream, error) {
	return nil, ErrUnavailable
}
