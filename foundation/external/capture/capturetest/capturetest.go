// Package capturetest provides an in-memory capture device for tests.
package capturetest

import (
	"context"
	"sync"

	"github.com/superfeelapi/pitchFeedback/foundation/external/capture"
)

// Device opens Streams whose fragments are pushed by the test. When Err is
// set, Open fails with it. With IgnoreStop set, streams keep their fragment
// channel open after Stop, like a bridge that never answers the stop frame.
type Device struct {
	Err        error
	IgnoreStop bool

	mu      sync.Mutex
	streams []*Stream
}

func (d *Device) Open(ctx context.Context) (capture.Stream, error) {
	if d.Err != nil {
		return nil, d.Err
	}

	s := &Stream{
		fragments:  make(chan []byte, 256),
		ignoreStop: d.IgnoreStop,
	}

	d.mu.Lock()
	d.streams = append(d.streams, s)
	d.mu.Unlock()

	return s, nil
}

// Last returns the most recently opened stream.
func (d *Device) Last() *Stream {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.streams) == 0 {
		return nil
	}
	return d.streams[len(d.streams)-1]
}

// Opened returns how many streams were opened.
func (d *Device) Opened() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.streams)
}

type Stream struct {
	fragments  chan []byte
	ignoreStop bool

	mu      sync.Mutex
	stopped bool
	closed  bool
}

// Push delivers one fragment. Pushes after the channel closed are ignored.
func (s *Stream) Push(fragment []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.fragments <- fragment
	}
}

func (s *Stream) Fragments() <-chan []byte {
	return s.fragments
}

func (s *Stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	if !s.ignoreStop {
		s.closeLocked()
	}
	return nil
}

func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeLocked()
	return nil
}

func (s *Stream) closeLocked() {
	if !s.closed {
		s.closed = true
		close(s.fragments)
	}
}

// Stopped reports whether Stop was called.
func (s *Stream) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Closed reports whether the fragment channel was closed.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
