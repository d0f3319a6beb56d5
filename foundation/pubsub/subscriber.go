package pubsub

import "sync"

// Subscriber receives published values on a buffered channel. When the
// buffer is full the oldest pending value is dropped, so a slow reader
// always ends up with the most recent one.
type Subscriber struct {
	payload chan any

	mu     sync.Mutex
	closed bool
}

func NewSubscriber(channelCapacity int) *Subscriber {
	if channelCapacity < 1 {
		channelCapacity = 1
	}
	return &Subscriber{
		payload: make(chan any, channelCapacity),
	}
}

func (s *Subscriber) Signal(data any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	for {
		select {
		case s.payload <- data:
			return
		default:
		}

		select {
		case <-s.payload:
		default:
		}
	}
}

func (s *Subscriber) GetChannel() <-chan any {
	return s.payload
}

func (s *Subscriber) CloseChannel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.payload)
	}
}
