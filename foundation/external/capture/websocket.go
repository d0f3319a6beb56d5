package capture

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// StopMessage is the text frame that asks the bridge to finalize.
	StopMessage = "stop"

	writeTimeout = 5 * time.Second
)

// Bridge is a Device backed by a capture bridge: a local process or page
// that owns the microphone and streams recorder fragments as binary
// WebSocket messages.
type Bridge struct {
	URL    string
	Header http.Header
	Dialer *websocket.Dialer
}

func NewBridge(url string) *Bridge {
	return &Bridge{
		URL:    url,
		Dialer: websocket.DefaultDialer,
	}
}

// Open dials the bridge. A refused or failed dial means the microphone is
// not available to us.
func (b *Bridge) Open(ctx context.Context) (Stream, error) {
	conn, resp, err := b.Dialer.DialContext(ctx, b.URL, b.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: bridge answered %d", ErrUnavailable, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s := &bridgeStream{
		conn:      conn,
		fragments: make(chan []byte, 64),
	}
	go s.readLoop()

	return s, nil
}

type bridgeStream struct {
	conn      *websocket.Conn
	fragments chan []byte

	stopOnce sync.Once
	stopErr  error

	closeOnce sync.Once
	closeErr  error
}

func (s *bridgeStream) Fragments() <-chan []byte {
	return s.fragments
}

func (s *bridgeStream) Stop() error {
	s.stopOnce.Do(func() {
		s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		s.stopErr = s.conn.WriteMessage(websocket.TextMessage, []byte(StopMessage))
		if s.stopErr != nil {
			// The bridge is gone; unblock the reader so the stream finalizes.
			s.Close()
		}
	})
	return s.stopErr
}

// Close tears down the connection. The read loop then ends and closes the
// fragment channel.
func (s *bridgeStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

func (s *bridgeStream) readLoop() {
	defer close(s.fragments)
	defer s.Close()

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		s.fragments <- data
	}
}
