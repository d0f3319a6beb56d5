// Package recorder drives live capture: it opens a microphone stream,
// accumulates the fragments it emits and finalizes them into one artifact.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/superfeelapi/pitchFeedback/foundation/audio"
	"github.com/superfeelapi/pitchFeedback/foundation/external/capture"
	"github.com/superfeelapi/pitchFeedback/foundation/metrics"
	"go.uber.org/zap"
)

// Name and mime type of every finalized recording. They match the format
// the capture bridge emits.
const (
	RecordingName     = "recording.webm"
	RecordingMimeType = "audio/webm"
)

// DefaultDrainTimeout bounds how long Stop waits for the stream to deliver
// its remaining fragments.
const DefaultDrainTimeout = 5 * time.Second

var (
	ErrCaptureUnavailable = errors.New("capture unavailable")
	ErrAlreadyInProgress  = errors.New("already in progress")
	ErrNotCapturing       = errors.New("not capturing")
)

type Status int

const (
	StatusIdle Status = iota
	StatusCapturing
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusCapturing:
		return "capturing"
	default:
		return "unknown"
	}
}

type Settings struct {
	Device       capture.Device
	Handles      *audio.Handles
	Logger       *zap.SugaredLogger
	Metrics      *metrics.Metrics
	DrainTimeout time.Duration
}

type Recorder struct {
	device       capture.Device
	handles      *audio.Handles
	logger       *zap.SugaredLogger
	metrics      *metrics.Metrics
	drainTimeout time.Duration

	mu      sync.Mutex
	status  Status
	opening bool
	current *recording
}

// recording is the transient state of one capture session.
type recording struct {
	stream capture.Stream
	done   chan struct{}

	mu        sync.Mutex
	chunks    [][]byte
	size      int64
	finalized bool
}

func New(s Settings) *Recorder {
	drainTimeout := s.DrainTimeout
	if drainTimeout <= 0 {
		drainTimeout = DefaultDrainTimeout
	}

	return &Recorder{
		device:       s.Device,
		handles:      s.Handles,
		logger:       s.Logger,
		metrics:      s.Metrics,
		drainTimeout: drainTimeout,
	}
}

// Status reports whether a capture session is active.
func (r *Recorder) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Buffered returns the number of fragments and bytes accumulated by the
// active capture session.
func (r *Recorder) Buffered() (int, int64) {
	r.mu.Lock()
	rec := r.current
	r.mu.Unlock()

	if rec == nil {
		return 0, 0
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return len(rec.chunks), rec.size
}

// Start opens the capture device and begins accumulating fragments. It is
// only valid while idle; on failure the recorder stays idle.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.status == StatusCapturing || r.opening {
		r.mu.Unlock()
		return ErrAlreadyInProgress
	}
	r.opening = true
	r.mu.Unlock()

	stream, err := r.device.Open(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.opening = false
	if err != nil {
		r.metrics.CaptureFailures.Inc()
		r.logger.Errorw("recorder: Start", "ERROR", err)
		return fmt.Errorf("%w: %w", ErrCaptureUnavailable, err)
	}

	rec := &recording{
		stream: stream,
		done:   make(chan struct{}),
	}
	r.current = rec
	r.status = StatusCapturing

	go r.accumulate(rec)

	r.metrics.RecordingsStarted.Inc()
	r.logger.Infow("recorder: Start: capturing")

	return nil
}

// Stop finalizes the active capture session into an artifact. Fragments are
// concatenated in arrival order. A session without fragments yields a
// zero-byte artifact. If ctx ends or the drain timeout passes before the
// stream has drained, whatever was captured so far is finalized. The stream
// is released in every case.
func (r *Recorder) Stop(ctx context.Context) (*audio.Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusCapturing {
		return nil, ErrNotCapturing
	}
	rec := r.current

	if err := rec.stream.Stop(); err != nil {
		r.logger.Errorw("recorder: Stop: stream", "ERROR", err)
	}

	drain := time.NewTimer(r.drainTimeout)
	defer drain.Stop()

	select {
	case <-rec.done:
	case <-drain.C:
		r.logger.Errorw("recorder: Stop: stream did not drain", "timeout", r.drainTimeout)
	case <-ctx.Done():
		r.logger.Errorw("recorder: Stop: stream did not drain", "ERROR", ctx.Err())
	}

	rec.mu.Lock()
	rec.finalized = true
	data := make([]byte, 0, rec.size)
	for _, chunk := range rec.chunks {
		data = append(data, chunk...)
	}
	fragments := len(rec.chunks)
	rec.chunks = nil
	rec.size = 0
	rec.mu.Unlock()

	if err := rec.stream.Close(); err != nil {
		r.logger.Errorw("recorder: Stop: release stream", "ERROR", err)
	}

	r.current = nil
	r.status = StatusIdle

	artifact := audio.New(r.handles, RecordingName, RecordingMimeType, data)

	r.metrics.RecordingsFinalized.Inc()
	r.logger.Infow("recorder: Stop: finalized", "fragments", fragments, "bytes", artifact.SizeBytes)

	return artifact, nil
}

func (r *Recorder) accumulate(rec *recording) {
	defer close(rec.done)

	for fragment := range rec.stream.Fragments() {
		if len(fragment) == 0 {
			r.metrics.FragmentsDiscarded.Inc()
			continue
		}

		rec.mu.Lock()
		if rec.finalized {
			rec.mu.Unlock()
			continue
		}
		rec.chunks = append(rec.chunks, fragment)
		rec.size += int64(len(fragment))
		rec.mu.Unlock()

		r.metrics.FragmentsAccepted.Inc()
	}
}
