// Package session binds audio acquisition and submission into one state
// machine. All transitions go through Reduce under a single lock, so events
// are applied one at a time in the order they are dispatched.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/superfeelapi/pitchFeedback/business/recorder"
	"github.com/superfeelapi/pitchFeedback/foundation/audio"
	"github.com/superfeelapi/pitchFeedback/foundation/external/analysis"
	"github.com/superfeelapi/pitchFeedback/foundation/metrics"
	"github.com/superfeelapi/pitchFeedback/foundation/pubsub"
	"go.uber.org/zap"
)

// Topic carries a Snapshot after every transition.
const Topic = "session"

// Submitter issues the analysis request for an artifact.
type Submitter interface {
	Submit(ctx context.Context, a *audio.Artifact) (analysis.FeedbackRecord, error)
}

// FeedbackSink receives every completed feedback.
type FeedbackSink interface {
	Produce(ctx context.Context, data interface{}) error
}

// Published is what a FeedbackSink receives.
type Published struct {
	ArtifactID string                  `json:"artifactId"`
	Name       string                  `json:"name"`
	Feedback   analysis.FeedbackRecord `json:"feedback"`
}

type Settings struct {
	Logger    *zap.SugaredLogger
	Recorder  *recorder.Recorder
	Submitter Submitter
	Handles   *audio.Handles
	Broker    *pubsub.Broker
	Sink      FeedbackSink
	Metrics   *metrics.Metrics
}

type Session struct {
	logger    *zap.SugaredLogger
	recorder  *recorder.Recorder
	submitter Submitter
	handles   *audio.Handles
	broker    *pubsub.Broker
	sink      FeedbackSink
	metrics   *metrics.Metrics

	// Submissions are never cancelled by the session, only outlived.
	ctx context.Context
	wg  sync.WaitGroup

	// recMu serializes recording transitions so the recorder's status and
	// State.Recording change together.
	recMu sync.Mutex

	mu    sync.Mutex
	state State
}

func New(s Settings) *Session {
	return &Session{
		logger:    s.Logger,
		recorder:  s.Recorder,
		submitter: s.Submitter,
		handles:   s.Handles,
		broker:    s.Broker,
		sink:      s.Sink,
		metrics:   s.Metrics,
		ctx:       context.Background(),
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Handles returns the registry of the session's playable handles.
func (s *Session) Handles() *audio.Handles {
	return s.handles
}

// Stage stages a, replacing and releasing the previous artifact.
func (s *Session) Stage(a *audio.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(StageArtifact{Artifact: a})
}

// PickFile wraps a user-selected file and stages it.
func (s *Session) PickFile(f *audio.RawFile) (*audio.Artifact, error) {
	a, err := audio.FromFile(s.handles, f)
	if err != nil {
		return nil, err
	}

	if err := s.Stage(a); err != nil {
		s.handles.Release(a.Handle)
		return nil, err
	}

	s.logger.Infow("session: PickFile: staged", "name", a.Name, "bytes", a.SizeBytes)
	return a, nil
}

// Remove unstages the current artifact.
func (s *Session) Remove() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(RemoveArtifact{})
}

// StartRecording begins a live capture. A refused microphone is returned to
// the caller and never stored in the state.
func (s *Session) StartRecording(ctx context.Context) error {
	s.recMu.Lock()
	defer s.recMu.Unlock()

	s.mu.Lock()
	capturing := s.state.Recording == recorder.StatusCapturing
	s.mu.Unlock()

	if capturing {
		return ErrAlreadyInProgress
	}

	if err := s.recorder.Start(ctx); err != nil {
		if errors.Is(err, recorder.ErrAlreadyInProgress) {
			return ErrAlreadyInProgress
		}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(StartRecording{})
}

// StopRecording finalizes the capture and stages the resulting artifact.
func (s *Session) StopRecording(ctx context.Context) (*audio.Artifact, error) {
	s.recMu.Lock()
	defer s.recMu.Unlock()

	a, err := s.recorder.Stop(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.apply(StopRecording{Artifact: a}); err != nil {
		s.handles.Release(a.Handle)
		return nil, err
	}

	return a, nil
}

// Submit sends the staged artifact to the analysis service. It returns as
// soon as the session is Pending; the outcome arrives as a later transition.
// A response for an artifact that is no longer staged is discarded.
func (s *Session) Submit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	artifact := s.state.Staged
	if err := s.apply(SubmitRequested{}); err != nil {
		s.metrics.Submissions.WithLabelValues(metrics.OutcomeRejected).Inc()
		s.logger.Infow("session: Submit: rejected", "reason", err)
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.resolve(artifact)
	}()

	return nil
}

// Wait blocks until every issued submission has resolved.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Close stops an active capture, waits for outstanding submissions and
// releases the staged artifact's playable handle.
func (s *Session) Close(ctx context.Context) error {
	var err error
	if s.recorder.Status() == recorder.StatusCapturing {
		if _, stopErr := s.StopRecording(ctx); stopErr != nil {
			err = stopErr
		}
	}

	s.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	if applyErr := s.apply(RemoveArtifact{}); applyErr != nil && err == nil {
		err = applyErr
	}
	return err
}

// =================================================================================================================

func (s *Session) resolve(artifact *audio.Artifact) {
	feedback, err := s.submitter.Submit(s.ctx, artifact)

	var ev Event = SubmitSucceeded{ArtifactID: artifact.ID, Feedback: feedback}
	if err != nil {
		ev = SubmitFailed{ArtifactID: artifact.ID, Err: err}
	}

	s.mu.Lock()
	applyErr := s.apply(ev)
	s.mu.Unlock()

	if errors.Is(applyErr, ErrStaleResult) {
		s.metrics.StaleResults.Inc()
		s.logger.Infow("session: Submit: discarded stale result", "artifact", artifact.ID)
		return
	}

	if err != nil || s.sink == nil {
		return
	}

	data := Published{
		ArtifactID: artifact.ID.String(),
		Name:       artifact.Name,
		Feedback:   feedback,
	}
	if err := s.sink.Produce(s.ctx, data); err != nil {
		s.logger.Errorw("session: Submit: sink", "ERROR", err)
	}
}

// apply runs the reducer, releases the playable handle of a replaced
// artifact and publishes the new snapshot. s.mu must be held.
func (s *Session) apply(ev Event) error {
	prev := s.state

	next, err := Reduce(prev, ev)
	if err != nil {
		return err
	}
	s.state = next

	if prev.Staged != nil && (next.Staged == nil || next.Staged.ID != prev.Staged.ID) {
		s.handles.Release(prev.Staged.Handle)
	}

	if s.broker != nil {
		s.broker.Publish(Topic, next.Snapshot())
	}

	return nil
}
