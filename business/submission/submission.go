// Package submission owns the request lifecycle of sending one artifact to
// the analysis service.
package submission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/superfeelapi/pitchFeedback/foundation/audio"
	"github.com/superfeelapi/pitchFeedback/foundation/external/analysis"
	"github.com/superfeelapi/pitchFeedback/foundation/metrics"
	"go.uber.org/zap"
)

var (
	ErrNoArtifact        = errors.New("no artifact staged")
	ErrAlreadyInProgress = errors.New("submission already in progress")
	ErrSubmissionFailed  = errors.New("submission failed")
)

// Analyzer issues one analysis request for an artifact.
type Analyzer interface {
	Analyze(ctx context.Context, a *audio.Artifact) (analysis.FeedbackRecord, error)
}

type Settings struct {
	Analyzer Analyzer
	Logger   *zap.SugaredLogger
	Metrics  *metrics.Metrics
}

// Controller sends artifacts to the analysis service. An artifact can have
// at most one request in flight; there is no queuing and no retry.
type Controller struct {
	analyzer Analyzer
	logger   *zap.SugaredLogger
	metrics  *metrics.Metrics

	mu       sync.Mutex
	inFlight map[uuid.UUID]struct{}
}

func New(s Settings) *Controller {
	return &Controller{
		analyzer: s.Analyzer,
		logger:   s.Logger,
		metrics:  s.Metrics,
		inFlight: make(map[uuid.UUID]struct{}),
	}
}

// InFlight returns the number of outstanding requests.
func (c *Controller) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inFlight)
}

// Submit sends the artifact once and blocks until the service answers.
// Transport errors and non-success responses are wrapped in
// ErrSubmissionFailed. A response with absent or wrong-shaped fields is
// still a success; see analysis.FeedbackRecord.Malformed.
func (c *Controller) Submit(ctx context.Context, a *audio.Artifact) (analysis.FeedbackRecord, error) {
	if a == nil {
		return analysis.FeedbackRecord{}, ErrNoArtifact
	}

	if !c.acquire(a.ID) {
		c.metrics.Submissions.WithLabelValues(metrics.OutcomeRejected).Inc()
		return analysis.FeedbackRecord{}, ErrAlreadyInProgress
	}
	defer c.release(a.ID)

	c.logger.Infow("submission: Submit: sending", "artifact", a.ID, "name", a.Name, "bytes", a.SizeBytes)

	start := time.Now()
	feedback, err := c.analyzer.Analyze(ctx, a)
	c.metrics.SubmissionDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		c.metrics.Submissions.WithLabelValues(metrics.OutcomeFailed).Inc()
		c.logger.Errorw("submission: Submit", "artifact", a.ID, "ERROR", err)
		return analysis.FeedbackRecord{}, fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}

	if !feedback.Complete() {
		c.logger.Warnw("submission: Submit: partial feedback", "artifact", a.ID, "malformed", feedback.Malformed)
	}

	c.metrics.Submissions.WithLabelValues(metrics.OutcomeComplete).Inc()
	c.logger.Infow("submission: Submit: complete", "artifact", a.ID)

	return feedback, nil
}

func (c *Controller) acquire(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.inFlight[id]; exists {
		return false
	}
	c.inFlight[id] = struct{}{}
	return true
}

func (c *Controller) release(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, id)
}
