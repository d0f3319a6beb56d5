package session

import (
	"errors"

	"github.com/google/uuid"
	"github.com/superfeelapi/pitchFeedback/business/recorder"
	"github.com/superfeelapi/pitchFeedback/business/submission"
	"github.com/superfeelapi/pitchFeedback/foundation/audio"
	"github.com/superfeelapi/pitchFeedback/foundation/external/analysis"
)

var (
	ErrNoArtifact        = submission.ErrNoArtifact
	ErrAlreadyInProgress = submission.ErrAlreadyInProgress
	ErrNotCapturing      = recorder.ErrNotCapturing
	ErrStaleResult       = errors.New("result belongs to an artifact that is no longer staged")
	ErrUnknownEvent      = errors.New("unknown event")
)

// Phase is the submission phase of the staged artifact.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseComplete
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePending:
		return "pending"
	case PhaseComplete:
		return "complete"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is the single source of truth of a session.
//
// Submission is Pending only while an artifact is staged, and Feedback is
// set only while Submission is Complete. Changing the staged artifact clears
// Feedback and Err and returns Submission to Idle.
type State struct {
	Staged     *audio.Artifact
	Recording  recorder.Status
	Submission Phase
	Feedback   *analysis.FeedbackRecord
	Err        error
}

// =================================================================================================================

type Event interface {
	event()
}

type StageArtifact struct {
	Artifact *audio.Artifact
}

type RemoveArtifact struct{}

type StartRecording struct{}

// StopRecording carries the artifact the recorder finalized.
type StopRecording struct {
	Artifact *audio.Artifact
}

type SubmitRequested struct{}

type SubmitSucceeded struct {
	ArtifactID uuid.UUID
	Feedback   analysis.FeedbackRecord
}

type SubmitFailed struct {
	ArtifactID uuid.UUID
	Err        error
}

func (StageArtifact) event()   {}
func (RemoveArtifact) event()  {}
func (StartRecording) event()  {}
func (StopRecording) event()   {}
func (SubmitRequested) event() {}
func (SubmitSucceeded) event() {}
func (SubmitFailed) event()    {}

// =================================================================================================================

// Reduce applies ev to s. A rejected event returns s unchanged together
// with the reason.
func Reduce(s State, ev Event) (State, error) {
	switch e := ev.(type) {
	case StageArtifact:
		if e.Artifact == nil {
			return s, ErrNoArtifact
		}
		return stage(s, e.Artifact), nil

	case RemoveArtifact:
		return stage(s, nil), nil

	case StartRecording:
		if s.Recording == recorder.StatusCapturing {
			return s, ErrAlreadyInProgress
		}
		s.Recording = recorder.StatusCapturing
		return s, nil

	case StopRecording:
		if s.Recording != recorder.StatusCapturing {
			return s, ErrNotCapturing
		}
		s.Recording = recorder.StatusIdle
		if e.Artifact != nil {
			s = stage(s, e.Artifact)
		}
		return s, nil

	case SubmitRequested:
		if s.Staged == nil {
			return s, ErrNoArtifact
		}
		if s.Submission == PhasePending {
			return s, ErrAlreadyInProgress
		}
		s.Submission = PhasePending
		s.Feedback = nil
		s.Err = nil
		return s, nil

	case SubmitSucceeded:
		if !awaiting(s, e.ArtifactID) {
			return s, ErrStaleResult
		}
		feedback := e.Feedback
		s.Submission = PhaseComplete
		s.Feedback = &feedback
		s.Err = nil
		return s, nil

	case SubmitFailed:
		if !awaiting(s, e.ArtifactID) {
			return s, ErrStaleResult
		}
		s.Submission = PhaseFailed
		s.Feedback = nil
		s.Err = e.Err
		return s, nil
	}

	return s, ErrUnknownEvent
}

func stage(s State, a *audio.Artifact) State {
	s.Staged = a
	s.Submission = PhaseIdle
	s.Feedback = nil
	s.Err = nil
	return s
}

// awaiting reports whether a response for id is the one s is waiting for.
func awaiting(s State, id uuid.UUID) bool {
	return s.Staged != nil && s.Staged.ID == id && s.Submission == PhasePending
}

// =================================================================================================================

type ArtifactInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SizeBytes int64  `json:"sizeBytes"`
	Size      string `json:"size"`
	MimeType  string `json:"mimeType"`
	Handle    string `json:"handle"`
}

// Snapshot is the presentation view of a State.
type Snapshot struct {
	Artifact   *ArtifactInfo            `json:"artifact"`
	Recording  string                   `json:"recording"`
	Submission string                   `json:"submission"`
	Feedback   *analysis.FeedbackRecord `json:"feedback"`
	Error      string                   `json:"error,omitempty"`
}

func (s State) Snapshot() Snapshot {
	snap := Snapshot{
		Recording:  s.Recording.String(),
		Submission: s.Submission.String(),
		Feedback:   s.Feedback,
	}

	if a := s.Staged; a != nil {
		snap.Artifact = &ArtifactInfo{
			ID:        a.ID.String(),
			Name:      a.Name,
			SizeBytes: a.SizeBytes,
			Size:      audio.FormatSize(a.SizeBytes),
			MimeType:  a.MimeType,
			Handle:    string(a.Handle),
		}
	}

	if s.Err != nil {
		snap.Error = s.Err.Error()
	}

	return snap
}
