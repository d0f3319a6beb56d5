package session_test

import (
	"errors"
	"testing"

	"github.com/superfeelapi/pitchFeedback/business/recorder"
	"github.com/superfeelapi/pitchFeedback/business/session"
	"github.com/superfeelapi/pitchFeedback/foundation/audio"
	"github.com/superfeelapi/pitchFeedback/foundation/external/analysis"
)

func artifact(name string) *audio.Artifact {
	return audio.New(audio.NewHandles(), name, "audio/mpeg", []byte(name))
}

func TestReduceStagingClears(t *testing.T) {
	a := artifact("a.mp3")
	b := artifact("b.mp3")

	starts := map[string]session.State{
		"idle":     {Staged: a},
		"pending":  {Staged: a, Submission: session.PhasePending},
		"complete": {Staged: a, Submission: session.PhaseComplete, Feedback: &analysis.FeedbackRecord{Transcript: "x"}},
		"failed":   {Staged: a, Submission: session.PhaseFailed, Err: errors.New("boom")},
		"empty":    {},
	}

	events := map[string]struct {
		ev     session.Event
		staged *audio.Artifact
	}{
		"stage":    {session.StageArtifact{Artifact: b}, b},
		"remove":   {session.RemoveArtifact{}, nil},
		"finalize": {session.StopRecording{Artifact: b}, b},
	}

	for sName, start := range starts {
		for eName, tt := range events {
			t.Run(sName+"/"+eName, func(t *testing.T) {
				st := start
				if eName == "finalize" {
					st.Recording = recorder.StatusCapturing
				}

				got, err := session.Reduce(st, tt.ev)
				if err != nil {
					t.Fatal(err)
				}

				if got.Staged != tt.staged {
					t.Fatalf("staged = %v, want %v", got.Staged, tt.staged)
				}
				if got.Feedback != nil || got.Err != nil || got.Submission != session.PhaseIdle {
					t.Fatalf("state not cleared: %+v", got)
				}
			})
		}
	}
}

func TestReduceSubmitRequested(t *testing.T) {
	a := artifact("a.mp3")

	t.Run("no artifact", func(t *testing.T) {
		start := session.State{}
		got, err := session.Reduce(start, session.SubmitRequested{})
		if !errors.Is(err, session.ErrNoArtifact) {
			t.Fatalf("expected ErrNoArtifact, got %v", err)
		}
		if got != start {
			t.Fatalf("state changed: %+v", got)
		}
	})

	t.Run("already pending", func(t *testing.T) {
		start := session.State{Staged: a, Submission: session.PhasePending}
		got, err := session.Reduce(start, session.SubmitRequested{})
		if !errors.Is(err, session.ErrAlreadyInProgress) {
			t.Fatalf("expected ErrAlreadyInProgress, got %v", err)
		}
		if got != start {
			t.Fatalf("state changed: %+v", got)
		}
	})

	for _, phase := range []session.Phase{session.PhaseIdle, session.PhaseComplete, session.PhaseFailed} {
		t.Run("from "+phase.String(), func(t *testing.T) {
			start := session.State{
				Staged:     a,
				Submission: phase,
				Feedback:   &analysis.FeedbackRecord{},
				Err:        errors.New("previous"),
			}

			got, err := session.Reduce(start, session.SubmitRequested{})
			if err != nil {
				t.Fatal(err)
			}
			if got.Submission != session.PhasePending || got.Feedback != nil || got.Err != nil || got.Staged != a {
				t.Fatalf("unexpected state: %+v", got)
			}
		})
	}
}

func TestReduceResults(t *testing.T) {
	a := artifact("a.mp3")
	b := artifact("b.mp3")
	pending := session.State{Staged: a, Submission: session.PhasePending}

	t.Run("success", func(t *testing.T) {
		got, err := session.Reduce(pending, session.SubmitSucceeded{ArtifactID: a.ID, Feedback: analysis.FeedbackRecord{Transcript: "hi"}})
		if err != nil {
			t.Fatal(err)
		}
		if got.Submission != session.PhaseComplete || got.Feedback == nil || got.Feedback.Transcript != "hi" {
			t.Fatalf("unexpected state: %+v", got)
		}
	})

	t.Run("failure keeps artifact", func(t *testing.T) {
		boom := errors.New("boom")
		got, err := session.Reduce(pending, session.SubmitFailed{ArtifactID: a.ID, Err: boom})
		if err != nil {
			t.Fatal(err)
		}
		if got.Submission != session.PhaseFailed || got.Staged != a || got.Feedback != nil || got.Err != boom {
			t.Fatalf("unexpected state: %+v", got)
		}
	})

	t.Run("stale artifact", func(t *testing.T) {
		replaced := session.State{Staged: b, Submission: session.PhasePending}

		for _, ev := range []session.Event{
			session.SubmitSucceeded{ArtifactID: a.ID},
			session.SubmitFailed{ArtifactID: a.ID, Err: errors.New("late")},
		} {
			got, err := session.Reduce(replaced, ev)
			if !errors.Is(err, session.ErrStaleResult) {
				t.Fatalf("expected ErrStaleResult, got %v", err)
			}
			if got != replaced {
				t.Fatalf("state changed: %+v", got)
			}
		}
	})

	t.Run("not pending", func(t *testing.T) {
		idle := session.State{Staged: a}
		if _, err := session.Reduce(idle, session.SubmitSucceeded{ArtifactID: a.ID}); !errors.Is(err, session.ErrStaleResult) {
			t.Fatalf("expected ErrStaleResult, got %v", err)
		}
	})
}

func TestReduceRecording(t *testing.T) {
	got, err := session.Reduce(session.State{}, session.StartRecording{})
	if err != nil {
		t.Fatal(err)
	}
	if got.Recording != recorder.StatusCapturing {
		t.Fatalf("recording = %s", got.Recording)
	}

	if _, err := session.Reduce(got, session.StartRecording{}); !errors.Is(err, session.ErrAlreadyInProgress) {
		t.Fatalf("expected ErrAlreadyInProgress, got %v", err)
	}

	if _, err := session.Reduce(session.State{}, session.StopRecording{}); !errors.Is(err, session.ErrNotCapturing) {
		t.Fatalf("expected ErrNotCapturing, got %v", err)
	}
}

func TestReduceUnknownEvent(t *testing.T) {
	start := session.State{Staged: artifact("a.mp3")}

	got, err := session.Reduce(start, nil)
	if !errors.Is(err, session.ErrUnknownEvent) {
		t.Fatalf("expected ErrUnknownEvent, got %v", err)
	}
	if got != start {
		t.Fatalf("state changed: %+v", got)
	}
}

func TestSnapshot(t *testing.T) {
	a := audio.New(audio.NewHandles(), "pitch.mp3", "audio/mpeg", make([]byte, 2048))
	snap := session.State{Staged: a, Submission: session.PhaseFailed, Err: errors.New("boom")}.Snapshot()

	if snap.Artifact == nil || snap.Artifact.Name != "pitch.mp3" || snap.Artifact.Size != "2.0 KB" {
		t.Fatalf("unexpected artifact info: %+v", snap.Artifact)
	}
	if snap.Submission != "failed" || snap.Recording != "idle" || snap.Error != "boom" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}
