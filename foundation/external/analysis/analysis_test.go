package analysis_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/superfeelapi/pitchFeedback/foundation/audio"
	"github.com/superfeelapi/pitchFeedback/foundation/external/analysis"
)

const pitchResponse = `{
	"transcript": "Hello...",
	"readability": "Grade 8",
	"disfluencyCount": 3,
	"dominantEmotion": "confident",
	"emotionScores": [{"emotion": "confident", "score": 0.7}, {"emotion": "nervous", "score": 0.2}],
	"persuasivenessScore": 7.5,
	"suggestedChange": "Slow down the intro."
}`

func intPtr(i int) *int { return &i }

func floatPtr(f float64) *float64 { return &f }

func newArtifact(name, mimeType string, data []byte) *audio.Artifact {
	return audio.New(audio.NewHandles(), name, mimeType, data)
}

func TestEncodePayload(t *testing.T) {
	data := []byte("RIFF-fake-audio")
	a := newArtifact("pitch.mp3", "audio/mpeg", data)

	payload, err := analysis.EncodePayload(a)
	if err != nil {
		t.Fatal(err)
	}

	mediaType, params, err := mime.ParseMediaType(payload.ContentType)
	if err != nil {
		t.Fatal(err)
	}
	if mediaType != "multipart/form-data" {
		t.Fatalf("content type = %s", mediaType)
	}

	reader := multipart.NewReader(payload.Body, params["boundary"])

	part, err := reader.NextPart()
	if err != nil {
		t.Fatal(err)
	}
	if part.FormName() != analysis.FileField || part.FileName() != "pitch.mp3" {
		t.Fatalf("unexpected part: name=%s filename=%s", part.FormName(), part.FileName())
	}
	if ct := part.Header.Get("Content-Type"); ct != "audio/mpeg" {
		t.Fatalf("part content type = %s", ct)
	}

	got, err := io.ReadAll(part)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("part bytes differ from artifact bytes")
	}

	if _, err := reader.NextPart(); err != io.EOF {
		t.Fatalf("expected a single part, got err=%v", err)
	}

	if _, err := analysis.EncodePayload(nil); err == nil {
		t.Fatal("expected error for nil artifact")
	}
}

func TestDecode(t *testing.T) {
	t.Run("complete record", func(t *testing.T) {
		got := analysis.Decode([]byte(pitchResponse))

		want := analysis.FeedbackRecord{
			Transcript:      "Hello...",
			Readability:     &analysis.Readability{Text: "Grade 8"},
			DisfluencyCount: intPtr(3),
			DominantEmotion: "confident",
			EmotionScores: []analysis.EmotionScore{
				{Emotion: "confident", Score: 0.7},
				{Emotion: "nervous", Score: 0.2},
			},
			PersuasivenessScore: floatPtr(7.5),
			SuggestedChange:     "Slow down the intro.",
		}

		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("record mismatch (-want +got):\n%s", diff)
		}
		if !got.Complete() {
			t.Fatalf("expected complete record, malformed=%v", got.Malformed)
		}
	})

	t.Run("numeric readability", func(t *testing.T) {
		got := analysis.Decode([]byte(`{"readability": 63.5}`))
		if got.Readability == nil || !got.Readability.Numeric || got.Readability.String() != "63.5" {
			t.Fatalf("unexpected readability: %+v", got.Readability)
		}
	})

	t.Run("partial record", func(t *testing.T) {
		got := analysis.Decode([]byte(`{"transcript": "Hi", "disfluencyCount": "many", "emotionScores": {"bad": 1}}`))

		if got.Transcript != "Hi" {
			t.Fatalf("transcript = %q", got.Transcript)
		}
		if got.DisfluencyCount != nil || got.PersuasivenessScore != nil || got.Readability != nil {
			t.Fatal("malformed fields must stay unknown")
		}

		want := []string{
			analysis.FieldReadability,
			analysis.FieldDisfluencyCount,
			analysis.FieldDominantEmotion,
			analysis.FieldEmotionScores,
			analysis.FieldPersuasivenessScore,
		}
		if diff := cmp.Diff(want, got.Malformed); diff != "" {
			t.Fatalf("malformed mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("not json", func(t *testing.T) {
		got := analysis.Decode([]byte("<html>oops</html>"))
		if got.Complete() || len(got.Malformed) != 6 {
			t.Fatalf("expected every required field malformed, got %v", got.Malformed)
		}
	})

	t.Run("negative disfluency", func(t *testing.T) {
		got := analysis.Decode([]byte(`{"disfluencyCount": -2}`))
		if got.DisfluencyCount != nil {
			t.Fatal("negative count must be treated as unknown")
		}
	})
}

func TestAnalyze(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var gotPath, gotName, gotKey string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotKey = r.Header.Get("api-key")
			if _, header, err := r.FormFile(analysis.FileField); err == nil {
				gotName = header.Filename
			}
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, pitchResponse)
		}))
		defer srv.Close()

		c, err := analysis.New(analysis.Config{BaseURL: srv.URL + "/", APIKey: "secret"})
		if err != nil {
			t.Fatal(err)
		}

		f, err := c.Analyze(context.Background(), newArtifact("pitch.mp3", "audio/mpeg", make([]byte, 500000)))
		if err != nil {
			t.Fatal(err)
		}

		if gotPath != analysis.Path || gotName != "pitch.mp3" || gotKey != "secret" {
			t.Fatalf("unexpected request: path=%s file=%s key=%s", gotPath, gotName, gotKey)
		}
		if f.Transcript != "Hello..." || *f.DisfluencyCount != 3 {
			t.Fatalf("unexpected record: %+v", f)
		}
	})

	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		c, err := analysis.New(analysis.Config{BaseURL: srv.URL})
		if err != nil {
			t.Fatal(err)
		}

		_, err = c.Analyze(context.Background(), newArtifact("pitch.mp3", "audio/mpeg", []byte("x")))

		var statusErr *analysis.StatusError
		if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusInternalServerError || statusErr.Body != "boom" {
			t.Fatalf("expected StatusError 500, got %v", err)
		}
	})

	t.Run("error body with success status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"error": "transcription failed"}`)
		}))
		defer srv.Close()

		c, err := analysis.New(analysis.Config{BaseURL: srv.URL})
		if err != nil {
			t.Fatal(err)
		}

		_, err = c.Analyze(context.Background(), newArtifact("pitch.mp3", "audio/mpeg", []byte("x")))

		var serviceErr *analysis.ServiceError
		if !errors.As(err, &serviceErr) || serviceErr.Message != "transcription failed" {
			t.Fatalf("expected ServiceError, got %v", err)
		}
	})

	t.Run("transport error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		c, err := analysis.New(analysis.Config{BaseURL: srv.URL})
		if err != nil {
			t.Fatal(err)
		}

		if _, err := c.Analyze(context.Background(), newArtifact("pitch.mp3", "audio/mpeg", []byte("x"))); err == nil {
			t.Fatal("expected transport error")
		}
	})
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{"empty", "", true},
		{"bad scheme", "ftp://analysis", true},
		{"http", "http://127.0.0.1:8000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := analysis.New(analysis.Config{BaseURL: tt.baseURL})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && c.Endpoint() != "http://127.0.0.1:8000/analyze-audio" {
				t.Fatalf("endpoint = %s", c.Endpoint())
			}
		})
	}
}
