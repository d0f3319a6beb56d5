// Package handlers exposes a session to a local presenter over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/superfeelapi/pitchFeedback/business/recorder"
	"github.com/superfeelapi/pitchFeedback/business/session"
	"github.com/superfeelapi/pitchFeedback/foundation/audio"
	"go.uber.org/zap"
)

const defaultMaxUpload = 64 << 20

type Config struct {
	Log            *zap.SugaredLogger
	Session        *session.Session
	Gatherer       prometheus.Gatherer
	MaxUploadBytes int64
}

type handlers struct {
	log       *zap.SugaredLogger
	session   *session.Session
	maxUpload int64
}

// API returns the router of the control API.
func API(cfg Config) http.Handler {
	h := handlers{
		log:       cfg.Log,
		session:   cfg.Session,
		maxUpload: cfg.MaxUploadBytes,
	}
	if h.maxUpload <= 0 {
		h.maxUpload = defaultMaxUpload
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/state", h.state)
	r.Post("/artifact", h.pickFile)
	r.Delete("/artifact", h.remove)
	r.Post("/recording/start", h.startRecording)
	r.Post("/recording/stop", h.stopRecording)
	r.Post("/submit", h.submit)
	r.Get("/playback/{handle}", h.playback)

	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

func (h handlers) state(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK, h.session.State().Snapshot())
}

func (h handlers) pickFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	file, header, err := r.FormFile("file")
	if err != nil {
		h.fail(w, http.StatusBadRequest, audio.ErrNoFile)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}

	_, err = h.session.PickFile(&audio.RawFile{
		Name:     header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Data:     data,
	})
	if err != nil {
		h.fail(w, statusFor(err), err)
		return
	}

	h.state(w, r)
}

func (h handlers) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Remove(); err != nil {
		h.fail(w, statusFor(err), err)
		return
	}
	h.state(w, r)
}

func (h handlers) startRecording(w http.ResponseWriter, r *http.Request) {
	if err := h.session.StartRecording(r.Context()); err != nil {
		h.fail(w, statusFor(err), err)
		return
	}
	h.state(w, r)
}

func (h handlers) stopRecording(w http.ResponseWriter, r *http.Request) {
	if _, err := h.session.StopRecording(r.Context()); err != nil {
		h.fail(w, statusFor(err), err)
		return
	}
	h.state(w, r)
}

func (h handlers) submit(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Submit(); err != nil {
		h.fail(w, statusFor(err), err)
		return
	}
	h.respond(w, http.StatusAccepted, h.session.State().Snapshot())
}

func (h handlers) playback(w http.ResponseWriter, r *http.Request) {
	handle := audio.ParseHandle(chi.URLParam(r, "handle"))

	data, mimeType, ok := h.session.Handles().Lookup(handle)
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.log.Errorw("handlers: playback", "handle", handle, "ERROR", err)
	}
}

// =================================================================================================================

type errorResponse struct {
	Error string `json:"error"`
}

func (h handlers) fail(w http.ResponseWriter, status int, err error) {
	h.log.Infow("handlers: request rejected", "status", status, "reason", err)
	h.respond(w, status, errorResponse{Error: err.Error()})
}

func (h handlers) respond(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Errorw("handlers: respond", "ERROR", err)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrAlreadyInProgress):
		return http.StatusConflict
	case errors.Is(err, session.ErrNotCapturing):
		return http.StatusConflict
	case errors.Is(err, session.ErrNoArtifact), errors.Is(err, audio.ErrNoFile):
		return http.StatusBadRequest
	case errors.Is(err, recorder.ErrCaptureUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
