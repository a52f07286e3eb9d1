package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/DDH2004/AIoTHackStorm/internal/config"
	"github.com/DDH2004/AIoTHackStorm/internal/models"
	"github.com/DDH2004/AIoTHackStorm/internal/pipeline"
	"github.com/DDH2004/AIoTHackStorm/internal/services"
	"github.com/DDH2004/AIoTHackStorm/pkg/log"
)

// FrameAnalyzer runs detection on a single uploaded frame.
type FrameAnalyzer interface {
	Analyze(ctx context.Context, frame pipeline.Frame, prev models.DetectionResult, classify bool) (models.DetectionResult, error)
}

// HistoryLister returns the most recent emotion changes, newest first.
type HistoryLister interface {
	List(ctx context.Context, limit int) ([]models.EmotionEvent, error)
}

type Options struct {
	UploadMode     string
	UploadWidth    int
	UploadHeight   int
	MaxUploadBytes int64
	Version        string
}

// Deps are the shared pieces the handlers read from. Analyzer and History
// may be nil.
type Deps struct {
	Store     pipeline.Store
	Metrics   *services.Metrics
	Analyzer  FrameAnalyzer
	History   HistoryLister
	Publisher pipeline.Publisher
}

type Handler struct {
	deps Deps
	opts Options
}

func New(deps Deps, opts Options) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 5 << 20
	}
	return &Handler{deps: deps, opts: opts}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn(log.Fields{"error": err.Error()}, "failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, models.ErrorResponse{
		Error:     msg,
		Code:      code,
		Timestamp: time.Now().Unix(),
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
}

// ListenerEmotion serves the latest record to the avatar listener.
func (h *Handler) ListenerEmotion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Store.Latest().Listener())
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	m := h.deps.Metrics
	writeJSON(w, http.StatusOK, models.HealthStatus{
		Status:          "ok",
		WebcamReady:     m.WebcamReady(),
		DetectorReady:   m.DetectorReady(),
		ClassifierReady: m.ClassifierReady(),
		LandmarksReady:  m.LandmarksReady(),
		FrameCount:      m.GetTotalFrames(),
		UploadCount:     m.GetTotalUploads(),
		LastEmotion:     h.deps.Store.Latest().Emotion,
		UptimeSec:       int64(m.Uptime().Seconds()),
		Version:         h.opts.Version,
	})
}

// DetectWebcam reports the latest webcam record with its pixel face box.
func (h *Handler) DetectWebcam(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Store.Latest().Webcam())
}

// DetectSimple answers the upload firmware in its colon format. It never
// fails the client: anything that goes wrong answers the error sentinel.
func (h *Handler) DetectSimple(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	h.deps.Metrics.IncrementUploads()

	reply := h.detectSimple(w, r)
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, reply)
}

func (h *Handler) detectSimple(w http.ResponseWriter, r *http.Request) (reply string) {
	entry := log.WithRequestID(r.Context())
	defer func() {
		if rec := recover(); rec != nil {
			h.deps.Metrics.IncrementErrors()
			entry.WithField("panic", fmt.Sprint(rec)).Error("detect_simple panicked")
			reply = models.SimpleErrorResponse
		}
	}()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes))
	if err != nil {
		h.deps.Metrics.IncrementErrors()
		entry.WithField("error", err.Error()).Warn("failed to read upload")
		return models.SimpleErrorResponse
	}
	entry.WithField("bytes", len(body)).Debug("frame upload received")

	if h.opts.UploadMode != config.UploadFrame {
		return h.deps.Store.Latest().Simple()
	}
	if h.deps.Analyzer == nil {
		h.deps.Metrics.IncrementErrors()
		entry.Warn("no face detector loaded, upload not analyzed")
		return models.SimpleErrorResponse
	}

	img, err := decodeUpload(body, h.opts.UploadWidth, h.opts.UploadHeight)
	if err != nil {
		h.deps.Metrics.IncrementErrors()
		entry.WithField("error", err.Error()).Warn("undecodable upload")
		return models.SimpleErrorResponse
	}

	latest := h.deps.Store.Latest()
	frame := pipeline.Frame{Image: img, At: time.Now()}
	res, err := h.deps.Analyzer.Analyze(r.Context(), frame, latest, true)
	switch {
	case errors.Is(err, pipeline.ErrNoFace):
		noFace := latest
		noFace.Face = models.FaceBox{}
		return noFace.Simple()
	case err != nil:
		h.deps.Metrics.IncrementErrors()
		entry.WithField("error", err.Error()).Warn("upload analysis failed")
		return models.SimpleErrorResponse
	}

	res.Source = models.SourceUpload
	if h.deps.Publisher != nil {
		h.deps.Publisher.Publish(r.Context(), res)
	}
	return res.Simple()
}

func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Metrics.Snapshot())
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if h.deps.History == nil {
		writeError(w, http.StatusServiceUnavailable, "HISTORY_DISABLED", "History is not enabled")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer")
			return
		}
		limit = n
	}

	events, err := h.deps.History.List(r.Context(), limit)
	if err != nil {
		log.WithRequestID(r.Context()).WithField("error", err.Error()).Error("failed to list history")
		writeError(w, http.StatusInternalServerError, "HISTORY_FAILED", "Could not load history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}
