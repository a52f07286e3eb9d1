package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/DDH2004/AIoTHackStorm/internal/config"
	"github.com/DDH2004/AIoTHackStorm/internal/emotion"
	"github.com/DDH2004/AIoTHackStorm/internal/models"
	"github.com/DDH2004/AIoTHackStorm/internal/pipeline"
	"github.com/DDH2004/AIoTHackStorm/internal/services"
)

type fakeAnalyzer struct {
	res    models.DetectionResult
	err    error
	panics bool
	gotW   int
	gotH   int
}

func (a *fakeAnalyzer) Analyze(_ context.Context, frame pipeline.Frame, prev models.DetectionResult, _ bool) (models.DetectionResult, error) {
	if a.panics {
		panic("model exploded")
	}
	a.gotW, a.gotH = frame.Size()
	if a.err != nil {
		return prev, a.err
	}
	return a.res, nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	results []models.DetectionResult
}

func (p *recordingPublisher) Publish(_ context.Context, r models.DetectionResult) {
	p.mu.Lock()
	p.results = append(p.results, r)
	p.mu.Unlock()
}

type fakeHistory struct {
	events   []models.EmotionEvent
	gotLimit int
	err      error
}

func (f *fakeHistory) List(_ context.Context, limit int) ([]models.EmotionEvent, error) {
	f.gotLimit = limit
	return f.events, f.err
}

var happyResult = models.DetectionResult{
	Emotion:      emotion.Happy,
	X:            0.25,
	Y:            0.75,
	Confidence:   80,
	Face:         models.FaceBox{X: 10, Y: 20, W: 30, H: 40},
	FaceDetected: true,
}

func newTestHandler(mode string, deps Deps) *Handler {
	if deps.Store == nil {
		deps.Store = services.NewResultStore()
	}
	if deps.Metrics == nil {
		deps.Metrics = services.NewMetrics()
	}
	return New(deps, Options{
		UploadMode:   mode,
		UploadWidth:  160,
		UploadHeight: 120,
		Version:      "test",
	})
}

func postSimple(t *testing.T, h *Handler, body []byte) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/detect_simple", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.DetectSimple(rec, req)
	return rec.Code, rec.Body.String()
}

func TestListenerEmotionDefault(t *testing.T) {
	h := newTestHandler(config.UploadWebcam, Deps{})

	rec := httptest.NewRecorder()
	h.ListenerEmotion(rec, httptest.NewRequest(http.MethodGet, "/listener/emotion", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["emotion"] != "neutral" || body["x"] != 0.5 || body["y"] != 0.5 {
		t.Errorf("unexpected default body: %v", body)
	}
	if _, ok := body["mouth_open"]; ok {
		t.Error("mouth_open must be omitted before landmarks are measured")
	}
}

func TestListenerEmotionIncludesMouth(t *testing.T) {
	store := services.NewResultStore()
	res := happyResult
	open := 0.4
	res.MouthOpen = &open
	store.Publish(context.Background(), res)
	h := newTestHandler(config.UploadWebcam, Deps{Store: store})

	rec := httptest.NewRecorder()
	h.ListenerEmotion(rec, httptest.NewRequest(http.MethodGet, "/listener/emotion", nil))

	var body models.ListenerResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Emotion != emotion.Happy || body.MouthOpen == nil || *body.MouthOpen != 0.4 {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestHandler(config.UploadWebcam, Deps{})

	rec := httptest.NewRecorder()
	h.DetectSimple(rec, httptest.NewRequest(http.MethodGet, "/detect_simple", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	var body models.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != "METHOD_NOT_ALLOWED" {
		t.Errorf("unexpected code %q", body.Code)
	}
}

func TestHealthReportsReadiness(t *testing.T) {
	metrics := services.NewMetrics()
	metrics.SetClassifierReady(true)
	metrics.SetDetectorReady(true)
	metrics.IncrementFrames()
	h := newTestHandler(config.UploadWebcam, Deps{Metrics: metrics})

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body models.HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.WebcamReady || !body.DetectorReady || !body.ClassifierReady || body.FrameCount != 1 {
		t.Errorf("unexpected health: %+v", body)
	}
	if body.LastEmotion != emotion.Neutral {
		t.Errorf("expected neutral last emotion, got %q", body.LastEmotion)
	}
}

func TestDetectWebcam(t *testing.T) {
	store := services.NewResultStore()
	store.Publish(context.Background(), happyResult)
	h := newTestHandler(config.UploadWebcam, Deps{Store: store})

	rec := httptest.NewRecorder()
	h.DetectWebcam(rec, httptest.NewRequest(http.MethodGet, "/detect_webcam", nil))

	var body models.WebcamResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Face != happyResult.Face || body.Confidence != 80 {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestDetectSimpleWebcamMode(t *testing.T) {
	store := services.NewResultStore()
	store.Publish(context.Background(), happyResult)
	analyzer := &fakeAnalyzer{panics: true}
	h := newTestHandler(config.UploadWebcam, Deps{Store: store, Analyzer: analyzer})

	code, body := postSimple(t, h, []byte("ignored"))

	if code != http.StatusOK || body != "happy:10:20:30:40:80" {
		t.Errorf("got %d %q", code, body)
	}
}

func TestDetectSimpleWithoutDetector(t *testing.T) {
	store := services.NewResultStore()
	store.Publish(context.Background(), happyResult)
	metrics := services.NewMetrics()
	h := newTestHandler(config.UploadFrame, Deps{Store: store, Metrics: metrics})

	code, body := postSimple(t, h, make([]byte, 160*120*3))

	if code != http.StatusOK || body != models.SimpleErrorResponse {
		t.Errorf("got %d %q, want the sentinel", code, body)
	}
	if metrics.Snapshot().TotalErrors != 1 {
		t.Errorf("expected one error, got %+v", metrics.Snapshot())
	}

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	var health models.HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health.DetectorReady {
		t.Error("detector_ready must be false without a detector")
	}
}

func TestDetectSimpleAnalyzesRawFrame(t *testing.T) {
	analyzer := &fakeAnalyzer{res: happyResult}
	pub := &recordingPublisher{}
	metrics := services.NewMetrics()
	h := newTestHandler(config.UploadFrame, Deps{Analyzer: analyzer, Publisher: pub, Metrics: metrics})

	code, body := postSimple(t, h, make([]byte, 160*120*3))

	if code != http.StatusOK || body != "happy:10:20:30:40:80" {
		t.Fatalf("got %d %q", code, body)
	}
	if analyzer.gotW != 160 || analyzer.gotH != 120 {
		t.Errorf("analyzer saw %dx%d", analyzer.gotW, analyzer.gotH)
	}
	if len(pub.results) != 1 || pub.results[0].Source != models.SourceUpload {
		t.Errorf("expected one upload result published, got %+v", pub.results)
	}
	if metrics.GetTotalUploads() != 1 {
		t.Errorf("expected 1 upload counted, got %d", metrics.GetTotalUploads())
	}
}

func TestDetectSimpleAnalyzesPNG(t *testing.T) {
	analyzer := &fakeAnalyzer{res: happyResult}
	h := newTestHandler(config.UploadFrame, Deps{Analyzer: analyzer})

	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 64, 48))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	_, body := postSimple(t, h, buf.Bytes())

	if body != "happy:10:20:30:40:80" || analyzer.gotW != 64 || analyzer.gotH != 48 {
		t.Errorf("got %q from %dx%d", body, analyzer.gotW, analyzer.gotH)
	}
}

func TestDetectSimpleSentinel(t *testing.T) {
	cases := []struct {
		name     string
		analyzer *fakeAnalyzer
		body     []byte
	}{
		{"garbage body", &fakeAnalyzer{res: happyResult}, []byte("not an image")},
		{"empty body", &fakeAnalyzer{res: happyResult}, nil},
		{"analysis error", &fakeAnalyzer{err: errors.New("detector down")}, make([]byte, 160*120*3)},
		{"panic", &fakeAnalyzer{panics: true}, make([]byte, 160*120*3)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			metrics := services.NewMetrics()
			h := newTestHandler(config.UploadFrame, Deps{Analyzer: tc.analyzer, Metrics: metrics})

			code, body := postSimple(t, h, tc.body)

			if code != http.StatusOK {
				t.Errorf("expected 200, got %d", code)
			}
			if body != models.SimpleErrorResponse {
				t.Errorf("expected sentinel, got %q", body)
			}
			if metrics.GetTotalErrors() != 1 {
				t.Errorf("expected 1 error counted, got %d", metrics.GetTotalErrors())
			}
		})
	}
}

func TestDetectSimpleNoFaceKeepsEmotion(t *testing.T) {
	store := services.NewResultStore()
	store.Publish(context.Background(), happyResult)
	pub := &recordingPublisher{}
	h := newTestHandler(config.UploadFrame, Deps{
		Store:     store,
		Analyzer:  &fakeAnalyzer{err: pipeline.ErrNoFace},
		Publisher: pub,
	})

	_, body := postSimple(t, h, make([]byte, 160*120*3))

	if body != "happy:0:0:0:0:80" {
		t.Errorf("got %q", body)
	}
	if len(pub.results) != 0 {
		t.Error("a frame without a face must not be published")
	}
}

func TestHistory(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		h := newTestHandler(config.UploadWebcam, Deps{})
		rec := httptest.NewRecorder()
		h.History(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", rec.Code)
		}
	})

	t.Run("bad limit", func(t *testing.T) {
		h := newTestHandler(config.UploadWebcam, Deps{History: &fakeHistory{}})
		rec := httptest.NewRecorder()
		h.History(rec, httptest.NewRequest(http.MethodGet, "/api/history?limit=-3", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("lists events", func(t *testing.T) {
		hist := &fakeHistory{events: []models.EmotionEvent{
			{ID: "b", Emotion: emotion.Sad},
			{ID: "a", Emotion: emotion.Happy},
		}}
		h := newTestHandler(config.UploadWebcam, Deps{History: hist})
		rec := httptest.NewRecorder()
		h.History(rec, httptest.NewRequest(http.MethodGet, "/api/history?limit=2", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var body struct {
			Events []models.EmotionEvent `json:"events"`
			Count  int                   `json:"count"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Count != 2 || body.Events[0].ID != "b" || hist.gotLimit != 2 {
			t.Errorf("unexpected body %+v (limit %d)", body, hist.gotLimit)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		h := newTestHandler(config.UploadWebcam, Deps{History: &fakeHistory{err: errors.New("db gone")}})
		rec := httptest.NewRecorder()
		h.History(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})
}

func TestDecodeUpload(t *testing.T) {
	raw := make([]byte, 2*2*3)
	raw[0], raw[1], raw[2] = 255, 10, 20

	img, err := decodeUpload(raw, 2, 2)
	if err != nil {
		t.Fatalf("decodeUpload: %v", err)
	}
	r, g, b, a := img.At(0, 0).RGBA()
	want := color.RGBA{R: 255, G: 10, B: 20, A: 255}
	wr, wg, wb, wa := want.RGBA()
	if r != wr || g != wg || b != wb || a != wa {
		t.Errorf("pixel (0,0) = %v %v %v %v", r, g, b, a)
	}

	if _, err := decodeUpload(nil, 2, 2); !errors.Is(err, errEmptyUpload) {
		t.Errorf("expected errEmptyUpload, got %v", err)
	}
	if _, err := decodeUpload(raw[:5], 2, 2); err == nil {
		t.Error("expected error for truncated raw frame")
	}
}

func TestRoutesMiddleware(t *testing.T) {
	h := newTestHandler(config.UploadWebcam, Deps{})

	t.Run("request id", func(t *testing.T) {
		srv := Routes(h, nil, RouteOptions{})
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		if rec.Header().Get(RequestIDHeader) == "" {
			t.Error("expected a request id header")
		}

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(RequestIDHeader, "caller-id")
		rec = httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		if got := rec.Header().Get(RequestIDHeader); got != "caller-id" {
			t.Errorf("expected caller id to be kept, got %q", got)
		}
	})

	t.Run("cors preflight", func(t *testing.T) {
		srv := Routes(h, nil, RouteOptions{CORSOrigins: "http://dash.local"})
		req := httptest.NewRequest(http.MethodOptions, "/listener/emotion", nil)
		req.Header.Set("Origin", "http://dash.local")
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("expected 204, got %d", rec.Code)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://dash.local" {
			t.Errorf("unexpected allow origin %q", got)
		}
	})

	t.Run("rate limit", func(t *testing.T) {
		srv := Routes(h, nil, RouteOptions{RateLimitPerMin: 6})
		codes := make([]int, 0, 2)
		for i := 0; i < 2; i++ {
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))
			codes = append(codes, rec.Code)
		}
		if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
			t.Errorf("unexpected status sequence %v", codes)
		}
	})

	t.Run("device routes are not rate limited", func(t *testing.T) {
		store := services.NewResultStore()
		store.Publish(context.Background(), happyResult)
		dh := newTestHandler(config.UploadWebcam, Deps{Store: store})
		srv := Routes(dh, nil, RouteOptions{RateLimitPerMin: 6})

		for i := 0; i < 5; i++ {
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/detect_simple", strings.NewReader("frame")))
			if rec.Code != http.StatusOK || rec.Body.String() != "happy:10:20:30:40:80" {
				t.Fatalf("upload %d: got %d %q", i, rec.Code, rec.Body.String())
			}

			rec = httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/listener/emotion", nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("poll %d: got %d", i, rec.Code)
			}
		}
	})

	t.Run("unknown path", func(t *testing.T) {
		srv := Routes(h, nil, RouteOptions{})
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
		body, _ := io.ReadAll(rec.Body)
		if !strings.Contains(string(body), "not found") {
			t.Errorf("unexpected body %q", body)
		}
	})
}
