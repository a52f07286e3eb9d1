package services

import (
	"sync/atomic"
	"time"

	"github.com/DDH2004/AIoTHackStorm/internal/models"
)

type Metrics struct {
	started time.Time

	totalFrames   atomic.Int64
	faceFrames    atomic.Int64
	totalErrors   atomic.Int64
	totalLatency  atomic.Int64
	totalUploads  atomic.Int64
	droppedEvents atomic.Int64
	lastFrameTime atomic.Int64

	wsConnections atomic.Int64
	wsMessages    atomic.Int64
	wsErrors      atomic.Int64

	webcamReady     atomic.Bool
	detectorReady   atomic.Bool
	classifierReady atomic.Bool
	landmarksReady  atomic.Bool
}

func NewMetrics() *Metrics {
	return &Metrics{started: time.Now()}
}

func (m *Metrics) IncrementFrames() {
	m.totalFrames.Add(1)
	m.lastFrameTime.Store(time.Now().Unix())
}

func (m *Metrics) IncrementFaceFrames() {
	m.faceFrames.Add(1)
}

func (m *Metrics) IncrementErrors() {
	m.totalErrors.Add(1)
}

func (m *Metrics) IncrementUploads() {
	m.totalUploads.Add(1)
}

func (m *Metrics) IncrementDropped() {
	m.droppedEvents.Add(1)
}

func (m *Metrics) RecordLatency(duration time.Duration) {
	m.totalLatency.Add(duration.Milliseconds())
}

func (m *Metrics) GetTotalFrames() int64 {
	return m.totalFrames.Load()
}

func (m *Metrics) GetTotalUploads() int64 {
	return m.totalUploads.Load()
}

func (m *Metrics) GetTotalErrors() int64 {
	return m.totalErrors.Load()
}

// GetAvgLatency is the mean analysis time of frames that contained a face.
func (m *Metrics) GetAvgLatency() float64 {
	frames := m.faceFrames.Load()
	if frames == 0 {
		return 0
	}
	return float64(m.totalLatency.Load()) / float64(frames)
}

func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.started)
}

func (m *Metrics) IncrementWebSocketConnections() {
	m.wsConnections.Add(1)
}

func (m *Metrics) DecrementWebSocketConnections() {
	m.wsConnections.Add(-1)
}

func (m *Metrics) IncrementWebSocketMessages() {
	m.wsMessages.Add(1)
}

func (m *Metrics) IncrementWebSocketErrors() {
	m.wsErrors.Add(1)
}

func (m *Metrics) GetWebSocketConnections() int64 {
	return m.wsConnections.Load()
}

func (m *Metrics) SetWebcamReady(ok bool)     { m.webcamReady.Store(ok) }
func (m *Metrics) SetDetectorReady(ok bool)   { m.detectorReady.Store(ok) }
func (m *Metrics) SetClassifierReady(ok bool) { m.classifierReady.Store(ok) }
func (m *Metrics) SetLandmarksReady(ok bool)  { m.landmarksReady.Store(ok) }

func (m *Metrics) WebcamReady() bool     { return m.webcamReady.Load() }
func (m *Metrics) DetectorReady() bool   { return m.detectorReady.Load() }
func (m *Metrics) ClassifierReady() bool { return m.classifierReady.Load() }
func (m *Metrics) LandmarksReady() bool  { return m.landmarksReady.Load() }

func (m *Metrics) Snapshot() models.MetricsSnapshot {
	return models.MetricsSnapshot{
		TotalFrames:   m.totalFrames.Load(),
		FaceFrames:    m.faceFrames.Load(),
		TotalErrors:   m.totalErrors.Load(),
		TotalUploads:  m.totalUploads.Load(),
		AvgLatencyMs:  m.GetAvgLatency(),
		DroppedEvents: m.droppedEvents.Load(),
		WSConnections: m.wsConnections.Load(),
		WSMessages:    m.wsMessages.Load(),
		WSErrors:      m.wsErrors.Load(),
		LastFrameTime: m.lastFrameTime.Load(),
		UptimeSec:     int64(m.Uptime().Seconds()),
		DetectorReady: m.detectorReady.Load(),
	}
}
