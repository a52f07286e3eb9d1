package models

import (
	"time"

	"github.com/DDH2004/AIoTHackStorm/internal/emotion"
)

// EmotionEvent is one row of the emotion history: written whenever the
// dominant emotion changes.
type EmotionEvent struct {
	ID         string        `json:"id" db:"id"`
	Emotion    emotion.Label `json:"emotion" db:"emotion"`
	Confidence int           `json:"confidence" db:"confidence"`
	X          float64       `json:"x" db:"x"`
	Y          float64       `json:"y" db:"y"`
	MouthOpen  *float64      `json:"mouth_open,omitempty" db:"mouth_open"`
	Source     string        `json:"source" db:"source"`
	CreatedAt  time.Time     `json:"created_at" db:"created_at"`
}

func EventFromResult(id string, r DetectionResult) EmotionEvent {
	created := r.UpdatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return EmotionEvent{
		ID:         id,
		Emotion:    r.Emotion,
		Confidence: r.Confidence,
		X:          r.X,
		Y:          r.Y,
		MouthOpen:  r.MouthOpen,
		Source:     r.Source,
		CreatedAt:  created,
	}
}

type MetricsSnapshot struct {
	TotalFrames   int64   `json:"total_frames"`
	FaceFrames    int64   `json:"face_frames"`
	TotalErrors   int64   `json:"total_errors"`
	TotalUploads  int64   `json:"total_uploads"`
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
	DroppedEvents int64   `json:"dropped_events"`
	WSConnections int64   `json:"ws_connections"`
	WSMessages    int64   `json:"ws_messages"`
	WSErrors      int64   `json:"ws_errors"`
	LastFrameTime int64   `json:"last_frame_time"`
	UptimeSec     int64   `json:"system_uptime_sec"`
	DetectorReady bool    `json:"detector_ready"`
}
