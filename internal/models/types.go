package models

import (
	"fmt"
	"time"

	"github.com/DDH2004/AIoTHackStorm/internal/emotion"
)

const (
	SourceWebcam = "webcam"
	SourceUpload = "upload"
)

// SimpleErrorResponse is returned by /detect_simple whenever a frame can not be analyzed.
const SimpleErrorResponse = "error:0:0:0:0:0"

type FaceBox struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

func (b FaceBox) Empty() bool {
	return b.W <= 0 || b.H <= 0
}

type DetectionResult struct {
	Emotion      emotion.Label `json:"emotion"`
	X            float64       `json:"x"`
	Y            float64       `json:"y"`
	MouthOpen    *float64      `json:"mouth_open,omitempty"`
	Confidence   int           `json:"confidence"`
	Face         FaceBox       `json:"face"`
	FaceDetected bool          `json:"face_detected"`
	Sequence     int64         `json:"sequence"`
	Source       string        `json:"source,omitempty"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// DefaultResult is what the service reports before any face was seen.
func DefaultResult() DetectionResult {
	return DetectionResult{
		Emotion:    emotion.Neutral,
		X:          0.5,
		Y:          0.5,
		Confidence: 50,
		Source:     SourceWebcam,
	}
}

// Simple encodes the result in the colon format the avatar firmware parses.
func (r DetectionResult) Simple() string {
	return fmt.Sprintf("%s:%d:%d:%d:%d:%d", r.Emotion, r.Face.X, r.Face.Y, r.Face.W, r.Face.H, r.Confidence)
}

type ListenerResponse struct {
	Emotion   emotion.Label `json:"emotion"`
	X         float64       `json:"x"`
	Y         float64       `json:"y"`
	MouthOpen *float64      `json:"mouth_open,omitempty"`
}

func (r DetectionResult) Listener() ListenerResponse {
	return ListenerResponse{
		Emotion:   r.Emotion,
		X:         r.X,
		Y:         r.Y,
		MouthOpen: r.MouthOpen,
	}
}

type WebcamResponse struct {
	Emotion    emotion.Label `json:"emotion"`
	Face       FaceBox       `json:"face"`
	Confidence int           `json:"confidence"`
}

func (r DetectionResult) Webcam() WebcamResponse {
	return WebcamResponse{
		Emotion:    r.Emotion,
		Face:       r.Face,
		Confidence: r.Confidence,
	}
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Timestamp int64  `json:"timestamp"`
	Code      string `json:"code,omitempty"`
}

type HealthStatus struct {
	Status          string        `json:"status"`
	WebcamReady     bool          `json:"webcam_ready"`
	DetectorReady   bool          `json:"detector_ready"`
	ClassifierReady bool          `json:"classifier_ready"`
	LandmarksReady  bool          `json:"landmarks_ready"`
	FrameCount      int64         `json:"frame_count"`
	UploadCount     int64         `json:"upload_count"`
	LastEmotion     emotion.Label `json:"last_emotion"`
	UptimeSec       int64         `json:"uptime_sec"`
	Version         string        `json:"version,omitempty"`
}
