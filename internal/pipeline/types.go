// Package pipeline runs the capture-and-annotate loop: it pulls frames from a
// camera, runs the face, landmark and emotion models on them and publishes a
// DetectionResult for every frame that contains a face.
package pipeline

import (
	"context"
	"errors"
	"image"
	"math"
	"time"

	"github.com/DDH2004/AIoTHackStorm/internal/emotion"
	"github.com/DDH2004/AIoTHackStorm/internal/models"
)

var (
	// ErrSourceClosed is returned by a FrameSource that will never produce another frame.
	ErrSourceClosed = errors.New("pipeline: frame source closed")
	// ErrNoFace means the frame was read and analyzed but contained no face.
	ErrNoFace = errors.New("pipeline: no face detected")
	// ErrNoLandmark means a required landmark point could not be located.
	ErrNoLandmark = errors.New("pipeline: landmark not found")
)

type Frame struct {
	Image    image.Image
	Sequence int64
	At       time.Time
}

func (f Frame) Size() (int, int) {
	if f.Image == nil {
		return 0, 0
	}
	b := f.Image.Bounds()
	return b.Dx(), b.Dy()
}

type Face struct {
	Box   image.Rectangle
	Score float64
}

func (f Face) Area() int {
	return f.Box.Dx() * f.Box.Dy()
}

// Point is a landmark position in frame pixels.
type Point struct {
	X, Y float64
}

func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

const (
	LeftEye  = "left_eye"
	RightEye = "right_eye"
)

type Landmarks struct {
	Points map[string]Point
}

func (l Landmarks) Point(name string) (Point, bool) {
	p, ok := l.Points[name]
	return p, ok
}

// EyeMidpoint is the point between both pupils.
func (l Landmarks) EyeMidpoint() (Point, bool) {
	left, ok1 := l.Point(LeftEye)
	right, ok2 := l.Point(RightEye)
	if !ok1 || !ok2 {
		return Point{}, false
	}
	return Point{X: (left.X + right.X) / 2, Y: (left.Y + right.Y) / 2}, true
}

type FrameSource interface {
	Read(ctx context.Context) (Frame, error)
	Close() error
}

type FaceDetector interface {
	Detect(frame Frame) ([]Face, error)
}

type EmotionClassifier interface {
	Classify(ctx context.Context, frame Frame, face Face) (emotion.Scores, error)
}

type LandmarkExtractor interface {
	Extract(frame Frame, face Face) (Landmarks, error)
}

type Publisher interface {
	Publish(ctx context.Context, result models.DetectionResult)
}

// Store is the shared latest-result holder the loop reads from and writes to.
type Store interface {
	Publisher
	Latest() models.DetectionResult
}

type Recorder interface {
	IncrementFrames()
	IncrementFaceFrames()
	IncrementErrors()
	RecordLatency(d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) IncrementFrames()            {}
func (nopRecorder) IncrementFaceFrames()        {}
func (nopRecorder) IncrementErrors()            {}
func (nopRecorder) RecordLatency(time.Duration) {}
