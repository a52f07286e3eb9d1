package pipeline

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/DDH2004/AIoTHackStorm/internal/emotion"
	"github.com/DDH2004/AIoTHackStorm/internal/models"
)

var errRead = errors.New("camera hiccup")

// scriptedSource replays a fixed list of reads, then reports ErrSourceClosed.
type scriptedSource struct {
	reads  []error
	i      int
	closed bool
}

func (s *scriptedSource) Read(context.Context) (Frame, error) {
	if s.i >= len(s.reads) {
		return Frame{}, ErrSourceClosed
	}
	err := s.reads[s.i]
	s.i++
	if err != nil {
		return Frame{}, err
	}
	return Frame{Image: image.NewRGBA(image.Rect(0, 0, 320, 240))}, nil
}

func (s *scriptedSource) Close() error {
	s.closed = true
	return nil
}

// scriptedDetector returns faces[i] for the i-th call; nil means no face.
type scriptedDetector struct {
	faces [][]Face
	calls int
	err   error
}

func (d *scriptedDetector) Detect(Frame) ([]Face, error) {
	if d.err != nil {
		return nil, d.err
	}
	if d.calls >= len(d.faces) {
		d.calls++
		return nil, nil
	}
	f := d.faces[d.calls]
	d.calls++
	return f, nil
}

type fixedDetector struct {
	faces []Face
}

func (d fixedDetector) Detect(Frame) ([]Face, error) {
	return d.faces, nil
}

type countingClassifier struct {
	labels []emotion.Label
	calls  int
	err    error
}

func (c *countingClassifier) Classify(context.Context, Frame, Face) (emotion.Scores, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	l := c.labels[(c.calls-1)%len(c.labels)]
	return emotion.OneHot(l, 0.9), nil
}

type fixedLandmarks struct {
	lm  Landmarks
	err error
}

func (f fixedLandmarks) Extract(Frame, Face) (Landmarks, error) {
	return f.lm, f.err
}

type memStore struct {
	mu     sync.Mutex
	latest models.DetectionResult
	all    []models.DetectionResult
}

func newMemStore() *memStore {
	return &memStore{latest: models.DefaultResult()}
}

func (s *memStore) Publish(_ context.Context, r models.DetectionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = r
	s.all = append(s.all, r)
}

func (s *memStore) Latest() models.DetectionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

func (s *memStore) Published() []models.DetectionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.DetectionResult, len(s.all))
	copy(out, s.all)
	return out
}

type countingRecorder struct {
	frames, faceFrames, errors int
}

func (r *countingRecorder) IncrementFrames()            { r.frames++ }
func (r *countingRecorder) IncrementFaceFrames()        { r.faceFrames++ }
func (r *countingRecorder) IncrementErrors()            { r.errors++ }
func (r *countingRecorder) RecordLatency(time.Duration) {}

type slowPublisher struct {
	mu      sync.Mutex
	gate    chan struct{}
	results []models.DetectionResult
}

func (p *slowPublisher) Publish(_ context.Context, r models.DetectionResult) {
	if p.gate != nil {
		<-p.gate
	}
	p.mu.Lock()
	p.results = append(p.results, r)
	p.mu.Unlock()
}

func (p *slowPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.results)
}

// centered is a face box centred in a 320x240 frame.
var centered = Face{Box: image.Rect(140, 100, 180, 140)}
