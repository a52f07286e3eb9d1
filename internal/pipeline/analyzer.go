package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/DDH2004/AIoTHackStorm/internal/emotion"
	"github.com/DDH2004/AIoTHackStorm/internal/models"
	"github.com/DDH2004/AIoTHackStorm/pkg/log"
)

type PositionSource string

const (
	PositionFromBox  PositionSource = "box"
	PositionFromEyes PositionSource = "eyes"
)

type AnalyzerOptions struct {
	Mirror   bool
	Position PositionSource
	Mouth    MouthOptions
}

// Analyzer derives a DetectionResult from a single frame. Classifier and
// Landmarks are optional.
type Analyzer struct {
	detector   FaceDetector
	classifier EmotionClassifier
	landmarks  LandmarkExtractor
	opts       AnalyzerOptions
}

func NewAnalyzer(detector FaceDetector, classifier EmotionClassifier, landmarks LandmarkExtractor, opts AnalyzerOptions) *Analyzer {
	if opts.Position == "" {
		opts.Position = PositionFromBox
	}
	return &Analyzer{
		detector:   detector,
		classifier: classifier,
		landmarks:  landmarks,
		opts:       opts,
	}
}

func (a *Analyzer) HasClassifier() bool {
	return a.classifier != nil
}

func (a *Analyzer) HasLandmarks() bool {
	return a.landmarks != nil
}

// Analyze starts from prev and overwrites what the frame tells about the
// largest face. Fields the frame can not answer (a failed classifier or
// landmark pass, or classify=false) keep their previous values. When the
// frame holds no face, prev is returned unchanged with ErrNoFace.
func (a *Analyzer) Analyze(ctx context.Context, frame Frame, prev models.DetectionResult, classify bool) (models.DetectionResult, error) {
	faces, err := a.detector.Detect(frame)
	if err != nil {
		return prev, fmt.Errorf("detect faces: %w", err)
	}
	if len(faces) == 0 {
		return prev, ErrNoFace
	}

	face := Largest(faces)
	width, height := frame.Size()

	res := prev
	res.Face = ToBox(face.Box)
	res.FaceDetected = true
	res.Sequence = frame.Sequence
	res.UpdatedAt = frame.At
	if res.UpdatedAt.IsZero() {
		res.UpdatedAt = time.Now()
	}

	pos := Center(face.Box)
	if a.landmarks != nil {
		lm, err := a.landmarks.Extract(frame, face)
		if err != nil {
			log.Debug(log.Fields{"error": err.Error(), "sequence": frame.Sequence}, "landmark extraction failed")
		} else {
			if open, err := MouthOpen(lm, a.opts.Mouth); err == nil {
				res.MouthOpen = &open
			}
			if a.opts.Position == PositionFromEyes {
				if mid, ok := lm.EyeMidpoint(); ok {
					pos = mid
				}
			}
		}
	}

	x, y := Normalize(pos, width, height)
	if a.opts.Mirror {
		x = Mirror(x)
	}
	res.X, res.Y = x, y

	if classify && a.classifier != nil {
		a.classify(ctx, frame, face, &res)
	}
	return res, nil
}

func (a *Analyzer) classify(ctx context.Context, frame Frame, face Face, res *models.DetectionResult) {
	scores, err := a.classifier.Classify(ctx, frame, face)
	if err != nil {
		log.Warn(log.Fields{"error": err.Error(), "sequence": frame.Sequence}, "emotion classification failed, keeping last emotion")
		return
	}
	label, share, err := scores.Dominant()
	if err != nil {
		log.Warn(log.Fields{"error": err.Error(), "sequence": frame.Sequence}, "classifier returned no usable scores")
		return
	}
	res.Emotion = label
	res.Confidence = emotion.Percent(share)
}
