// Package pigo implements face detection and facial landmarks on top of the
// pure Go pigo cascades. This package needs no OpenCV; the server binary only
// drops its OpenCV dependency when built with -tags nocv.
//
// Cascade files are read from one directory laid out like the cascade
// directory of github.com/esimov/pigo (PIGO_CASCADE_DIR, default ./cascade):
//
//	facefinder
//	puploc
//	lps/lp81, lp82, ...
package pigo

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	core "github.com/esimov/pigo/core"

	"github.com/DDH2004/AIoTHackStorm/internal/pipeline"
)

const (
	faceFinderFile = "facefinder"
	puplocFile     = "puploc"
	landmarksDir   = "lps"
)

type DetectorOptions struct {
	MinSize      int
	MaxSize      int
	ShiftFactor  float64
	ScaleFactor  float64
	IoUThreshold float64
	// MinQuality drops detections scoring below it.
	MinQuality float32
}

func DefaultDetectorOptions() DetectorOptions {
	return DetectorOptions{
		MinSize:      20,
		MaxSize:      1000,
		ShiftFactor:  0.1,
		ScaleFactor:  1.1,
		IoUThreshold: 0.2,
		MinQuality:   5.0,
	}
}

// Detector is a FaceDetector backed by the pigo facefinder cascade.
// The unpacked cascade is read-only, so Detect is safe for concurrent use.
type Detector struct {
	classifier *core.Pigo
	opts       DetectorOptions
}

func NewDetector(cascadeDir string, opts DetectorOptions) (*Detector, error) {
	data, err := os.ReadFile(filepath.Join(cascadeDir, faceFinderFile))
	if err != nil {
		return nil, fmt.Errorf("reading the cascade file: %w", err)
	}

	classifier, err := core.NewPigo().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpacking the cascade file: %w", err)
	}

	return &Detector{classifier: classifier, opts: opts}, nil
}

func (d *Detector) Detect(frame pipeline.Frame) ([]pipeline.Face, error) {
	if frame.Image == nil {
		return nil, fmt.Errorf("empty frame")
	}

	params := imageParams(frame.Image)
	cParams := core.CascadeParams{
		MinSize:     d.opts.MinSize,
		MaxSize:     d.opts.MaxSize,
		ShiftFactor: d.opts.ShiftFactor,
		ScaleFactor: d.opts.ScaleFactor,
		ImageParams: params,
	}

	dets := d.classifier.RunCascade(cParams, 0.0)
	dets = d.classifier.ClusterDetections(dets, d.opts.IoUThreshold)

	offset := frame.Image.Bounds().Min
	faces := make([]pipeline.Face, 0, len(dets))
	for _, det := range dets {
		if det.Q < d.opts.MinQuality {
			continue
		}
		faces = append(faces, pipeline.Face{
			Box:   boxFromDetection(det).Add(offset),
			Score: float64(det.Q),
		})
	}
	return faces, nil
}

// imageParams converts an image into the grayscale buffer pigo works on.
// Coordinates in the buffer start at 0 regardless of img.Bounds().Min.
func imageParams(img image.Image) core.ImageParams {
	src := core.ImgToNRGBA(img)
	cols, rows := src.Bounds().Dx(), src.Bounds().Dy()
	return core.ImageParams{
		Pixels: core.RgbToGrayscale(src),
		Rows:   rows,
		Cols:   cols,
		Dim:    cols,
	}
}

// boxFromDetection turns pigo's center/scale triple into a square box.
func boxFromDetection(det core.Detection) image.Rectangle {
	half := det.Scale / 2
	return image.Rect(det.Col-half, det.Row-half, det.Col-half+det.Scale, det.Row-half+det.Scale)
}

// detectionFromBox is the inverse of boxFromDetection for square boxes.
func detectionFromBox(r image.Rectangle) core.Detection {
	scale := r.Dx()
	if r.Dy() > scale {
		scale = r.Dy()
	}
	return core.Detection{
		Row:   r.Min.Y + r.Dy()/2,
		Col:   r.Min.X + r.Dx()/2,
		Scale: scale,
	}
}
