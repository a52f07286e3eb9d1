package pigo

import (
	"fmt"
	"os"
	"path/filepath"

	core "github.com/esimov/pigo/core"

	"github.com/DDH2004/AIoTHackStorm/internal/pipeline"
)

const (
	pupilPerturbs    = 50
	landmarkPerturbs = 63
)

// Landmarks locates both pupils with the puploc cascade and then the named
// facial landmark points (lp81, lp82, ...) relative to them.
type Landmarks struct {
	pupils *core.PuplocCascade
	points map[string][]*core.FlpCascade
	names  []string
}

// NewLandmarks loads the pupil cascade and the landmark cascades listed in
// names. Every name must exist in the lps directory.
func NewLandmarks(cascadeDir string, names ...string) (*Landmarks, error) {
	data, err := os.ReadFile(filepath.Join(cascadeDir, puplocFile))
	if err != nil {
		return nil, fmt.Errorf("reading the puploc cascade: %w", err)
	}

	pupils, err := core.NewPuplocCascade().UnpackCascade(data)
	if err != nil {
		return nil, fmt.Errorf("unpacking the puploc cascade: %w", err)
	}

	points, err := pupils.ReadCascadeDir(filepath.Join(cascadeDir, landmarksDir))
	if err != nil {
		return nil, fmt.Errorf("reading the landmark cascades: %w", err)
	}
	for _, name := range names {
		if len(points[name]) == 0 {
			return nil, fmt.Errorf("landmark cascade %q not found", name)
		}
	}

	return &Landmarks{pupils: pupils, points: points, names: names}, nil
}

func (l *Landmarks) Extract(frame pipeline.Frame, face pipeline.Face) (pipeline.Landmarks, error) {
	if frame.Image == nil {
		return pipeline.Landmarks{}, fmt.Errorf("empty frame")
	}

	offset := frame.Image.Bounds().Min
	det := detectionFromBox(face.Box.Sub(offset))
	params := imageParams(frame.Image)

	leftEye := l.pupils.RunDetector(core.Puploc{
		Row:      det.Row - int(0.075*float32(det.Scale)),
		Col:      det.Col - int(0.175*float32(det.Scale)),
		Scale:    float32(det.Scale) * 0.25,
		Perturbs: pupilPerturbs,
	}, params, 0.0, false)

	rightEye := l.pupils.RunDetector(core.Puploc{
		Row:      det.Row - int(0.075*float32(det.Scale)),
		Col:      det.Col + int(0.185*float32(det.Scale)),
		Scale:    float32(det.Scale) * 0.25,
		Perturbs: pupilPerturbs,
	}, params, 0.0, false)

	if !found(leftEye) || !found(rightEye) {
		return pipeline.Landmarks{}, fmt.Errorf("pupils: %w", pipeline.ErrNoLandmark)
	}

	shift := pipeline.Point{X: float64(offset.X), Y: float64(offset.Y)}
	lm := pipeline.Landmarks{Points: map[string]pipeline.Point{
		pipeline.LeftEye:  toPoint(leftEye, shift),
		pipeline.RightEye: toPoint(rightEye, shift),
	}}

	for _, name := range l.names {
		for _, flpc := range l.points[name] {
			p := flpc.GetLandmarkPoint(leftEye, rightEye, params, landmarkPerturbs, false)
			if found(p) {
				lm.Points[name] = toPoint(p, shift)
				break
			}
		}
	}
	return lm, nil
}

func found(p *core.Puploc) bool {
	return p != nil && p.Row > 0 && p.Col > 0
}

func toPoint(p *core.Puploc, shift pipeline.Point) pipeline.Point {
	return pipeline.Point{X: float64(p.Col) + shift.X, Y: float64(p.Row) + shift.Y}
}
