package pipeline

import (
	"image"

	"github.com/DDH2004/AIoTHackStorm/internal/models"
)

func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Mirror flips a normalized x coordinate for a front-facing camera.
func Mirror(x float64) float64 {
	return 1 - Clamp01(x)
}

// Normalize converts a pixel position into fractions of the frame size.
func Normalize(p Point, width, height int) (float64, float64) {
	if width <= 0 || height <= 0 {
		return 0.5, 0.5
	}
	return Clamp01(p.X / float64(width)), Clamp01(p.Y / float64(height))
}

func Center(r image.Rectangle) Point {
	return Point{
		X: float64(r.Min.X) + float64(r.Dx())/2,
		Y: float64(r.Min.Y) + float64(r.Dy())/2,
	}
}

// Largest returns the face with the biggest box. faces must not be empty.
func Largest(faces []Face) Face {
	best := faces[0]
	for _, f := range faces[1:] {
		if f.Area() > best.Area() {
			best = f
		}
	}
	return best
}

func ToBox(r image.Rectangle) models.FaceBox {
	return models.FaceBox{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

type MouthOptions struct {
	Upper    string
	Lower    string
	RatioMin float64
	RatioMax float64
}

// MouthOpen measures the lip gap against the interocular distance and maps
// the ratio from [RatioMin, RatioMax] onto [0,1].
func MouthOpen(lm Landmarks, opts MouthOptions) (float64, error) {
	upper, ok1 := lm.Point(opts.Upper)
	lower, ok2 := lm.Point(opts.Lower)
	left, ok3 := lm.Point(LeftEye)
	right, ok4 := lm.Point(RightEye)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return 0, ErrNoLandmark
	}

	scale := left.Dist(right)
	if scale <= 0 {
		return 0, ErrNoLandmark
	}
	ratio := upper.Dist(lower) / scale

	span := opts.RatioMax - opts.RatioMin
	if span <= 0 {
		if ratio >= opts.RatioMax {
			return 1, nil
		}
		return 0, nil
	}
	return Clamp01((ratio - opts.RatioMin) / span), nil
}
