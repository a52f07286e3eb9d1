//go:build !nocv

package cv

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/DDH2004/AIoTHackStorm/internal/pipeline"
)

// CascadeDetector finds frontal faces with a Haar cascade.
type CascadeDetector struct {
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
}

func NewCascadeDetector(path string) (*CascadeDetector, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, fmt.Errorf("error reading cascade file: %s", path)
	}
	return &CascadeDetector{classifier: classifier}, nil
}

func (d *CascadeDetector) Detect(frame pipeline.Frame) ([]pipeline.Face, error) {
	if frame.Image == nil {
		return nil, errEmptyFrame
	}

	gray, err := toGray(frame.Image)
	if err != nil {
		return nil, err
	}
	defer gray.Close()

	d.mu.Lock()
	rects := d.classifier.DetectMultiScaleWithParams(gray, 1.1, 4, 0, image.Pt(30, 30), image.Pt(0, 0))
	d.mu.Unlock()

	// Mat coordinates start at 0; shift back into the frame's bounds
	offset := frame.Image.Bounds().Min
	faces := make([]pipeline.Face, 0, len(rects))
	for _, r := range rects {
		faces = append(faces, pipeline.Face{Box: r.Add(offset), Score: 1})
	}
	return faces, nil
}

func (d *CascadeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.classifier.Close()
}

// toGray converts an image into an equalized single-channel Mat.
func toGray(img image.Image) (gocv.Mat, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("convert image to mat: %w", err)
	}
	defer mat.Close()

	gray := gocv.NewMat()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)
	gocv.EqualizeHist(gray, &gray)
	return gray, nil
}
