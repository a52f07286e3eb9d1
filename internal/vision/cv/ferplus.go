//go:build !nocv

package cv

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/DDH2004/AIoTHackStorm/internal/emotion"
	"github.com/DDH2004/AIoTHackStorm/internal/pipeline"
)

// ferplusOutputs is the output order of the FER+ ONNX network.
var ferplusOutputs = []string{"neutral", "happiness", "surprise", "sadness", "anger", "disgust", "fear", "contempt"}

const ferplusInput = 64

// FERPlusClassifier runs the FER+ ONNX emotion network on a grayscale face crop.
type FERPlusClassifier struct {
	mu  sync.Mutex
	net gocv.Net
}

func NewFERPlusClassifier(modelPath string) (*FERPlusClassifier, error) {
	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		return nil, fmt.Errorf("error reading emotion network: %s", modelPath)
	}
	return &FERPlusClassifier{net: net}, nil
}

func (c *FERPlusClassifier) Classify(_ context.Context, frame pipeline.Frame, face pipeline.Face) (emotion.Scores, error) {
	if frame.Image == nil {
		return nil, errEmptyFrame
	}

	gray, err := toGray(frame.Image)
	if err != nil {
		return nil, err
	}
	defer gray.Close()

	b := frame.Image.Bounds()
	box := face.Box.Intersect(b).Sub(b.Min)
	if box.Empty() {
		return nil, fmt.Errorf("face %v outside frame", face.Box)
	}

	roi := gray.Region(box)
	defer roi.Close()

	blob := gocv.BlobFromImage(roi, 1.0, image.Pt(ferplusInput, ferplusInput), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	c.mu.Lock()
	c.net.SetInput(blob, "")
	prob := c.net.Forward("")
	c.mu.Unlock()
	defer prob.Close()

	if prob.Total() < len(ferplusOutputs) {
		return nil, fmt.Errorf("emotion network returned %d outputs", prob.Total())
	}

	logits := make([]float64, len(ferplusOutputs))
	for i := range logits {
		logits[i] = float64(prob.GetFloatAt(0, i))
	}
	return scoresFromLogits(logits), nil
}

func scoresFromLogits(logits []float64) emotion.Scores {
	probs := emotion.Softmax(logits)
	raw := make(map[string]float64, len(probs))
	for i, p := range probs {
		raw[ferplusOutputs[i]] += p
	}
	return emotion.FromNames(raw)
}

func (c *FERPlusClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.net.Close()
}
