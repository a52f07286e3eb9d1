//go:build !nocv

package main

import (
	"io"

	"github.com/DDH2004/AIoTHackStorm/internal/pipeline"
	"github.com/DDH2004/AIoTHackStorm/internal/vision/cv"
)

func openCamera(device interface{}, width, height int) (pipeline.FrameSource, error) {
	cam, err := cv.OpenCamera(device, width, height)
	if err != nil {
		return nil, err
	}
	return cam, nil
}

func newCascadeDetector(path string) (pipeline.FaceDetector, io.Closer, error) {
	d, err := cv.NewCascadeDetector(path)
	if err != nil {
		return nil, nil, err
	}
	return d, d, nil
}

func newFERPlusClassifier(modelPath string) (pipeline.EmotionClassifier, io.Closer, error) {
	c, err := cv.NewFERPlusClassifier(modelPath)
	if err != nil {
		return nil, nil, err
	}
	return c, c, nil
}
