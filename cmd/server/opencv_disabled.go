//go:build nocv

package main

import (
	"errors"
	"io"

	"github.com/DDH2004/AIoTHackStorm/internal/pipeline"
)

var errNoOpenCV = errors.New("built without OpenCV (nocv tag)")

func openCamera(interface{}, int, int) (pipeline.FrameSource, error) {
	return nil, errNoOpenCV
}

func newCascadeDetector(string) (pipeline.FaceDetector, io.Closer, error) {
	return nil, nil, errNoOpenCV
}

func newFERPlusClassifier(string) (pipeline.EmotionClassifier, io.Closer, error) {
	return nil, nil, errNoOpenCV
}
