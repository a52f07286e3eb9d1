//go:build !nocv

// Package cv holds the OpenCV-backed pipeline stages: webcam capture, Haar
// cascade face detection and the FER+ emotion network.
package cv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"github.com/DDH2004/AIoTHackStorm/internal/pipeline"
)

var errEmptyFrame = errors.New("cv: empty frame")

// Camera reads frames from a V4L/AVFoundation device or a video file.
type Camera struct {
	capture *gocv.VideoCapture
	mat     gocv.Mat
}

// OpenCamera opens device (an index or a path/URL) and requests the given
// resolution. Drivers may ignore the request.
func OpenCamera(device interface{}, width, height int) (*Camera, error) {
	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("open video capture %v: %w", device, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("video capture %v not opened", device)
	}

	if width > 0 && height > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(width))
		capture.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}

	return &Camera{capture: capture, mat: gocv.NewMat()}, nil
}

func (c *Camera) Read(ctx context.Context) (pipeline.Frame, error) {
	if err := ctx.Err(); err != nil {
		return pipeline.Frame{}, err
	}
	if !c.capture.IsOpened() {
		return pipeline.Frame{}, pipeline.ErrSourceClosed
	}
	if ok := c.capture.Read(&c.mat); !ok {
		return pipeline.Frame{}, fmt.Errorf("cannot read device")
	}
	if c.mat.Empty() {
		return pipeline.Frame{}, errEmptyFrame
	}

	img, err := c.mat.ToImage()
	if err != nil {
		return pipeline.Frame{}, fmt.Errorf("convert frame: %w", err)
	}
	return pipeline.Frame{Image: img, At: time.Now()}, nil
}

func (c *Camera) Close() error {
	c.mat.Close()
	return c.capture.Close()
}
