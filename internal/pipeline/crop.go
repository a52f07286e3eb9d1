package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
)

// CropMargin is the padding in pixels kept around a face box before it is sent to a classifier.
const CropMargin = 20

// Crop copies the face box, grown by margin and clipped to the frame, into a new image.
func Crop(img image.Image, box image.Rectangle, margin int) (image.Image, error) {
	r := box.Inset(-margin).Intersect(img.Bounds())
	if r.Empty() {
		return nil, fmt.Errorf("crop %v outside frame %v", box, img.Bounds())
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst, nil
}

// EncodeFace crops the face with CropMargin and encodes it as JPEG.
func EncodeFace(frame Frame, face Face) ([]byte, error) {
	if frame.Image == nil {
		return nil, fmt.Errorf("empty frame")
	}
	img, err := Crop(frame.Image, face.Box, CropMargin)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encode face: %w", err)
	}
	return buf.Bytes(), nil
}
