package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
)

var errEmptyUpload = errors.New("empty upload")

// decodeUpload turns a device upload into an image. A body of exactly
// width*height*3 bytes is raw RGB888 in row order; anything else must be an
// encoded JPEG or PNG.
func decodeUpload(body []byte, width, height int) (image.Image, error) {
	if len(body) == 0 {
		return nil, errEmptyUpload
	}

	if width > 0 && height > 0 && len(body) == width*height*3 {
		return rgb888(body, width, height), nil
	}

	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("decode upload (%d bytes): %w", len(body), err)
	}
	return img, nil
}

func rgb888(body []byte, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i, j := 0, 0; i < len(body); i, j = i+3, j+4 {
		img.Pix[j] = body[i]
		img.Pix[j+1] = body[i+1]
		img.Pix[j+2] = body[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}
