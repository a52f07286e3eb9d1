// Package client talks to the listener the way the avatar and upload devices
// do: it polls /listener/emotion or posts frames to /detect_simple and turns
// the replies into avatar faces.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/DDH2004/AIoTHackStorm/internal/emotion"
	"github.com/DDH2004/AIoTHackStorm/internal/models"
)

// None is the label a device falls back to for anything it does not know,
// including the error sentinel.
const None emotion.Label = "none"

var ErrMalformed = errors.New("client: malformed detect_simple reply")

// Reading is one reply as the device sees it.
type Reading struct {
	Emotion      emotion.Label
	Face         models.FaceBox
	Confidence   int
	FaceDetected bool
	X, Y         float64
	MouthOpen    *float64

	// Listener marks readings from /listener/emotion, which the polling
	// firmware maps differently from detect_simple replies.
	Listener bool
}

func (r Reading) Avatar() emotion.Avatar {
	return r.AvatarFrom(emotion.AvatarNeutral)
}

// AvatarFrom is the face a device showing current draws for this reading.
func (r Reading) AvatarFrom(current emotion.Avatar) emotion.Avatar {
	if r.Listener {
		return emotion.ListenerAvatarFor(r.Emotion, current)
	}
	return emotion.AvatarFor(r.Emotion)
}

// ParseSimple decodes "label:x:y:w:h:confidence". A face counts as detected
// only when both box sides are positive.
func ParseSimple(reply string) (Reading, error) {
	parts := strings.Split(strings.TrimSpace(reply), ":")
	if len(parts) != 6 {
		return Reading{}, fmt.Errorf("%w: %q", ErrMalformed, reply)
	}

	nums := make([]int, 5)
	for i, p := range parts[1:] {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Reading{}, fmt.Errorf("%w: field %d: %v", ErrMalformed, i+1, err)
		}
		nums[i] = n
	}

	label := emotion.Label(strings.ToLower(parts[0]))
	if !label.Valid() {
		label = None
	}

	r := Reading{
		Emotion:    label,
		Face:       models.FaceBox{X: nums[0], Y: nums[1], W: nums[2], H: nums[3]},
		Confidence: nums[4],
	}
	r.FaceDetected = r.Face.W > 0 && r.Face.H > 0
	return r, nil
}

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Listener fetches /listener/emotion.
func (c *Client) Listener(ctx context.Context) (Reading, error) {
	var body models.ListenerResponse
	if err := c.getJSON(ctx, "/listener/emotion", &body); err != nil {
		return Reading{}, err
	}

	label := body.Emotion
	if !label.Valid() {
		label = None
	}
	return Reading{
		Emotion:   label,
		X:         body.X,
		Y:         body.Y,
		MouthOpen: body.MouthOpen,
		Listener:  true,
	}, nil
}

func (c *Client) Health(ctx context.Context) (models.HealthStatus, error) {
	var body models.HealthStatus
	err := c.getJSON(ctx, "/health", &body)
	return body, err
}

// Simple posts a frame to /detect_simple and parses the reply.
func (c *Client) Simple(ctx context.Context, frame []byte) (Reading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/detect_simple", bytes.NewReader(frame))
	if err != nil {
		return Reading{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return Reading{}, fmt.Errorf("detect_simple request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return Reading{}, fmt.Errorf("read reply: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Reading{}, fmt.Errorf("detect_simple failed: status %d, body: %s", resp.StatusCode, body)
	}
	return ParseSimple(string(body))
}

func (c *Client) getJSON(ctx context.Context, path string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s failed: status %d, body: %s", path, resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// TestFrame is a width x height RGB888 gradient, the same raw layout the
// upload firmware sends.
func TestFrame(width, height int) []byte {
	buf := make([]byte, width*height*3)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := (y*width + x) * 3
			buf[i] = byte(x * 255 / max(width-1, 1))
			buf[i+1] = byte(y * 255 / max(height-1, 1))
			buf[i+2] = 0x80
		}
	}
	return buf
}
