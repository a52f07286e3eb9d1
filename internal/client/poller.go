package client

import (
	"context"
	"time"

	"github.com/DDH2004/AIoTHackStorm/internal/emotion"
	"github.com/DDH2004/AIoTHackStorm/pkg/log"
)

// FetchFunc returns one reading, e.g. Client.Listener.
type FetchFunc func(ctx context.Context) (Reading, error)

// Transition is reported whenever the avatar face changes.
type Transition struct {
	From    emotion.Avatar
	To      emotion.Avatar
	Reading Reading
}

// Poll calls fetch every interval until ctx is done and reports avatar
// changes. Failed fetches are logged and skipped; the avatar keeps its face.
// The first successful reading reports a transition from "" unless the
// device would leave its face unchanged.
func Poll(ctx context.Context, interval time.Duration, fetch FetchFunc, onChange func(Transition)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var current emotion.Avatar
	for {
		r, err := fetch(ctx)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn(log.Fields{"error": err.Error()}, "poll failed")
		default:
			if next := r.AvatarFrom(current); next != current {
				onChange(Transition{From: current, To: next, Reading: r})
				current = next
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
