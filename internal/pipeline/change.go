package pipeline

import (
	"context"
	"sync"

	"github.com/DDH2004/AIoTHackStorm/internal/emotion"
	"github.com/DDH2004/AIoTHackStorm/internal/models"
)

// OnEmotionChange forwards a result only when its emotion differs from the
// last forwarded one.
type OnEmotionChange struct {
	next Publisher

	mu   sync.Mutex
	last emotion.Label
}

func NewOnEmotionChange(next Publisher) *OnEmotionChange {
	return &OnEmotionChange{next: next}
}

func (c *OnEmotionChange) Publish(ctx context.Context, result models.DetectionResult) {
	c.mu.Lock()
	changed := result.Emotion != c.last
	c.last = result.Emotion
	c.mu.Unlock()

	if changed {
		c.next.Publish(ctx, result)
	}
}

// Fanout publishes to every publisher in order.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, result models.DetectionResult) {
	for _, p := range f {
		p.Publish(ctx, result)
	}
}
