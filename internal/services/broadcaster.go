package services

import (
	"context"
	"sync"

	"github.com/DDH2004/AIoTHackStorm/internal/models"
)

// Broadcaster fans published results out to live subscribers (WebSocket
// clients, gRPC Watch streams). A subscriber that falls behind loses its
// oldest pending result, never blocking the publisher.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[int]chan models.DetectionResult
	nextID int
	buffer int
}

func NewBroadcaster(buffer int) *Broadcaster {
	if buffer < 1 {
		buffer = 1
	}
	return &Broadcaster{
		subs:   make(map[int]chan models.DetectionResult),
		buffer: buffer,
	}
}

// Subscribe returns a channel of results and a cancel func that closes it.
func (b *Broadcaster) Subscribe() (<-chan models.DetectionResult, func()) {
	ch := make(chan models.DetectionResult, b.buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Broadcaster) Publish(_ context.Context, r models.DetectionResult) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- r:
			continue
		default:
		}
		// full: drop the oldest and retry once
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- r:
		default:
		}
	}
}

// Close cancels every subscription.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
