package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/DDH2004/AIoTHackStorm/internal/models"
	"github.com/DDH2004/AIoTHackStorm/pkg/log"
)

type queued struct {
	ctx    context.Context
	result models.DetectionResult
}

// AsyncPublisher hands results to a slower publisher on its own goroutine.
// When the queue is full the result is dropped so the capture loop never waits.
type AsyncPublisher struct {
	name    string
	next    Publisher
	queue   chan queued
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Int64
	onDrop  func()
}

func NewAsync(name string, next Publisher, size int, onDrop func()) *AsyncPublisher {
	if size < 1 {
		size = 1
	}
	a := &AsyncPublisher{
		name:   name,
		next:   next,
		queue:  make(chan queued, size),
		done:   make(chan struct{}),
		onDrop: onDrop,
	}
	a.wg.Add(1)
	go a.run()
	return a
}

func (a *AsyncPublisher) Publish(ctx context.Context, result models.DetectionResult) {
	select {
	case <-a.done:
		return
	default:
	}

	// the worker may run after a request context is already done
	select {
	case a.queue <- queued{ctx: context.WithoutCancel(ctx), result: result}:
	default:
		a.dropped.Add(1)
		if a.onDrop != nil {
			a.onDrop()
		}
		log.Debug(log.Fields{"publisher": a.name, "sequence": result.Sequence}, "publisher queue full, dropping result")
	}
}

func (a *AsyncPublisher) Dropped() int64 {
	return a.dropped.Load()
}

// Close stops accepting results, flushes what is queued and waits for the worker.
func (a *AsyncPublisher) Close() {
	a.once.Do(func() {
		close(a.done)
	})
	a.wg.Wait()
}

func (a *AsyncPublisher) run() {
	defer a.wg.Done()
	for {
		select {
		case item := <-a.queue:
			a.next.Publish(item.ctx, item.result)
		case <-a.done:
			for {
				select {
				case item := <-a.queue:
					a.next.Publish(context.Background(), item.result)
				default:
					return
				}
			}
		}
	}
}
