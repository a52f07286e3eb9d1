package pipeline

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/DDH2004/AIoTHackStorm/internal/models"
	"github.com/DDH2004/AIoTHackStorm/pkg/log"
)

type LoopOptions struct {
	// FPS caps how often a frame is pulled from the source. Zero means unpaced.
	FPS float64
	// EmotionEveryN runs the classifier on every Nth frame that contains a face.
	EmotionEveryN int
	// MaxReadFailures consecutive failed reads mark the source as down.
	MaxReadFailures int
	// SourceReady is told when the source goes down and when a read
	// succeeds again.
	SourceReady func(ok bool)
}

const defaultMaxReadFailures = 30

type Loop struct {
	source     FrameSource
	analyzer   *Analyzer
	store      Store
	publishers []Publisher
	metrics    Recorder
	opts       LoopOptions
}

func NewLoop(source FrameSource, analyzer *Analyzer, store Store, metrics Recorder, opts LoopOptions, publishers ...Publisher) *Loop {
	if opts.EmotionEveryN < 1 {
		opts.EmotionEveryN = 1
	}
	if opts.MaxReadFailures < 1 {
		opts.MaxReadFailures = defaultMaxReadFailures
	}
	if opts.SourceReady == nil {
		opts.SourceReady = func(bool) {}
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Loop{
		source:     source,
		analyzer:   analyzer,
		store:      store,
		publishers: publishers,
		metrics:    metrics,
		opts:       opts,
	}
}

// Run reads frames until ctx is cancelled or the source reports
// ErrSourceClosed. Failed reads and failed analyses are skipped; the last
// published record stays in place. The source is closed on return.
func (l *Loop) Run(ctx context.Context) error {
	defer func() {
		if err := l.source.Close(); err != nil {
			log.Warn(log.Fields{"error": err.Error()}, "closing frame source")
		}
	}()

	limit := rate.Inf
	if l.opts.FPS > 0 {
		limit = rate.Limit(l.opts.FPS)
	}
	limiter := rate.NewLimiter(limit, 1)

	var seq, faceFrames int64
	failures := 0
	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}

		frame, err := l.source.Read(ctx)
		if err != nil {
			if errors.Is(err, ErrSourceClosed) {
				log.Info(nil, "frame source closed, stopping capture loop")
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			l.metrics.IncrementErrors()
			log.Debug(log.Fields{"error": err.Error()}, "frame read failed")
			failures++
			if failures == l.opts.MaxReadFailures {
				log.Warn(log.Fields{"error": err.Error(), "failures": failures}, "frame source not delivering")
				l.opts.SourceReady(false)
			}
			continue
		}
		if failures >= l.opts.MaxReadFailures {
			log.Info(nil, "frame source recovered")
			l.opts.SourceReady(true)
		}
		failures = 0

		seq++
		frame.Sequence = seq
		if frame.At.IsZero() {
			frame.At = time.Now()
		}
		l.metrics.IncrementFrames()

		start := time.Now()
		classify := faceFrames%int64(l.opts.EmotionEveryN) == 0
		res, err := l.analyzer.Analyze(ctx, frame, l.store.Latest(), classify)
		switch {
		case errors.Is(err, ErrNoFace):
			continue
		case err != nil:
			l.metrics.IncrementErrors()
			log.Debug(log.Fields{"error": err.Error(), "sequence": seq}, "frame analysis failed")
			continue
		}

		faceFrames++
		l.metrics.IncrementFaceFrames()
		l.metrics.RecordLatency(time.Since(start))

		res.Source = models.SourceWebcam
		l.publish(ctx, res)
	}
}

func (l *Loop) publish(ctx context.Context, res models.DetectionResult) {
	l.store.Publish(ctx, res)
	for _, p := range l.publishers {
		p.Publish(ctx, res)
	}
}
