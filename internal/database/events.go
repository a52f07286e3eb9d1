package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/oklog/ulid/v2"

	"github.com/DDH2004/AIoTHackStorm/internal/models"
	"github.com/DDH2004/AIoTHackStorm/pkg/log"
)

const (
	queryInsertEvent = `
		INSERT INTO emotion_events (id, emotion, confidence, x, y, mouth_open, source, created_at)
		VALUES (:id, :emotion, :confidence, :x, :y, :mouth_open, :source, :created_at)`

	queryListEvents = `
		SELECT id, emotion, confidence, x, y, mouth_open, source, created_at
		FROM emotion_events
		ORDER BY created_at DESC
		LIMIT $1`
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// EventRepository stores emotion history rows.
type EventRepository struct {
	db *sqlx.DB
}

func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Insert(ctx context.Context, ev models.EmotionEvent) error {
	if _, err := r.db.NamedExecContext(ctx, queryInsertEvent, ev); err != nil {
		return fmt.Errorf("insert emotion event: %w", err)
	}
	return nil
}

// Publish records the result as a new event. Failures are logged; history
// never blocks or fails the capture loop.
func (r *EventRepository) Publish(ctx context.Context, result models.DetectionResult) {
	ev := models.EventFromResult(ulid.Make().String(), result)
	if err := r.Insert(ctx, ev); err != nil {
		log.WithRequestID(ctx).WithField("error", err.Error()).Error("failed to store emotion event")
	}
}

// List returns the newest events first. limit is clamped to [1, MaxHistoryLimit].
func (r *EventRepository) List(ctx context.Context, limit int) ([]models.EmotionEvent, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	events := []models.EmotionEvent{}
	if err := r.db.SelectContext(ctx, &events, queryListEvents, limit); err != nil {
		return nil, fmt.Errorf("list emotion events: %w", err)
	}
	return events, nil
}
