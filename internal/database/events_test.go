package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/DDH2004/AIoTHackStorm/internal/emotion"
	"github.com/DDH2004/AIoTHackStorm/internal/models"
)

func TestEventRepository(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer Close(db)

	if _, err := db.ExecContext(ctx, "DELETE FROM emotion_events"); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	repo := NewEventRepository(db)
	open := 0.4
	base := time.Now().Add(-time.Minute).UTC().Truncate(time.Millisecond)

	repo.Publish(ctx, models.DetectionResult{Emotion: emotion.Happy, X: 0.1, Y: 0.2, Confidence: 90, Source: models.SourceWebcam, UpdatedAt: base})
	repo.Publish(ctx, models.DetectionResult{Emotion: emotion.Sad, X: 0.3, Y: 0.4, Confidence: 70, MouthOpen: &open, Source: models.SourceUpload, UpdatedAt: base.Add(time.Second)})

	events, err := repo.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Emotion != emotion.Sad || events[1].Emotion != emotion.Happy {
		t.Errorf("events not newest first: %s, %s", events[0].Emotion, events[1].Emotion)
	}
	if events[0].MouthOpen == nil || *events[0].MouthOpen != 0.4 {
		t.Errorf("mouth_open not stored: %v", events[0].MouthOpen)
	}
	if events[1].MouthOpen != nil {
		t.Errorf("expected NULL mouth_open, got %v", *events[1].MouthOpen)
	}
	if events[0].ID == "" || events[0].ID == events[1].ID {
		t.Errorf("bad ids: %q %q", events[0].ID, events[1].ID)
	}

	one, err := repo.List(ctx, 1)
	if err != nil || len(one) != 1 {
		t.Fatalf("List(1) = %d events, %v", len(one), err)
	}
}
