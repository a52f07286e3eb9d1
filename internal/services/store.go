package services

import (
	"context"
	"sync"

	"github.com/DDH2004/AIoTHackStorm/internal/models"
)

// ResultStore holds the most recent detection. The capture loop writes it,
// request handlers read it; the lock only ever covers a struct copy.
type ResultStore struct {
	mu     sync.RWMutex
	latest models.DetectionResult
}

func NewResultStore() *ResultStore {
	return &ResultStore{latest: models.DefaultResult()}
}

func (s *ResultStore) Latest() models.DetectionResult {
	s.mu.RLock()
	r := s.latest
	s.mu.RUnlock()
	return r
}

func (s *ResultStore) Publish(_ context.Context, r models.DetectionResult) {
	s.mu.Lock()
	s.latest = r
	s.mu.Unlock()
}
