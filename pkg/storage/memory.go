package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opscart/selfheal-agent/pkg/models"
)

// MemoryStore keeps the audit log in process memory
type MemoryStore struct {
	mu      sync.RWMutex
	records []*models.ActionRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) LogAction(ctx context.Context, rec *models.ActionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.records = append(m.records, &cp)
	return nil
}

func (m *MemoryStore) ListActions(ctx context.Context, limit int) ([]*models.ActionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.ActionRecord
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *m.records[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
