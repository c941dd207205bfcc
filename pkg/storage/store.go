package storage

import (
	"context"

	"github.com/opscart/selfheal-agent/pkg/models"
)

// Store defines the interface for the action audit log
type Store interface {
	LogAction(ctx context.Context, rec *models.ActionRecord) error
	ListActions(ctx context.Context, limit int) ([]*models.ActionRecord, error)

	Ping(ctx context.Context) error
	Close() error
}

type Config struct {
	Type string // postgres, memory
	URL  string
}

// New opens the store described by cfg
func New(cfg Config) (Store, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "postgres", "":
		return NewPostgresStore(cfg.URL)
	default:
		return nil, &UnknownStoreError{Type: cfg.Type}
	}
}

// UnknownStoreError is returned for an unsupported store type
type UnknownStoreError struct {
	Type string
}

func (e *UnknownStoreError) Error() string {
	return "unknown store type: " + e.Type
}
