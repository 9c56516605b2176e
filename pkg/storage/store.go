package storage

import (
	"context"
	"fmt"

	"secevents/pkg/config"
)

// PageStore persists the raw data array of one page
type PageStore interface {
	// SavePage stores data under name, replacing anything stored there before
	SavePage(ctx context.Context, name string, data []byte) error
	// Close releases the backend
	Close() error
}

// New creates the PageStore selected by cfg.Backend
func New(ctx context.Context, cfg config.OutputConfig) (PageStore, error) {
	switch cfg.Backend {
	case "", config.BackendFile:
		return NewFileStore(cfg.Directory)
	case config.BackendRedis:
		return NewRedisStore(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown output backend %q", cfg.Backend)
	}
}
