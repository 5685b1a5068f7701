package store

import (
	"context"

	"github.com/dunamismax/pixelpress/internal/domain"
)

// CompressionStore keeps a log of completed compressions.
type CompressionStore interface {
	Record(ctx context.Context, entry domain.CompressionLog) error
	Recent(ctx context.Context, limit int) ([]domain.CompressionLog, error)
}

const DefaultRecentLimit = 50

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return DefaultRecentLimit
	}
	return limit
}
