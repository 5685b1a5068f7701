package domain

import "time"

// CompressionLog records one completed compression.
type CompressionLog struct {
	StorageKey      string
	OriginalName    string
	Preset          string
	Format          string
	OriginalBytes   int64
	OutputBytes     int64
	BytesSaved      int64
	PixelsProcessed int64
	ComputeTimeMS   int64
	CreatedAt       time.Time
}

// NewCompressionLog derives a log entry from a result. Negative savings
// clamp to zero and compute time is at least one millisecond.
func NewCompressionLog(preset string, result TransformResult, computeTime time.Duration, now time.Time) CompressionLog {
	saved := result.OriginalSize - result.OutputSize
	if saved < 0 {
		saved = 0
	}
	ms := computeTime.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return CompressionLog{
		StorageKey:      result.StorageKey,
		OriginalName:    result.OriginalName,
		Preset:          preset,
		Format:          result.Format,
		OriginalBytes:   result.OriginalSize,
		OutputBytes:     result.OutputSize,
		BytesSaved:      saved,
		PixelsProcessed: int64(result.Width) * int64(result.Height),
		ComputeTimeMS:   ms,
		CreatedAt:       now.UTC(),
	}
}
