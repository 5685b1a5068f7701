package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dunamismax/pixelpress/internal/domain"
	"github.com/hibiken/asynq"
)

const TypeImageCompressed = "image:compressed"

type ImageCompressedPayload struct {
	StorageKey       string    `json:"storage_key"`
	URL              string    `json:"url"`
	Filename         string    `json:"filename"`
	OriginalName     string    `json:"original_name"`
	Preset           string    `json:"preset"`
	Format           string    `json:"format"`
	OriginalSize     int64     `json:"original_size"`
	OutputSize       int64     `json:"output_size"`
	CompressionRatio float64   `json:"compression_ratio"`
	Width            int       `json:"width"`
	Height           int       `json:"height"`
	CompletedAt      time.Time `json:"completed_at"`
}

func NewImageCompressedPayload(presetName string, result domain.TransformResult, completedAt time.Time) ImageCompressedPayload {
	return ImageCompressedPayload{
		StorageKey:       result.StorageKey,
		URL:              result.URL,
		Filename:         result.Filename,
		OriginalName:     result.OriginalName,
		Preset:           presetName,
		Format:           result.Format,
		OriginalSize:     result.OriginalSize,
		OutputSize:       result.OutputSize,
		CompressionRatio: result.CompressionRatio,
		Width:            result.Width,
		Height:           result.Height,
		CompletedAt:      completedAt.UTC(),
	}
}

func NewImageCompressedTask(payload ImageCompressedPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal compressed payload: %w", err)
	}
	return asynq.NewTask(TypeImageCompressed, body), nil
}

func ParseImageCompressedPayload(task *asynq.Task) (ImageCompressedPayload, error) {
	var payload ImageCompressedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ImageCompressedPayload{}, fmt.Errorf("unmarshal compressed payload: %w", err)
	}
	return payload, nil
}
