package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dunamismax/pixelpress/internal/domain"
	_ "github.com/lib/pq"
)

const compressionSchemaSQL = `
CREATE TABLE IF NOT EXISTS compression_logs (
	id BIGSERIAL PRIMARY KEY,
	storage_key TEXT NOT NULL,
	original_name TEXT NOT NULL DEFAULT '',
	preset TEXT NOT NULL,
	format TEXT NOT NULL,
	original_bytes BIGINT NOT NULL,
	output_bytes BIGINT NOT NULL,
	bytes_saved BIGINT NOT NULL,
	pixels_processed BIGINT NOT NULL,
	compute_time_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS compression_logs_created_at_idx ON compression_logs (created_at DESC);
`

type PostgresCompressionStore struct {
	db *sql.DB
}

func NewPostgresCompressionStore(ctx context.Context, dsn string) (*PostgresCompressionStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresCompressionStore{db: db}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *PostgresCompressionStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, compressionSchemaSQL); err != nil {
		return fmt.Errorf("ensure compression_logs schema: %w", err)
	}
	return nil
}

func (s *PostgresCompressionStore) Close() error {
	return s.db.Close()
}

func (s *PostgresCompressionStore) Record(ctx context.Context, entry domain.CompressionLog) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO compression_logs
		 (storage_key, original_name, preset, format, original_bytes, output_bytes, bytes_saved, pixels_processed, compute_time_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.StorageKey,
		entry.OriginalName,
		entry.Preset,
		entry.Format,
		entry.OriginalBytes,
		entry.OutputBytes,
		entry.BytesSaved,
		entry.PixelsProcessed,
		entry.ComputeTimeMS,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert compression log: %w", err)
	}
	return nil
}

func (s *PostgresCompressionStore) Recent(ctx context.Context, limit int) ([]domain.CompressionLog, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT storage_key, original_name, preset, format, original_bytes, output_bytes, bytes_saved, pixels_processed, compute_time_ms, created_at
		 FROM compression_logs
		 ORDER BY created_at DESC, id DESC
		 LIMIT $1`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("query compression logs: %w", err)
	}
	defer rows.Close()

	var out []domain.CompressionLog
	for rows.Next() {
		var entry domain.CompressionLog
		if err := rows.Scan(
			&entry.StorageKey,
			&entry.OriginalName,
			&entry.Preset,
			&entry.Format,
			&entry.OriginalBytes,
			&entry.OutputBytes,
			&entry.BytesSaved,
			&entry.PixelsProcessed,
			&entry.ComputeTimeMS,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan compression log: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate compression logs: %w", err)
	}
	return out, nil
}
