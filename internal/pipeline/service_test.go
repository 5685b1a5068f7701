package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/dunamismax/pixelpress/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newTestService(t *testing.T, codec Codec, storage Storage, opts ...Option) *Service {
	t.Helper()
	svc, err := NewService(codec, storage, opts...)
	require.NoError(t, err)
	return svc
}

func intp(v int) *int { return &v }

func TestNewServiceRequiresCollaborators(t *testing.T) {
	_, err := NewService(nil, newMemoryStorage())
	assert.Error(t, err)
	_, err = NewService(&fakeCodec{}, nil)
	assert.Error(t, err)
}

func TestProcessComposesResult(t *testing.T) {
	codec := &fakeCodec{
		output: bytes.Repeat([]byte{1}, 250),
		meta:   domain.ImageMetadata{Width: 1200, Height: 675, Format: "webp"},
	}
	storage := newMemoryStorage()
	svc := newTestService(t, codec, storage, WithIDGenerator(func() string { return "fixed-id" }))

	result, err := svc.Process(context.Background(), domain.TransformRequest{
		Source:           bytes.Repeat([]byte{0}, 1000),
		OriginalFilename: "photo.jpg",
	})
	require.NoError(t, err)

	assert.Equal(t, "images/fixed-id.webp", result.StorageKey)
	assert.Equal(t, "fixed-id.webp", result.Filename)
	assert.Equal(t, "/uploads/images/fixed-id.webp", result.URL)
	assert.Equal(t, "photo.jpg", result.OriginalName)
	assert.Equal(t, int64(1000), result.OriginalSize)
	assert.Equal(t, int64(250), result.OutputSize)
	assert.Equal(t, 75.0, result.CompressionRatio)
	assert.Equal(t, 1200, result.Width)
	assert.Equal(t, 675, result.Height)
	assert.Equal(t, "webp", result.Format)

	stored, ok := storage.get("images/fixed-id.webp")
	require.True(t, ok)
	assert.Len(t, stored, 250)

	require.Len(t, codec.specs, 1)
	assert.Equal(t, 1200, *codec.specs[0].Width, "absent preset resolves to medium")
	assert.Equal(t, "webp", codec.formats[0], "absent format resolves to webp")
}

func TestProcessAppliesOverrides(t *testing.T) {
	codec := &fakeCodec{output: []byte{1}, meta: domain.ImageMetadata{Width: 1, Height: 1, Format: "png"}}
	svc := newTestService(t, codec, newMemoryStorage())

	_, err := svc.Process(context.Background(), domain.TransformRequest{
		Source:           []byte{1, 2, 3},
		OriginalFilename: "a.png",
		Preset:           "thumbnail",
		OutputFormat:     "PNG",
		Overrides:        domain.Overrides{Width: intp(64), Quality: intp(0)},
	})
	require.NoError(t, err)

	spec := codec.specs[0]
	assert.Equal(t, 64, *spec.Width)
	assert.Equal(t, 200, *spec.Height)
	assert.Equal(t, 80, spec.Quality)
	assert.Equal(t, domain.FitCover, spec.Fit)
	assert.Equal(t, "png", codec.formats[0])
}

func TestProcessRejectsOversizeBeforeDecode(t *testing.T) {
	codec := &fakeCodec{}
	storage := newMemoryStorage()
	svc := newTestService(t, codec, storage)

	_, err := svc.Process(context.Background(), domain.TransformRequest{
		Source:           make([]byte, domain.MaxFileSize+1),
		OriginalFilename: "big.png",
	})
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 0, codec.calls)
	assert.Equal(t, 0, storage.mkdirs)
}

func TestProcessAcceptsExactlyMaxSize(t *testing.T) {
	codec := &fakeCodec{output: []byte{1}, meta: domain.ImageMetadata{Format: "webp"}}
	svc := newTestService(t, codec, newMemoryStorage())

	_, err := svc.Process(context.Background(), domain.TransformRequest{
		Source:           make([]byte, domain.MaxFileSize),
		OriginalFilename: "big.png",
	})
	require.NoError(t, err)
}

func TestValidateFormatCombinations(t *testing.T) {
	cases := []struct {
		name     string
		filename string
		format   string
		want     string
		wantErr  string
	}{
		{name: "unknown source with webp", filename: "scan.xyz", format: "webp", want: "webp"},
		{name: "unknown source defaults to webp", filename: "scan.xyz", format: "", want: "webp"},
		{name: "no extension with jpg", filename: "blob", format: "jpg", want: "jpg"},
		{name: "known source with avif", filename: "a.PNG", format: "avif", want: "avif"},
		{name: "neither recognized", filename: "scan.xyz", format: "bmp", wantErr: "Invalid file type"},
		{name: "bad output with known source", filename: "a.png", format: "tiff", wantErr: "Unsupported output format"},
		{name: "empty payload", filename: "a.png", format: "png", wantErr: "No file provided"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			source := []byte{1}
			if tc.name == "empty payload" {
				source = nil
			}
			got, err := Validate(domain.TransformRequest{
				Source:           source,
				OriginalFilename: tc.filename,
				OutputFormat:     tc.format,
			})
			if tc.wantErr != "" {
				require.ErrorIs(t, err, domain.ErrValidation)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestProcessRejectsFormatCodecCannotEncode(t *testing.T) {
	codec := jpegOnlyCodec{&fakeCodec{output: []byte{1}}}
	svc := newTestService(t, codec, newMemoryStorage())

	_, err := svc.Process(context.Background(), domain.TransformRequest{
		Source:           buildTestPNG(t, 10, 10),
		OriginalFilename: "a.png",
		OutputFormat:     "avif",
	})
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "not available")
	assert.Zero(t, codec.calls)
}

func TestProcessCodecFailureIsDecodeErrorAndStoresNothing(t *testing.T) {
	codec := &fakeCodec{encodeErr: errors.New("corrupt image")}
	storage := newMemoryStorage()
	svc := newTestService(t, codec, storage)

	_, err := svc.Process(context.Background(), domain.TransformRequest{Source: []byte("garbage"), OriginalFilename: "a.png"})
	require.ErrorIs(t, err, domain.ErrDecode)
	assert.Equal(t, 0, storage.count())
}

func TestProcessMetadataFailureStoresNothing(t *testing.T) {
	codec := &fakeCodec{output: []byte{1}, metaErr: errors.New("unreadable output")}
	storage := newMemoryStorage()
	svc := newTestService(t, codec, storage)

	_, err := svc.Process(context.Background(), domain.TransformRequest{Source: []byte{1}, OriginalFilename: "a.png"})
	require.ErrorIs(t, err, domain.ErrDecode)
	assert.Equal(t, 0, storage.count())
}

func TestProcessStorageFailureIsStorageError(t *testing.T) {
	codec := &fakeCodec{output: []byte{1}, meta: domain.ImageMetadata{Format: "webp"}}
	storage := newMemoryStorage()
	storage.writeErr = errors.New("disk full")
	svc := newTestService(t, codec, storage)

	_, err := svc.Process(context.Background(), domain.TransformRequest{Source: []byte{1}, OriginalFilename: "a.png"})
	require.ErrorIs(t, err, domain.ErrStorage)
	assert.Contains(t, err.Error(), "disk full")
}

func TestEnsureReadyIsIdempotentAndRetries(t *testing.T) {
	storage := newMemoryStorage()
	storage.existErr = errors.New("unreachable")
	svc := newTestService(t, &fakeCodec{output: []byte{1}, meta: domain.ImageMetadata{Format: "webp"}}, storage, WithOutputDir("/compressed/"))

	_, err := svc.Process(context.Background(), domain.TransformRequest{Source: []byte{1}, OriginalFilename: "a.png"})
	require.ErrorIs(t, err, domain.ErrStorage)

	storage.mu.Lock()
	storage.existErr = nil
	storage.mu.Unlock()

	for i := 0; i < 3; i++ {
		result, err := svc.Process(context.Background(), domain.TransformRequest{Source: []byte{1}, OriginalFilename: "a.png"})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(result.StorageKey, "compressed/"))
	}
	assert.Equal(t, 1, storage.mkdirs)
}

func TestProcessCanceledContextStoresNothing(t *testing.T) {
	storage := newMemoryStorage()
	svc := newTestService(t, stdCodec{}, storage)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Process(ctx, domain.TransformRequest{Source: buildTestPNG(t, 8, 8), OriginalFilename: "a.png", OutputFormat: "png"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, storage.count())
}

func TestProcessConcurrentRequestsGetDistinctKeys(t *testing.T) {
	storage := newMemoryStorage()
	svc := newTestService(t, stdCodec{}, storage)
	source := buildTestPNG(t, 64, 48)

	const n = 8
	var (
		mu   sync.Mutex
		keys = make(map[string]struct{}, n)
	)
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < n; i++ {
		g.Go(func() error {
			result, err := svc.Process(ctx, domain.TransformRequest{
				Source:           source,
				OriginalFilename: "same.png",
				Preset:           "small",
				OutputFormat:     "jpeg",
			})
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if _, dup := keys[result.StorageKey]; dup {
				return fmt.Errorf("duplicate key %s", result.StorageKey)
			}
			keys[result.StorageKey] = struct{}{}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Len(t, keys, n)
	for key := range keys {
		data, ok := storage.get(key)
		require.True(t, ok, key)
		meta, err := stdCodec{}.DecodeMetadata(data)
		require.NoError(t, err)
		assert.Equal(t, "jpeg", meta.Format)
	}
}
