package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sync"
	"testing"

	"github.com/dunamismax/pixelpress/internal/domain"
)

func buildTestPNG(tb testing.TB, w, h int) []byte {
	tb.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, gradient(w, h)); err != nil {
		tb.Fatalf("encode source png: %v", err)
	}
	return buf.Bytes()
}

func buildTestJPEG(tb testing.TB, w, h int) []byte {
	tb.Helper()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, gradient(w, h), &jpeg.Options{Quality: 95}); err != nil {
		tb.Fatalf("encode source jpeg: %v", err)
	}
	return buf.Bytes()
}

func gradient(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / w),
				G: uint8((y * 255) / h),
				B: 140,
				A: 255,
			})
		}
	}
	return img
}

// fakeCodec returns a fixed payload and records what it was asked to do.
type fakeCodec struct {
	mu        sync.Mutex
	output    []byte
	meta      domain.ImageMetadata
	encodeErr error
	metaErr   error
	calls     int
	specs     []domain.TransformSpec
	formats   []string
}

func (c *fakeCodec) Supports(format string) bool {
	return domain.AllowedFormat(format)
}

func (c *fakeCodec) DecodeMetadata(_ []byte) (domain.ImageMetadata, error) {
	if c.metaErr != nil {
		return domain.ImageMetadata{}, c.metaErr
	}
	return c.meta, nil
}

func (c *fakeCodec) ResizeAndEncode(_ context.Context, _ []byte, spec domain.TransformSpec, format string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.specs = append(c.specs, spec)
	c.formats = append(c.formats, format)
	if c.encodeErr != nil {
		return nil, c.encodeErr
	}
	return c.output, nil
}

type memoryStorage struct {
	mu       sync.Mutex
	dirs     map[string]bool
	objects  map[string][]byte
	mkdirs   int
	writeErr error
	existErr error
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{
		dirs:    make(map[string]bool),
		objects: make(map[string][]byte),
	}
}

func (s *memoryStorage) Exists(_ context.Context, dir string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.existErr != nil {
		return false, s.existErr
	}
	return s.dirs[dir], nil
}

func (s *memoryStorage) Mkdir(_ context.Context, dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mkdirs++
	s.dirs[dir] = true
	return nil
}

func (s *memoryStorage) Write(_ context.Context, key string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	if _, ok := s.objects[key]; ok {
		return errors.New("object already exists: " + key)
	}
	s.objects[key] = append([]byte(nil), data...)
	return nil
}

func (s *memoryStorage) URL(key string) string {
	return "/uploads/" + key
}

func (s *memoryStorage) get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	return data, ok
}

func (s *memoryStorage) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// jpegOnlyCodec narrows a fakeCodec to a single encodable format.
type jpegOnlyCodec struct {
	*fakeCodec
}

func (jpegOnlyCodec) Supports(format string) bool {
	return domain.NormalizeFormat(format) == domain.FormatJPEG
}
