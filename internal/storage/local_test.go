package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalMkdirWriteRead(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	l, err := NewLocal(root, "/uploads/")
	require.NoError(t, err)

	exists, err := l.Exists(ctx, "images")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, l.Mkdir(ctx, "images"))
	require.NoError(t, l.Mkdir(ctx, "images"))

	exists, err = l.Exists(ctx, "images")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, l.Write(ctx, "images/a.png", []byte("payload"), "image/png"))

	data, err := l.Read(ctx, "images/a.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	entries, err := os.ReadDir(filepath.Join(root, "images"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")

	assert.Equal(t, "/uploads/images/a.png", l.URL("images/a.png"))
}

func TestLocalWriteWithoutDirFails(t *testing.T) {
	l, err := NewLocal(t.TempDir(), "")
	require.NoError(t, err)
	assert.Error(t, l.Write(context.Background(), "missing/a.png", []byte("x"), "image/png"))
}

func TestLocalPathStaysUnderRoot(t *testing.T) {
	root := t.TempDir()
	l, err := NewLocal(root, "")
	require.NoError(t, err)

	require.NoError(t, l.Write(context.Background(), "../../escape.txt", []byte("x"), ""))
	_, err = os.Stat(filepath.Join(root, "escape.txt"))
	assert.NoError(t, err)
}

func TestLocalExistsOnFileIsFalse(t *testing.T) {
	ctx := context.Background()
	l, err := NewLocal(t.TempDir(), "")
	require.NoError(t, err)
	require.NoError(t, l.Write(ctx, "plain", []byte("x"), ""))

	exists, err := l.Exists(ctx, "plain")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalHandlerServesFiles(t *testing.T) {
	ctx := context.Background()
	l, err := NewLocal(t.TempDir(), "/uploads")
	require.NoError(t, err)
	require.NoError(t, l.Mkdir(ctx, "images"))
	require.NoError(t, l.Write(ctx, "images/b.txt", []byte("hello"), "text/plain"))

	srv := httptest.NewServer(http.StripPrefix("/uploads", l.Handler()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/uploads/images/b.txt")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLocalHandlerHidesDirectories(t *testing.T) {
	ctx := context.Background()
	l, err := NewLocal(t.TempDir(), "/uploads")
	require.NoError(t, err)
	require.NoError(t, l.Mkdir(ctx, "images"))
	require.NoError(t, l.Write(ctx, "images/secret.webp", []byte("x"), "image/webp"))

	srv := httptest.NewServer(http.StripPrefix("/uploads", l.Handler()))
	defer srv.Close()

	for _, p := range []string{"/uploads/", "/uploads/images", "/uploads/images/", "/uploads/images/missing.webp"} {
		resp, err := http.Get(srv.URL + p)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, p)
		assert.NotContains(t, string(body), "secret.webp", p)
	}
}

func TestNewLocalRequiresRoot(t *testing.T) {
	_, err := NewLocal(" ", "")
	assert.Error(t, err)
}

func TestNewObjectRequiresBucket(t *testing.T) {
	_, err := NewObject(ObjectConfig{Endpoint: "localhost:9000"})
	assert.Error(t, err)
}

func TestObjectURL(t *testing.T) {
	o, err := NewObject(ObjectConfig{Endpoint: "localhost:9000", Bucket: "images-bucket"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/images-bucket/images/a.webp", o.URL("images/a.webp"))

	o, err = NewObject(ObjectConfig{Endpoint: "s3.example.com", Bucket: "b", UseSSL: true, PublicBase: "https://cdn.example.com/"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/images/a.webp", o.URL("/images/a.webp"))
}
