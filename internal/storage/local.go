package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Local stores objects as files under a root directory.
type Local struct {
	root       string
	publicBase string
}

func NewLocal(root, publicBase string) (*Local, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("storage root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	return &Local{
		root:       abs,
		publicBase: strings.TrimRight(strings.TrimSpace(publicBase), "/"),
	}, nil
}

func (l *Local) Root() string {
	return l.root
}

func (l *Local) Exists(_ context.Context, dir string) (bool, error) {
	info, err := os.Stat(l.path(dir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", dir, err)
	}
	return info.IsDir(), nil
}

func (l *Local) Mkdir(_ context.Context, dir string) error {
	if err := os.MkdirAll(l.path(dir), 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	return nil
}

// Write stores data through a temp file and rename so a reader never sees a
// partial object.
func (l *Local) Write(ctx context.Context, key string, data []byte, _ string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	fullPath := l.path(key)
	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".write-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", key, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", key, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", key, err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", key, err)
	}
	return nil
}

func (l *Local) Read(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(l.path(key))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

func (l *Local) URL(key string) string {
	return l.publicBase + "/" + strings.TrimLeft(key, "/")
}

// Handler serves stored files; mount it under the public base path.
// Directories are not listed.
func (l *Local) Handler() http.Handler {
	files := http.FileServer(http.Dir(l.root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, err := os.Stat(l.path(r.URL.Path))
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}

func (l *Local) path(key string) string {
	clean := path.Clean("/" + key)
	return filepath.Join(l.root, filepath.FromSlash(clean))
}
