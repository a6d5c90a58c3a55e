// Package cache implements a very trivial filesystem cache for fetched images.
package cache

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/modoterra/catlog/pkg/core"
)

// How long until an entry is considered stale.
const maxCacheAge = time.Hour * 24 * 7

var (
	ErrCacheMiss = errors.New("cache miss error")
	errCacheSet  = errors.New("cache set error")
	errCacheDir  = errors.New("cache dir error")
)

// Cache stores image bodies by status code.
type Cache interface {
	Get(code core.StatusCode) ([]byte, error)
	Set(code core.StatusCode, content []byte) error
}

// DefaultDir returns $XDG_CACHE_HOME/catlog/images.
func DefaultDir() string {
	return filepath.Join(xdg.CacheHome, "catlog", "images")
}

// Filesystem implements the default filesystem based Cache interface.
type Filesystem struct {
	cacheDir string
}

// New creates the cache directory if needed. An empty dir means DefaultDir.
func New(dir string) (Filesystem, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		slog.Error("Failed to make cache dir", slog.String("error", err.Error()),
			slog.String("path", dir))

		return Filesystem{}, errors.Join(err, errCacheDir)
	}

	return Filesystem{cacheDir: dir}, nil
}

func (c Filesystem) Set(code core.StatusCode, content []byte) error {
	// Write then rename so a concurrent reader never sees a half written image.
	tmp, errTmp := os.CreateTemp(c.cacheDir, cacheName(code)+".*")
	if errTmp != nil {
		return errors.Join(errTmp, errCacheSet)
	}

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return errors.Join(err, errCacheSet)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())

		return errors.Join(err, errCacheSet)
	}

	if err := os.Rename(tmp.Name(), c.path(code)); err != nil {
		os.Remove(tmp.Name())

		return errors.Join(err, errCacheSet)
	}

	return nil
}

func (c Filesystem) Get(code core.StatusCode) ([]byte, error) {
	file, errFile := os.Open(c.path(code))
	if errFile != nil {
		return nil, errors.Join(errFile, ErrCacheMiss)
	}

	defer func(file io.Closer) {
		if err := file.Close(); err != nil {
			slog.Error("Failed to close cache file", slog.String("error", err.Error()))
		}
	}(file)

	stat, errStat := file.Stat()
	if errStat != nil {
		return nil, errors.Join(errStat, ErrCacheMiss)
	}

	if time.Since(stat.ModTime()) > maxCacheAge {
		if err := os.Remove(c.path(code)); err != nil {
			return nil, errors.Join(err, ErrCacheMiss)
		}

		return nil, ErrCacheMiss
	}

	body, errRead := io.ReadAll(file)
	if errRead != nil {
		return nil, errors.Join(errRead, ErrCacheMiss)
	}

	return body, nil
}

func (c Filesystem) path(code core.StatusCode) string {
	return filepath.Join(c.cacheDir, cacheName(code))
}

func cacheName(code core.StatusCode) string {
	return "http-cat-" + code.String()
}
