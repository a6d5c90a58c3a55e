package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystemRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "images")
	c, err := New(dir)
	require.NoError(t, err)

	_, err = c.Get(404)
	require.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(404, []byte("jpeg bytes")))
	body, err := c.Get(404)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg bytes"), body)

	_, err = c.Get(500)
	require.ErrorIs(t, err, ErrCacheMiss)
}

func TestFilesystemStaleEntry(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, c.Set(503, []byte("old")))

	old := time.Now().Add(-maxCacheAge - time.Hour)
	require.NoError(t, os.Chtimes(c.path(503), old, old))

	_, err = c.Get(503)
	require.ErrorIs(t, err, ErrCacheMiss)
	_, err = os.Stat(c.path(503))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
