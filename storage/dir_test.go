package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookclub-catalog/catalog"
)

func TestDirSourceFetch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1.png"), []byte("png-bytes"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "2.JPG"), []byte("jpg-bytes"), 0o644))

	src := NewDirSource(dir)

	a, err := src.Fetch("1.png")
	require.NoError(t, err)
	assert.Equal(t, "1.png", a.Name)
	assert.Equal(t, "image/png", a.ContentType)
	assert.Equal(t, []byte("png-bytes"), a.Data)

	a, err = src.Fetch("sub/2.JPG")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", a.ContentType)

	_, err = src.Fetch("missing.png")
	assert.ErrorIs(t, err, catalog.ErrCoverNotFound)
}

func TestDirSourceStaysInRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "resources")
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(parent, "secret.png"), []byte("x"), 0o644))

	src := NewDirSource(root)
	for _, name := range []string{"../secret.png", "", filepath.Join(parent, "secret.png")} {
		_, err := src.Fetch(name)
		assert.ErrorIs(t, err, catalog.ErrCoverNotFound, name)
	}
}

func TestDirSourceWithCache(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "placeholder.png"), []byte("ph"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "9.png"), []byte("war"), 0o644))

	cache := catalog.NewCoverCache(NewDirSource(dir), nil, catalog.DefaultPlaceholder)

	a, err := cache.Cover("B320R5")
	require.NoError(t, err)
	assert.Equal(t, "9.png", a.Name)

	a, err = cache.Cover("O754F4")
	require.NoError(t, err)
	assert.Equal(t, "placeholder.png", a.Name)
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "image/webp", ContentTypeFor("a.webp"))
	assert.Equal(t, "image/gif", ContentTypeFor("a.GIF"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor("a.bin"))
}
