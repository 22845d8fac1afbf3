package services

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chachabrian/mooveit-fleet/internal/config"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestLocalStorageSave(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir, "http://localhost:8080/")
	require.NoError(t, err)

	url, err := s.Save(context.Background(), "inspections/abc", "front.PNG", bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://localhost:8080/uploads/inspections/abc/"))
	assert.True(t, strings.HasSuffix(url, ".png"))

	name := url[strings.LastIndex(url, "/")+1:]
	saved, err := os.ReadFile(filepath.Join(dir, "inspections", "abc", name))
	require.NoError(t, err)
	assert.Equal(t, pngHeader, saved)
}

func TestLocalStorageRejectsNonImages(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir(), "http://localhost:8080")
	require.NoError(t, err)

	_, err = s.Save(context.Background(), "x", "a.txt", strings.NewReader("plain text"))
	assert.ErrorIs(t, err, ErrInvalidPhoto)

	_, err = s.Save(context.Background(), "x", "a.png", bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrInvalidPhoto)
}

func TestNewPhotoStorageFallsBackToLocal(t *testing.T) {
	s, err := NewPhotoStorage(&config.StorageConfig{LocalDir: t.TempDir()}, "http://localhost:8080")
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, s)
}
