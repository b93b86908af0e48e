package evidence

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileName(t *testing.T) {
	at := time.Date(2026, 5, 7, 14, 3, 9, 123456789, time.UTC)
	assert.Equal(t, "violation_20260507_140309_123456.jpg", FileName(at, "jpg"))
	assert.Equal(t, "violation_20260507_140309_123456.png", FileName(at, ".png"))
	assert.Equal(t, "violation_20260507_140309_000000.jpg", FileName(at.Truncate(time.Second), ""))
}

func TestWriteOpenRemove(t *testing.T) {
	d, err := NewDir(t.TempDir())
	require.NoError(t, err)

	at := time.Now()
	path, err := d.Write(at, []byte("jpeg-bytes"), "jpg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(d.Root(), FileName(at, "jpg")), path)

	data, err := d.Open(path)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	// Relative names resolve inside the directory.
	data, err = d.Open(filepath.Base(path))
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	require.NoError(t, d.Remove(path))
	_, err = os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.NoError(t, d.Remove(path), "second remove is a no-op")
}

func TestWriteSameMicrosecondDoesNotOverwrite(t *testing.T) {
	d, err := NewDir(t.TempDir())
	require.NoError(t, err)
	at := time.Now()
	_, err = d.Write(at, []byte("a"), "jpg")
	require.NoError(t, err)
	_, err = d.Write(at, []byte("b"), "jpg")
	assert.Error(t, err)
}

func TestWriteEmptySnapshot(t *testing.T) {
	d, err := NewDir(t.TempDir())
	require.NoError(t, err)
	_, err = d.Write(time.Now(), nil, "jpg")
	assert.Error(t, err)
}

func TestOpenRejectsEscapes(t *testing.T) {
	root := t.TempDir()
	d, err := NewDir(filepath.Join(root, "evidence"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "secret.txt"), []byte("x"), 0o644))

	for _, p := range []string{
		"../secret.txt",
		filepath.Join(root, "secret.txt"),
		d.Root(),
		"/etc/passwd",
	} {
		_, err := d.Open(p)
		assert.ErrorIs(t, err, ErrOutsideDir, p)
	}
	assert.ErrorIs(t, d.Remove("../secret.txt"), ErrOutsideDir)
}
