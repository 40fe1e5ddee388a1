package nvstore

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notnil/haldex/haldex"
)

func TestFileDevice_CreatesErasedImage(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.bin")

	dev, err := OpenFile(path, 64)
	require.NoError(t, err)
	buf := make([]byte, 64)
	_, err = dev.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xFF}, 64), buf)
	require.NoError(t, dev.Close())

	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(64), st.Size())
}

func TestFileDevice_PersistsAcrossOpen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.bin")
	cfg := haldex.Configuration{Mode: haldex.FiftyFifty, PedalThreshold: 33}

	dev, err := Open(Options{Driver: DriverFile, Path: path, Size: 64})
	require.NoError(t, err)
	s, err := NewStore(dev)
	require.NoError(t, err)
	_, err = s.Load()
	require.NoError(t, err)
	_, err = s.FlushIfChanged(cfg)
	require.NoError(t, err)
	require.NoError(t, dev.Close())

	dev, err = Open(Options{Driver: DriverFile, Path: path, Size: 64})
	require.NoError(t, err)
	defer dev.Close()
	s, err = NewStore(dev)
	require.NoError(t, err)
	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestOpen_Errors(t *testing.T) {
	t.Parallel()
	_, err := Open(Options{Driver: DriverMemory, Size: 8})
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = Open(Options{Driver: "flash", Size: 64})
	assert.Error(t, err)

	dev, err := Open(Options{Driver: DriverMemory, Size: 64})
	require.NoError(t, err)
	assert.Equal(t, int64(64), dev.Size())
}
