package runlog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogWritesProductFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run_stats.txt")
	l, err := New(path)
	require.NoError(t, err)

	l.Printf("Creating %s output frames", "dB-byte")
	l.Errorf("Shape file %s does not exist", "aoi.shp")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Creating dB-byte output frames\n")
	assert.Contains(t, string(data), "ERROR: Shape file aoi.shp does not exist\n")
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run_stats.txt")
	l, err := New(path)
	require.NoError(t, err)

	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	// Writes after close must not panic or reopen the file.
	l.Printf("late line")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "late line")
}

func TestDiscardLogHasNoFile(t *testing.T) {
	t.Parallel()

	l := NewDiscard()
	l.Printf("hello")
	assert.Empty(t, l.Path())
	assert.NoError(t, l.Close())
}
