package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiechencyz/hyp3-giant/internal/pipeline"
	"github.com/jiechencyz/hyp3-giant/internal/stack"
)

func TestClipSpecMutualExclusion(t *testing.T) {
	_, err := clipSpec(&cliOptions{overlap: true, shape: "aoi.shp"})
	assert.ErrorIs(t, err, pipeline.ErrConfigConflict)

	_, err = clipSpec(&cliOptions{overlap: true, clip: []float64{1, 2, 3, 4}})
	assert.ErrorIs(t, err, pipeline.ErrConfigConflict)
}

func TestClipSpecBoundingBox(t *testing.T) {
	spec, err := clipSpec(&cliOptions{clip: []float64{500000, 6100000, 530000, 6130000}})
	require.NoError(t, err)
	box, ok := spec.(stack.BoundingBox)
	require.True(t, ok)
	assert.Equal(t, 500000.0, box.MinE)
	assert.Equal(t, 6130000.0, box.MaxN)

	_, err = clipSpec(&cliOptions{clip: []float64{1, 2, 3}})
	assert.ErrorIs(t, err, pipeline.ErrConfigConflict)
}

func TestClipSpecDefaultsToOverlap(t *testing.T) {
	spec, err := clipSpec(&cliOptions{})
	require.NoError(t, err)
	assert.IsType(t, stack.Overlap{}, spec)

	spec, err = clipSpec(&cliOptions{shape: "aoi.shp"})
	require.NoError(t, err)
	assert.Equal(t, stack.ShapeFile{Path: "aoi.shp"}, spec)
}

func TestRootCommandFlagDefaults(t *testing.T) {
	cmd := newRootCommand()

	tests := map[string]string{
		"black":   "0.4",
		"type":    "dB-byte",
		"outfile": "",
		"magnify": "24",
		"format":  "gif",
	}
	for name, want := range tests {
		flag := cmd.Flags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Equal(t, want, flag.DefValue, name)
	}

	for short, long := range map[string]string{
		"b": "black", "q": "quick", "v": "overlap", "c": "clip",
		"s": "shape", "k": "keep", "t": "type", "z": "zip",
	} {
		flag := cmd.Flags().ShorthandLookup(short)
		require.NotNil(t, flag, short)
		assert.Equal(t, long, flag.Name)
	}
}
