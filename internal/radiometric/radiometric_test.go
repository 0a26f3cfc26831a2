package radiometric

import (
	"context"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiechencyz/hyp3-giant/internal/exttool"
	"github.com/jiechencyz/hyp3-giant/internal/raster"
	"github.com/jiechencyz/hyp3-giant/internal/scene"
)

func newDataset(w, h int, pixels []float32) *raster.Dataset {
	return &raster.Dataset{
		Width:        w,
		Height:       h,
		Geotransform: [6]float64{500000, 30, 0, 6200000, 0, -30},
		Projection:   `PROJCS["WGS 84 / UTM zone 5N"]`,
		Pixels:       pixels,
	}
}

func TestAmpPowerRoundTrip(t *testing.T) {
	io := raster.NewFakeIO()
	io.Add("amp.tif", newDataset(2, 2, []float32{2, 3, 0, 0.5}))

	require.NoError(t, AmpToPower(io, "amp.tif", "pwr.tif"))
	pwr, err := io.Read("pwr.tif")
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 9, 0, 0.25}, pwr.Pixels)

	require.NoError(t, PowerToAmp(io, "pwr.tif", "amp2.tif"))
	amp, err := io.Read("amp2.tif")
	require.NoError(t, err)
	orig, err := io.Read("amp.tif")
	require.NoError(t, err)
	for i := range amp.Pixels {
		assert.InDelta(t, orig.Pixels[i], amp.Pixels[i], 1e-6)
	}
}

func TestToDecibels(t *testing.T) {
	io := raster.NewFakeIO()
	io.Add("pwr.tif", newDataset(2, 2, []float32{1, float32(math.E), 0, 0.1}))

	require.NoError(t, ToDecibels(io, "pwr.tif", "db.tif"))
	db, err := io.Read("db.tif")
	require.NoError(t, err)
	assert.InDelta(t, 0, db.Pixels[0], 1e-5)
	assert.InDelta(t, 10, db.Pixels[1], 1e-5)
	assert.Equal(t, float32(0), db.Pixels[2]) // nodata stays nodata
	assert.InDelta(t, 10*math.Log(0.1), float64(db.Pixels[3]), 1e-5)
}

func TestByteScaleNaming(t *testing.T) {
	io := raster.NewFakeIO()
	io.Add("scene_dB.tif", newDataset(2, 2, []float32{-40, -20, 0, -10}))

	dst, err := ByteScale(context.Background(), io, "scene_dB.tif", -40, 0)
	require.NoError(t, err)
	assert.Equal(t, "scene_dB-40_0.tif", dst)

	d, err := io.Read(dst)
	require.NoError(t, err)
	// -40 maps to 0, 0 maps to 255, -20 to the midpoint.
	assert.Equal(t, float32(0), d.Pixels[0])
	assert.InDelta(t, 128, float64(d.Pixels[1]), 1)
	assert.Equal(t, float32(255), d.Pixels[2])
}

func TestTwoSigmaCutoffs(t *testing.T) {
	// A spread of data values plus one extreme outlier; the percentile
	// clip keeps the outlier from blowing up the window.
	pixels := make([]float32, 100)
	for i := range pixels {
		pixels[i] = float32(i + 1)
	}
	pixels[99] = 1000

	io := raster.NewFakeIO()
	io.Add("amp.tif", newDataset(10, 10, pixels))

	lower, upper, err := TwoSigmaCutoffs(io, "amp.tif")
	require.NoError(t, err)
	assert.Less(t, lower, upper)
	// The window tracks the clipped bulk, not the outlier.
	assert.Greater(t, upper, 98.0)
	assert.Less(t, upper, 150.0)
	assert.Less(t, lower, 1.0)
}

func TestTwoSigmaCutoffsEmpty(t *testing.T) {
	io := raster.NewFakeIO()
	io.Add("pwr.tif", newDataset(2, 2, []float32{0, 0, 0, 0}))
	_, _, err := TwoSigmaCutoffs(io, "pwr.tif")
	assert.Error(t, err)
}

func TestEnhLeeApply(t *testing.T) {
	io := raster.NewFakeIO()
	io.Add("pwr.tif", newDataset(2, 2, []float32{1, 2, 3, 4}))

	runner := &exttool.FakeRunner{
		// enh_lee reads args[0] and writes args[1]; the fake copies the
		// staged input straight through.
		OnRun: func(name string, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return os.WriteFile(args[1], data, 0o644)
		},
	}

	filt := &EnhLee{IO: io, Runner: runner}
	require.NoError(t, filt.Apply(context.Background(), "pwr.tif", "pwr_sf.tif"))

	out, err := io.Read("pwr_sf.tif")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4}, out.Pixels)

	require.Len(t, runner.Invocations, 1)
	inv := runner.Invocations[0]
	assert.Equal(t, "enh_lee", inv.Name)
	require.Len(t, inv.Args, 7)
	assert.Equal(t, []string{"2", "1", "4", "7", "7"}, inv.Args[2:])
}

func TestProcessDBByte(t *testing.T) {
	io := raster.NewFakeIO()
	io.Add("scene.tif", newDataset(2, 2, []float32{0.01, 0.1, 1, 0}))

	opts := Options{OutputType: TypeDBByte, Scale: [2]float64{-40, 0}}
	stk := scene.Stack{{Path: "scene.tif", AcquisitionDate: "20180118T031947"}}
	out, err := Process(context.Background(), io, nil, stk, opts, discardLog{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "scene_dB-40_0.tif", out[0].Path)
	assert.Equal(t, "20180118T031947", out[0].AcquisitionDate)
}

func TestProcessSigmaByte(t *testing.T) {
	io := raster.NewFakeIO()
	// Power pixels whose square roots are 1..4; the stretch window is
	// computed on the amplitude raster.
	io.Add("scene.tif", newDataset(2, 2, []float32{1, 4, 9, 16}))

	opts := Options{OutputType: TypeSigmaByte}
	out, err := Process(context.Background(), io, nil, scene.Stack{{Path: "scene.tif"}}, opts, discardLog{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Contains(t, out[0].Path, "scene_amp")

	amp, err := io.Read("scene_amp.tif")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4}, amp.Pixels)
}

func TestProcessPowerPassthrough(t *testing.T) {
	io := raster.NewFakeIO()
	io.Add("scene.tif", newDataset(2, 2, []float32{1, 2, 3, 4}))

	opts := Options{OutputType: TypePower}
	out, err := Process(context.Background(), io, nil, scene.Stack{{Path: "scene.tif"}}, opts, discardLog{})
	require.NoError(t, err)
	assert.Equal(t, "scene.tif", out[0].Path)
	assert.Empty(t, io.Ops())
}

func TestProcessAmpInputWithResample(t *testing.T) {
	pixels := make([]float32, 16)
	for i := range pixels {
		pixels[i] = 2
	}
	io := raster.NewFakeIO()
	io.Add("scene.tif", newDataset(4, 4, pixels))

	opts := Options{InputIsAmp: true, Resolution: 60, OutputType: TypePower}
	out, err := Process(context.Background(), io, nil, scene.Stack{{Path: "scene.tif"}}, opts, discardLog{})
	require.NoError(t, err)
	assert.Equal(t, "scene_pwr_60m.tif", out[0].Path)

	d, err := io.Read(out[0].Path)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Width)
	assert.Equal(t, float32(4), d.Pixels[0]) // squared then averaged
}

func TestProcessRejectsUnknownType(t *testing.T) {
	io := raster.NewFakeIO()
	_, err := Process(context.Background(), io, nil, nil, Options{OutputType: "geocoded"}, discardLog{})
	assert.Error(t, err)
}

type discardLog struct{}

func (discardLog) Printf(string, ...any) {}
