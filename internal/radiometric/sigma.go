package radiometric

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/jiechencyz/hyp3-giant/internal/raster"
)

// TwoSigmaCutoffs computes a robust stretch window for a raster:
// data pixels are clipped at the 98th percentile to shed bright
// outliers, and the window is the clipped mean plus/minus two standard
// deviations.
func TwoSigmaCutoffs(io raster.IO, path string) (lower, upper float64, err error) {
	d, err := io.Read(path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read %s: %w", path, err)
	}

	data := make([]float64, 0, len(d.Pixels))
	for _, v := range d.Pixels {
		if v != 0 {
			data = append(data, float64(v))
		}
	}
	if len(data) == 0 {
		return 0, 0, fmt.Errorf("no data pixels in %s", path)
	}

	sort.Float64s(data)
	top := stat.Quantile(0.98, stat.Empirical, data, nil)
	for i, v := range data {
		if v > top {
			data[i] = top
		}
	}

	mean, std := stat.MeanStdDev(data, nil)
	return mean - 2*std, mean + 2*std, nil
}
