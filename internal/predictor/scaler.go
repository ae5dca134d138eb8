package predictor

import (
	"gonum.org/v1/gonum/stat"
)

// Scaler standardizes the (cpu, memory) feature pair to zero mean and unit
// variance using statistics of the training subset only.
type Scaler struct {
	Mean  [2]float64
	Scale [2]float64
}

func fitScaler(features [][2]float64) Scaler {
	var sc Scaler
	col := make([]float64, len(features))
	for j := 0; j < 2; j++ {
		for i, f := range features {
			col[i] = f[j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 {
			// Constant feature: centre it and leave the scale alone.
			std = 1
		}
		sc.Mean[j], sc.Scale[j] = mean, std
	}
	return sc
}

// Transform applies the fitted standardization.
func (s Scaler) Transform(x [2]float64) []float64 {
	return []float64{
		(x[0] - s.Mean[0]) / s.Scale[0],
		(x[1] - s.Mean[1]) / s.Scale[1],
	}
}
