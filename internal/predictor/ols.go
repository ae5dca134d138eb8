package predictor

import (
	"math"

	"emperror.dev/errors"
	"github.com/sajari/regression"
	"gonum.org/v1/gonum/stat"
)

// ols is ordinary least squares through sajari/regression. It refuses
// degenerate feature sets instead of returning an unstable fit.
type ols struct {
	coeffs []float64 // intercept first
}

func (o *ols) fit(x [][]float64, y []float64) error {
	cpu := make([]float64, len(x))
	mem := make([]float64, len(x))
	for i, row := range x {
		cpu[i], mem[i] = row[0], row[1]
	}
	if c := stat.Correlation(cpu, mem, nil); math.IsNaN(c) || math.Abs(c) > 1-1e-9 {
		return errors.NewWithDetails("cpu and memory are collinear or constant; use the ridge estimator", "correlation", c)
	}

	r := new(regression.Regression)
	r.SetObserved("disk_pct")
	r.SetVar(0, "cpu_pct")
	r.SetVar(1, "mem_pct")
	for i, row := range x {
		r.Train(regression.DataPoint(y[i], row))
	}
	if err := r.Run(); err != nil {
		return errors.WrapIf(err, "least squares")
	}

	o.coeffs = []float64{r.Coeff(0), r.Coeff(1), r.Coeff(2)}
	for _, c := range o.coeffs {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return errors.New("least squares produced non-finite coefficients")
		}
	}
	return nil
}

func (o *ols) predict(x []float64) float64 {
	return o.coeffs[0] + o.coeffs[1]*x[0] + o.coeffs[2]*x[1]
}
