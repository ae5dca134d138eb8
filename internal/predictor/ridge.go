package predictor

import (
	"emperror.dev/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DefaultRidgeLambda keeps the normal equations solvable when cpu and memory
// move together, at a negligible bias on standardized features.
const DefaultRidgeLambda = 1e-3

// ridge is L2-regularized least squares. It expects features already centred
// by the scaler, so the intercept is the target mean and is not penalized.
type ridge struct {
	lambda    float64
	intercept float64
	weights   []float64
}

func (r *ridge) fit(x [][]float64, y []float64) error {
	n, p := len(x), len(x[0])
	data := make([]float64, 0, n*p)
	for _, row := range x {
		data = append(data, row...)
	}
	xm := mat.NewDense(n, p, data)

	yMean := stat.Mean(y, nil)
	yc := make([]float64, n)
	for i, v := range y {
		yc[i] = v - yMean
	}

	var gram mat.SymDense
	gram.SymOuterK(1, xm.T())
	for i := 0; i < p; i++ {
		gram.SetSym(i, i, gram.At(i, i)+r.lambda)
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(&gram); !ok {
		return errors.New("normal equations are not positive definite")
	}

	var xty, w mat.VecDense
	xty.MulVec(xm.T(), mat.NewVecDense(n, yc))
	if err := chol.SolveVecTo(&w, &xty); err != nil {
		return errors.WrapIf(err, "solve ridge system")
	}

	r.intercept = yMean
	r.weights = make([]float64, p)
	for i := range r.weights {
		r.weights[i] = w.AtVec(i)
	}
	return nil
}

func (r *ridge) predict(x []float64) float64 {
	v := r.intercept
	for i, w := range r.weights {
		v += w * x[i]
	}
	return v
}
