package predictor

import (
	"math"
	"math/rand"

	"github.com/Dicklesworthstone/resource_guard/internal/model"
)

// split shuffles indices with a seeded source and holds out
// ceil(testFraction*n) samples, keeping at least one sample on each side.
func split(samples []model.Sample, testFraction float64, seed int64) (train, heldout []model.Sample) {
	n := len(samples)
	nTest := int(math.Ceil(testFraction * float64(n)))
	if nTest < 1 {
		nTest = 1
	}
	if nTest > n-1 {
		nTest = n - 1
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	heldout = make([]model.Sample, 0, nTest)
	train = make([]model.Sample, 0, n-nTest)
	for i, idx := range perm {
		if i < nTest {
			heldout = append(heldout, samples[idx])
		} else {
			train = append(train, samples[idx])
		}
	}
	return train, heldout
}
