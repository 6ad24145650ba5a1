package montecarlo

import (
	"fmt"
	"math"
	"sync"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/banachtech/tenor/timegrid"
)

// CorrelatedBrownianMotion draws factor-correlated increments from a
// multivariate normal over the given factor correlation matrix.
type CorrelatedBrownianMotion struct {
	grid    *timegrid.TimeDiscretization
	factors int
	paths   int

	normal *distmv.Normal

	once       sync.Once
	increments [][][]float64
}

// NewCorrelatedBrownianMotion constructs a Brownian motion whose factor
// increments over each step have the given correlation. The correlation
// matrix must be positive definite.
func NewCorrelatedBrownianMotion(grid *timegrid.TimeDiscretization, numberOfPaths int, seed uint64, factorCorrelation *mat.SymDense) (*CorrelatedBrownianMotion, error) {
	dim, _ := factorCorrelation.Dims()
	normal, ok := distmv.NewNormal(make([]float64, dim), factorCorrelation, rand.NewSource(seed))
	if !ok {
		return nil, fmt.Errorf("montecarlo: factor correlation is not positive definite")
	}
	return &CorrelatedBrownianMotion{
		grid:    grid,
		factors: dim,
		paths:   numberOfPaths,
		normal:  normal,
	}, nil
}

func (b *CorrelatedBrownianMotion) TimeDiscretization() *timegrid.TimeDiscretization {
	return b.grid
}

func (b *CorrelatedBrownianMotion) NumberOfFactors() int { return b.factors }

func (b *CorrelatedBrownianMotion) NumberOfPaths() int { return b.paths }

func (b *CorrelatedBrownianMotion) Increment(timeIndex, factor int) []float64 {
	b.once.Do(b.generate)
	return b.increments[timeIndex][factor]
}

func (b *CorrelatedBrownianMotion) generate() {
	steps := b.grid.NumberOfTimeSteps()
	b.increments = make([][][]float64, steps)
	sample := make([]float64, b.factors)
	for ti := 0; ti < steps; ti++ {
		sqrtDt := math.Sqrt(b.grid.TimeStep(ti))
		b.increments[ti] = make([][]float64, b.factors)
		for f := range b.increments[ti] {
			b.increments[ti][f] = make([]float64, b.paths)
		}
		for p := 0; p < b.paths; p++ {
			b.normal.Rand(sample)
			for f := 0; f < b.factors; f++ {
				b.increments[ti][f][p] = sample[f] * sqrtDt
			}
		}
	}
}
