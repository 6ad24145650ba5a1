// Package montecarlo provides multi-factor Brownian noise sources and an
// Euler discretization scheme evolving process models along them.
package montecarlo

import (
	"fmt"
	"math"
	"sync"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banachtech/tenor/timegrid"
)

// BrownianMotion supplies the increments of a multi-factor Brownian motion
// on a time discretization. Implementations are deterministic given the
// discretization, the number of factors, the number of paths and the seed.
type BrownianMotion interface {
	TimeDiscretization() *timegrid.TimeDiscretization
	NumberOfFactors() int
	NumberOfPaths() int
	// Increment returns the per-path increments of the given factor over
	// [t_i, t_i+1], scaled by sqrt of the step length. The returned slice
	// must not be modified.
	Increment(timeIndex, factor int) []float64
}

type brownianMotion struct {
	grid    *timegrid.TimeDiscretization
	factors int
	paths   int
	seed    uint64

	once       sync.Once
	increments [][][]float64 // timeIndex -> factor -> path
}

// NewBrownianMotion constructs a Brownian motion with independent factors.
// All increments derive from a single seeded source in a fixed
// (step, factor, path) order, so consumers observe the same numbers
// regardless of access order.
func NewBrownianMotion(grid *timegrid.TimeDiscretization, numberOfFactors, numberOfPaths int, seed uint64) BrownianMotion {
	return &brownianMotion{grid: grid, factors: numberOfFactors, paths: numberOfPaths, seed: seed}
}

func (b *brownianMotion) TimeDiscretization() *timegrid.TimeDiscretization { return b.grid }

func (b *brownianMotion) NumberOfFactors() int { return b.factors }

func (b *brownianMotion) NumberOfPaths() int { return b.paths }

func (b *brownianMotion) Increment(timeIndex, factor int) []float64 {
	b.once.Do(b.generate)
	return b.increments[timeIndex][factor]
}

func (b *brownianMotion) generate() {
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewSource(b.seed)}
	steps := b.grid.NumberOfTimeSteps()
	b.increments = make([][][]float64, steps)
	for ti := 0; ti < steps; ti++ {
		sqrtDt := math.Sqrt(b.grid.TimeStep(ti))
		b.increments[ti] = make([][]float64, b.factors)
		for f := 0; f < b.factors; f++ {
			dw := make([]float64, b.paths)
			for p := range dw {
				dw[p] = normal.Rand() * sqrtDt
			}
			b.increments[ti][f] = dw
		}
	}
}

// BrownianView exposes a subset of the factors of a parent Brownian motion
// without copying increments.
type BrownianView struct {
	parent  BrownianMotion
	factors []int
}

// NewBrownianView constructs a view mapping view factor i to parent factor
// factors[i].
func NewBrownianView(parent BrownianMotion, factors []int) (*BrownianView, error) {
	for _, f := range factors {
		if f < 0 || f >= parent.NumberOfFactors() {
			return nil, fmt.Errorf("montecarlo: view factor %d out of range, parent has %d factors", f, parent.NumberOfFactors())
		}
	}
	return &BrownianView{parent: parent, factors: append([]int(nil), factors...)}, nil
}

func (v *BrownianView) TimeDiscretization() *timegrid.TimeDiscretization {
	return v.parent.TimeDiscretization()
}

func (v *BrownianView) NumberOfFactors() int { return len(v.factors) }

func (v *BrownianView) NumberOfPaths() int { return v.parent.NumberOfPaths() }

func (v *BrownianView) Increment(timeIndex, factor int) []float64 {
	return v.parent.Increment(timeIndex, v.factors[factor])
}
