package sspbo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUCB(t *testing.T) {
	params := AcquisitionParams{Beta: 2}

	assert.InDelta(t, 0.5+2*math.Sqrt(0.25), UCB(0.5, 0.25, params), 1e-12)

	// Negative variance from round-off is treated as zero.
	assert.Equal(t, 0.5, UCB(0.5, -1e-18, params))
}

func TestProbabilityOfImprovement(t *testing.T) {
	params := AcquisitionParams{BestSoFar: 1, Xi: 0.01}

	assert.InDelta(t, 0.5, ProbabilityOfImprovement(1.01, 0.3, params), 1e-12)
	assert.Greater(t, ProbabilityOfImprovement(2, 0.3, params), ProbabilityOfImprovement(1.5, 0.3, params))

	assert.Equal(t, 1.0, ProbabilityOfImprovement(2, 0, params))
	assert.Equal(t, 0.0, ProbabilityOfImprovement(0, 0, params))
}

func TestExpectedImprovement(t *testing.T) {
	params := AcquisitionParams{BestSoFar: 1, Xi: 0}

	// At the incumbent, EI = σ·pdf(0).
	assert.InDelta(t, 0.5/math.Sqrt(2*math.Pi), ExpectedImprovement(1, 0.25, params), 1e-12)

	assert.Equal(t, 0.5, ExpectedImprovement(1.5, 0, params))
	assert.Equal(t, 0.0, ExpectedImprovement(0.5, 0, params))

	// More uncertainty is worth more at equal mean.
	assert.Greater(t, ExpectedImprovement(0.8, 1, params), ExpectedImprovement(0.8, 0.1, params))
}

func TestMutualInformation(t *testing.T) {
	params := AcquisitionParams{Gamma: 0.5, SqrtAlpha: 3}

	want := 1 + 3*(math.Sqrt(0.7)-math.Sqrt(0.5))
	assert.InDelta(t, want, MutualInformation(1, 0.2, params), 1e-12)

	// Zero SqrtAlpha means an unscaled bonus.
	assert.InDelta(t, 1+math.Sqrt(0.2), MutualInformation(1, 0.2, AcquisitionParams{}), 1e-12)

	// The bonus for the same variance shrinks as γ grows.
	assert.Greater(t, explorationBonus(1, 0), explorationBonus(1, 1))
	assert.Greater(t, explorationBonus(1, 1), explorationBonus(1, 10))
}

func TestExplorationWidth(t *testing.T) {
	assert.InDelta(t, math.Sqrt(math.Log(2e6)), ExplorationWidth(1e-6), 1e-12)
}
