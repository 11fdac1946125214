package sspbo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waypoints of the trajectory scenario.
var waypoints = [][2]float64{{0, 0}, {5, -3}, {6, 7}}

// trajectoryCost sums the distances of the three 2-D points packed in p to
// their waypoints.
func trajectoryCost(p ...float64) (float64, error) {
	var cost float64
	for k, w := range waypoints {
		cost += math.Hypot(p[2*k]-w[0], p[2*k+1]-w[1])
	}

	return cost, nil
}

func sphere(p ...float64) (float64, error) {
	var s float64
	for _, v := range p {
		s += v * v
	}

	return s, nil
}

// testConfig returns a fast, seeded configuration.
func testConfig(seed int64) OptimizationConfig {
	config := DefaultConfig()
	config.Iterations = 15
	config.InitialSamples = 5
	config.Agent = smallAgentConfig()
	config.RandomState = rand.New(rand.NewSource(seed))
	config.Options = []AgentOption{WithLogger(discardLogger())}

	return config
}

func TestMinimizeSphere(t *testing.T) {
	ranges := []ParameterRange[float64]{
		{Min: -3, Max: 3},
		{Min: -3, Max: 3},
	}

	result, err := Minimize(context.Background(), testConfig(1), sphere, ranges...)
	require.NoError(t, err)

	assert.Len(t, result.BestParams, 2)
	assert.Len(t, result.Values, 20)
	assert.Len(t, result.BestSoFar, 20)
	assert.Len(t, result.Samples, 20)
	assert.Len(t, result.Means, 15)
	assert.Len(t, result.Variances, 15)
	assert.Len(t, result.Acquisition, 15)
	assert.Len(t, result.Durations, 15)

	// The running minimum never increases and ends at the best value.
	for i := 1; i < len(result.BestSoFar); i++ {
		assert.LessOrEqual(t, result.BestSoFar[i], result.BestSoFar[i-1])
	}

	assert.Equal(t, result.BestSoFar[len(result.BestSoFar)-1], result.BestValue)

	best, _ := sphere(result.BestParams...)
	assert.Equal(t, best, result.BestValue)

	for _, s := range result.Samples {
		for i, r := range ranges {
			assert.GreaterOrEqual(t, s[i], r.Min)
			assert.LessOrEqual(t, s[i], r.Max)
		}
	}

	for _, v := range result.Variances {
		assert.Greater(t, v, 0.0)
	}
}

func TestMinimizeIsReproducible(t *testing.T) {
	ranges := []ParameterRange[float64]{{Min: -3, Max: 3}, {Min: -3, Max: 3}}

	first, err := Minimize(context.Background(), testConfig(2), sphere, ranges...)
	require.NoError(t, err)

	second, err := Minimize(context.Background(), testConfig(2), sphere, ranges...)
	require.NoError(t, err)

	assert.Equal(t, first.Samples, second.Samples)
	assert.Equal(t, first.Values, second.Values)
}

func TestMinimizeIntegerParameters(t *testing.T) {
	ranges := []ParameterRange[int]{
		{Min: 1, Max: 100},
		{Min: 1, Max: 3},
	}

	objective := func(params ...int) (float64, error) {
		return math.Abs(float64(params[0]-42)) + float64(params[1]), nil
	}

	result, err := Minimize(context.Background(), testConfig(3), objective, ranges...)
	require.NoError(t, err)

	assert.Len(t, result.BestParams, 2)

	for _, s := range result.Samples {
		for i, r := range ranges {
			assert.GreaterOrEqual(t, s[i], r.Min)
			assert.LessOrEqual(t, s[i], r.Max)
		}
	}
}

func TestMinimizeProgressChannel(t *testing.T) {
	config := testConfig(4)
	config.InitialSamples = 3
	config.Iterations = 5

	// Large enough that no update is dropped.
	progressChan := make(chan ProgressUpdate, config.InitialSamples+config.Iterations)
	config.ProgressChan = progressChan

	var counter int32

	done := make(chan struct{})

	go func() {
		defer close(done)

		for update := range progressChan {
			atomic.AddInt32(&counter, 1)

			assert.NotEmpty(t, update.CurrentBestParams)
			assert.LessOrEqual(t, update.CurrentBestValue, update.LastValue)
		}
	}()

	_, err := Minimize(context.Background(), config, sphere, ParameterRange[float64]{Min: -1, Max: 1}, ParameterRange[float64]{Min: -1, Max: 1})
	require.NoError(t, err)

	close(progressChan)
	<-done

	assert.Equal(t, int32(8), atomic.LoadInt32(&counter))
}

func TestMinimizeFullChannelDoesNotBlock(t *testing.T) {
	config := testConfig(5)
	config.Iterations = 3

	// Nobody reads this channel.
	config.ProgressChan = make(chan ProgressUpdate)

	_, err := Minimize(context.Background(), config, sphere, ParameterRange[float64]{Min: -1, Max: 1}, ParameterRange[float64]{Min: -1, Max: 1})
	assert.NoError(t, err)
}

func TestMinimizeGPStrategy(t *testing.T) {
	config := testConfig(6)
	config.Strategy = StrategyGP

	result, err := Minimize(context.Background(), config, sphere, ParameterRange[float64]{Min: -2, Max: 2}, ParameterRange[float64]{Min: -2, Max: 2})
	require.NoError(t, err)

	assert.Len(t, result.Values, 20)
}

func TestMinimizeErrors(t *testing.T) {
	ctx := context.Background()
	r := ParameterRange[float64]{Min: -1, Max: 1}

	_, err := Minimize[float64](ctx, testConfig(7), sphere)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = Minimize(ctx, testConfig(7), sphere, ParameterRange[float64]{Min: 1, Max: -1})
	assert.ErrorIs(t, err, ErrInvalidBounds)

	_, err = Minimize[float64](ctx, testConfig(7), nil, r)
	assert.Error(t, err)

	config := testConfig(7)
	config.Strategy = "forest"

	_, err = Minimize(ctx, config, sphere, r)
	assert.ErrorIs(t, err, ErrUnknownStrategy)

	// Objective errors abort the run and keep the partial history.
	boom := errors.New("boom")
	calls := 0

	result, err := Minimize(ctx, testConfig(7), func(p ...float64) (float64, error) {
		calls++
		if calls == 8 {
			return 0, boom
		}

		return sphere(p...)
	}, r, r)
	assert.ErrorIs(t, err, boom)
	require.NotNil(t, result)
	assert.Len(t, result.Values, 7)
}

func TestMinimizeContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0

	result, err := Minimize(ctx, testConfig(8), func(p ...float64) (float64, error) {
		calls++
		if calls == 6 {
			cancel()
		}

		return sphere(p...)
	}, ParameterRange[float64]{Min: -1, Max: 1})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, result.Values, 6)
}

func TestBenchmarkObjective(t *testing.T) {
	objective := BenchmarkObjective(BenchmarkFunc[int64](func(params ...int64) error {
		time.Sleep(time.Duration(params[0]) * time.Millisecond)

		return nil
	}))

	seconds, err := objective(5)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, seconds, 0.005)
}

func TestRoundingHelpers(t *testing.T) {
	assert.True(t, isIntegral[int]())
	assert.True(t, isIntegral[uint8]())
	assert.False(t, isIntegral[float32]())

	assert.Equal(t, []int{2, -3}, fromFloat64s[int]([]float64{1.6, -2.5}))
	assert.Equal(t, []float64{1.6}, fromFloat64s[float64]([]float64{1.6}))

	params := []int{0, 9}
	clampParams(params, []ParameterRange[int]{{Min: 1, Max: 5}, {Min: 1, Max: 5}})
	assert.Equal(t, []int{1, 5}, params)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		p := randomParams([]ParameterRange[int]{{Min: 1, Max: 3}}, rng)
		assert.GreaterOrEqual(t, p[0], 1)
		assert.LessOrEqual(t, p[0], 3)
	}
}

func TestTrajectoryScenario(t *testing.T) {
	if testing.Short() {
		t.Skip("long scenario")
	}

	const (
		seeds = 20
		box   = 10.0
	)

	ranges := make([]ParameterRange[float64], 6)
	for i := range ranges {
		ranges[i] = ParameterRange[float64]{Min: -box, Max: box}
	}

	master := rand.New(rand.NewSource(1))

	seedValues := make([]int64, seeds)
	for i := range seedValues {
		seedValues[i] = master.Int63()
	}

	improved := make([]bool, seeds)
	edgeHits := make([]int, seeds)

	t.Run("seeds", func(t *testing.T) {
		for s, seed := range seedValues {
			s, seed := s, seed
			t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
				t.Parallel()

				config := DefaultConfig()
				config.InitialSamples = 10
				config.Iterations = 200
				config.Agent.Basis.EncodingDim = 151
				config.Agent.AnalyticGradient = true
				config.Agent.Search.MajorIterations = 50
				config.RandomState = rand.New(rand.NewSource(seed))
				config.Options = []AgentOption{WithLogger(discardLogger())}

				result, err := Minimize(context.Background(), config, trajectoryCost, ranges...)
				require.NoError(t, err)

				improved[s] = result.BestValue < result.BestSoFar[config.InitialSamples-1]

				for _, x := range result.Samples[config.InitialSamples:] {
					for _, v := range x {
						if math.Abs(v) >= box-1e-6 {
							edgeHits[s]++

							break
						}
					}
				}
			})
		}
	})

	count, edges := 0, 0
	for s := range improved {
		if improved[s] {
			count++
		}

		edges += edgeHits[s]
	}

	assert.GreaterOrEqual(t, count, seeds*9/10)

	// Proposals gather around promising regions instead of the box corners.
	assert.Less(t, edges, seeds*200/2)
}
