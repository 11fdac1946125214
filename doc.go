// Package sspbo provides Bayesian optimization with spatial semantic
// pointer (SSP) encodings. Inputs are mapped to high-dimensional vectors by
// fractional binding, a Bayesian linear regression over those vectors acts
// as the surrogate model, and the next query maximizes the predicted mean
// plus a mutual-information exploration bonus. The cost of an update does
// not grow with the number of observations, unlike an exact Gaussian
// process.
//
// # Features
//
//   - SSP Encoder: fractional binding of basis pointers with a closed-form
//     Jacobian
//   - Hexagonal and random bases: the hexagonal basis tiles the input space
//     with rotated and scaled simplex frequency patterns
//   - Length-scale calibration: per-dimension length scales fitted by L-BFGS
//     on the least-squares residual of the encoded initial samples
//   - Bayesian Linear Regression: closed-form posterior with O(K²) memory
//   - Multi-start acquisition search: parallel bounded L-BFGS restarts
//   - Two strategies behind one interface: the SSP agent and an exact GP
//     reference
//   - Generic outer loop: Minimize works with integer and floating-point
//     parameters and reports progress via channels
//
// # Usage
//
//	ranges := []sspbo.ParameterRange[float64]{
//	    {Min: -10, Max: 10},
//	    {Min: -10, Max: 10},
//	}
//
//	config := sspbo.DefaultConfig()
//	config.Iterations = 100
//	config.RandomState = rand.New(rand.NewSource(1))
//
//	result, err := sspbo.Minimize(ctx, config, objective, ranges...)
//
// The agents can also be driven directly:
//
//	agent, err := sspbo.NewSSPAgent(xs, ys, sspbo.DefaultAgentConfig(), rng)
//	x, score, _, err := agent.SelectOptimal(bounds)
//	mu, variance, bonus, err := agent.Eval([][]float64{x})
//	err = agent.UpdateOne(x, y, variance[0])
//
// Agents maximize their target; Minimize negates the objective for them.
//
// # Acquisition Functions
//
// The SSP agent always scores with the mutual-information bonus
//
//	φ(x)·m + sqrt(γ + β⁻¹ + φ(x)ᵀSφ(x)) − sqrt(γ)
//
// where γ accumulates the predicted variance at every selected point. The
// GP strategy accepts any AcquisitionFunc: MutualInformation (default), UCB,
// ProbabilityOfImprovement or ExpectedImprovement.
//
// # Thread Safety
//
//   - Update is serialized; Eval and SelectOptimal may run concurrently with
//     each other
//   - Posterior matrices are replaced on update, never mutated, so a
//     selection in flight keeps a consistent view
//   - Each SelectOptimal derives its own random source from the agent's
//
// # Observability
//
// Agents accept WithLogger (log/slog, default slog.Default()) and WithTracer
// (OpenTelemetry, default a no-op tracer).
package sspbo
