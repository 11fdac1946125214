package sspbo

import "math"

//////
// Acquisition functions.
//
// Every function maps a posterior (mean, variance) pair at a candidate point
// to a score. Both agents maximize their target, so the candidate with the
// highest score is the one evaluated next.
//////

// UCB is the Upper Confidence Bound score, mean + Beta·stddev.
//
// Notes:
// - Beta = 0 is pure exploitation
// - Negative variances (round-off) count as zero
//
// Example:
//
//	score := UCB(0.5, 0.2, AcquisitionParams{Beta: 2})
func UCB(mean, variance float64, params AcquisitionParams) float64 {
	return mean + params.Beta*math.Sqrt(math.Max(variance, 0))
}

// ProbabilityOfImprovement scores a point by the chance that its target
// exceeds BestSoFar by more than Xi.
//
// Notes:
// - With zero variance the score is a step: 1 above the threshold, else 0
// - Larger Xi demands bigger gains and pushes the search outward
//
// Example:
//
//	p := ProbabilityOfImprovement(1.1, 0.2, AcquisitionParams{BestSoFar: 1, Xi: 0.01})
func ProbabilityOfImprovement(mean, variance float64, params AcquisitionParams) float64 {
	sigma := math.Sqrt(math.Max(variance, 0))
	improvement := mean - params.BestSoFar - params.Xi

	if sigma == 0 {
		if improvement > 0 {
			return 1
		}

		return 0
	}

	return normalCDF(improvement / sigma)
}

// ExpectedImprovement is the closed-form expectation of
// max(target - BestSoFar - Xi, 0) under the Gaussian posterior.
//
// Notes:
// - Reduces to the plain improvement when the variance is zero
// - Rewards both a high mean and a wide posterior
//
// Example:
//
//	ei := ExpectedImprovement(1.1, 0.2, AcquisitionParams{BestSoFar: 1, Xi: 0.01})
func ExpectedImprovement(mean, variance float64, params AcquisitionParams) float64 {
	sigma := math.Sqrt(math.Max(variance, 0))
	improvement := mean - params.BestSoFar - params.Xi

	if sigma == 0 {
		return math.Max(improvement, 0)
	}

	z := improvement / sigma

	return improvement*normalCDF(z) + sigma*normalPDF(z)
}

// MutualInformation scores a point with its mean plus the GP-MI
// exploration bonus.
//
// Notes:
//   - The bonus sqrt(variance + Gamma) - sqrt(Gamma) is the information a
//     new observation would add on top of the information already gathered
//     (Gamma accumulates the variance at every selected point)
//   - SqrtAlpha scales the bonus; zero means an unscaled bonus
//
// Example:
//
//	params := AcquisitionParams{
//	    Gamma:     0.7,
//	    SqrtAlpha: math.Sqrt(math.Log(2 / 1e-6)),
//	}
//	score := MutualInformation(0.5, 0.2, params)
func MutualInformation(mean, variance float64, params AcquisitionParams) float64 {
	scale := params.SqrtAlpha
	if scale == 0 {
		scale = 1
	}

	return mean + scale*explorationBonus(variance, params.Gamma)
}

// explorationBonus is the unscaled mutual-information term.
func explorationBonus(variance, gamma float64) float64 {
	return math.Sqrt(math.Max(variance+gamma, 0)) - math.Sqrt(math.Max(gamma, 0))
}

// ExplorationWidth returns sqrt(log(2/delta)), the GP-UCB exploration width
// for confidence parameter delta.
func ExplorationWidth(delta float64) float64 {
	return math.Sqrt(math.Log(2 / delta))
}
