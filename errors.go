package sspbo

import "errors"

//////
// Sentinel errors. Match them with errors.Is, call sites wrap them with
// context using fmt.Errorf("...: %w", err).
//////

var (
	// ErrDimensionMismatch is returned when an input point, a target vector or
	// a bound list does not have the dimensionality the receiver was built for.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrEmptyInput is returned when a batch with no rows is supplied where at
	// least one sample is required.
	ErrEmptyInput = errors.New("empty input")

	// ErrInvalidBounds is returned when a bound has Min > Max or a non-finite
	// endpoint.
	ErrInvalidBounds = errors.New("invalid bounds")

	// ErrNoFeasibleCandidate is returned by SelectOptimal when every restart of
	// the acquisition search failed.
	ErrNoFeasibleCandidate = errors.New("no feasible candidate")

	// ErrSingularPosterior is returned when the posterior precision matrix can
	// be neither Cholesky-factorized nor pseudo-inverted.
	ErrSingularPosterior = errors.New("singular posterior precision")

	// ErrUnknownStrategy is returned by NewStrategy for an unsupported kind.
	ErrUnknownStrategy = errors.New("unknown strategy")

	// ErrUnknownBasis is returned by GenerateBasis for an unsupported variant.
	ErrUnknownBasis = errors.New("unknown basis variant")

	// ErrDegeneratePointer is returned when a pointer has a zero Fourier
	// coefficient, which leaves its fractional powers undefined.
	ErrDegeneratePointer = errors.New("degenerate pointer")
)
