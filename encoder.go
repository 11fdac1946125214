package sspbo

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

//////
// Const, vars, types.
//////

// Encoder maps D-dimensional points to K-dimensional spatial semantic
// pointers. Dimension i of a point raises pointer i to the power
// x_i / lengthScale_i, and the D results are bound together in pointer
// order.
//
// Binding is a product in the Fourier domain, so the fold is evaluated in a
// single pass: coefficient j of the encoding is exp(Σ_i s_i·log F_ij).
//
// Thread safety:
// - Immutable after construction, safe for concurrent use.
type Encoder struct {
	ptrs        *PointerSet
	lengthScale []float64
}

//////
// Factory.
//////

// NewEncoder creates an Encoder over ptrs with one length scale per pointer.
//
// Returns:
// - ErrDimensionMismatch if len(lengthScale) != ptrs.Len()
// - an error if a length scale is not a positive finite number.
func NewEncoder(ptrs *PointerSet, lengthScale []float64) (*Encoder, error) {
	if len(lengthScale) != ptrs.Len() {
		return nil, fmt.Errorf("encoder: %d length scales for %d pointers: %w", len(lengthScale), ptrs.Len(), ErrDimensionMismatch)
	}

	for i, l := range lengthScale {
		if !(l > 0) || math.IsInf(l, 0) {
			return nil, fmt.Errorf("encoder: length scale %d is %v, want a positive finite value", i, l)
		}
	}

	return &Encoder{
		ptrs:        ptrs,
		lengthScale: append([]float64(nil), lengthScale...),
	}, nil
}

//////
// Methods.
//////

// InputDim returns D.
func (e *Encoder) InputDim() int { return e.ptrs.Len() }

// EncodingDim returns K.
func (e *Encoder) EncodingDim() int { return e.ptrs.Dim() }

// LengthScale returns a copy of the per-dimension length scales.
func (e *Encoder) LengthScale() []float64 {
	return append([]float64(nil), e.lengthScale...)
}

// Encode encodes a batch of points. Every output row has length K,
// whatever the batch size.
func (e *Encoder) Encode(xs [][]float64) ([][]float64, error) {
	fft := acquireFFT(e.ptrs.Dim())
	defer releaseFFT(fft)

	coeffs := make([]complex128, e.ptrs.Dim()/2+1)
	out := make([][]float64, len(xs))

	for i, x := range xs {
		if len(x) != e.ptrs.Len() {
			return nil, fmt.Errorf("encode point %d: length %d, want %d: %w", i, len(x), e.ptrs.Len(), ErrDimensionMismatch)
		}

		out[i] = make([]float64, e.ptrs.Dim())
		e.encodeInto(out[i], x, fft, coeffs)
	}

	return out, nil
}

// EncodeOne encodes a single point.
func (e *Encoder) EncodeOne(x []float64) ([]float64, error) {
	out, err := e.Encode([][]float64{x})
	if err != nil {
		return nil, err
	}

	return out[0], nil
}

// EncodeWithJacobian encodes x and returns the partial derivatives of the
// encoding, jac[d] = ∂φ/∂x_d.
func (e *Encoder) EncodeWithJacobian(x []float64) ([]float64, [][]float64, error) {
	if len(x) != e.ptrs.Len() {
		return nil, nil, fmt.Errorf("encode: length %d, want %d: %w", len(x), e.ptrs.Len(), ErrDimensionMismatch)
	}

	k := e.ptrs.Dim()

	fft := acquireFFT(k)
	defer releaseFFT(fft)

	coeffs := make([]complex128, k/2+1)
	phi := make([]float64, k)
	e.encodeInto(phi, x, fft, coeffs)

	scratch := make([]complex128, len(coeffs))
	jac := make([][]float64, len(x))

	for d, logs := range e.ptrs.logSpectra {
		for j := range coeffs {
			scratch[j] = logs[j] * coeffs[j]
		}

		jac[d] = fft.Sequence(nil, scratch)
		floats.Scale(1/(float64(k)*e.lengthScale[d]), jac[d])
	}

	return phi, jac, nil
}

// encodeInto writes the encoding of x into dst and leaves its spectrum in
// coeffs.
func (e *Encoder) encodeInto(dst, x []float64, fft *fourier.FFT, coeffs []complex128) {
	for j := range coeffs {
		var sum complex128

		for d, logs := range e.ptrs.logSpectra {
			sum += complex(x[d]/e.lengthScale[d], 0) * logs[j]
		}

		coeffs[j] = cmplx.Exp(sum)
	}

	fft.Sequence(dst, coeffs)
	floats.Scale(1/float64(len(dst)), dst)
}
