package sspbo

import (
	"fmt"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

//////
// Const, vars, types.
//////

// fftPools hands out FFT plans by transform length. A fourier.FFT carries
// its own work buffers, so a plan is never shared between goroutines.
var fftPools sync.Map // map[int]*sync.Pool

// PointerSet is the ordered, immutable set of base pointers used by the
// Encoder, one pointer per input dimension.
//
// Every pointer is stored together with the complex logarithm of its
// half-spectrum (K/2+1 Fourier coefficients). Raising a pointer to a real
// power s is then exp(s * log F) per coefficient, which is the continuous
// generalization of binding a pointer to itself an integer number of times.
//
// Invariants:
// - Len() is the input dimensionality D
// - every pointer has the same length Dim() (the encoding dimension K)
// - no pointer has a zero Fourier coefficient.
type PointerSet struct {
	pointers   [][]float64
	logSpectra [][]complex128
	dim        int
}

//////
// Helpers.
//////

func acquireFFT(n int) *fourier.FFT {
	pool, _ := fftPools.LoadOrStore(n, &sync.Pool{
		New: func() any { return fourier.NewFFT(n) },
	})

	return pool.(*sync.Pool).Get().(*fourier.FFT)
}

func releaseFFT(f *fourier.FFT) {
	if pool, ok := fftPools.Load(f.Len()); ok {
		pool.(*sync.Pool).Put(f)
	}
}

// spectrum returns the half-spectrum of a real sequence.
func spectrum(seq []float64) []complex128 {
	fft := acquireFFT(len(seq))
	defer releaseFFT(fft)

	return fft.Coefficients(nil, seq)
}

// sequence is the normalized inverse of spectrum.
func sequence(n int, coeff []complex128) []float64 {
	fft := acquireFFT(n)
	defer releaseFFT(fft)

	seq := fft.Sequence(nil, coeff)
	floats.Scale(1/float64(n), seq)

	return seq
}

//////
// SSP algebra.
//////

// Bind composes two vectors with circular convolution, the binding operator
// of the SSP algebra. It is associative, so a list of vectors can be folded
// left to right.
//
// Returns ErrDimensionMismatch if the vectors have different lengths.
func Bind(a, b []float64) ([]float64, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("bind %d-vector with %d-vector: %w", len(a), len(b), ErrDimensionMismatch)
	}

	if len(a) == 0 {
		return nil, fmt.Errorf("bind: %w", ErrEmptyInput)
	}

	fa := spectrum(a)
	fb := spectrum(b)

	for i := range fa {
		fa[i] *= fb[i]
	}

	return sequence(len(a), fa), nil
}

// FractionalPower raises a vector to a real power in the binding algebra:
// ifft(fft(p)^s). An integer s reproduces binding p with itself s times, and
// s = 0 yields the identity vector (1, 0, ..., 0).
func FractionalPower(p []float64, s float64) []float64 {
	coeff := spectrum(p)

	for i, c := range coeff {
		coeff[i] = cmplx.Pow(c, complex(s, 0))
	}

	return sequence(len(p), coeff)
}

//////
// Factory.
//////

// NewPointerSet builds a PointerSet from explicit pointer vectors.
//
// Returns:
// - ErrEmptyInput if no pointers, or empty pointers, are given
// - ErrDimensionMismatch if pointers differ in length
// - ErrDegeneratePointer if a pointer has a zero Fourier coefficient.
func NewPointerSet(pointers [][]float64) (*PointerSet, error) {
	if len(pointers) == 0 || len(pointers[0]) == 0 {
		return nil, fmt.Errorf("pointer set: %w", ErrEmptyInput)
	}

	k := len(pointers[0])

	ps := &PointerSet{
		pointers:   make([][]float64, len(pointers)),
		logSpectra: make([][]complex128, len(pointers)),
		dim:        k,
	}

	for i, p := range pointers {
		if len(p) != k {
			return nil, fmt.Errorf("pointer %d has length %d, want %d: %w", i, len(p), k, ErrDimensionMismatch)
		}

		coeff := spectrum(p)
		logs := make([]complex128, len(coeff))

		for j, c := range coeff {
			if c == 0 {
				return nil, fmt.Errorf("pointer %d, coefficient %d: %w", i, j, ErrDegeneratePointer)
			}

			logs[j] = cmplx.Log(c)
		}

		ps.pointers[i] = append([]float64(nil), p...)
		ps.logSpectra[i] = logs
	}

	return ps, nil
}

// newUnitaryPointerSet builds unitary pointers of length k from their
// phases. phases[d][j] is the phase of coefficient j+1 of pointer d; the DC
// coefficient (and the Nyquist one for even k) is fixed at 1.
func newUnitaryPointerSet(k int, phases [][]float64) *PointerSet {
	half := k/2 + 1

	ps := &PointerSet{
		pointers:   make([][]float64, len(phases)),
		logSpectra: make([][]complex128, len(phases)),
		dim:        k,
	}

	for d, ph := range phases {
		logs := make([]complex128, half)
		coeff := make([]complex128, half)
		coeff[0] = 1

		for j := 1; j < half; j++ {
			if j-1 < len(ph) && !(k%2 == 0 && j == half-1) {
				logs[j] = complex(0, ph[j-1])
			}

			coeff[j] = cmplx.Exp(logs[j])
		}

		ps.logSpectra[d] = logs
		ps.pointers[d] = sequence(k, coeff)
	}

	return ps
}

//////
// Methods.
//////

// Len returns the number of pointers, i.e. the input dimensionality D.
func (ps *PointerSet) Len() int { return len(ps.pointers) }

// Dim returns the encoding dimension K shared by every pointer.
func (ps *PointerSet) Dim() int { return ps.dim }

// Pointer returns a copy of pointer i.
func (ps *PointerSet) Pointer(i int) []float64 {
	return append([]float64(nil), ps.pointers[i]...)
}

// Pointers returns a copy of all pointers in order.
func (ps *PointerSet) Pointers() [][]float64 {
	out := make([][]float64, len(ps.pointers))
	for i := range ps.pointers {
		out[i] = ps.Pointer(i)
	}

	return out
}
