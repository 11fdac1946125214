package sspbo

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

//////
// Const, vars, types.
//////

// BasisVariant names a pointer construction.
type BasisVariant string

const (
	// BasisHexagonal builds pointers whose frequencies lie on rotated and
	// scaled simplex (hexagonal in 2-D) patterns.
	BasisHexagonal BasisVariant = "hex"

	// BasisRandom builds unitary pointers with uniformly random phases.
	BasisRandom BasisVariant = "random"
)

// BasisInfo is the auxiliary output of a BasisGenerator.
type BasisInfo struct {
	// Frequencies holds one D-dimensional frequency vector per positive
	// Fourier bin of the encoding.
	Frequencies [][]float64

	// Rotates and Scales are the resolved pattern counts (hexagonal only).
	Rotates int
	Scales  int
}

// BasisGenerator produces one base pointer per input dimension.
type BasisGenerator func(inputDim int, cfg BasisConfig, rng *rand.Rand) (*PointerSet, BasisInfo, error)

//////
// Exported functionalities.
//////

// DefaultBasisConfig returns the hexagonal basis of dimension 385, which
// resolves to 8 rotations and 8 scales, centred on 2π/√6. Rotates and
// Scales are left at zero so that changing only EncodingDim back-solves the
// pattern counts.
func DefaultBasisConfig() BasisConfig {
	center := 2 * math.Pi / math.Sqrt(6)

	return BasisConfig{
		Variant:     BasisHexagonal,
		EncodingDim: 385,
		ScaleMin:    center - 0.5,
		ScaleMax:    center + 0.5,
	}
}

// GenerateBasis dispatches on cfg.Variant. An empty variant selects the
// hexagonal basis.
func GenerateBasis(inputDim int, cfg BasisConfig, rng *rand.Rand) (*PointerSet, BasisInfo, error) {
	switch cfg.Variant {
	case "", BasisHexagonal:
		return HexagonalBasis(inputDim, cfg, rng)
	case BasisRandom:
		return RandomBasis(inputDim, cfg, rng)
	default:
		return nil, BasisInfo{}, fmt.Errorf("%q: %w", cfg.Variant, ErrUnknownBasis)
	}
}

// HexagonalBasis places the frequencies of the D pointers on the D+1
// vertices of a regular simplex, repeated over Scales linearly spaced scales
// and Rotates rotations. For 2-D inputs the simplex is a triangle and the
// rotations span 60 degrees, which gives the hexagonal pattern; the encoding
// dimension is 2*(D+1)*Rotates*Scales + 1.
//
// Rotations beyond the first are random orthogonal matrices drawn from rng
// when D > 2, rng may be nil otherwise. 1-D inputs use a single rotation.
func HexagonalBasis(inputDim int, cfg BasisConfig, rng *rand.Rand) (*PointerSet, BasisInfo, error) {
	if inputDim < 1 {
		return nil, BasisInfo{}, fmt.Errorf("hexagonal basis for %d dimensions: %w", inputDim, ErrEmptyInput)
	}

	rotates, scales := cfg.resolve()
	if inputDim == 1 {
		rotates = 1
	}

	if inputDim > 2 && rotates > 1 && rng == nil {
		return nil, BasisInfo{}, fmt.Errorf("hexagonal basis: random rotations for %d dimensions need a random source", inputDim)
	}

	scaleMin, scaleMax := cfg.ScaleMin, cfg.ScaleMax
	if scaleMin == 0 && scaleMax == 0 {
		def := DefaultBasisConfig()
		scaleMin, scaleMax = def.ScaleMin, def.ScaleMax
	}

	levels := make([]float64, scales)
	if scales == 1 {
		levels[0] = scaleMin
	} else {
		floats.Span(levels, scaleMin, scaleMax)
	}

	vertices := simplexVertices(inputDim)
	rotations := simplexRotations(inputDim, rotates, rng)

	freqs := make([][]float64, 0, len(vertices)*rotates*scales)
	rotated := mat.NewVecDense(inputDim, nil)

	for _, s := range levels {
		for _, r := range rotations {
			for _, v := range vertices {
				rotated.MulVec(r, mat.NewVecDense(inputDim, v))

				f := make([]float64, inputDim)
				for d := range f {
					f[d] = s * rotated.AtVec(d)
				}

				freqs = append(freqs, f)
			}
		}
	}

	phases := make([][]float64, inputDim)
	for d := range phases {
		phases[d] = make([]float64, len(freqs))
		for j, f := range freqs {
			phases[d][j] = f[d]
		}
	}

	ptrs := newUnitaryPointerSet(2*len(freqs)+1, phases)

	return ptrs, BasisInfo{Frequencies: freqs, Rotates: rotates, Scales: scales}, nil
}

// RandomBasis builds D unitary pointers of length cfg.EncodingDim with
// phases drawn uniformly from (-π, π).
func RandomBasis(inputDim int, cfg BasisConfig, rng *rand.Rand) (*PointerSet, BasisInfo, error) {
	if inputDim < 1 {
		return nil, BasisInfo{}, fmt.Errorf("random basis for %d dimensions: %w", inputDim, ErrEmptyInput)
	}

	if cfg.EncodingDim < 3 {
		return nil, BasisInfo{}, fmt.Errorf("random basis: encoding dimension %d is below 3: %w", cfg.EncodingDim, ErrDimensionMismatch)
	}

	if rng == nil {
		return nil, BasisInfo{}, fmt.Errorf("random basis: a random source is required")
	}

	k := cfg.EncodingDim
	nFreq := (k - 1) / 2

	phases := make([][]float64, inputDim)
	for d := range phases {
		phases[d] = make([]float64, nFreq)
		for j := range phases[d] {
			phases[d][j] = math.Pi * (2*rng.Float64() - 1)
		}
	}

	freqs := make([][]float64, nFreq)
	for j := range freqs {
		freqs[j] = make([]float64, inputDim)
		for d := range freqs[j] {
			freqs[j][d] = phases[d][j]
		}
	}

	return newUnitaryPointerSet(k, phases), BasisInfo{Frequencies: freqs}, nil
}

//////
// Helpers.
//////

// resolve returns the hexagonal pattern counts, back-solving them from the
// encoding dimension when neither is set.
func (c BasisConfig) resolve() (rotates, scales int) {
	rotates, scales = c.Rotates, c.Scales

	switch {
	case rotates == 0 && scales == 0 && c.EncodingDim > 0:
		n := int(math.Floor(math.Sqrt(float64(c.EncodingDim-1) / 6)))
		rotates, scales = n, n
	case rotates == 0 && scales == 0:
		rotates, scales = 8, 8
	case rotates == 0:
		rotates = scales
	case scales == 0:
		scales = rotates
	}

	return max(rotates, 1), max(scales, 1)
}

// simplexVertices returns the D+1 unit-norm vertices of a regular simplex
// centred at the origin of R^D, expressed in the Helmert basis of the
// sum-zero hyperplane of R^{D+1}.
func simplexVertices(dim int) [][]float64 {
	n := dim + 1
	vertices := make([][]float64, n)

	for i := range vertices {
		v := make([]float64, dim)

		for k := 1; k <= dim; k++ {
			norm := math.Sqrt(float64(k * (k + 1)))

			switch {
			case i < k:
				v[k-1] = 1 / norm
			case i == k:
				v[k-1] = -float64(k) / norm
			}
		}

		floats.Scale(1/floats.Norm(v, 2), v)
		vertices[i] = v
	}

	return vertices
}

// simplexRotations returns the rotation matrices applied to the simplex.
// The first rotation is always the identity.
func simplexRotations(dim, rotates int, rng *rand.Rand) []*mat.Dense {
	out := make([]*mat.Dense, rotates)

	for r := range out {
		switch {
		case r == 0:
			out[r] = identity(dim)
		case dim == 2:
			theta := float64(r) * math.Pi / float64(3*rotates)
			c, s := math.Cos(theta), math.Sin(theta)
			out[r] = mat.NewDense(2, 2, []float64{c, -s, s, c})
		default:
			out[r] = randomOrthogonal(dim, rng)
		}
	}

	return out
}

// randomOrthogonal draws an orthogonal matrix as the Q factor of a Gaussian
// matrix.
func randomOrthogonal(dim int, rng *rand.Rand) *mat.Dense {
	g := mat.NewDense(dim, dim, nil)
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			g.Set(i, j, rng.NormFloat64())
		}
	}

	var qr mat.QR
	qr.Factorize(g)

	var q mat.Dense
	qr.QTo(&q)

	return &q
}
