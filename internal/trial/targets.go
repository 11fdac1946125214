package trial

import (
	"fmt"
	"math"
	"sort"

	"github.com/thalesfsp/sspbo"
)

// Target is a benchmark function with a known global minimum.
type Target struct {
	Name    string
	Bounds  []sspbo.Bound
	Optimum float64
	Func    sspbo.ObjectiveFunc[float64]
}

// Dim returns the input dimensionality.
func (t Target) Dim() int { return len(t.Bounds) }

// Ranges returns the bounds in the form Minimize takes.
func (t Target) Ranges() []sspbo.ParameterRange[float64] {
	return append([]sspbo.ParameterRange[float64](nil), t.Bounds...)
}

// Waypoints of the trajectory target, one 2-D point per leg.
var Waypoints = [][2]float64{{0, 0}, {5, -3}, {6, 7}}

var targets = map[string]Target{
	"trajectory": {
		Name:    "trajectory",
		Bounds:  box(2*len(Waypoints), -10, 10),
		Optimum: 0,
		Func:    trajectory,
	},
	"sphere": {
		Name:    "sphere",
		Bounds:  box(2, -5, 5),
		Optimum: 0,
		Func:    sphere,
	},
	"branin": {
		Name:    "branin",
		Bounds:  []sspbo.Bound{{Min: -5, Max: 10}, {Min: 0, Max: 15}},
		Optimum: 0.397887,
		Func:    branin,
	},
}

// LookupTarget returns the named target.
func LookupTarget(name string) (Target, error) {
	t, ok := targets[name]
	if !ok {
		return Target{}, fmt.Errorf("unknown target %q (available: %v)", name, TargetNames())
	}

	return t, nil
}

// TargetNames lists the registered targets in alphabetical order.
func TargetNames() []string {
	names := make([]string, 0, len(targets))
	for name := range targets {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// trajectory is the summed distance of the 2-D points packed in p to the
// waypoints. Zero iff every point sits on its waypoint.
func trajectory(p ...float64) (float64, error) {
	if len(p) != 2*len(Waypoints) {
		return 0, fmt.Errorf("trajectory: %d coordinates, want %d: %w", len(p), 2*len(Waypoints), sspbo.ErrDimensionMismatch)
	}

	var cost float64
	for k, w := range Waypoints {
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

// branin has three global minima of 0.397887 in [-5, 10] x [0, 15].
func branin(p ...float64) (float64, error) {
	if len(p) != 2 {
		return 0, fmt.Errorf("branin: %d coordinates, want 2: %w", len(p), sspbo.ErrDimensionMismatch)
	}

	const (
		a = 1.0
		r = 6.0
		s = 10.0
	)

	b := 5.1 / (4 * math.Pi * math.Pi)
	c := 5 / math.Pi
	t := 1 / (8 * math.Pi)

	x1, x2 := p[0], p[1]
	q := x2 - b*x1*x1 + c*x1 - r

	return a*q*q + s*(1-t)*math.Cos(x1) + s, nil
}

func box(dim int, lo, hi float64) []sspbo.Bound {
	out := make([]sspbo.Bound, dim)
	for i := range out {
		out[i] = sspbo.Bound{Min: lo, Max: hi}
	}

	return out
}
