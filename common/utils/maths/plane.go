package maths

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var ErrDegeneratePlane = errors.New("points do not span a plane over xy")

// areaTolerance is the minimum doubled triangle area (mm^2) accepted as a plane.
const areaTolerance = 1e-9

// Plane is the affine height function z = A*x + B*y + C.
type Plane struct {
	A float64
	B float64
	C float64
}

func (p Plane) Eval(x, y float64) float64 {
	return p.A*x + p.B*y + p.C
}

// FitPlane solves the plane through three 3D points given as {x, y, z}.
func FitPlane(p0, p1, p2 [3]float64) (Plane, error) {
	cross := (p1[0]-p0[0])*(p2[1]-p0[1]) - (p1[1]-p0[1])*(p2[0]-p0[0])
	if math.Abs(cross) < areaTolerance || math.IsNaN(cross) {
		return Plane{}, ErrDegeneratePlane
	}

	a := mat.NewDense(3, 3, []float64{
		p0[0], p0[1], 1,
		p1[0], p1[1], 1,
		p2[0], p2[1], 1,
	})
	b := mat.NewVecDense(3, []float64{p0[2], p1[2], p2[2]})

	var coef mat.VecDense
	if err := coef.SolveVec(a, b); err != nil {
		return Plane{}, fmt.Errorf("%w: %v", ErrDegeneratePlane, err)
	}
	return Plane{A: coef.AtVec(0), B: coef.AtVec(1), C: coef.AtVec(2)}, nil
}

// Lerp returns a + (b-a)*t.
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
