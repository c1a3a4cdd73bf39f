package project

import (
	"math"

	"k3clevel/common/logger"
	"k3clevel/common/utils/maths"
)

// Leveler maps a requested position to the position that compensates for
// the bed surface.
type Leveler interface {
	LeveledPosition(target Vector3) Vector3
}

// IdentityLeveling leaves every position untouched. It stands in for a
// leveling function whose calibration could not be built.
type IdentityLeveling struct{}

func (IdentityLeveling) LeveledPosition(target Vector3) Vector3 {
	return target
}

// RadialLeveling is a piecewise-planar height map over the bed built from a
// ring of probe samples around the bed center plus the center probe. Each
// wedge between two neighbouring edge samples gets the plane through those
// samples and the center sample; queries outside the probed ring extrapolate
// the plane of their wedge. Immutable once built.
type RadialLeveling struct {
	bedCenter Vector2
	samples   SampleSet
	wedge     float64
	planes    []maths.Plane
}

func BuildRadialLeveling(n int, samples []Vector3, bedCenter Vector2) (*RadialLeveling, error) {
	set := SampleSet(samples)
	if err := validateSampleSet(n, set, bedCenter); err != nil {
		return nil, err
	}

	self := &RadialLeveling{
		bedCenter: bedCenter,
		samples:   append(SampleSet(nil), set...),
		wedge:     2 * math.Pi / float64(n),
		planes:    make([]maths.Plane, n),
	}

	center := self.samples.Center()
	for i := 0; i < n; i++ {
		a, b := self.samples.Edge(i), self.samples.Edge(i+1)
		plane, err := maths.FitPlane(
			[3]float64{center.X, center.Y, center.Z},
			[3]float64{a.X, a.Y, a.Z},
			[3]float64{b.X, b.Y, b.Z},
		)
		if err != nil {
			return nil, newConfigError(i, "wedge %d-%d: %v", i, (i+1)%n, err)
		}
		self.planes[i] = plane
	}

	logger.Infof("radial leveling ready: %d wedges around (%.2f, %.2f), center z=%.3f",
		n, bedCenter.X, bedCenter.Y, center.Z)
	return self, nil
}

// NewLevelerOrIdentity builds the radial function, falling back to
// IdentityLeveling when the samples are unusable. The error is still
// returned so callers can surface it.
func NewLevelerOrIdentity(n int, samples []Vector3, bedCenter Vector2) (Leveler, error) {
	radial, err := BuildRadialLeveling(n, samples, bedCenter)
	if err != nil {
		logger.Errorf("bed leveling disabled: %v", err)
		return IdentityLeveling{}, err
	}
	return radial, nil
}

func (self *RadialLeveling) wedgeIndex(x, y float64) int {
	theta := math.Atan2(y-self.bedCenter.Y, x-self.bedCenter.X)
	if theta < 0 {
		theta += 2 * math.Pi
	}
	n := len(self.planes)
	return int(math.Floor(theta/self.wedge)) % n
}

// HeightOffset returns the bed deviation at (x, y).
func (self *RadialLeveling) HeightOffset(x, y float64) float64 {
	return self.planes[self.wedgeIndex(x, y)].Eval(x, y)
}

func (self *RadialLeveling) LeveledPosition(target Vector3) Vector3 {
	return Vector3{
		X: target.X,
		Y: target.Y,
		Z: target.Z + self.HeightOffset(target.X, target.Y),
	}
}

func (self *RadialLeveling) WedgeCount() int {
	return len(self.planes)
}

func (self *RadialLeveling) BedCenter() Vector2 {
	return self.bedCenter
}

func (self *RadialLeveling) Samples() []Vector3 {
	return append([]Vector3(nil), self.samples...)
}
