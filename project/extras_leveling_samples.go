package project

import (
	"fmt"
	"math"
)

const (
	minRadialSamples = 3
	// xyTolerance is the distance (mm) under which two probe points count as the same spot.
	xyTolerance = 1e-9
	// angleTolerance (rad) lets a sample sit on the far boundary of its sectors.
	angleTolerance = 1e-6
)

// ConfigError reports a sample set that cannot produce a leveling function.
// Index is the offending sample, or -1 when the whole set is at fault.
type ConfigError struct {
	Reason string
	Index  int
}

func (self *ConfigError) Error() string {
	if self.Index >= 0 {
		return fmt.Sprintf("leveling config error: sample %d: %s", self.Index, self.Reason)
	}
	return "leveling config error: " + self.Reason
}

func newConfigError(index int, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...), Index: index}
}

// SampleSet is n edge probes in angular order followed by the center probe.
type SampleSet []Vector3

func (self SampleSet) Center() Vector3 {
	return self[len(self)-1]
}

func (self SampleSet) Edge(i int) Vector3 {
	n := len(self) - 1
	return self[((i%n)+n)%n]
}

func validateSampleSet(n int, samples SampleSet, bedCenter Vector2) error {
	if n < minRadialSamples {
		return newConfigError(-1, "need at least %d edge samples, got %d", minRadialSamples, n)
	}
	if len(samples) != n+1 {
		return newConfigError(-1, "expected %d samples (%d edge + center), got %d", n+1, n, len(samples))
	}
	if !isFinite(bedCenter.X) || !isFinite(bedCenter.Y) {
		return newConfigError(-1, "bed center (%v, %v) is not finite", bedCenter.X, bedCenter.Y)
	}
	for i, s := range samples {
		if !isFinite(s.X) || !isFinite(s.Y) || !isFinite(s.Z) {
			return newConfigError(i, "coordinates (%v, %v, %v) are not finite", s.X, s.Y, s.Z)
		}
	}

	center := samples.Center()
	for i := 0; i < n; i++ {
		if sameXY(center.XY(), samples[i].XY()) {
			return newConfigError(i, "edge sample coincides with the center sample at (%.3f, %.3f)", center.X, center.Y)
		}
	}
	return checkSampleOrder(n, samples, bedCenter)
}

// checkSampleOrder requires edge sample i to lie in one of the two sectors
// touching the boundary at i·2π/n, counter-clockwise from +X around bedCenter.
// Wedge lookup is by sector, so a sample anywhere else would be served by a
// plane that does not pass through it.
func checkSampleOrder(n int, samples SampleSet, bedCenter Vector2) error {
	wedge := 2 * math.Pi / float64(n)
	for i := 0; i < n; i++ {
		s := samples[i]
		if sameXY(bedCenter, s.XY()) {
			return newConfigError(i, "edge sample sits on the bed center (%.3f, %.3f)", bedCenter.X, bedCenter.Y)
		}
		angle := math.Atan2(s.Y-bedCenter.Y, s.X-bedCenter.X)
		off := math.Remainder(angle-float64(i)*wedge, 2*math.Pi)
		if math.Abs(off) > wedge+angleTolerance {
			return newConfigError(i, "edge sample at %.1f° is out of order, expected within %.1f° of %.1f°",
				degrees(angle), degrees(wedge), degrees(float64(i)*wedge))
		}
	}
	return nil
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// RadialProbePositions lays out n probe points on a circle of the given
// radius, counter-clockwise from +X, followed by the bed center.
func RadialProbePositions(n int, radius float64, center Vector2) ([]Vector2, error) {
	if n < minRadialSamples {
		return nil, newConfigError(-1, "need at least %d edge samples, got %d", minRadialSamples, n)
	}
	if !(radius > 0) || math.IsInf(radius, 0) {
		return nil, newConfigError(-1, "probe radius must be positive, got %v", radius)
	}
	positions := make([]Vector2, 0, n+1)
	step := 2 * math.Pi / float64(n)
	for i := 0; i < n; i++ {
		angle := float64(i) * step
		positions = append(positions, Vector2{
			X: center.X + radius*math.Cos(angle),
			Y: center.Y + radius*math.Sin(angle),
		})
	}
	return append(positions, center), nil
}

func sameXY(a, b Vector2) bool {
	return math.Hypot(a.X-b.X, a.Y-b.Y) <= xyTolerance
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
