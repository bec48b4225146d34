package transform

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// epipolarSegmentTolerance is the distance below which two border intersections are one point,
// and how far outside the image a border intersection may fall before it is discarded.
const epipolarSegmentTolerance = 1e-6

// Segment2D is a line segment in image coordinates.
type Segment2D struct {
	P1 r2.Point
	P2 r2.Point
}

// CalculateEpipolarLineInLeftImage returns l = Fᵗ*[u, v, 1] for a pixel of the right image, the line
// l.X*u + l.Y*v + l.Z = 0 of the left image its correspondence must lie on.
func (s *StereoCalibration) CalculateEpipolarLineInLeftImage(pointInRightImage r2.Point) r3.Vector {
	return mulHomogeneous(&s.ft, pointInRightImage)
}

// CalculateEpipolarLineInRightImage returns l = F*[u, v, 1] for a pixel of the left image.
func (s *StereoCalibration) CalculateEpipolarLineInRightImage(pointInLeftImage r2.Point) r3.Vector {
	return mulHomogeneous(&s.f, pointInLeftImage)
}

// CalculateEpipolarLineInLeftImageSlopeIntercept returns the left epipolar line as v = slope*u + intercept.
// Vertical lines yield infinite values.
func (s *StereoCalibration) CalculateEpipolarLineInLeftImageSlopeIntercept(pointInRightImage r2.Point) (float64, float64) {
	return slopeIntercept(s.CalculateEpipolarLineInLeftImage(pointInRightImage))
}

// CalculateEpipolarLineInRightImageSlopeIntercept returns the right epipolar line as v = slope*u + intercept.
func (s *StereoCalibration) CalculateEpipolarLineInRightImageSlopeIntercept(pointInLeftImage r2.Point) (float64, float64) {
	return slopeIntercept(s.CalculateEpipolarLineInRightImage(pointInLeftImage))
}

// CalculateEpipolarLineInLeftImageSegment clips the left epipolar line to the image. ok is false when
// the line does not cross the image in two distinct points.
func (s *StereoCalibration) CalculateEpipolarLineInLeftImageSegment(pointInRightImage r2.Point) (Segment2D, bool) {
	return clipLineToImage(s.CalculateEpipolarLineInLeftImage(pointInRightImage), s.width, s.height)
}

// CalculateEpipolarLineInRightImageSegment clips the right epipolar line to the image.
func (s *StereoCalibration) CalculateEpipolarLineInRightImageSegment(pointInLeftImage r2.Point) (Segment2D, bool) {
	return clipLineToImage(s.CalculateEpipolarLineInRightImage(pointInLeftImage), s.width, s.height)
}

// CalculateEpipolarLineInLeftImageDistance is the signed pixel distance of pointInLeftImage from
// the epipolar line of pointInRightImage.
func (s *StereoCalibration) CalculateEpipolarLineInLeftImageDistance(pointInLeftImage, pointInRightImage r2.Point) float64 {
	return lineDistance(s.CalculateEpipolarLineInLeftImage(pointInRightImage), pointInLeftImage)
}

// CalculateEpipolarLineInRightImageDistance is the signed pixel distance of pointInRightImage from
// the epipolar line of pointInLeftImage.
func (s *StereoCalibration) CalculateEpipolarLineInRightImageDistance(pointInLeftImage, pointInRightImage r2.Point) float64 {
	return lineDistance(s.CalculateEpipolarLineInRightImage(pointInLeftImage), pointInRightImage)
}

func mulHomogeneous(m mat.Matrix, p r2.Point) r3.Vector {
	return mulVec(m, r3.Vector{X: p.X, Y: p.Y, Z: 1})
}

func slopeIntercept(l r3.Vector) (float64, float64) {
	return -l.X / l.Y, -l.Z / l.Y
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

func lineDistance(l r3.Vector, p r2.Point) float64 {
	return (l.X*p.X + l.Y*p.Y + l.Z) / math.Hypot(l.X, l.Y)
}

// clipLineToImage intersects l with the borders u = 0, u = width-1, v = 0 and v = height-1, in that
// order, and returns the first two distinct intersections inside the image.
func clipLineToImage(l r3.Vector, width, height int) (Segment2D, bool) {
	maxU, maxV := float64(width-1), float64(height-1)

	// -1 marks a border the line runs parallel to.
	vLeft, vRight, uTop, uBottom := -1.0, -1.0, -1.0, -1.0
	if l.Y != 0 {
		vLeft = -l.Z / l.Y
		vRight = -(l.X*maxU + l.Z) / l.Y
	}
	if l.X != 0 {
		uTop = -l.Z / l.X
		uBottom = -(l.Y*maxV + l.Z) / l.X
	}
	candidates := []r2.Point{
		{X: 0, Y: vLeft},
		{X: maxU, Y: vRight},
		{X: uTop, Y: 0},
		{X: uBottom, Y: maxV},
	}

	var found []r2.Point
	for _, c := range candidates {
		if c.X < -epipolarSegmentTolerance || c.X > maxU+epipolarSegmentTolerance ||
			c.Y < -epipolarSegmentTolerance || c.Y > maxV+epipolarSegmentTolerance {
			continue
		}
		c = r2.Point{X: clamp(c.X, 0, maxU), Y: clamp(c.Y, 0, maxV)}
		if len(found) == 1 && found[0].Sub(c).Norm() < epipolarSegmentTolerance {
			continue
		}
		found = append(found, c)
		if len(found) == 2 {
			return Segment2D{P1: found[0], P2: found[1]}, true
		}
	}
	return Segment2D{}, false
}
