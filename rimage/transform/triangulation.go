package transform

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Segment3D is a line segment in world coordinates.
type Segment3D struct {
	P1 r3.Vector
	P2 r3.Vector
}

// Length returns the distance between the segment's endpoints.
func (seg Segment3D) Length() float64 {
	return seg.P1.Distance(seg.P2)
}

// Midpoint returns the point halfway between the segment's endpoints.
func (seg Segment3D) Midpoint() r3.Vector {
	return seg.P1.Add(seg.P2).Mul(0.5)
}

// Calculate3DPoint triangulates a pair of corresponding pixels. See Calculate3DPointWithConnection.
func (s *StereoCalibration) Calculate3DPoint(pointLeft, pointRight r2.Point, rectified, useDistortion bool) r3.Vector {
	p, _ := s.Calculate3DPointWithConnection(pointLeft, pointRight, rectified, useDistortion)
	return p
}

// Calculate3DPointWithConnection casts a ray through each pixel and returns the midpoint of the
// shortest segment joining the two rays, along with that segment. Its length is the triangulation
// residual. With rectified the pixels are first mapped back through the rectification homographies.
// Parallel rays yield NaN.
func (s *StereoCalibration) Calculate3DPointWithConnection(
	pointLeft, pointRight r2.Point, rectified, useDistortion bool,
) (r3.Vector, Segment3D) {
	if rectified {
		pointLeft = s.rectificationHomographyLeft.Apply(pointLeft)
		pointRight = s.rectificationHomographyRight.Apply(pointRight)
	}

	// rays x = a + r*u and x = b + s*v
	a := s.left.TranslationInverse()
	u := s.left.ImageToWorldCoordinates(pointLeft, 1, useDistortion).Sub(a)
	b := s.right.TranslationInverse()
	v := s.right.ImageToWorldCoordinates(pointRight, 1, useDistortion).Sub(b)

	r, t := closestRayParameters(a, u, b, v)
	connection := Segment3D{P1: a.Add(u.Mul(r)), P2: b.Add(v.Mul(t))}
	return connection.Midpoint(), connection
}

// closestRayParameters minimizes |a + r*u - (b + s*v)|² by solving the normal equations
//
//	[ u·u  -u·v ] [r]   [  u·(b-a) ]
//	[ -u·v  v·v ] [s] = [ -v·(b-a) ]
//
// with a 2x2 Cholesky decomposition.
func closestRayParameters(a, u, b, v r3.Vector) (float64, float64) {
	d := b.Sub(a)
	a11, a12, a22 := u.Dot(u), -u.Dot(v), v.Dot(v)
	b1, b2 := u.Dot(d), -v.Dot(d)

	l11 := math.Sqrt(a11)
	l21 := a12 / l11
	l22 := math.Sqrt(a22 - l21*l21)

	y1 := b1 / l11
	y2 := (b2 - l21*y1) / l22

	s := y2 / l22
	r := (y1 - l21*s) / l11
	return r, s
}

// Calculate3DPointLinear triangulates a pair of corresponding pixels with the linear DLT method on
// the cameras' 3x4 projection matrices. Undistortion and rectification are applied as in
// Calculate3DPoint.
func (s *StereoCalibration) Calculate3DPointLinear(pointLeft, pointRight r2.Point, rectified, useDistortion bool) (r3.Vector, error) {
	if rectified {
		pointLeft = s.rectificationHomographyLeft.Apply(pointLeft)
		pointRight = s.rectificationHomographyRight.Apply(pointRight)
	}
	if useDistortion {
		pointLeft = s.left.UndistortImageCoordinates(pointLeft)
		pointRight = s.right.UndistortImageCoordinates(pointRight)
	}
	return GetLinearTriangulatedPoint(
		s.left.GetProjectionMatrix3x4(), s.right.GetProjectionMatrix3x4(),
		Convert2DPointToHomogeneousPoint(pointLeft), Convert2DPointToHomogeneousPoint(pointRight),
	)
}

// GetLinearTriangulatedPoint computes the 3D point seen at homogeneous pixels p1 and p2 by cameras
// with 3x4 projection matrices proj1 and proj2, as the null vector of [p1]ₓ*proj1 stacked on [p2]ₓ*proj2.
func GetLinearTriangulatedPoint(proj1, proj2 mat.Matrix, p1, p2 r3.Vector) (r3.Vector, error) {
	var rows1, rows2, a mat.Dense
	rows1.Mul(getCrossProductMatFromPoint(p1), proj1)
	rows2.Mul(getCrossProductMatFromPoint(p2), proj2)
	a.Stack(&rows1, &rows2)

	var svd mat.SVD
	if ok := svd.Factorize(&a, mat.SVDFull); !ok {
		return r3.Vector{}, errors.New("failed to factorize A")
	}
	// Determine the rank of the A matrix with a near zero condition threshold.
	const rcond = 1e-15
	if rank := svd.Rank(rcond); rank == 0 {
		return r3.Vector{}, errors.New("zero rank system")
	}
	var v mat.Dense
	svd.VTo(&v)
	x := v.ColView(3)
	w := x.AtVec(3)
	return r3.Vector{X: x.AtVec(0) / w, Y: x.AtVec(1) / w, Z: x.AtVec(2) / w}, nil
}

// GetLinearTriangulatedPoints triangulates matched normalized points seen by a camera at the
// origin and a camera with 3x4 pose [R|t].
func GetLinearTriangulatedPoints(pose *mat.Dense, pts1, pts2 []r3.Vector) ([]r3.Vector, error) {
	if len(pts1) != len(pts2) {
		return nil, errors.New("the 2 sets of points don't have the same number of elements")
	}
	identity := mat.NewDense(3, 4, []float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0})
	pts3d := make([]r3.Vector, len(pts1))
	for i := range pts1 {
		pt, err := GetLinearTriangulatedPoint(identity, pose, pts1[i], pts2[i])
		if err != nil {
			return nil, errors.Wrapf(err, "point %d", i)
		}
		pts3d[i] = pt
	}
	return pts3d, nil
}
