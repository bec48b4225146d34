package transform

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func TestSegment3D(t *testing.T) {
	seg := Segment3D{P1: r3.Vector{X: 1, Y: 2, Z: 3}, P2: r3.Vector{X: 4, Y: 6, Z: 3}}
	test.That(t, seg.Length(), test.ShouldEqual, 5.)
	test.That(t, seg.Midpoint(), test.ShouldResemble, r3.Vector{X: 2.5, Y: 4, Z: 3})
}

func TestCalculate3DPoint(t *testing.T) {
	s := makeTestStereoCalibration(false)
	for _, p := range testWorldPoints {
		pl := s.Left().WorldToImageCoordinates(p, false)
		pr := s.Right().WorldToImageCoordinates(p, false)

		got, connection := s.Calculate3DPointWithConnection(pl, pr, false, false)
		testVectorAlmostEqual(t, got, p, 1e-6)
		test.That(t, connection.Length(), test.ShouldAlmostEqual, 0, 1e-6)
		testVectorAlmostEqual(t, s.Calculate3DPoint(pl, pr, false, false), got, 0)

		linear, err := s.Calculate3DPointLinear(pl, pr, false, false)
		test.That(t, err, test.ShouldBeNil)
		testVectorAlmostEqual(t, linear, p, 1e-4)
	}
}

func TestCalculate3DPointWithDistortion(t *testing.T) {
	s := makeTestStereoCalibration(true)
	for _, p := range testWorldPoints {
		pl := s.Left().WorldToImageCoordinates(p, true)
		pr := s.Right().WorldToImageCoordinates(p, true)

		testVectorAlmostEqual(t, s.Calculate3DPoint(pl, pr, false, true), p, 1e-2)
		linear, err := s.Calculate3DPointLinear(pl, pr, false, true)
		test.That(t, err, test.ShouldBeNil)
		testVectorAlmostEqual(t, linear, p, 1e-2)

		// ignoring the lens leaves the rays skew
		_, connection := s.Calculate3DPointWithConnection(pl, pr, false, false)
		test.That(t, connection.Length(), test.ShouldBeGreaterThan, 1e-4)
	}
}

func TestCalculate3DPointRectified(t *testing.T) {
	s := NewStereoCalibration()
	h, err := NewHomography([]float64{1, 0, 2, 0, 1, -3, 0, 0, 1})
	test.That(t, err, test.ShouldBeNil)
	s.SetRectificationHomographies(NewIdentityHomography(), h)

	// (0, 0, 500) is at (204, 240) in the original right image and (202, 243) in the rectified one
	pl := r2.Point{X: 320, Y: 240}
	pr := r2.Point{X: 202, Y: 243}
	testVectorAlmostEqual(t, s.Calculate3DPoint(pl, pr, true, false), r3.Vector{Z: 500}, 1e-9)
	linear, err := s.Calculate3DPointLinear(pl, pr, true, false)
	test.That(t, err, test.ShouldBeNil)
	testVectorAlmostEqual(t, linear, r3.Vector{Z: 500}, 1e-6)

	_, connection := s.Calculate3DPointWithConnection(pl, pr, false, false)
	test.That(t, connection.Length(), test.ShouldBeGreaterThan, 1)
}

func TestCalculate3DPointParallelRays(t *testing.T) {
	s := NewStereoCalibration()
	p := s.Calculate3DPoint(r2.Point{X: 320, Y: 240}, r2.Point{X: 320, Y: 240}, false, false)
	test.That(t, math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsNaN(p.Z), test.ShouldBeTrue)
}

func TestGetLinearTriangulatedPoints(t *testing.T) {
	rotation := rotationFromDegrees(12, 0.1, 1, -0.2)
	translation := r3.Vector{X: -1, Y: 0.1, Z: 0.05}
	pose := mat.NewDense(3, 4, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			pose.Set(i, j, rotation.At(i, j))
		}
	}
	pose.Set(0, 3, translation.X)
	pose.Set(1, 3, translation.Y)
	pose.Set(2, 3, translation.Z)

	pts3d := []r3.Vector{
		{X: 0, Y: 0, Z: 5},
		{X: 1, Y: -0.5, Z: 4},
		{X: -2, Y: 1.5, Z: 9},
	}
	pts1 := make([]r3.Vector, len(pts3d))
	pts2 := make([]r3.Vector, len(pts3d))
	for i, p := range pts3d {
		pts1[i] = p.Mul(1 / p.Z)
		q := rotation.MulVector(p).Add(translation)
		pts2[i] = q.Mul(1 / q.Z)
	}

	got, err := GetLinearTriangulatedPoints(pose, pts1, pts2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldHaveLength, len(pts3d))
	for i := range got {
		testVectorAlmostEqual(t, got[i], pts3d[i], 1e-9)
	}

	_, err = GetLinearTriangulatedPoints(pose, pts1, pts2[:1])
	test.That(t, err, test.ShouldNotBeNil)
}
