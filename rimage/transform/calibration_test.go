package transform

import (
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/camgeom/spatialmath"
	"go.viam.com/camgeom/utils"
)

func testVectorAlmostEqual(t *testing.T, got, want r3.Vector, epsilon float64) {
	t.Helper()
	test.That(t, got.X, test.ShouldAlmostEqual, want.X, epsilon)
	test.That(t, got.Y, test.ShouldAlmostEqual, want.Y, epsilon)
	test.That(t, got.Z, test.ShouldAlmostEqual, want.Z, epsilon)
}

func testPointAlmostEqual(t *testing.T, got, want r2.Point, epsilon float64) {
	t.Helper()
	test.That(t, got.X, test.ShouldAlmostEqual, want.X, epsilon)
	test.That(t, got.Y, test.ShouldAlmostEqual, want.Y, epsilon)
}

func rotationFromDegrees(deg, x, y, z float64) *spatialmath.RotationMatrix {
	return (&spatialmath.R4AA{Theta: utils.DegToRad(deg), RX: x, RY: y, RZ: z}).RotationMatrix()
}

// a camera with every parameter set to something other than its default.
func makeTestCalibration() *Calibration {
	c := NewCalibration()
	c.SetCameraParameters(
		600, 610, 330, 245,
		-0.1, 0.05, 0.001, -0.002,
		rotationFromDegrees(20, 1, 2, -0.5),
		r3.Vector{X: 50, Y: -20, Z: 100},
		640, 480,
	)
	return c
}

var testWorldPoints = []r3.Vector{
	{X: 0, Y: 0, Z: 1000},
	{X: -150, Y: 80, Z: 600},
	{X: 200, Y: 120, Z: 2500},
	{X: 13.5, Y: -250.25, Z: 900},
}

func TestDefaultCalibration(t *testing.T) {
	c := NewCalibration()
	intr := c.Intrinsics()
	test.That(t, intr, test.ShouldResemble, PinholeCameraIntrinsics{
		Width: 640, Height: 480, Fx: 580, Fy: 580, Ppx: 320, Ppy: 240,
	})
	test.That(t, c.Distortion().IsZero(), test.ShouldBeTrue)
	test.That(t, c.Rotation(), test.ShouldResemble, spatialmath.NewIdentityRotationMatrix())
	test.That(t, c.Translation(), test.ShouldResemble, r3.Vector{})
	test.That(t, c.TranslationInverse().Norm(), test.ShouldEqual, 0.)

	// on the optical axis
	test.That(t, c.WorldToImageCoordinates(r3.Vector{Z: 1000}, false), test.ShouldResemble, r2.Point{X: 320, Y: 240})
	test.That(t, c.WorldToImageCoordinates(r3.Vector{Z: 1000}, true), test.ShouldResemble, r2.Point{X: 320, Y: 240})
	test.That(t, c.WorldToImageCoordinates(r3.Vector{X: 100, Y: -50, Z: 1000}, false), test.ShouldResemble, r2.Point{X: 378, Y: 211})
}

func TestSetters(t *testing.T) {
	c := NewCalibration()
	c.SetIntrinsicBase(300, 200, 500, 510)
	intr := c.Intrinsics()
	test.That(t, intr.Ppx, test.ShouldEqual, 300.)
	test.That(t, intr.Ppy, test.ShouldEqual, 200.)
	test.That(t, intr.Fx, test.ShouldEqual, 500.)
	test.That(t, intr.Fy, test.ShouldEqual, 510.)
	test.That(t, intr.Width, test.ShouldEqual, 640)

	c.SetDistortion(1, 2, 3, 4)
	test.That(t, c.Distortion().Parameters(), test.ShouldResemble, []float64{1, 2, 3, 4})

	rotation := rotationFromDegrees(90, 0, 0, 1)
	c.SetRotation(rotation)
	test.That(t, spatialmath.RotationMatrixAlmostEqual(c.RotationInverse(), rotation.Transpose(), 0), test.ShouldBeTrue)

	c.SetTranslation(r3.Vector{X: 10})
	// the camera centre is -Rᵗt
	testVectorAlmostEqual(t, c.TranslationInverse(), r3.Vector{Y: 10}, 1e-12)
	testVectorAlmostEqual(t, c.CameraToWorldCoordinates(r3.Vector{}), c.TranslationInverse(), 0)

	// mutating an accessor result does not touch the camera
	got := c.Rotation()
	*got = *spatialmath.NewIdentityRotationMatrix()
	test.That(t, spatialmath.RotationMatrixAlmostEqual(c.Rotation(), rotation, 0), test.ShouldBeTrue)
}

func TestInverseTransformConsistency(t *testing.T) {
	c := NewCalibration()
	steps := []func(){
		func() { c.SetRotation(rotationFromDegrees(30, 1, 0, 0)) },
		func() { c.SetTranslation(r3.Vector{X: 1, Y: 2, Z: 3}) },
		func() { c.SetRotation(rotationFromDegrees(-75, 0.2, 1, 0.3)) },
		func() { c.SetTranslation(r3.Vector{X: -400, Y: 12.5, Z: 90}) },
		func() { c.SetExtrinsic(rotationFromDegrees(170, 1, 1, 1), r3.Vector{Z: -5}) },
	}
	for _, step := range steps {
		step()
		for _, p := range testWorldPoints {
			testVectorAlmostEqual(t, c.CameraToWorldCoordinates(c.WorldToCameraCoordinates(p)), p, 1e-9)
		}
	}
}

func TestProjectionRoundTrip(t *testing.T) {
	c := makeTestCalibration()
	for _, p := range testWorldPoints {
		pc := c.WorldToCameraCoordinates(p)
		test.That(t, pc.Z, test.ShouldBeGreaterThan, 0)
		pi := c.WorldToImageCoordinates(p, false)
		testVectorAlmostEqual(t, c.ImageToWorldCoordinates(pi, pc.Z, false), p, 1e-9)

		// with distortion the round trip goes through the iterative inverse
		pd := c.WorldToImageCoordinates(p, true)
		testVectorAlmostEqual(t, c.ImageToWorldCoordinates(pd, pc.Z, true), p, 1e-4)

		testVectorAlmostEqual(t, c.ImageToCameraCoordinates(c.CameraToImageCoordinates(pc, false), pc.Z, false), pc, 1e-9)
	}
}

func TestDistortionRoundTrip(t *testing.T) {
	coefficients := [][4]float64{
		{0, 0, 0, 0},
		{-0.1, 0, 0, 0},
		{0.08, -0.03, 0, 0},
		{0, 0, 0.002, -0.001},
		{-0.2, 0.05, 0.001, 0.002},
	}
	pixels := []r2.Point{{X: 320, Y: 240}, {X: 0, Y: 0}, {X: 639, Y: 479}, {X: 100.5, Y: 400.25}, {X: 600, Y: 20}}
	for _, d := range coefficients {
		c := NewCalibration()
		c.SetDistortion(d[0], d[1], d[2], d[3])
		for _, p := range pixels {
			distorted := c.DistortImageCoordinates(p)
			undistorted := c.UndistortImageCoordinates(p)
			if d == [4]float64{} {
				test.That(t, distorted, test.ShouldResemble, p)
				test.That(t, undistorted, test.ShouldResemble, p)
				continue
			}
			testPointAlmostEqual(t, c.UndistortImageCoordinates(distorted), p, 1e-3)
			testPointAlmostEqual(t, c.DistortImageCoordinates(undistorted), p, 1e-3)
		}
	}
}

func TestDistortImageCoordinates(t *testing.T) {
	c := NewCalibration()
	c.SetIntrinsicBase(300, 200, 500, 400)
	c.SetDistortion(0.1, 0.01, 0.001, 0.002)

	x, y := 0.2, 0.25
	rr := x*x + y*y
	k := 1 + 0.1*rr + 0.01*rr*rr
	dx := 2*0.001*x*y + 0.002*(rr+2*x*x)
	dy := 0.001*(rr+2*y*y) + 2*0.002*x*y
	got := c.DistortImageCoordinates(r2Point(300+500*x, 200+400*y))
	testPointAlmostEqual(t, got, r2Point(500*(k*x+dx)+300, 400*(k*y+dy)+200), 1e-9)
}

func r2Point(x, y float64) r2.Point {
	return r2.Point{X: x, Y: y}
}

func TestCalibrationMatrices(t *testing.T) {
	c := makeTestCalibration()
	k := c.GetCalibrationMatrix()
	test.That(t, mat.Equal(k, mat.NewDense(3, 3, []float64{600, 0, 330, 0, 610, 245, 0, 0, 1})), test.ShouldBeTrue)

	p, pt := c.GetProjectionMatrix()
	var want mat.Dense
	want.Mul(k, c.Rotation().Dense())
	test.That(t, mat.EqualApprox(p, &want, 1e-12), test.ShouldBeTrue)
	testVectorAlmostEqual(t, pt, r3.Vector{X: 600*50 + 330*100, Y: 610*-20 + 245*100, Z: 100}, 1e-9)

	// [KR | Kt] applied to a homogeneous world point lands on the projection
	full := c.GetProjectionMatrix3x4()
	rows, cols := full.Dims()
	test.That(t, rows, test.ShouldEqual, 3)
	test.That(t, cols, test.ShouldEqual, 4)
	for _, w := range testWorldPoints {
		var h mat.VecDense
		h.MulVec(full, mat.NewVecDense(4, []float64{w.X, w.Y, w.Z, 1}))
		testPointAlmostEqual(t, r2Point(h.AtVec(0)/h.AtVec(2), h.AtVec(1)/h.AtVec(2)), c.WorldToImageCoordinates(w, false), 1e-9)
	}

	pose := c.Pose()
	rot, err := pose.RotationMatrix()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spatialmath.RotationMatrixAlmostEqual(rot, c.Rotation(), 0), test.ShouldBeTrue)
	test.That(t, pose.TranslationVector(), test.ShouldResemble, c.Translation())
}

func TestCalibrationCopy(t *testing.T) {
	c := makeTestCalibration()
	clone := c.Clone()
	test.That(t, clone, test.ShouldResemble, c)

	clone.SetTranslation(r3.Vector{X: 1})
	clone.SetDistortion(0, 0, 0, 0)
	test.That(t, c.Translation(), test.ShouldResemble, r3.Vector{X: 50, Y: -20, Z: 100})
	test.That(t, c.Distortion().IsZero(), test.ShouldBeFalse)

	other := NewCalibration()
	other.Set(c)
	test.That(t, other, test.ShouldResemble, c)
}

func TestDeprecatedAliases(t *testing.T) {
	c := makeTestCalibration()
	p := r2Point(123.5, 321.25)
	test.That(t, c.GetCameraCoordinates(p, 700, true), test.ShouldResemble, c.ImageToCameraCoordinates(p, 700, true))
	test.That(t, c.GetWorldCoordinates(p, 700, false), test.ShouldResemble, c.ImageToWorldCoordinates(p, 700, false))
	test.That(t, c.UndistortCameraCoordinates(p), test.ShouldResemble, c.UndistortImageCoordinates(p))
	test.That(t, c.DistortCameraCoordinates(p), test.ShouldResemble, c.DistortImageCoordinates(p))
}
